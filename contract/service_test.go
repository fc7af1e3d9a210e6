package contract_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/warp/contract-engine/benefit"
	"github.com/warp/contract-engine/compensation"
	"github.com/warp/contract-engine/contract"
	"github.com/warp/contract-engine/fixedterm"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/metrics"
	"github.com/warp/contract-engine/params"
	"github.com/warp/contract-engine/store/memory"
)

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *memory.Store
	metrics  *metrics.Metrics
	params   *params.Resolver
	benefits *benefit.Resolver
	svc      *contract.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.metrics = metrics.NewWith(prometheus.NewRegistry())
	log := zerolog.Nop()

	s.params = params.NewResolver(s.store, nil, s.store, log, s.metrics)
	_, err := s.params.Register(s.ctx, "hr", params.MinimumWage, 2025, decimal.NewFromInt(1_423_500), now)
	s.Require().NoError(err)
	_, err = s.params.Register(s.ctx, "hr", params.TransportSubsidy, 2025, decimal.NewFromInt(200_000), now)
	s.Require().NoError(err)

	s.benefits = benefit.NewResolver(s.store, s.store, log, s.metrics)
	s.svc = contract.NewService(contract.Config{
		Store:      s.store,
		Periods:    fixedterm.NewService(s.store, fixedterm.DefaultTenurePolicy(), s.store, log),
		Benefits:   s.benefits,
		Calculator: compensation.NewCalculator(s.params),
		Audit:      s.store,
		Logger:     log,
		Metrics:    s.metrics,
	})
}

func (s *ServiceSuite) create(c *contract.Contract) *contract.Contract {
	created, err := s.svc.Create(s.ctx, "hr-1", *c, now)
	s.Require().NoError(err)
	return created
}

// TestCreate verifies drafts are stored with derived pay and a current period.
func (s *ServiceSuite) TestCreate() {
	s.Run("derives the transport subsidy", func() {
		c := s.create(readyDraft())

		s.Equal(contract.StatusDraft, c.ApprovalStatus)
		s.NotEqual("c-1", c.ID, "IDs are assigned by the service")
		s.True(c.TransportSubsidy.Amount.Equal(decimal.NewFromInt(200_000)))

		stored, err := s.svc.Get(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(generic.Actor("hr-1"), stored.CreatedBy)
	})

	s.Run("mirrors fixed-term dates into the current period", func() {
		in := readyDraft()
		in.Document.Number = "1020304051"
		c := s.create(in)

		l, summary, err := s.svc.PeriodLedger(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Require().NotNil(l.Current)
		s.Equal("2025-01-01", l.Current.Start.String())
		s.Equal("2025-12-31", l.Current.End.String())
		s.Equal(fixedterm.KindInitial, l.Current.Kind)
		s.Equal(1, summary.TotalPeriods)
	})

	s.Run("accepts partial drafts", func() {
		c := s.create(&contract.Contract{CompanyID: "acme"})
		s.Equal(contract.StatusDraft, c.ApprovalStatus)
	})
}

// TestUpdate_RecomputesSubsidy verifies the subsidy never outlives the pay
// it was derived from.
func (s *ServiceSuite) TestUpdate_RecomputesSubsidy() {
	c := s.create(readyDraft())
	s.Require().True(c.TransportSubsidy.Amount.Equal(decimal.NewFromInt(200_000)))

	s.Run("invalid allowances clear it", func() {
		// GIVEN: a raise and an allowance in another currency
		in := readyDraft()
		in.BaseSalary = generic.NewMoneyFromInt(10_000_000, generic.CurrencyCOP)
		in.Allowances = []compensation.Allowance{{
			Category:    compensation.NonSalarial,
			Description: "meals",
			Amount:      generic.NewMoneyFromInt(5, "USD"),
		}}

		// WHEN
		updated, err := s.svc.Update(s.ctx, "hr-1", c.ID, *in, now)

		// THEN: the draft is saved but carries no subsidy
		s.Require().NoError(err)
		s.True(updated.TransportSubsidy.Amount.IsZero())
		s.Equal(generic.CurrencyCOP, updated.TransportSubsidy.Currency)

		stored, err := s.svc.Get(s.ctx, c.ID)
		s.Require().NoError(err)
		s.True(stored.TransportSubsidy.Amount.IsZero())
	})

	s.Run("fixing the allowances derives it again", func() {
		updated, err := s.svc.Update(s.ctx, "hr-1", c.ID, *readyDraft(), now)

		s.Require().NoError(err)
		s.True(updated.TransportSubsidy.Amount.Equal(decimal.NewFromInt(200_000)))
	})

	s.Run("a missing start date clears it", func() {
		in := readyDraft()
		in.StartDate = generic.Date{}

		updated, err := s.svc.Update(s.ctx, "hr-1", c.ID, *in, now)

		s.Require().NoError(err)
		s.True(updated.TransportSubsidy.Amount.IsZero())
	})
}

// TestDocumentUniqueness verifies one active contract per document.
func (s *ServiceSuite) TestDocumentUniqueness() {
	first := s.create(readyDraft())

	_, err := s.svc.Create(s.ctx, "hr-1", *readyDraft(), now)
	var verr *generic.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal("document_number", verr.Field)

	// archiving frees the document
	_, err = s.svc.Archive(s.ctx, "hr-1", first.ID, now)
	s.Require().NoError(err)
	second := s.create(readyDraft())

	// and unarchiving the first is now refused
	_, err = s.svc.Unarchive(s.ctx, "admin", first.ID, now)
	s.Require().ErrorAs(err, &verr)
	s.NotEqual(first.ID, second.ID)

	stored, err := s.svc.Get(s.ctx, first.ID)
	s.Require().NoError(err)
	s.True(stored.IsArchived())
}

// TestApprovalLifecycle verifies lock, reopen and annul.
func (s *ServiceSuite) TestApprovalLifecycle() {
	c := s.create(readyDraft())

	approved, err := s.svc.Approve(s.ctx, "lead", c.ID, now)
	s.Require().NoError(err)
	s.True(approved.IsApproved())
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Approvals.WithLabelValues("approved")))

	_, err = s.svc.Update(s.ctx, "hr-1", c.ID, *readyDraft(), now)
	s.ErrorIs(err, generic.ErrStaleState)

	_, err = s.svc.AppendPeriod(s.ctx, "hr-1", c.ID, fixedterm.Period{
		Start: d("2024-01-01"), End: d("2024-12-31"),
	}, d("2025-01-10"), now)
	s.ErrorIs(err, generic.ErrStaleState)

	reopened, err := s.svc.Reopen(s.ctx, "admin", c.ID, "wrong salary", now)
	s.Require().NoError(err)
	s.False(reopened.IsApproved())

	annulled, err := s.svc.Annul(s.ctx, "admin", c.ID, "employee declined", now)
	s.Require().NoError(err)
	s.True(annulled.IsArchived())

	// annulled contracts stay readable
	ev, err := s.svc.Evaluate(s.ctx, c.ID, d("2025-02-01"))
	s.Require().NoError(err)
	s.True(ev.Archived)
	s.False(ev.Locked)

	entries, err := s.store.QueryAudit(s.ctx, generic.AuditFilter{EntityID: &c.ID})
	s.Require().NoError(err)
	var actions []generic.AuditAction
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	s.Contains(actions, generic.AuditContractCreated)
	s.Contains(actions, generic.AuditContractApproved)
	s.Contains(actions, generic.AuditContractReopened)
	s.Contains(actions, generic.AuditContractAnnulled)
}

// TestApproveRejected verifies incomplete drafts stay drafts.
func (s *ServiceSuite) TestApproveRejected() {
	in := readyDraft()
	in.Onboarding = nil
	c := s.create(in)

	_, err := s.svc.Approve(s.ctx, "lead", c.ID, now)

	s.ErrorIs(err, generic.ErrValidation)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Approvals.WithLabelValues("rejected")))
	stored, err := s.svc.Get(s.ctx, c.ID)
	s.Require().NoError(err)
	s.False(stored.IsApproved())
}

// TestPeriodEdits verifies the contract follows its ledger.
func (s *ServiceSuite) TestPeriodEdits() {
	in := readyDraft()
	in.StartDate = d("2024-01-01")
	c := s.create(in)
	today := d("2025-01-10")

	s.Run("appending history moves the contract start", func() {
		l, err := s.svc.AppendPeriod(s.ctx, "hr-1", c.ID, fixedterm.Period{
			Start: d("2023-01-01"), End: d("2023-12-31"),
		}, today, now)
		s.Require().NoError(err)
		s.Equal(2, l.Current.Sequence)

		stored, err := s.svc.Get(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal("2024-01-01", stored.StartDate.String())
	})

	s.Run("replacing the current period derives its start", func() {
		l, derived, err := s.svc.ReplaceCurrentPeriod(s.ctx, "hr-1", c.ID, d("2024-05-01"), d("2026-06-30"), "", today, now)
		s.Require().NoError(err)
		s.True(derived)
		s.Equal("2024-01-01", l.Current.Start.String())

		stored, err := s.svc.Get(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal("2026-06-30", stored.EndDate.String())
	})

	s.Run("removing the only historical period re-anchors the contract", func() {
		l, err := s.svc.RemovePeriod(s.ctx, "hr-1", c.ID, 1, today, now)
		s.Require().NoError(err)
		s.Empty(l.History)
		s.Equal(fixedterm.KindInitial, l.Current.Kind)
	})

	s.Run("non fixed-term contracts have no ledger", func() {
		other := readyDraft()
		other.Document.Number = "999"
		other.Type = contract.TypeIndefinite
		other.EndDate = nil
		oc := s.create(other)

		_, _, err := s.svc.PeriodLedger(s.ctx, oc.ID)
		var verr *generic.ValidationError
		s.Require().ErrorAs(err, &verr)
		s.Equal("contract_type", verr.Field)
	})
}

// TestEvaluate verifies the derived view of a contract.
func (s *ServiceSuite) TestEvaluate() {
	in := readyDraft()
	in.EndDate = d("2025-12-31").Ptr()
	c := s.create(in)
	_, err := s.benefits.Assign(s.ctx, "hr-1", benefit.Key{Kind: benefit.Insurer, EmployerID: "acme"}, "sura", d("2020-01-01"), now)
	s.Require().NoError(err)

	ev, err := s.svc.Evaluate(s.ctx, c.ID, d("2025-11-20"))

	s.Require().NoError(err)
	s.Equal(contract.ValidityAboutToExpire, ev.Validity)
	s.Require().NotNil(ev.DaysRemaining)
	s.Equal(41, *ev.DaysRemaining)
	s.Require().NotNil(ev.Insurer)
	s.Equal("sura", ev.Insurer.ProviderID)
	s.Nil(ev.CompensationFund)
	s.Require().NotNil(ev.Tenure)
	s.Equal(1, ev.Tenure.TotalPeriods)
	s.Require().NotNil(ev.Pay)
	s.True(ev.Pay.TransportSubsidy.Amount.Equal(decimal.NewFromInt(200_000)))
	s.Equal(100, ev.Progress)
	s.Empty(ev.Missing)
	s.Empty(ev.Issues)
}

// TestEvaluateReportsIssues verifies lookups that cannot be answered.
func (s *ServiceSuite) TestEvaluateReportsIssues() {
	in := readyDraft()
	in.StartDate = d("2026-01-01")
	in.EndDate = d("2026-12-31").Ptr()
	c := s.create(in)
	for _, id := range []string{"x", "y"} {
		s.Require().NoError(s.store.InsertAssignment(s.ctx, benefit.Assignment{
			ID: id, Kind: benefit.CompensationFund, EmployerID: "acme", LocationID: "bogota",
			ProviderID: "fund-" + id, Start: d("2025-01-01"), State: benefit.StateActive,
		}))
	}

	ev, err := s.svc.Evaluate(s.ctx, c.ID, d("2026-02-01"))

	s.Require().NoError(err)
	s.Nil(ev.CompensationFund)
	s.Require().Len(ev.Issues, 3)
	s.Contains(ev.Issues[0], "compensation_fund")
	s.Contains(ev.Issues[1], "parameter fallback")
	s.Contains(ev.Issues[2], "parameter fallback")
}

func TestEvaluate_UnknownContract(t *testing.T) {
	svc := contract.NewService(contract.Config{Store: memory.New(), Logger: zerolog.Nop()})

	_, err := svc.Evaluate(context.Background(), "missing", d("2025-01-01"))

	require.ErrorIs(t, err, generic.ErrNotFound)
}

// =============================================================================
// WRITE FAILURES
// =============================================================================

var errDiskFull = errors.New("disk full")

// failingStore fails selected writes of an otherwise working memory store.
type failingStore struct {
	*memory.Store
	failPeriods  bool
	failContract bool
}

func (f *failingStore) ReplacePeriods(ctx context.Context, contractID string, periods []fixedterm.Period) error {
	if f.failPeriods {
		return errDiskFull
	}
	return f.Store.ReplacePeriods(ctx, contractID, periods)
}

func (f *failingStore) UpdateContract(ctx context.Context, c contract.Contract) error {
	if f.failContract {
		return errDiskFull
	}
	return f.Store.UpdateContract(ctx, c)
}

func newFailingService(fs *failingStore, m *metrics.Metrics) *contract.Service {
	log := zerolog.Nop()
	return contract.NewService(contract.Config{
		Store:   fs,
		Periods: fixedterm.NewService(fs, fixedterm.DefaultTenurePolicy(), fs, log),
		Audit:   fs,
		Logger:  log,
		Metrics: m,
	})
}

func TestCreate_PeriodWriteFailureIsPartial(t *testing.T) {
	// GIVEN: a store that rejects period writes
	fs := &failingStore{Store: memory.New(), failPeriods: true}
	m := metrics.NewWith(prometheus.NewRegistry())
	svc := newFailingService(fs, m)

	// WHEN
	_, err := svc.Create(context.Background(), "hr-1", *readyDraft(), now)

	// THEN: the caller learns the contract was stored without its period
	require.ErrorIs(t, err, generic.ErrPartialFailure)
	require.ErrorIs(t, err, errDiskFull)
	var pf *generic.PartialFailureError
	require.ErrorAs(t, err, &pf)
	require.Equal(t, "contract create", pf.Operation)

	stored, err := fs.ListContracts(context.Background(), contract.ListFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, float64(1), testutil.ToFloat64(m.PartialFailures.WithLabelValues("contract_create")))
}

func TestUpdate_ContractWriteFailureLeavesLedger(t *testing.T) {
	ctx := context.Background()
	fs := &failingStore{Store: memory.New()}
	svc := newFailingService(fs, nil)
	c, err := svc.Create(ctx, "hr-1", *readyDraft(), now)
	require.NoError(t, err)

	// GIVEN: the contract row can no longer be written
	fs.failContract = true
	in := readyDraft()
	in.EndDate = d("2026-06-30").Ptr()

	// WHEN
	_, err = svc.Update(ctx, "hr-1", c.ID, *in, now)

	// THEN: the update fails and the current period keeps the stored dates
	require.ErrorIs(t, err, errDiskFull)
	require.NotErrorIs(t, err, generic.ErrPartialFailure)
	periods, err := fs.ListPeriods(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	require.Equal(t, "2025-12-31", periods[0].End.String())
}

func TestUpdate_PeriodWriteFailureIsPartial(t *testing.T) {
	ctx := context.Background()
	fs := &failingStore{Store: memory.New()}
	svc := newFailingService(fs, nil)
	c, err := svc.Create(ctx, "hr-1", *readyDraft(), now)
	require.NoError(t, err)

	// GIVEN: period writes start failing
	fs.failPeriods = true
	in := readyDraft()
	in.EndDate = d("2026-06-30").Ptr()

	// WHEN
	_, err = svc.Update(ctx, "hr-1", c.ID, *in, now)

	// THEN: the contract carries the new dates and the error says so
	require.ErrorIs(t, err, generic.ErrPartialFailure)
	stored, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "2026-06-30", stored.EndDate.String())
}
