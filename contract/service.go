package contract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/contract-engine/benefit"
	"github.com/warp/contract-engine/compensation"
	"github.com/warp/contract-engine/fixedterm"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/metrics"
)

// Config wires a Service to its collaborators.
type Config struct {
	Store      Store
	Periods    *fixedterm.Service
	Benefits   *benefit.Resolver
	Calculator *compensation.Calculator
	Thresholds Thresholds
	Audit      generic.AuditLog
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

// Service runs contract operations against the latest stored snapshot.
type Service struct {
	store      Store
	periods    *fixedterm.Service
	benefits   *benefit.Resolver
	calc       *compensation.Calculator
	thresholds Thresholds
	audit      generic.AuditLog
	log        zerolog.Logger
	metrics    *metrics.Metrics
}

func NewService(cfg Config) *Service {
	if cfg.Audit == nil {
		cfg.Audit = generic.NopAuditLog{}
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	return &Service{
		store:      cfg.Store,
		periods:    cfg.Periods,
		benefits:   cfg.Benefits,
		calc:       cfg.Calculator,
		thresholds: cfg.Thresholds,
		audit:      cfg.Audit,
		log:        cfg.Logger.With().Str("component", "contract").Logger(),
		metrics:    cfg.Metrics,
	}
}

// =============================================================================
// EVALUATION
// =============================================================================

// Evaluation is everything derived about a contract on one day.
type Evaluation struct {
	ContractID     string
	On             generic.Date
	ApprovalStatus ApprovalStatus
	Locked         bool
	Archived       bool

	Validity      ValidityState
	DaysRemaining *int

	Tenure *fixedterm.Summary // fixed-term contracts only

	Insurer          *benefit.Assignment
	CompensationFund *benefit.Assignment

	Pay *compensation.Derivation

	Progress int
	Missing  generic.ValidationErrors // what approval would still reject

	// Issues lists lookups that could not be answered, e.g. an ambiguous
	// provider assignment or a missing annual parameter.
	Issues []string
}

// Evaluate recomputes the status of a contract as of today.
func (s *Service) Evaluate(ctx context.Context, id string, today generic.Date) (*Evaluation, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ev := &Evaluation{
		ContractID:     c.ID,
		On:             today,
		ApprovalStatus: c.ApprovalStatus,
		Locked:         c.IsApproved(),
		Archived:       c.IsArchived(),
	}

	ev.Validity = ResolveValidity(c.EndDate, c.Type, today, s.thresholds)
	ev.DaysRemaining = DaysRemaining(c.EndDate, today)
	s.metrics.IncValidity(string(ev.Validity))

	if c.Type == TypeFixedTerm && s.periods != nil {
		summary, err := s.periods.Summary(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		ev.Tenure = &summary
	}

	if s.benefits != nil && c.CompanyID != "" {
		ev.Insurer = s.lookup(ctx, ev, benefit.Key{Kind: benefit.Insurer, EmployerID: c.CompanyID}, today)
		if c.LocationID != "" {
			ev.CompensationFund = s.lookup(ctx, ev, benefit.Key{
				Kind:       benefit.CompensationFund,
				EmployerID: c.CompanyID,
				LocationID: c.LocationID,
			}, today)
		}
	}

	if s.calc != nil && !c.StartDate.IsZero() {
		pay, err := s.calc.Derive(ctx, c.StartDate, c.BaseSalary, c.Allowances)
		if err != nil {
			ev.Issues = append(ev.Issues, "pay: "+err.Error())
		} else {
			ev.Pay = &pay
			for _, fb := range pay.Fallbacks {
				ev.Issues = append(ev.Issues, "parameter fallback: "+fb.String())
			}
		}
	}

	ev.Progress = Progress(c.Onboarding)
	if !c.IsApproved() {
		ev.Missing = append(RequiredFields(c), Completeness(c.Onboarding)...)
	}
	return ev, nil
}

// lookup resolves one provider. Unanswerable lookups pick none and are
// reported on the evaluation.
func (s *Service) lookup(ctx context.Context, ev *Evaluation, key benefit.Key, on generic.Date) *benefit.Assignment {
	a, err := s.benefits.ResolveActive(ctx, key, on)
	if err != nil {
		s.log.Warn().Err(err).Str("contract_id", ev.ContractID).Str("key", key.String()).Msg("benefit lookup failed")
		ev.Issues = append(ev.Issues, string(key.Kind)+": "+err.Error())
		return nil
	}
	return a
}

// =============================================================================
// CRUD
// =============================================================================

func (s *Service) Get(ctx context.Context, id string) (*Contract, error) {
	return s.store.GetContract(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Contract, error) {
	return s.store.ListContracts(ctx, filter)
}

// Create stores a new draft. Drafts accept partial data.
func (s *Service) Create(ctx context.Context, actor generic.Actor, in Contract, now time.Time) (*Contract, error) {
	c := in
	c.ID = uuid.NewString()
	c.ApprovalStatus = StatusDraft
	c.ApprovedBy, c.ApprovedAt = "", nil
	c.ArchivedAt, c.AnnulmentReason = nil, ""
	c.CreatedBy = actor.OrSystem()
	c.CreatedAt = now.UTC()
	touch(&c, actor, now)

	if err := s.checkDocument(ctx, &c); err != nil {
		return nil, err
	}
	planned, derived, err := s.planCurrentPeriod(ctx, &c, now)
	if err != nil {
		return nil, err
	}
	s.derivePay(ctx, &c)

	if err := s.store.InsertContract(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to insert contract: %w", err)
	}
	if err := s.commitCurrentPeriod(ctx, actor, &c, "contract create", planned, derived, now); err != nil {
		return nil, err
	}

	s.record(ctx, actor, generic.AuditContractCreated, &c, now, nil)
	return &c, nil
}

// Update replaces the editable fields of a draft.
func (s *Service) Update(ctx context.Context, actor generic.Actor, id string, in Contract, now time.Time) (*Contract, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Guard(c, OpUpdate); err != nil {
		return nil, err
	}

	c.Document = in.Document
	c.CompanyID = in.CompanyID
	c.LocationID = in.LocationID
	c.Type = in.Type
	c.StartDate = in.StartDate
	c.EndDate = in.EndDate
	c.BaseSalary = in.BaseSalary
	c.Allowances = in.Allowances
	c.Onboarding = in.Onboarding
	touch(c, actor, now)

	if err := s.checkDocument(ctx, c); err != nil {
		return nil, err
	}
	planned, derived, err := s.planCurrentPeriod(ctx, c, now)
	if err != nil {
		return nil, err
	}
	s.derivePay(ctx, c)

	if err := s.store.UpdateContract(ctx, *c); err != nil {
		return nil, fmt.Errorf("failed to update contract: %w", err)
	}
	if err := s.commitCurrentPeriod(ctx, actor, c, "contract update", planned, derived, now); err != nil {
		return nil, err
	}
	s.record(ctx, actor, generic.AuditContractUpdated, c, now, nil)
	return c, nil
}

// checkDocument enforces (type, number) uniqueness among non-archived contracts.
func (s *Service) checkDocument(ctx context.Context, c *Contract) error {
	if c.Document.Type == "" || c.Document.Number == "" {
		return nil
	}
	doc := c.Document
	others, err := s.store.ListContracts(ctx, ListFilter{Document: &doc})
	if err != nil {
		return fmt.Errorf("failed to check document uniqueness: %w", err)
	}
	for _, o := range others {
		if o.ID != c.ID && !o.IsArchived() {
			return generic.NewValidationError("document_number",
				fmt.Sprintf("%s is already used by contract %s", doc, o.ID))
		}
	}
	return nil
}

// derivePay refreshes the transport subsidy. Drafts may lack the inputs or
// carry invalid allowances; the subsidy is then zero until they are fixed.
func (s *Service) derivePay(ctx context.Context, c *Contract) {
	if s.calc == nil {
		return
	}
	if c.StartDate.IsZero() {
		clearSubsidy(c)
		return
	}
	pay, err := s.calc.Derive(ctx, c.StartDate, c.BaseSalary, c.Allowances)
	if err != nil {
		s.log.Debug().Err(err).Str("contract_id", c.ID).Msg("transport subsidy not derived")
		clearSubsidy(c)
		return
	}
	c.TransportSubsidy = pay.TransportSubsidy
}

func clearSubsidy(c *Contract) {
	currency := c.BaseSalary.Currency
	if currency == "" {
		currency = generic.CurrencyCOP
	}
	c.TransportSubsidy = generic.ZeroMoney(currency)
}

// planCurrentPeriod mirrors a fixed-term contract's dates into a pending
// current period. When history exists the contract start becomes the derived
// one. Incomplete or inconsistent draft dates are left for approval to reject.
func (s *Service) planCurrentPeriod(ctx context.Context, c *Contract, now time.Time) (*fixedterm.Ledger, bool, error) {
	if s.periods == nil || c.Type != TypeFixedTerm || c.EndDate == nil {
		return nil, false, nil
	}
	l, derived, err := s.periods.PlanCurrent(ctx, c.ID, c.StartDate, *c.EndDate, "", generic.DateOf(now))
	if err != nil {
		if generic.IsClientError(err) {
			s.log.Debug().Err(err).Str("contract_id", c.ID).Msg("current period not synced")
			return nil, false, nil
		}
		return nil, false, err
	}
	if derived {
		c.StartDate = l.Current.Start
	}
	return l, derived, nil
}

// commitCurrentPeriod writes a planned period once the contract row is
// stored. The contract is not rolled back when this fails.
func (s *Service) commitCurrentPeriod(ctx context.Context, actor generic.Actor, c *Contract, operation string, l *fixedterm.Ledger, derived bool, now time.Time) error {
	if l == nil {
		return nil
	}
	if err := s.periods.CommitCurrent(ctx, actor, l, derived, now); err != nil {
		s.metrics.IncPartialFailure(strings.ReplaceAll(operation, " ", "_"))
		s.log.Error().Err(err).Str("contract_id", c.ID).Msg("contract stored without its current period")
		return &generic.PartialFailureError{
			Operation: operation,
			Completed: "write contract " + c.ID,
			Failed:    "write current period",
			Cause:     err,
		}
	}
	return nil
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Approve locks the contract after refreshing its derived pay figures.
func (s *Service) Approve(ctx context.Context, actor generic.Actor, id string, now time.Time) (*Contract, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Guard(c, OpApprove); err != nil {
		return nil, err
	}

	if s.calc != nil && !c.StartDate.IsZero() {
		pay, err := s.calc.Derive(ctx, c.StartDate, c.BaseSalary, c.Allowances)
		if err != nil && !errors.Is(err, generic.ErrValidation) {
			s.metrics.IncApproval("error")
			return nil, err
		}
		if err == nil {
			c.TransportSubsidy = pay.TransportSubsidy
		} else {
			clearSubsidy(c)
		}
	}

	if err := Approve(c, actor, now); err != nil {
		s.metrics.IncApproval("rejected")
		return nil, err
	}
	if err := s.store.UpdateContract(ctx, *c); err != nil {
		s.metrics.IncApproval("error")
		return nil, fmt.Errorf("failed to update contract: %w", err)
	}

	s.metrics.IncApproval("approved")
	s.record(ctx, actor, generic.AuditContractApproved, c, now, nil)
	s.log.Info().Str("contract_id", c.ID).Str("actor", string(actor.OrSystem())).Msg("contract approved")
	return c, nil
}

func (s *Service) Annul(ctx context.Context, actor generic.Actor, id, reason string, now time.Time) (*Contract, error) {
	return s.transition(ctx, actor, id, now, generic.AuditContractAnnulled, map[string]any{"reason": reason},
		func(c *Contract) error { return Annul(c, actor, reason, now) })
}

func (s *Service) Archive(ctx context.Context, actor generic.Actor, id string, now time.Time) (*Contract, error) {
	return s.transition(ctx, actor, id, now, generic.AuditContractArchived, nil,
		func(c *Contract) error { return Archive(c, actor, now) })
}

// Unarchive restores an archived contract unless its document is in use again.
func (s *Service) Unarchive(ctx context.Context, actor generic.Actor, id string, now time.Time) (*Contract, error) {
	return s.transition(ctx, actor, id, now, generic.AuditContractUnarchived, nil,
		func(c *Contract) error {
			if err := Unarchive(c, actor, now); err != nil {
				return err
			}
			return s.checkDocument(ctx, c)
		})
}

func (s *Service) Reopen(ctx context.Context, actor generic.Actor, id, reason string, now time.Time) (*Contract, error) {
	return s.transition(ctx, actor, id, now, generic.AuditContractReopened, map[string]any{"reason": reason},
		func(c *Contract) error { return Reopen(c, actor, reason, now) })
}

func (s *Service) transition(ctx context.Context, actor generic.Actor, id string, now time.Time, action generic.AuditAction, payload map[string]any, apply func(*Contract) error) (*Contract, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(c); err != nil {
		return nil, err
	}
	if err := s.store.UpdateContract(ctx, *c); err != nil {
		return nil, fmt.Errorf("failed to update contract: %w", err)
	}
	s.record(ctx, actor, action, c, now, payload)
	s.log.Info().Str("contract_id", c.ID).Str("action", string(action)).Msg("contract state changed")
	return c, nil
}

// =============================================================================
// PERIOD LEDGER
// =============================================================================

// PeriodLedger returns the ledger and tenure summary of a fixed-term contract.
func (s *Service) PeriodLedger(ctx context.Context, id string) (*fixedterm.Ledger, fixedterm.Summary, error) {
	if _, err := s.fixedTerm(ctx, id, OpRead); err != nil {
		return nil, fixedterm.Summary{}, err
	}
	l, err := s.periods.Load(ctx, id)
	if err != nil {
		return nil, fixedterm.Summary{}, err
	}
	return l, l.Summarize(s.periods.Policy()), nil
}

func (s *Service) AppendPeriod(ctx context.Context, actor generic.Actor, id string, p fixedterm.Period, today generic.Date, now time.Time) (*fixedterm.Ledger, error) {
	c, err := s.fixedTerm(ctx, id, OpEditPeriods)
	if err != nil {
		return nil, err
	}
	l, err := s.periods.Append(ctx, actor, id, p, today, now)
	if err != nil {
		return nil, err
	}
	return l, s.followLedger(ctx, actor, c, l, now)
}

func (s *Service) RemovePeriod(ctx context.Context, actor generic.Actor, id string, seq int, today generic.Date, now time.Time) (*fixedterm.Ledger, error) {
	c, err := s.fixedTerm(ctx, id, OpEditPeriods)
	if err != nil {
		return nil, err
	}
	l, err := s.periods.Remove(ctx, actor, id, seq, today, now)
	if err != nil {
		return nil, err
	}
	return l, s.followLedger(ctx, actor, c, l, now)
}

// ReplaceCurrentPeriod sets the current period and the contract dates with it.
func (s *Service) ReplaceCurrentPeriod(ctx context.Context, actor generic.Actor, id string, start, end generic.Date, kind fixedterm.Kind, today generic.Date, now time.Time) (*fixedterm.Ledger, bool, error) {
	c, err := s.fixedTerm(ctx, id, OpEditPeriods)
	if err != nil {
		return nil, false, err
	}
	l, derived, err := s.periods.ReplaceCurrent(ctx, actor, id, start, end, kind, today, now)
	if err != nil {
		return nil, derived, err
	}
	return l, derived, s.followLedger(ctx, actor, c, l, now)
}

func (s *Service) fixedTerm(ctx context.Context, id string, op Operation) (*Contract, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Guard(c, op); err != nil {
		return nil, err
	}
	if c.Type != TypeFixedTerm || s.periods == nil {
		return nil, generic.NewValidationError("contract_type", "periods apply to fixed-term contracts only")
	}
	return c, nil
}

// followLedger copies the current period's dates back onto the contract.
func (s *Service) followLedger(ctx context.Context, actor generic.Actor, c *Contract, l *fixedterm.Ledger, now time.Time) error {
	if l.Current == nil {
		return nil
	}
	if c.StartDate.Equal(l.Current.Start) && generic.SameDate(c.EndDate, &l.Current.End) {
		return nil
	}
	c.StartDate = l.Current.Start
	c.EndDate = l.Current.End.Ptr()
	touch(c, actor, now)
	s.derivePay(ctx, c)
	if err := s.store.UpdateContract(ctx, *c); err != nil {
		s.metrics.IncPartialFailure("period_edit")
		s.log.Error().Err(err).Str("contract_id", c.ID).Msg("period ledger stored without the contract dates")
		return &generic.PartialFailureError{
			Operation: "period edit",
			Completed: "write period ledger",
			Failed:    "update contract dates " + c.ID,
			Cause:     err,
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor generic.Actor, action generic.AuditAction, c *Contract, now time.Time, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["approval_status"] = string(c.ApprovalStatus)
	entry := generic.AuditEntry{
		ID:         uuid.NewString(),
		Timestamp:  now.UTC(),
		Actor:      actor.OrSystem(),
		Action:     action,
		EntityType: "contract",
		EntityID:   c.ID,
		Payload:    payload,
	}
	if err := s.audit.AppendAudit(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("contract_id", c.ID).Msg("failed to append audit entry")
	}
}
