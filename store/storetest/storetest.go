// Package storetest holds the behavior every store backend must share.
// Backends run it from their own tests:
//
//	suite.Run(t, &storetest.Suite{NewStore: func(t *testing.T) storetest.Backend { ... }})
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/warp/contract-engine/benefit"
	"github.com/warp/contract-engine/compensation"
	"github.com/warp/contract-engine/contract"
	"github.com/warp/contract-engine/fixedterm"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/params"
	"github.com/warp/contract-engine/store"
)

// Backend is everything the engine persists.
type Backend = store.Backend

type Suite struct {
	suite.Suite
	NewStore func(t *testing.T) Backend

	store Backend
	ctx   context.Context
}

func (s *Suite) SetupTest() {
	s.store = s.NewStore(s.T())
	s.ctx = context.Background()
}

var now = time.Date(2025, time.March, 1, 9, 30, 0, 0, time.UTC)

func date(v string) generic.Date { return generic.MustParseDate(v) }

func (s *Suite) newContract(company string) contract.Contract {
	end := date("2025-12-31")
	return contract.Contract{
		ID:             uuid.NewString(),
		Document:       contract.Document{Type: "CC", Number: uuid.NewString()[:8]},
		CompanyID:      company,
		LocationID:     "bogota",
		Type:           contract.TypeFixedTerm,
		StartDate:      date("2025-01-01"),
		EndDate:        &end,
		ApprovalStatus: contract.StatusDraft,
		BaseSalary:     generic.NewMoneyFromInt(2_000_000, generic.CurrencyCOP),
		Allowances: []compensation.Allowance{
			{Category: compensation.NonSalarial, Description: "food", Amount: generic.NewMoneyFromInt(150_000, generic.CurrencyCOP)},
		},
		Onboarding: contract.Onboarding{
			contract.TrackMedicalExam: {Initiated: true, Reference: "apt", ConfirmedOn: date("2025-01-02").Ptr()},
		},
		CreatedBy: "hr-1",
		UpdatedBy: "hr-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TestContracts verifies contract rows round-trip and filter.
func (s *Suite) TestContracts() {
	s.Run("round-trips every field", func() {
		c := s.newContract("acme")
		s.Require().NoError(s.store.InsertContract(s.ctx, c))

		got, err := s.store.GetContract(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(c.Document, got.Document)
		s.Equal(c.Type, got.Type)
		s.Equal("2025-01-01", got.StartDate.String())
		s.Require().NotNil(got.EndDate)
		s.Equal("2025-12-31", got.EndDate.String())
		s.True(c.BaseSalary.Equal(got.BaseSalary))
		s.Require().Len(got.Allowances, 1)
		s.True(c.Allowances[0].Amount.Equal(got.Allowances[0].Amount))
		s.Equal(compensation.NonSalarial, got.Allowances[0].Category)
		step := got.Onboarding[contract.TrackMedicalExam]
		s.True(step.Initiated)
		s.Equal("apt", step.Reference)
		s.Require().NotNil(step.ConfirmedOn)
		s.Equal("2025-01-02", step.ConfirmedOn.String())
		s.True(now.Equal(got.CreatedAt))
	})

	s.Run("returns not found for unknown ID", func() {
		_, err := s.store.GetContract(s.ctx, uuid.NewString())
		s.ErrorIs(err, generic.ErrNotFound)
	})

	s.Run("update of unknown contract is not found", func() {
		err := s.store.UpdateContract(s.ctx, s.newContract("acme"))
		s.ErrorIs(err, generic.ErrNotFound)
	})

	s.Run("update persists approval", func() {
		c := s.newContract("acme")
		s.Require().NoError(s.store.InsertContract(s.ctx, c))

		approvedAt := now.Add(time.Hour)
		c.ApprovalStatus = contract.StatusApproved
		c.ApprovedBy = "lead"
		c.ApprovedAt = &approvedAt
		s.Require().NoError(s.store.UpdateContract(s.ctx, c))

		got, err := s.store.GetContract(s.ctx, c.ID)
		s.Require().NoError(err)
		s.True(got.IsApproved())
		s.Equal(generic.Actor("lead"), got.ApprovedBy)
		s.Require().NotNil(got.ApprovedAt)
		s.True(approvedAt.Equal(*got.ApprovedAt))
	})
}

// TestContractListing verifies company, document and archive filters.
func (s *Suite) TestContractListing() {
	a := s.newContract("acme")
	b := s.newContract("acme")
	b.CreatedAt = now.Add(time.Minute)
	archivedAt := now.Add(2 * time.Hour)
	b.ArchivedAt = &archivedAt
	other := s.newContract("globex")
	for _, c := range []contract.Contract{a, b, other} {
		s.Require().NoError(s.store.InsertContract(s.ctx, c))
	}

	active, err := s.store.ListContracts(s.ctx, contract.ListFilter{CompanyID: "acme"})
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(a.ID, active[0].ID)

	all, err := s.store.ListContracts(s.ctx, contract.ListFilter{CompanyID: "acme", IncludeArchived: true})
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(a.ID, all[0].ID)
	s.Equal(b.ID, all[1].ID)

	byDoc, err := s.store.ListContracts(s.ctx, contract.ListFilter{Document: &other.Document})
	s.Require().NoError(err)
	s.Require().Len(byDoc, 1)
	s.Equal(other.ID, byDoc[0].ID)
}

// TestPeriods verifies a ledger is replaced as a whole.
func (s *Suite) TestPeriods() {
	c := s.newContract("acme")
	s.Require().NoError(s.store.InsertContract(s.ctx, c))

	first := []fixedterm.Period{
		{ID: uuid.NewString(), ContractID: c.ID, Sequence: 1, Start: date("2023-01-01"), End: date("2023-12-31"), Kind: fixedterm.KindInitial},
		{ID: uuid.NewString(), ContractID: c.ID, Sequence: 2, Start: date("2024-01-01"), End: date("2024-12-31"), Kind: fixedterm.KindAutomaticRenewal, Current: true},
	}
	s.Require().NoError(s.store.ReplacePeriods(s.ctx, c.ID, first))

	got, err := s.store.ListPeriods(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(1, got[0].Sequence)
	s.Equal("2023-12-31", got[0].End.String())
	s.True(got[1].Current)
	s.Equal(fixedterm.KindAutomaticRenewal, got[1].Kind)

	second := first[:1]
	second[0].Current = true
	s.Require().NoError(s.store.ReplacePeriods(s.ctx, c.ID, second))

	got, err = s.store.ListPeriods(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.True(got[0].Current)

	empty, err := s.store.ListPeriods(s.ctx, uuid.NewString())
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *Suite) newAssignment(key benefit.Key, provider, start string) benefit.Assignment {
	return benefit.Assignment{
		ID:         uuid.NewString(),
		Kind:       key.Kind,
		EmployerID: key.EmployerID,
		LocationID: key.LocationID,
		ProviderID: provider,
		Start:      date(start),
		State:      benefit.StateActive,
		CreatedBy:  "hr-1",
		UpdatedBy:  "hr-1",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TestAssignments verifies assignment writes and transactional rollback.
func (s *Suite) TestAssignments() {
	key := benefit.Key{Kind: benefit.CompensationFund, EmployerID: "acme", LocationID: "bogota"}

	s.Run("insert, close and list in start order", func() {
		old := s.newAssignment(key, "fund-a", "2023-01-01")
		s.Require().NoError(s.store.InsertAssignment(s.ctx, old))

		end := date("2023-12-31")
		old.End = &end
		old.State = benefit.StateClosed
		s.Require().NoError(s.store.UpdateAssignment(s.ctx, old))
		s.Require().NoError(s.store.InsertAssignment(s.ctx, s.newAssignment(key, "fund-b", "2024-01-01")))

		got, err := s.store.ListAssignments(s.ctx, key)
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal("fund-a", got[0].ProviderID)
		s.Equal(benefit.StateClosed, got[0].State)
		s.Require().NotNil(got[0].End)
		s.Equal("2023-12-31", got[0].End.String())
		s.Nil(got[1].End)

		other, err := s.store.ListAssignments(s.ctx, benefit.Key{Kind: benefit.CompensationFund, EmployerID: "acme", LocationID: "cali"})
		s.Require().NoError(err)
		s.Empty(other)
	})

	s.Run("update of unknown assignment is not found", func() {
		err := s.store.UpdateAssignment(s.ctx, s.newAssignment(key, "fund-x", "2020-01-01"))
		s.ErrorIs(err, generic.ErrNotFound)
	})

	s.Run("rolls back when the transaction fails", func() {
		insurer := benefit.Key{Kind: benefit.Insurer, EmployerID: "rollback"}
		err := s.store.WithTx(s.ctx, func(tx benefit.Store) error {
			if err := tx.InsertAssignment(s.ctx, s.newAssignment(insurer, "ins-a", "2024-01-01")); err != nil {
				return err
			}
			return generic.NewValidationError("provider_id", "forced")
		})
		s.ErrorIs(err, generic.ErrValidation)

		got, err := s.store.ListAssignments(s.ctx, insurer)
		s.Require().NoError(err)
		s.Empty(got)
	})

	s.Run("commits when the transaction succeeds", func() {
		insurer := benefit.Key{Kind: benefit.Insurer, EmployerID: "commit"}
		err := s.store.WithTx(s.ctx, func(tx benefit.Store) error {
			return tx.InsertAssignment(s.ctx, s.newAssignment(insurer, "ins-a", "2024-01-01"))
		})
		s.Require().NoError(err)

		got, err := s.store.ListAssignments(s.ctx, insurer)
		s.Require().NoError(err)
		s.Len(got, 1)
	})
}

// TestParameters verifies (type, year) uniqueness among active rows.
func (s *Suite) TestParameters() {
	p := params.AnnualParameter{
		ID:        uuid.NewString(),
		Type:      params.MinimumWage,
		Year:      2025,
		Value:     generic.MustParseDecimal("1423500"),
		CreatedBy: "hr-1",
		CreatedAt: now,
	}
	s.Require().NoError(s.store.InsertParameter(s.ctx, p))

	dup := p
	dup.ID = uuid.NewString()
	err := s.store.InsertParameter(s.ctx, dup)
	s.ErrorIs(err, generic.ErrValidation)

	got, err := s.store.GetParameter(s.ctx, p.ID)
	s.Require().NoError(err)
	s.True(p.Value.Equal(got.Value))
	s.Equal(2025, got.Year)

	s.Require().NoError(s.store.ArchiveParameter(s.ctx, p.ID))
	listed, err := s.store.ListParameters(s.ctx, params.MinimumWage)
	s.Require().NoError(err)
	s.Empty(listed)

	// archiving frees the year
	s.Require().NoError(s.store.InsertParameter(s.ctx, dup))
	listed, err = s.store.ListParameters(s.ctx, "")
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(dup.ID, listed[0].ID)

	s.ErrorIs(s.store.ArchiveParameter(s.ctx, uuid.NewString()), generic.ErrNotFound)
	_, err = s.store.GetParameter(s.ctx, uuid.NewString())
	s.ErrorIs(err, generic.ErrNotFound)
}

// TestAudit verifies entries are appended and filtered by entity.
func (s *Suite) TestAudit() {
	entity := uuid.NewString()
	entries := []generic.AuditEntry{
		{ID: uuid.NewString(), Timestamp: now, Actor: "hr-1", Action: generic.AuditContractCreated, EntityType: "contract", EntityID: entity, Payload: map[string]any{"company_id": "acme"}},
		{ID: uuid.NewString(), Timestamp: now.Add(time.Minute), Actor: "lead", Action: generic.AuditContractApproved, EntityType: "contract", EntityID: entity},
		{ID: uuid.NewString(), Timestamp: now, Actor: "hr-1", Action: generic.AuditContractCreated, EntityType: "contract", EntityID: uuid.NewString()},
	}
	for _, e := range entries {
		s.Require().NoError(s.store.AppendAudit(s.ctx, e))
	}

	got, err := s.store.QueryAudit(s.ctx, generic.AuditFilter{EntityID: &entity})
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(generic.AuditContractCreated, got[0].Action)
	s.Equal("acme", got[0].Payload["company_id"])
	s.Equal(generic.AuditContractApproved, got[1].Action)

	lead := generic.Actor("lead")
	got, err = s.store.QueryAudit(s.ctx, generic.AuditFilter{Actor: &lead})
	s.Require().NoError(err)
	s.Len(got, 1)
}
