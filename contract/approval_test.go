package contract_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contract-engine/compensation"
	"github.com/warp/contract-engine/contract"
	"github.com/warp/contract-engine/generic"
)

var now = time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)

// readyDraft is a fixed-term draft that passes every approval check.
func readyDraft() *contract.Contract {
	return &contract.Contract{
		ID:             "c-1",
		Document:       contract.Document{Type: "CC", Number: "1020304050"},
		CompanyID:      "acme",
		LocationID:     "bogota",
		Type:           contract.TypeFixedTerm,
		StartDate:      d("2025-01-01"),
		EndDate:        d("2025-12-31").Ptr(),
		ApprovalStatus: contract.StatusDraft,
		BaseSalary:     generic.NewMoneyFromInt(2_000_000, generic.CurrencyCOP),
		Onboarding:     completeOnboarding(),
	}
}

func TestApprove_LocksDraft(t *testing.T) {
	c := readyDraft()

	require.NoError(t, contract.Approve(c, "lead", now))

	assert.True(t, c.IsApproved())
	assert.Equal(t, generic.Actor("lead"), c.ApprovedBy)
	require.NotNil(t, c.ApprovedAt)
	assert.True(t, now.Equal(*c.ApprovedAt))
	assert.Equal(t, generic.Actor("lead"), c.UpdatedBy)
}

func TestApprove_ReportsEveryMissingField(t *testing.T) {
	// GIVEN: a draft with holes everywhere
	c := &contract.Contract{ID: "c-2", Type: contract.TypeFixedTerm}

	// WHEN
	err := contract.Approve(c, "lead", now)

	// THEN: all violations at once, state unchanged
	var verrs generic.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	fields := verrs.Fields()
	for _, f := range []string{"document_type", "document_number", "company_id", "start_date", "end_date", "medical_exam_requested"} {
		assert.Contains(t, fields, f)
	}
	assert.False(t, c.IsApproved())
}

func TestApprove_IndefiniteNeedsNoEndDate(t *testing.T) {
	c := readyDraft()
	c.Type = contract.TypeIndefinite
	c.EndDate = nil

	assert.NoError(t, contract.Approve(c, "lead", now))
}

func TestApprove_EndMustFollowStart(t *testing.T) {
	c := readyDraft()
	c.EndDate = d("2024-12-31").Ptr()

	err := contract.Approve(c, "lead", now)

	var verrs generic.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, []string{"end_date"}, verrs.Fields())
}

func TestApprove_RejectsNegativeAllowance(t *testing.T) {
	c := readyDraft()
	c.Allowances = []compensation.Allowance{
		{Category: compensation.Salarial, Amount: generic.NewMoneyFromInt(-5, generic.CurrencyCOP)},
	}

	err := contract.Approve(c, "lead", now)

	var verrs generic.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.Fields(), "allowances[0].amount")
}

func TestApprove_Twice(t *testing.T) {
	c := readyDraft()
	require.NoError(t, contract.Approve(c, "lead", now))

	err := contract.Approve(c, "lead", now)

	require.ErrorIs(t, err, generic.ErrStaleState)
}

func TestGuard(t *testing.T) {
	draft := readyDraft()
	approved := readyDraft()
	approved.ApprovalStatus = contract.StatusApproved
	archived := readyDraft()
	archived.ArchivedAt = &now

	tests := []struct {
		name    string
		c       *contract.Contract
		op      contract.Operation
		allowed bool
	}{
		{"draft update", draft, contract.OpUpdate, true},
		{"draft periods", draft, contract.OpEditPeriods, true},
		{"draft unarchive", draft, contract.OpUnarchive, false},
		{"draft reopen", draft, contract.OpReopen, false},
		{"approved read", approved, contract.OpRead, true},
		{"approved update", approved, contract.OpUpdate, false},
		{"approved periods", approved, contract.OpEditPeriods, false},
		{"approved annul", approved, contract.OpAnnul, true},
		{"approved archive", approved, contract.OpArchive, true},
		{"approved reopen", approved, contract.OpReopen, true},
		{"archived read", archived, contract.OpRead, true},
		{"archived update", archived, contract.OpUpdate, false},
		{"archived archive", archived, contract.OpArchive, false},
		{"archived unarchive", archived, contract.OpUnarchive, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := contract.Guard(tt.c, tt.op)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			var stale *generic.StaleStateError
			require.ErrorAs(t, err, &stale)
			assert.Equal(t, string(tt.op), stale.Operation)
			assert.Equal(t, tt.c.State(), stale.State)
		})
	}
}

func TestAnnul_RequiresReason(t *testing.T) {
	c := readyDraft()

	err := contract.Annul(c, "lead", "   ", now)

	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "annulment_reason", verr.Field)
	assert.False(t, c.IsArchived())
}

func TestAnnul_ArchivesWithReason(t *testing.T) {
	c := readyDraft()
	require.NoError(t, contract.Approve(c, "lead", now))

	require.NoError(t, contract.Annul(c, "lead", "signed by mistake", now))

	assert.True(t, c.IsArchived())
	assert.Equal(t, "signed by mistake", c.AnnulmentReason)
	assert.True(t, c.IsApproved(), "approval status is kept")
}

func TestUnarchive_ClearsReason(t *testing.T) {
	c := readyDraft()
	require.NoError(t, contract.Annul(c, "lead", "duplicate", now))

	require.NoError(t, contract.Unarchive(c, "admin", now))

	assert.False(t, c.IsArchived())
	assert.Empty(t, c.AnnulmentReason)
}

func TestReopen(t *testing.T) {
	c := readyDraft()
	require.NoError(t, contract.Approve(c, "lead", now))

	err := contract.Reopen(c, "admin", "", now)
	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reopen_reason", verr.Field)

	require.NoError(t, contract.Reopen(c, "admin", "salary typo", now))
	assert.False(t, c.IsApproved())
	assert.Nil(t, c.ApprovedAt)
	assert.NoError(t, contract.Guard(c, contract.OpUpdate))
}
