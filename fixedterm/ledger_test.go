package fixedterm_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contract-engine/fixedterm"
	"github.com/warp/contract-engine/generic"
)

var today = generic.MustParseDate("2025-06-15")

func period(start, end string, kind fixedterm.Kind) fixedterm.Period {
	return fixedterm.Period{
		Start: generic.MustParseDate(start),
		End:   generic.MustParseDate(end),
		Kind:  kind,
	}
}

func requireRule(t *testing.T, err error, rule generic.PeriodRule) *generic.InvalidPeriodError {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrValidation), "period errors are validation errors")
	assert.True(t, errors.Is(err, generic.ErrInvalidPeriod))
	var perr *generic.InvalidPeriodError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, rule, perr.Rule)
	return perr
}

// buildLedger appends three contiguous periods covering 2022-01-01..2023-12-31.
func buildLedger(t *testing.T) *fixedterm.Ledger {
	t.Helper()
	l := fixedterm.NewLedger("c-1", nil)
	require.NoError(t, l.AppendHistorical(period("2022-01-01", "2022-06-30", fixedterm.KindInitial), today))
	require.NoError(t, l.AppendHistorical(period("2022-07-01", "2022-12-31", fixedterm.KindAutomaticRenewal), today))
	require.NoError(t, l.AppendHistorical(period("2023-01-01", "2023-12-31", fixedterm.KindNegotiatedRenewal), today))
	return l
}

// =============================================================================
// APPEND
// =============================================================================

func TestAppendHistorical_Contiguous(t *testing.T) {
	l := buildLedger(t)

	require.Len(t, l.History, 3)
	for i, p := range l.History {
		assert.Equal(t, i+1, p.Sequence)
		assert.Equal(t, "c-1", p.ContractID)
		assert.False(t, p.Current)
	}
	assert.Equal(t, "2024-01-01", l.NextStart().String())
}

func TestAppendHistorical_DefaultsKindAndSequence(t *testing.T) {
	l := fixedterm.NewLedger("c-1", nil)
	require.NoError(t, l.AppendHistorical(period("2022-01-01", "2022-06-30", ""), today))
	require.NoError(t, l.AppendHistorical(period("2022-07-01", "2022-12-31", ""), today))

	assert.Equal(t, fixedterm.KindInitial, l.History[0].Kind)
	assert.Equal(t, fixedterm.KindAutomaticRenewal, l.History[1].Kind)
}

func TestAppendHistorical_Gap(t *testing.T) {
	l := buildLedger(t)

	// GIVEN: last period ends 2023-12-31
	// WHEN: next period starts 2024-01-02 (one day gap)
	err := l.AppendHistorical(period("2024-01-02", "2024-06-30", fixedterm.KindAutomaticRenewal), today)

	// THEN: rejected, citing the day it should have started on
	perr := requireRule(t, err, generic.RuleGapOrOverlap)
	assert.Equal(t, 4, perr.Sequence)
	require.NotNil(t, perr.Day)
	assert.Equal(t, "2024-01-01", perr.Day.String())
	assert.Len(t, l.History, 3, "ledger unchanged on error")
}

func TestAppendHistorical_Overlap(t *testing.T) {
	l := buildLedger(t)

	err := l.AppendHistorical(period("2023-12-31", "2024-06-30", fixedterm.KindAutomaticRenewal), today)
	requireRule(t, err, generic.RuleGapOrOverlap)
}

func TestAppendHistorical_EndBeforeStart(t *testing.T) {
	l := fixedterm.NewLedger("c-1", nil)

	err := l.AppendHistorical(period("2022-06-30", "2022-01-01", fixedterm.KindInitial), today)
	requireRule(t, err, generic.RuleEndBeforeStart)

	// Same-day start and end is rejected too
	err = l.AppendHistorical(period("2022-01-01", "2022-01-01", fixedterm.KindInitial), today)
	requireRule(t, err, generic.RuleEndBeforeStart)
}

func TestAppendHistorical_NotADate(t *testing.T) {
	l := fixedterm.NewLedger("c-1", nil)

	err := l.AppendHistorical(fixedterm.Period{End: generic.MustParseDate("2022-01-01")}, today)
	perr := requireRule(t, err, generic.RuleNotADate)
	assert.Equal(t, "start_date", perr.Field)
}

func TestAppendHistorical_Future(t *testing.T) {
	l := fixedterm.NewLedger("c-1", nil)

	// Ending today is allowed
	require.NoError(t, l.AppendHistorical(period("2025-01-01", "2025-06-15", fixedterm.KindInitial), today))

	// Ending tomorrow is not
	err := l.AppendHistorical(period("2025-06-16", "2025-06-17", fixedterm.KindAutomaticRenewal), today)
	perr := requireRule(t, err, generic.RuleFuturePeriod)
	assert.Equal(t, "2025-06-17", perr.Day.String())
}

func TestAppendHistorical_KindMismatch(t *testing.T) {
	l := fixedterm.NewLedger("c-1", nil)
	err := l.AppendHistorical(period("2022-01-01", "2022-06-30", fixedterm.KindAutomaticRenewal), today)
	requireRule(t, err, generic.RuleKindMismatch)

	l = buildLedger(t)
	err = l.AppendHistorical(period("2024-01-01", "2024-06-30", fixedterm.KindInitial), today)
	requireRule(t, err, generic.RuleKindMismatch)
}

func TestAppendHistorical_SequenceMismatch(t *testing.T) {
	l := fixedterm.NewLedger("c-1", nil)
	p := period("2022-01-01", "2022-06-30", fixedterm.KindInitial)
	p.Sequence = 2

	err := l.AppendHistorical(p, today)
	requireRule(t, err, generic.RuleSequenceMismatch)
}

// =============================================================================
// CURRENT PERIOD
// =============================================================================

func TestReplaceCurrent_NoHistoryUsesGivenStart(t *testing.T) {
	l := fixedterm.NewLedger("c-1", nil)

	derived, err := l.ReplaceCurrent(generic.MustParseDate("2025-01-01"), generic.MustParseDate("2025-12-31"), "")
	require.NoError(t, err)

	assert.False(t, derived)
	require.NotNil(t, l.Current)
	assert.Equal(t, "2025-01-01", l.Current.Start.String())
	assert.Equal(t, fixedterm.KindInitial, l.Current.Kind)
	assert.Equal(t, 1, l.Current.Sequence)
	assert.True(t, l.Current.Current)
}

func TestReplaceCurrent_DerivesStartFromHistory(t *testing.T) {
	l := buildLedger(t)

	// WHEN: the caller passes a start date that disagrees with history
	derived, err := l.ReplaceCurrent(generic.MustParseDate("2024-03-01"), generic.MustParseDate("2024-12-31"), fixedterm.KindNegotiatedRenewal)
	require.NoError(t, err)

	// THEN: the start is the day after the last historical end
	assert.True(t, derived)
	assert.Equal(t, "2024-01-01", l.Current.Start.String())
	assert.Equal(t, 4, l.Current.Sequence)
}

func TestReplaceCurrent_OverwritesKeepingID(t *testing.T) {
	l := fixedterm.NewLedger("c-1", nil)
	_, err := l.ReplaceCurrent(generic.MustParseDate("2025-01-01"), generic.MustParseDate("2025-06-30"), "")
	require.NoError(t, err)
	l.Current.ID = "p-current"

	_, err = l.ReplaceCurrent(generic.MustParseDate("2025-01-01"), generic.MustParseDate("2025-12-31"), "")
	require.NoError(t, err)

	assert.Equal(t, "p-current", l.Current.ID)
	assert.Equal(t, "2025-12-31", l.Current.End.String())
	assert.Len(t, l.Periods(), 1)
}

func TestAppendHistorical_ReanchorsCurrent(t *testing.T) {
	l := fixedterm.NewLedger("c-1", nil)
	_, err := l.ReplaceCurrent(generic.MustParseDate("2024-01-01"), generic.MustParseDate("2025-12-31"), "")
	require.NoError(t, err)

	// WHEN: history is entered after the current period
	require.NoError(t, l.AppendHistorical(period("2023-01-01", "2023-12-31", fixedterm.KindInitial), today))

	// THEN: the current period moves behind it and stops being initial
	assert.Equal(t, "2024-01-01", l.Current.Start.String())
	assert.Equal(t, 2, l.Current.Sequence)
	assert.Equal(t, fixedterm.KindAutomaticRenewal, l.Current.Kind)
	assert.NoError(t, l.Validate(today))
}

// =============================================================================
// REMOVE
// =============================================================================

func TestRemoveHistorical_FirstResequences(t *testing.T) {
	l := buildLedger(t)

	require.NoError(t, l.RemoveHistorical(1))

	require.Len(t, l.History, 2)
	assert.Equal(t, 1, l.History[0].Sequence)
	assert.Equal(t, fixedterm.KindInitial, l.History[0].Kind, "first remaining period forced to initial")
	assert.Equal(t, "2022-07-01", l.History[0].Start.String())
	assert.Equal(t, 2, l.History[1].Sequence)
	assert.NoError(t, l.Validate(today))
}

func TestRemoveHistorical_LastMovesCurrent(t *testing.T) {
	l := buildLedger(t)
	_, err := l.ReplaceCurrent(generic.Date{}, generic.MustParseDate("2025-12-31"), "")
	require.NoError(t, err)

	require.NoError(t, l.RemoveHistorical(3))

	assert.Len(t, l.History, 2)
	assert.Equal(t, "2023-01-01", l.Current.Start.String())
	assert.Equal(t, 3, l.Current.Sequence)
	assert.NoError(t, l.Validate(today))
}

func TestRemoveHistorical_MiddleRejected(t *testing.T) {
	l := buildLedger(t)

	err := l.RemoveHistorical(2)
	requireRule(t, err, generic.RuleGapOrOverlap)
	assert.Len(t, l.History, 3)
}

func TestRemoveHistorical_Unknown(t *testing.T) {
	l := buildLedger(t)
	assert.True(t, generic.IsNotFound(l.RemoveHistorical(9)))
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestSummarize_Empty(t *testing.T) {
	l := fixedterm.NewLedger("c-1", nil)
	s := l.Summarize(fixedterm.DefaultTenurePolicy())

	assert.Equal(t, 0, s.TotalPeriods)
	assert.Equal(t, 0, s.TotalDays)
	assert.True(t, s.TotalYears.IsZero())
	assert.Equal(t, 1, s.NextSequence)
	assert.False(t, s.MustBeIndefinite)
}

func TestSummarize_TotalDaysIsSumOfInclusiveLengths(t *testing.T) {
	l := buildLedger(t)
	s := l.Summarize(fixedterm.DefaultTenurePolicy())

	// 181 (Jan-Jun 2022) + 184 (Jul-Dec 2022) + 365 (2023)
	assert.Equal(t, 3, s.TotalPeriods)
	assert.Equal(t, 730, s.TotalDays)
	assert.Equal(t, "2", s.TotalYears.String())
	assert.Equal(t, 4, s.NextSequence)
	assert.False(t, s.MustBeIndefinite)
}

func TestSummarize_FourYearBoundary(t *testing.T) {
	// 1460 days = 4.00 years exactly
	l := fixedterm.NewLedger("c-1", nil)
	require.NoError(t, l.AppendHistorical(period("2019-01-01", "2020-12-30", fixedterm.KindInitial), today))
	require.NoError(t, l.AppendHistorical(period("2020-12-31", "2022-12-30", fixedterm.KindAutomaticRenewal), today))
	s := l.Summarize(fixedterm.DefaultTenurePolicy())
	require.Equal(t, 1460, s.TotalDays)
	assert.True(t, s.TotalYears.Equal(decimal.NewFromInt(4)))
	assert.True(t, s.MustBeIndefinite)

	// 1456 days = 3.99 years
	l = fixedterm.NewLedger("c-1", nil)
	require.NoError(t, l.AppendHistorical(period("2019-01-01", "2020-12-30", fixedterm.KindInitial), today))
	require.NoError(t, l.AppendHistorical(period("2020-12-31", "2022-12-26", fixedterm.KindAutomaticRenewal), today))
	s = l.Summarize(fixedterm.DefaultTenurePolicy())
	require.Equal(t, 1456, s.TotalDays)
	assert.Equal(t, "3.99", s.TotalYears.StringFixed(2))
	assert.False(t, s.MustBeIndefinite)
}

func TestSummarize_PeriodCap(t *testing.T) {
	l := buildLedger(t)
	_, err := l.ReplaceCurrent(generic.Date{}, generic.MustParseDate("2024-06-30"), "")
	require.NoError(t, err)

	policy := fixedterm.TenurePolicy{MaxYears: decimal.NewFromInt(4), MaxPeriods: 3}
	s := l.Summarize(policy)

	assert.Equal(t, 4, s.TotalPeriods)
	assert.True(t, s.MustBeIndefinite, "more than three periods")
	assert.False(t, l.Summarize(fixedterm.DefaultTenurePolicy()).MustBeIndefinite)
}

// =============================================================================
// LOADING
// =============================================================================

func TestNewLedger_SplitsCurrentAndOrders(t *testing.T) {
	rows := []fixedterm.Period{
		{Sequence: 2, Start: generic.MustParseDate("2022-07-01"), End: generic.MustParseDate("2022-12-31"), Kind: fixedterm.KindAutomaticRenewal},
		{Sequence: 3, Start: generic.MustParseDate("2023-01-01"), End: generic.MustParseDate("2023-12-31"), Kind: fixedterm.KindAutomaticRenewal, Current: true},
		{Sequence: 1, Start: generic.MustParseDate("2022-01-01"), End: generic.MustParseDate("2022-06-30"), Kind: fixedterm.KindInitial},
	}

	l := fixedterm.NewLedger("c-1", rows)

	require.Len(t, l.History, 2)
	assert.Equal(t, 1, l.History[0].Sequence)
	require.NotNil(t, l.Current)
	assert.Equal(t, 3, l.Current.Sequence)
	assert.NoError(t, l.Validate(today))
}
