/*
Package fixedterm maintains the renewal history of fixed-term contracts.

PURPOSE:
  A fixed-term contract lives through an initial period and any number of
  renewals. The ledger keeps them as an ordered, contiguous sequence and
  derives tenure totals, including the advisory "must become indefinite" flag.

KEY CONCEPTS:
  Historical periods: closed, in the past, created once and only changed by
  a full ledger rewrite.
  Current period: the single row mirroring the contract's own start/end
  dates. It is replaced, never appended.

INVARIANTS:
  - Sequence numbers are 1..N without gaps; sequence 1 <=> kind initial
  - Start < End for every period
  - Start[i] = End[i-1] + 1 day (zero gap, zero overlap)
  - A historical period never ends after the evaluation date
  - When history exists the current period starts the day after the last
    historical end (the contract start date becomes derived)

  Violations return *generic.InvalidPeriodError naming the broken rule.

EXAMPLE:
  l := fixedterm.NewLedger("c-1", nil)
  err := l.AppendHistorical(fixedterm.Period{
      Start: generic.MustParseDate("2022-01-01"),
      End:   generic.MustParseDate("2022-06-30"),
      Kind:  fixedterm.KindInitial,
  }, today)
  derived, err := l.ReplaceCurrent(start, end, fixedterm.KindAutomaticRenewal)
  summary := l.Summarize(fixedterm.DefaultTenurePolicy())

SEE ALSO:
  - service.go: load / validate / rewrite against a Store
  - contract/service.go: keeps the contract dates in sync with the current period
*/
package fixedterm

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/contract-engine/generic"
)

// =============================================================================
// PERIOD
// =============================================================================

// Kind tells how a period came to be.
type Kind string

const (
	KindInitial           Kind = "initial"
	KindAutomaticRenewal  Kind = "automatic_renewal"
	KindNegotiatedRenewal Kind = "negotiated_renewal"
)

func (k Kind) Valid() bool {
	switch k {
	case KindInitial, KindAutomaticRenewal, KindNegotiatedRenewal:
		return true
	}
	return false
}

// Period is one bounded interval of a fixed-term contract's life.
type Period struct {
	ID         string
	ContractID string
	Sequence   int
	Start      generic.Date
	End        generic.Date
	Kind       Kind
	Current    bool
}

func (p Period) Span() generic.Span { return generic.Span{Start: p.Start, End: p.End} }

// Days is the inclusive length of the period.
func (p Period) Days() int { return p.Span().Days() }

// =============================================================================
// TENURE POLICY
// =============================================================================

// TenurePolicy holds the legal thresholds that force conversion to an
// indefinite contract. MaxPeriods <= 0 disables the period cap.
type TenurePolicy struct {
	MaxYears   decimal.Decimal
	MaxPeriods int
}

func DefaultTenurePolicy() TenurePolicy {
	return TenurePolicy{MaxYears: decimal.NewFromInt(4)}
}

// Summary is the derived tenure of a ledger.
type Summary struct {
	TotalPeriods     int
	TotalDays        int
	TotalYears       decimal.Decimal // days / 365, two decimals
	NextSequence     int
	MustBeIndefinite bool
}

// =============================================================================
// LEDGER
// =============================================================================

var daysPerYear = decimal.NewFromInt(365)

// Ledger is the ordered period sequence of one contract.
type Ledger struct {
	ContractID string
	History    []Period
	Current    *Period
}

// NewLedger splits stored rows into history (ordered by sequence) and the
// current period. When several rows claim to be current the last one wins.
func NewLedger(contractID string, periods []Period) *Ledger {
	l := &Ledger{ContractID: contractID}
	for _, p := range periods {
		if p.Current {
			cp := p
			l.Current = &cp
			continue
		}
		l.History = append(l.History, p)
	}
	sort.SliceStable(l.History, func(i, j int) bool {
		return l.History[i].Sequence < l.History[j].Sequence
	})
	return l
}

// Periods returns history followed by the current period.
func (l *Ledger) Periods() []Period {
	out := make([]Period, 0, len(l.History)+1)
	out = append(out, l.History...)
	if l.Current != nil {
		out = append(out, *l.Current)
	}
	return out
}

// NextStart is the day the next period must start on, zero when history is empty.
func (l *Ledger) NextStart() generic.Date {
	if len(l.History) == 0 {
		return generic.Date{}
	}
	return l.History[len(l.History)-1].Span().Next()
}

// AppendHistorical validates p against the existing sequence and appends it.
// A zero Sequence is assigned; a zero Kind defaults to initial for the first
// period and automatic_renewal after it. On error the ledger is unchanged.
func (l *Ledger) AppendHistorical(p Period, today generic.Date) error {
	seq := len(l.History) + 1
	if p.Sequence == 0 {
		p.Sequence = seq
	}
	if p.Kind == "" {
		p.Kind = defaultKind(seq)
	}
	if err := checkShape(p, seq); err != nil {
		return err
	}
	if seq > 1 {
		expected := l.NextStart()
		if !p.Start.Equal(expected) {
			return &generic.InvalidPeriodError{
				Sequence: seq, Rule: generic.RuleGapOrOverlap, Field: "start_date",
				Day:    expected.Ptr(),
				Reason: fmt.Sprintf("must start on %s, the day after the previous period", expected),
			}
		}
	}
	if p.End.After(today) {
		return &generic.InvalidPeriodError{
			Sequence: seq, Rule: generic.RuleFuturePeriod, Field: "end_date",
			Day:    p.End.Ptr(),
			Reason: fmt.Sprintf("historical periods must end on or before %s", today),
		}
	}

	var current *Period
	if l.Current != nil {
		c, err := anchorCurrent(*l.Current, p.Span().Next(), seq+1)
		if err != nil {
			return err
		}
		current = &c
	}

	p.ContractID = l.ContractID
	p.Current = false
	l.History = append(l.History, p)
	l.Current = current
	return nil
}

// ReplaceCurrent writes the single current period. When history exists the
// start is derived as the day after the last historical end and the given
// start is ignored; derived reports whether that happened. A zero kind keeps
// the kind of the period being replaced.
func (l *Ledger) ReplaceCurrent(start, end generic.Date, kind Kind) (derived bool, err error) {
	seq := len(l.History) + 1
	if len(l.History) > 0 {
		start = l.NextStart()
		derived = true
	}
	if kind == "" {
		kind = defaultKind(seq)
		if l.Current != nil && seq > 1 && l.Current.Kind != KindInitial {
			kind = l.Current.Kind
		}
	}
	p := Period{
		ContractID: l.ContractID,
		Sequence:   seq,
		Start:      start,
		End:        end,
		Kind:       kind,
		Current:    true,
	}
	if l.Current != nil {
		p.ID = l.Current.ID
	}
	if err := checkShape(p, seq); err != nil {
		return derived, err
	}
	l.Current = &p
	return derived, nil
}

// RemoveHistorical deletes the first or the last historical period, renumbers
// the rest from 1 and forces the first remaining period to initial. Removing a
// period from the middle would break continuity and is rejected.
func (l *Ledger) RemoveHistorical(seq int) error {
	idx := -1
	for i, p := range l.History {
		if p.Sequence == seq {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &generic.NotFoundError{Entity: "period", Key: fmt.Sprintf("%s#%d", l.ContractID, seq)}
	}
	if idx > 0 && idx < len(l.History)-1 {
		return &generic.InvalidPeriodError{
			Sequence: seq, Rule: generic.RuleGapOrOverlap, Field: "sequence",
			Day:    l.History[idx].Start.Ptr(),
			Reason: "removing a middle period would leave a gap, remove the periods after it first",
		}
	}

	history := make([]Period, 0, len(l.History)-1)
	history = append(history, l.History[:idx]...)
	history = append(history, l.History[idx+1:]...)
	for i := range history {
		history[i].Sequence = i + 1
		if i == 0 {
			history[i].Kind = KindInitial
		} else if history[i].Kind == KindInitial {
			history[i].Kind = KindAutomaticRenewal
		}
	}

	var current *Period
	if l.Current != nil {
		c := *l.Current
		c.Sequence = len(history) + 1
		if len(history) > 0 {
			c.Start = history[len(history)-1].Span().Next()
		} else {
			c.Kind = KindInitial
		}
		if c.Sequence > 1 && c.Kind == KindInitial {
			c.Kind = KindAutomaticRenewal
		}
		current = &c
	}

	l.History = history
	l.Current = current
	return nil
}

// Summarize derives tenure totals over history and the current period.
func (l *Ledger) Summarize(policy TenurePolicy) Summary {
	s := Summary{NextSequence: len(l.History) + 1}
	for _, p := range l.Periods() {
		s.TotalPeriods++
		s.TotalDays += p.Days()
	}
	s.TotalYears = decimal.NewFromInt(int64(s.TotalDays)).Div(daysPerYear).Round(2)
	s.MustBeIndefinite = s.TotalYears.GreaterThanOrEqual(policy.MaxYears) ||
		(policy.MaxPeriods > 0 && s.TotalPeriods > policy.MaxPeriods)
	return s
}

// Validate re-checks every invariant over the whole ledger. Stored ledgers
// are validated before a rewrite so a corrupt row is not silently carried on.
func (l *Ledger) Validate(today generic.Date) error {
	rebuilt := &Ledger{ContractID: l.ContractID}
	for _, p := range l.History {
		if err := rebuilt.AppendHistorical(p, today); err != nil {
			return err
		}
	}
	if l.Current != nil {
		seq := len(l.History) + 1
		if l.Current.Sequence != seq {
			return &generic.InvalidPeriodError{
				Sequence: l.Current.Sequence, Rule: generic.RuleSequenceMismatch, Field: "sequence",
				Reason: fmt.Sprintf("current period must be number %d", seq),
			}
		}
		if err := checkShape(*l.Current, seq); err != nil {
			return err
		}
		if seq > 1 && !l.Current.Start.Equal(rebuilt.NextStart()) {
			return &generic.InvalidPeriodError{
				Sequence: seq, Rule: generic.RuleGapOrOverlap, Field: "start_date",
				Day: rebuilt.NextStart().Ptr(),
			}
		}
	}
	return nil
}

// =============================================================================
// RULES
// =============================================================================

func defaultKind(seq int) Kind {
	if seq == 1 {
		return KindInitial
	}
	return KindAutomaticRenewal
}

// checkShape validates one period on its own: dates, order, sequence and kind.
func checkShape(p Period, seq int) error {
	if p.Start.IsZero() {
		return &generic.InvalidPeriodError{Sequence: seq, Rule: generic.RuleNotADate, Field: "start_date", Reason: "is required"}
	}
	if p.End.IsZero() {
		return &generic.InvalidPeriodError{Sequence: seq, Rule: generic.RuleNotADate, Field: "end_date", Reason: "is required"}
	}
	if !p.Start.Before(p.End) {
		return &generic.InvalidPeriodError{
			Sequence: seq, Rule: generic.RuleEndBeforeStart, Field: "end_date",
			Day:    p.End.Ptr(),
			Reason: fmt.Sprintf("must be after the start date %s", p.Start),
		}
	}
	if p.Sequence != seq {
		return &generic.InvalidPeriodError{
			Sequence: p.Sequence, Rule: generic.RuleSequenceMismatch, Field: "sequence",
			Reason: fmt.Sprintf("next period must be number %d", seq),
		}
	}
	if !p.Kind.Valid() {
		return &generic.InvalidPeriodError{
			Sequence: seq, Rule: generic.RuleKindMismatch, Field: "kind",
			Reason: fmt.Sprintf("unknown kind %q", p.Kind),
		}
	}
	if (seq == 1) != (p.Kind == KindInitial) {
		reason := "only the first period can be initial"
		if seq == 1 {
			reason = "the first period must be initial"
		}
		return &generic.InvalidPeriodError{Sequence: seq, Rule: generic.RuleKindMismatch, Field: "kind", Reason: reason}
	}
	return nil
}

// anchorCurrent moves the current period behind a newly appended one.
func anchorCurrent(c Period, start generic.Date, seq int) (Period, error) {
	c.Start = start
	c.Sequence = seq
	if c.Kind == KindInitial {
		c.Kind = KindAutomaticRenewal
	}
	if !c.Start.Before(c.End) {
		return c, &generic.InvalidPeriodError{
			Sequence: seq, Rule: generic.RuleGapOrOverlap, Field: "end_date",
			Day:    start.Ptr(),
			Reason: "the current period would start after it ends",
		}
	}
	return c, nil
}
