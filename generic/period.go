package generic

// =============================================================================
// SPAN - Closed day interval [Start, End]
// =============================================================================

// Span is a bounded interval of calendar days, both ends inclusive.
//
// Examples:
//   - A fixed-term renewal: 2024-01-01 .. 2024-06-30 (182 days)
//   - A closed benefit assignment: 2023-03-01 .. 2024-02-29
type Span struct {
	Start Date
	End   Date
}

// Contains returns true if d is within [Start, End].
func (s Span) Contains(d Date) bool {
	return d.AfterOrEqual(s.Start) && d.BeforeOrEqual(s.End)
}

// Days is the inclusive length of the span. A one-day span has Days() == 1.
func (s Span) Days() int {
	return DaysBetween(s.Start, s.End) + 1
}

// Next returns the day right after the span ends.
func (s Span) Next() Date {
	return s.End.AddDays(1)
}

func (s Span) String() string {
	return "[" + s.Start.String() + ", " + s.End.String() + "]"
}

// =============================================================================
// WINDOW - Validity window with an optional end
// =============================================================================

// Window is the period during which a temporal record is in effect.
// A nil End means the record is open-ended.
type Window struct {
	Start Date
	End   *Date
}

// IsOpen reports whether the window has no end.
func (w Window) IsOpen() bool {
	return w.End == nil
}

// Covers returns true if d falls inside the window.
func (w Window) Covers(d Date) bool {
	if d.Before(w.Start) {
		return false
	}
	if w.End != nil && d.After(*w.End) {
		return false
	}
	return true
}

// Overlaps reports whether two windows share at least one day.
func (w Window) Overlaps(other Window) bool {
	if w.End != nil && w.End.Before(other.Start) {
		return false
	}
	if other.End != nil && other.End.Before(w.Start) {
		return false
	}
	return true
}

func (w Window) String() string {
	end := "open"
	if w.End != nil {
		end = w.End.String()
	}
	return "[" + w.Start.String() + ", " + end + "]"
}
