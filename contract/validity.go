package contract

import "github.com/warp/contract-engine/generic"

// ValidityState is the lifecycle badge of a contract on a given day.
type ValidityState string

const (
	ValidityActive        ValidityState = "active"
	ValidityAboutToExpire ValidityState = "about_to_expire"
	ValidityCritical      ValidityState = "critical"
	ValidityTerminated    ValidityState = "terminated"
)

// Thresholds are the day counts that refine the badge of fixed-term contracts.
type Thresholds struct {
	CriticalDays int // 0 < d <= CriticalDays
	WarningDays  int // CriticalDays < d <= WarningDays
}

func DefaultThresholds() Thresholds {
	return Thresholds{CriticalDays: 35, WarningDays: 45}
}

// ResolveValidity classifies a contract from its end date and type.
//   - no end date: active
//   - ended before today: terminated
//   - fixed-term with d days left: critical in (0, CriticalDays],
//     about_to_expire in (CriticalDays, WarningDays]
//
// A contract ending today is still active.
func ResolveValidity(end *generic.Date, t Type, today generic.Date, th Thresholds) ValidityState {
	if end == nil {
		return ValidityActive
	}
	if end.Before(today) {
		return ValidityTerminated
	}
	if t != TypeFixedTerm {
		return ValidityActive
	}

	d := generic.DaysBetween(today, *end)
	switch {
	case d > 0 && d <= th.CriticalDays:
		return ValidityCritical
	case d > th.CriticalDays && d <= th.WarningDays:
		return ValidityAboutToExpire
	}
	return ValidityActive
}

// DaysRemaining returns the whole days until end, nil when the contract is
// open-ended or already over.
func DaysRemaining(end *generic.Date, today generic.Date) *int {
	if end == nil || end.Before(today) {
		return nil
	}
	d := generic.DaysBetween(today, *end)
	return &d
}
