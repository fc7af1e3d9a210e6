package contract

import (
	"context"
	"math"
	"sort"

	"github.com/warp/contract-engine/generic"
)

// Attention is one contract that needs action on the sweep day.
type Attention struct {
	Contract Contract
	Validity ValidityState
	// DaysRemaining is nil for open-ended contracts.
	DaysRemaining *int
	// MustBeIndefinite is set when the fixed-term tenure reached the policy cap.
	MustBeIndefinite bool
}

// SweepReport is the outcome of one sweep over the non-archived contracts.
type SweepReport struct {
	On      generic.Date
	Checked int
	Failed  int
	Items   []Attention // most urgent first
}

// Sweep recomputes the validity badge of every non-archived contract matching
// filter and returns those that are critical, about to expire or past their
// tenure cap. It is a fresh computation on every call.
func (s *Service) Sweep(ctx context.Context, filter ListFilter, today generic.Date) (*SweepReport, error) {
	filter.IncludeArchived = false
	contracts, err := s.store.ListContracts(ctx, filter)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{On: today, Items: []Attention{}}
	for _, c := range contracts {
		report.Checked++

		item := Attention{
			Contract:      c,
			Validity:      ResolveValidity(c.EndDate, c.Type, today, s.thresholds),
			DaysRemaining: DaysRemaining(c.EndDate, today),
		}
		if c.Type == TypeFixedTerm && s.periods != nil {
			summary, err := s.periods.Summary(ctx, c.ID)
			if err != nil {
				s.log.Warn().Err(err).Str("contract_id", c.ID).Msg("tenure not summarized during sweep")
				report.Failed++
				continue
			}
			item.MustBeIndefinite = summary.MustBeIndefinite
		}

		if item.Validity == ValidityCritical || item.Validity == ValidityAboutToExpire || item.MustBeIndefinite {
			report.Items = append(report.Items, item)
		}
	}

	sort.SliceStable(report.Items, func(i, j int) bool {
		return remaining(report.Items[i]) < remaining(report.Items[j])
	})

	if len(report.Items) > 0 || report.Failed > 0 {
		s.log.Info().
			Str("on", today.String()).
			Int("checked", report.Checked).
			Int("attention", len(report.Items)).
			Int("failed", report.Failed).
			Msg("expiry sweep completed")
	}
	return report, nil
}

func remaining(a Attention) int {
	if a.DaysRemaining == nil {
		return math.MaxInt
	}
	return *a.DaysRemaining
}
