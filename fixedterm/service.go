package fixedterm

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/contract-engine/generic"
)

// Store persists the periods of a contract.
type Store interface {
	ListPeriods(ctx context.Context, contractID string) ([]Period, error)
	// ReplacePeriods atomically rewrites every period of the contract.
	ReplacePeriods(ctx context.Context, contractID string, periods []Period) error
}

// Service applies ledger operations against a Store: load, validate, rewrite.
type Service struct {
	store  Store
	policy TenurePolicy
	audit  generic.AuditLog
	log    zerolog.Logger
}

func NewService(store Store, policy TenurePolicy, audit generic.AuditLog, log zerolog.Logger) *Service {
	if audit == nil {
		audit = generic.NopAuditLog{}
	}
	return &Service{
		store:  store,
		policy: policy,
		audit:  audit,
		log:    log.With().Str("component", "fixedterm").Logger(),
	}
}

func (s *Service) Policy() TenurePolicy { return s.policy }

// Load returns the stored ledger of a contract. An empty ledger is valid.
func (s *Service) Load(ctx context.Context, contractID string) (*Ledger, error) {
	periods, err := s.store.ListPeriods(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to load periods for %s: %w", contractID, err)
	}
	return NewLedger(contractID, periods), nil
}

// Summary loads the ledger and derives its tenure totals.
func (s *Service) Summary(ctx context.Context, contractID string) (Summary, error) {
	l, err := s.Load(ctx, contractID)
	if err != nil {
		return Summary{}, err
	}
	return l.Summarize(s.policy), nil
}

// loadValid loads the ledger and re-checks every invariant before a rewrite.
func (s *Service) loadValid(ctx context.Context, contractID string, today generic.Date) (*Ledger, error) {
	l, err := s.Load(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if err := l.Validate(today); err != nil {
		s.log.Warn().Err(err).Str("contract_id", contractID).Msg("stored ledger is inconsistent")
		return nil, fmt.Errorf("stored ledger of %s is inconsistent: %w", contractID, err)
	}
	return l, nil
}

// Append adds a historical period.
func (s *Service) Append(ctx context.Context, actor generic.Actor, contractID string, p Period, today generic.Date, now time.Time) (*Ledger, error) {
	l, err := s.loadValid(ctx, contractID, today)
	if err != nil {
		return nil, err
	}
	if err := l.AppendHistorical(p, today); err != nil {
		return nil, err
	}
	if err := s.rewrite(ctx, l); err != nil {
		return nil, err
	}
	added := l.History[len(l.History)-1]
	s.record(ctx, actor, generic.AuditPeriodAppended, contractID, now, map[string]any{
		"sequence": strconv.Itoa(added.Sequence),
		"start":    added.Start.String(),
		"end":      added.End.String(),
		"kind":     string(added.Kind),
	})
	return l, nil
}

// Remove deletes a historical period and renumbers the rest.
func (s *Service) Remove(ctx context.Context, actor generic.Actor, contractID string, seq int, today generic.Date, now time.Time) (*Ledger, error) {
	l, err := s.loadValid(ctx, contractID, today)
	if err != nil {
		return nil, err
	}
	if err := l.RemoveHistorical(seq); err != nil {
		return nil, err
	}
	if err := s.rewrite(ctx, l); err != nil {
		return nil, err
	}
	s.record(ctx, actor, generic.AuditPeriodRemoved, contractID, now, map[string]any{
		"sequence": strconv.Itoa(seq),
	})
	return l, nil
}

// ReplaceCurrent overwrites the current period from the contract's dates.
func (s *Service) ReplaceCurrent(ctx context.Context, actor generic.Actor, contractID string, start, end generic.Date, kind Kind, today generic.Date, now time.Time) (*Ledger, bool, error) {
	l, derived, err := s.PlanCurrent(ctx, contractID, start, end, kind, today)
	if err != nil {
		return nil, derived, err
	}
	if err := s.CommitCurrent(ctx, actor, l, derived, now); err != nil {
		return nil, derived, err
	}
	return l, derived, nil
}

// PlanCurrent applies a current-period replacement to the stored ledger in
// memory only. Nothing is written until CommitCurrent.
func (s *Service) PlanCurrent(ctx context.Context, contractID string, start, end generic.Date, kind Kind, today generic.Date) (*Ledger, bool, error) {
	l, err := s.loadValid(ctx, contractID, today)
	if err != nil {
		return nil, false, err
	}
	derived, err := l.ReplaceCurrent(start, end, kind)
	if err != nil {
		return nil, derived, err
	}
	return l, derived, nil
}

// CommitCurrent persists a ledger returned by PlanCurrent.
func (s *Service) CommitCurrent(ctx context.Context, actor generic.Actor, l *Ledger, derived bool, now time.Time) error {
	if err := s.rewrite(ctx, l); err != nil {
		return err
	}
	s.record(ctx, actor, generic.AuditCurrentPeriodSet, l.ContractID, now, map[string]any{
		"start":   l.Current.Start.String(),
		"end":     l.Current.End.String(),
		"derived": derived,
	})
	return nil
}

// rewrite stores the full ledger, assigning IDs to new rows.
func (s *Service) rewrite(ctx context.Context, l *Ledger) error {
	periods := l.Periods()
	for i := range periods {
		if periods[i].ID == "" {
			periods[i].ID = uuid.NewString()
		}
		periods[i].ContractID = l.ContractID
	}
	if err := s.store.ReplacePeriods(ctx, l.ContractID, periods); err != nil {
		return fmt.Errorf("failed to rewrite periods for %s: %w", l.ContractID, err)
	}
	fresh := NewLedger(l.ContractID, periods)
	l.History, l.Current = fresh.History, fresh.Current
	return nil
}

func (s *Service) record(ctx context.Context, actor generic.Actor, action generic.AuditAction, contractID string, now time.Time, payload map[string]any) {
	entry := generic.AuditEntry{
		ID:         uuid.NewString(),
		Timestamp:  now.UTC(),
		Actor:      actor.OrSystem(),
		Action:     action,
		EntityType: "contract",
		EntityID:   contractID,
		Payload:    payload,
	}
	if err := s.audit.AppendAudit(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("contract_id", contractID).Msg("failed to append audit entry")
	}
}
