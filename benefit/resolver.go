package benefit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/metrics"
)

// Resolver answers "which provider applies on date D" and performs the
// assign / change / close writes.
type Resolver struct {
	store   Store
	audit   generic.AuditLog
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewResolver(store Store, audit generic.AuditLog, log zerolog.Logger, m *metrics.Metrics) *Resolver {
	if audit == nil {
		audit = generic.NopAuditLog{}
	}
	return &Resolver{
		store:   store,
		audit:   audit,
		log:     log.With().Str("component", "benefit").Logger(),
		metrics: m,
	}
}

// ChangeResult reports both halves of a change.
type ChangeResult struct {
	Closed *Assignment // nil when there was nothing to close
	Opened Assignment
}

// =============================================================================
// QUERIES
// =============================================================================

// ResolveActive returns the assignment in effect on the given day, or nil.
// More than one match is reported instead of picking one.
func (r *Resolver) ResolveActive(ctx context.Context, key Key, on generic.Date) (*Assignment, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	all, err := r.store.ListAssignments(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s assignments: %w", key, err)
	}

	var matches []Assignment
	for _, a := range all {
		if a.InEffectOn(on) {
			matches = append(matches, a)
		}
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return &matches[0], nil
	}
	return nil, ambiguous(key, &on, matches)
}

// History returns every assignment for key, most recent first.
func (r *Resolver) History(ctx context.Context, key Key) ([]HistoryEntry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	all, err := r.store.ListAssignments(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s assignments: %w", key, err)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Start.Equal(all[j].Start) {
			return all[i].Start.After(all[j].Start)
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	entries := make([]HistoryEntry, len(all))
	for i, a := range all {
		status := StatusFinished
		if a.State == StateActive {
			status = StatusActive
		}
		entries[i] = HistoryEntry{Assignment: a, Status: status}
	}
	return entries, nil
}

// =============================================================================
// WRITES
// =============================================================================

// Assign opens the first assignment for key, or a new one after the previous
// was closed. It never closes anything.
func (r *Resolver) Assign(ctx context.Context, actor generic.Actor, key Key, providerID string, start generic.Date, now time.Time) (*Assignment, error) {
	if err := validateWrite(key, providerID, start); err != nil {
		return nil, err
	}
	all, err := r.store.ListAssignments(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s assignments: %w", key, err)
	}
	active, err := activeOf(key, all)
	if err != nil {
		return nil, err
	}
	if active != nil {
		r.metrics.IncBenefitWrite(string(key.Kind), "assign", "rejected")
		return nil, &generic.OverlapError{
			Key:       key.String(),
			Existing:  active.Window(),
			Requested: start,
			Reason:    "an active assignment exists, use change instead",
		}
	}
	if err := checkHistory(key, all, "", start); err != nil {
		r.metrics.IncBenefitWrite(string(key.Kind), "assign", "rejected")
		return nil, err
	}

	opened := newAssignment(key, providerID, start, actor, now)
	if err := r.store.InsertAssignment(ctx, opened); err != nil {
		r.metrics.IncBenefitWrite(string(key.Kind), "assign", "error")
		return nil, fmt.Errorf("failed to insert assignment: %w", err)
	}

	r.metrics.IncBenefitWrite(string(key.Kind), "assign", "ok")
	r.record(ctx, actor, generic.AuditBenefitAssigned, opened, now, nil)
	return &opened, nil
}

// Change closes the active assignment (if any) the day before effective and
// opens providerID from effective.
func (r *Resolver) Change(ctx context.Context, actor generic.Actor, key Key, providerID string, effective generic.Date, now time.Time) (*ChangeResult, error) {
	if err := validateWrite(key, providerID, effective); err != nil {
		return nil, err
	}
	all, err := r.store.ListAssignments(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s assignments: %w", key, err)
	}
	active, err := activeOf(key, all)
	if err != nil {
		return nil, err
	}

	result := &ChangeResult{Opened: newAssignment(key, providerID, effective, actor, now)}
	skip := ""
	if active != nil {
		if !effective.After(active.Start) {
			r.metrics.IncBenefitWrite(string(key.Kind), "change", "rejected")
			return nil, &generic.OverlapError{
				Key:       key.String(),
				Existing:  active.Window(),
				Requested: effective,
				Reason:    "effective date must be after the active assignment's start",
			}
		}
		closed := *active
		closed.End = effective.AddDays(-1).Ptr()
		closed.State = StateClosed
		closed.UpdatedBy = actor.OrSystem()
		closed.UpdatedAt = now.UTC()
		result.Closed = &closed
		skip = active.ID
	}
	if err := checkHistory(key, all, skip, effective); err != nil {
		r.metrics.IncBenefitWrite(string(key.Kind), "change", "rejected")
		return nil, err
	}

	if err := r.writeChange(ctx, key, result); err != nil {
		return nil, err
	}

	r.metrics.IncBenefitWrite(string(key.Kind), "change", "ok")
	var previous map[string]any
	if result.Closed != nil {
		previous = map[string]any{
			"closed_id":       result.Closed.ID,
			"closed_provider": result.Closed.ProviderID,
			"closed_end":      result.Closed.End.String(),
		}
	}
	r.record(ctx, actor, generic.AuditBenefitChanged, result.Opened, now, previous)
	r.log.Info().
		Str("key", key.String()).
		Str("provider_id", providerID).
		Str("effective", effective.String()).
		Msg("benefit provider changed")
	return result, nil
}

func (r *Resolver) writeChange(ctx context.Context, key Key, result *ChangeResult) error {
	if txs, ok := r.store.(TxStore); ok {
		err := txs.WithTx(ctx, func(s Store) error {
			if result.Closed != nil {
				if err := s.UpdateAssignment(ctx, *result.Closed); err != nil {
					return err
				}
			}
			return s.InsertAssignment(ctx, result.Opened)
		})
		if err != nil {
			r.metrics.IncBenefitWrite(string(key.Kind), "change", "error")
			return fmt.Errorf("failed to change assignment: %w", err)
		}
		return nil
	}

	// Two-step path: close, verify, open.
	if result.Closed != nil {
		if err := r.store.UpdateAssignment(ctx, *result.Closed); err != nil {
			r.metrics.IncBenefitWrite(string(key.Kind), "change", "error")
			return fmt.Errorf("failed to close assignment: %w", err)
		}
		if err := r.verifyClosed(ctx, key, result.Closed.ID); err != nil {
			r.metrics.IncBenefitWrite(string(key.Kind), "change", "error")
			return err
		}
	}
	if err := r.store.InsertAssignment(ctx, result.Opened); err != nil {
		if result.Closed == nil {
			r.metrics.IncBenefitWrite(string(key.Kind), "change", "error")
			return fmt.Errorf("failed to insert assignment: %w", err)
		}
		r.metrics.IncPartialFailure("benefit_change")
		r.log.Error().Err(err).
			Str("key", key.String()).
			Str("closed_id", result.Closed.ID).
			Msg("benefit change left the key without an active provider")
		return &generic.PartialFailureError{
			Operation: "benefit change",
			Completed: "close " + result.Closed.ID,
			Failed:    "open " + result.Opened.ProviderID,
			Cause:     err,
		}
	}
	return nil
}

func (r *Resolver) verifyClosed(ctx context.Context, key Key, id string) error {
	all, err := r.store.ListAssignments(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to verify close of %s: %w", id, err)
	}
	for _, a := range all {
		if a.ID == id {
			if a.State != StateClosed || a.End == nil {
				return fmt.Errorf("assignment %s still active after close", id)
			}
			return nil
		}
	}
	return &generic.NotFoundError{Entity: "benefit assignment", Key: id}
}

// Close ends the active assignment on effective.
func (r *Resolver) Close(ctx context.Context, actor generic.Actor, key Key, effective generic.Date, now time.Time) (*Assignment, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if effective.IsZero() {
		return nil, generic.NewValidationError("effective_date", "is required")
	}
	all, err := r.store.ListAssignments(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s assignments: %w", key, err)
	}
	active, err := activeOf(key, all)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, &generic.NotFoundError{Entity: "active benefit assignment", Key: key.String()}
	}
	if effective.Before(active.Start) {
		return nil, generic.NewValidationError("effective_date",
			fmt.Sprintf("must not be before the assignment start %s", active.Start))
	}

	closed := *active
	closed.End = effective.Ptr()
	closed.State = StateClosed
	closed.UpdatedBy = actor.OrSystem()
	closed.UpdatedAt = now.UTC()
	if err := r.store.UpdateAssignment(ctx, closed); err != nil {
		r.metrics.IncBenefitWrite(string(key.Kind), "close", "error")
		return nil, fmt.Errorf("failed to close assignment: %w", err)
	}

	r.metrics.IncBenefitWrite(string(key.Kind), "close", "ok")
	r.record(ctx, actor, generic.AuditBenefitClosed, closed, now, nil)
	return &closed, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func validateWrite(key Key, providerID string, day generic.Date) error {
	var verrs generic.ValidationErrors
	var keyErrs generic.ValidationErrors
	if errors.As(key.Validate(), &keyErrs) {
		verrs = append(verrs, keyErrs...)
	}
	if providerID == "" {
		verrs.Add("provider_id", "is required")
	}
	if day.IsZero() {
		verrs.Add("effective_date", "is required")
	}
	return verrs.Err()
}

// activeOf returns the single active assignment, nil when none.
func activeOf(key Key, all []Assignment) (*Assignment, error) {
	var active []Assignment
	for _, a := range all {
		if a.State == StateActive {
			active = append(active, a)
		}
	}
	switch len(active) {
	case 0:
		return nil, nil
	case 1:
		return &active[0], nil
	}
	return nil, ambiguous(key, nil, active)
}

// checkHistory rejects a new open-ended window starting at start when a
// closed assignment (other than skip) still covers it or starts later.
func checkHistory(key Key, all []Assignment, skip string, start generic.Date) error {
	requested := generic.Window{Start: start}
	for _, a := range all {
		if a.ID == skip || a.State == StateActive {
			continue
		}
		if a.Window().Overlaps(requested) {
			return &generic.OverlapError{
				Key:       key.String(),
				Existing:  a.Window(),
				Requested: start,
				Reason:    "falls inside an earlier assignment",
			}
		}
	}
	return nil
}

func ambiguous(key Key, on *generic.Date, matches []Assignment) error {
	ids := make([]string, len(matches))
	for i, a := range matches {
		ids[i] = a.ID
	}
	sort.Strings(ids)
	return &generic.AmbiguousAssignmentError{Key: key.String(), On: on, IDs: ids}
}

func newAssignment(key Key, providerID string, start generic.Date, actor generic.Actor, now time.Time) Assignment {
	return Assignment{
		ID:         uuid.NewString(),
		Kind:       key.Kind,
		EmployerID: key.EmployerID,
		LocationID: key.LocationID,
		ProviderID: providerID,
		Start:      start,
		State:      StateActive,
		CreatedBy:  actor.OrSystem(),
		UpdatedBy:  actor.OrSystem(),
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}
}

func (r *Resolver) record(ctx context.Context, actor generic.Actor, action generic.AuditAction, a Assignment, now time.Time, extra map[string]any) {
	payload := map[string]any{
		"key":         a.Key().String(),
		"provider_id": a.ProviderID,
		"start":       a.Start.String(),
		"state":       string(a.State),
	}
	if a.End != nil {
		payload["end"] = a.End.String()
	}
	for k, v := range extra {
		payload[k] = v
	}
	entry := generic.AuditEntry{
		ID:         uuid.NewString(),
		Timestamp:  now.UTC(),
		Actor:      actor.OrSystem(),
		Action:     action,
		EntityType: "benefit_assignment",
		EntityID:   a.ID,
		Payload:    payload,
	}
	if err := r.audit.AppendAudit(ctx, entry); err != nil {
		r.log.Error().Err(err).Str("assignment_id", a.ID).Msg("failed to append audit entry")
	}
}
