package params

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/metrics"
)

// Resolver registers annual parameters and resolves the value for a year.
type Resolver struct {
	store    Store
	defaults Defaults
	audit    generic.AuditLog
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

func NewResolver(store Store, defaults Defaults, audit generic.AuditLog, log zerolog.Logger, m *metrics.Metrics) *Resolver {
	if audit == nil {
		audit = generic.NopAuditLog{}
	}
	if defaults == nil {
		defaults = Defaults{}
	}
	return &Resolver{
		store:    store,
		defaults: defaults,
		audit:    audit,
		log:      log.With().Str("component", "params").Logger(),
		metrics:  m,
	}
}

// Resolve returns the value of t that applies to year.
func (r *Resolver) Resolve(ctx context.Context, t Type, year int) (Resolution, error) {
	if !t.Valid() {
		return Resolution{}, generic.NewValidationError("type", fmt.Sprintf("unknown parameter type %q", t))
	}

	rows, err := r.store.ListParameters(ctx, t)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to load %s parameters: %w", t, err)
	}

	res, ok := pick(rows, t, year)
	if !ok {
		def, hasDefault := r.defaults[t]
		if !hasDefault {
			return Resolution{}, &generic.NotFoundError{
				Entity: "annual parameter",
				Key:    fmt.Sprintf("%s/%d", t, year),
			}
		}
		res = Resolution{Type: t, RequestedYear: year, Value: def, Source: SourceDefault}
	}

	if res.IsFallback() {
		r.log.Warn().
			Str("type", string(t)).
			Int("requested_year", year).
			Int("resolved_year", res.Year).
			Str("source", string(res.Source)).
			Str("value", res.Value.String()).
			Msg("annual parameter resolved by fallback")
		r.metrics.IncParameterFallback(string(t), string(res.Source))
	}
	return res, nil
}

// pick finds the exact row or else the most recent prior year.
func pick(rows []AnnualParameter, t Type, year int) (Resolution, bool) {
	var best *AnnualParameter
	for i := range rows {
		p := &rows[i]
		if p.Archived || p.Type != t || p.Year > year {
			continue
		}
		if best == nil || p.Year > best.Year {
			best = p
		}
	}
	if best == nil {
		return Resolution{}, false
	}
	source := SourceExact
	if best.Year != year {
		source = SourcePriorYear
	}
	return Resolution{
		Type:          t,
		RequestedYear: year,
		Year:          best.Year,
		Value:         best.Value,
		Source:        source,
	}, true
}

// List returns the non-archived parameters of a type, every type when t is empty.
func (r *Resolver) List(ctx context.Context, t Type) ([]AnnualParameter, error) {
	if t != "" && !t.Valid() {
		return nil, generic.NewValidationError("type", fmt.Sprintf("unknown parameter type %q", t))
	}
	return r.store.ListParameters(ctx, t)
}

// Register stores a new value for (t, year). A non-archived row for the same
// pair must be archived first.
func (r *Resolver) Register(ctx context.Context, actor generic.Actor, t Type, year int, value decimal.Decimal, now time.Time) (*AnnualParameter, error) {
	var verrs generic.ValidationErrors
	if !t.Valid() {
		verrs.Add("type", fmt.Sprintf("unknown parameter type %q", t))
	}
	if year < 1900 || year > 9999 {
		verrs.Add("year", "must be a four-digit calendar year")
	}
	if value.IsNegative() {
		verrs.Add("value", "must not be negative")
	}
	if err := verrs.Err(); err != nil {
		return nil, err
	}

	rows, err := r.store.ListParameters(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s parameters: %w", t, err)
	}
	for _, p := range rows {
		if !p.Archived && p.Year == year {
			return nil, generic.NewValidationError("year",
				fmt.Sprintf("%s already registered for %d", t, year))
		}
	}

	p := AnnualParameter{
		ID:        uuid.NewString(),
		Type:      t,
		Year:      year,
		Value:     value,
		CreatedBy: actor.OrSystem(),
		CreatedAt: now.UTC(),
	}
	if err := r.store.InsertParameter(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to insert parameter: %w", err)
	}

	r.record(ctx, actor, generic.AuditParameterRegistered, p, now)
	return &p, nil
}

// Archive retires a parameter row so another value can be registered for its year.
func (r *Resolver) Archive(ctx context.Context, actor generic.Actor, id string, now time.Time) error {
	p, err := r.store.GetParameter(ctx, id)
	if err != nil {
		return err
	}
	if p.Archived {
		return &generic.StaleStateError{Entity: "annual parameter", ID: id, State: "archived", Operation: "archive"}
	}
	if err := r.store.ArchiveParameter(ctx, id); err != nil {
		return fmt.Errorf("failed to archive parameter: %w", err)
	}
	r.record(ctx, actor, generic.AuditParameterArchived, *p, now)
	return nil
}

func (r *Resolver) record(ctx context.Context, actor generic.Actor, action generic.AuditAction, p AnnualParameter, now time.Time) {
	entry := generic.AuditEntry{
		ID:         uuid.NewString(),
		Timestamp:  now.UTC(),
		Actor:      actor.OrSystem(),
		Action:     action,
		EntityType: "annual_parameter",
		EntityID:   p.ID,
		Payload: map[string]any{
			"type":  string(p.Type),
			"year":  strconv.Itoa(p.Year),
			"value": p.Value.String(),
		},
	}
	if err := r.audit.AppendAudit(ctx, entry); err != nil {
		r.log.Error().Err(err).Str("parameter_id", p.ID).Msg("failed to append audit entry")
	}
}
