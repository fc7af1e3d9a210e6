package params_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/metrics"
	"github.com/warp/contract-engine/params"
	"github.com/warp/contract-engine/store/memory"
)

var now = time.Date(2025, time.February, 10, 8, 0, 0, 0, time.UTC)

func newResolver(t *testing.T, defaults params.Defaults) (*params.Resolver, *memory.Store, *metrics.Metrics) {
	t.Helper()
	store := memory.New()
	m := metrics.NewWith(prometheus.NewRegistry())
	return params.NewResolver(store, defaults, store, zerolog.Nop(), m), store, m
}

func register(t *testing.T, r *params.Resolver, typ params.Type, year int, value string) *params.AnnualParameter {
	t.Helper()
	p, err := r.Register(context.Background(), "hr-1", typ, year, decimal.RequireFromString(value), now)
	require.NoError(t, err)
	return p
}

// =============================================================================
// RESOLVE
// =============================================================================

func TestResolve_ExactYear(t *testing.T) {
	// GIVEN: minimum wage registered for 2024 and 2025
	r, _, m := newResolver(t, nil)
	register(t, r, params.MinimumWage, 2024, "1300000")
	register(t, r, params.MinimumWage, 2025, "1423500")

	// WHEN: resolving 2025
	res, err := r.Resolve(context.Background(), params.MinimumWage, 2025)

	// THEN: the exact row is used, no fallback counted
	require.NoError(t, err)
	assert.Equal(t, params.SourceExact, res.Source)
	assert.Equal(t, 2025, res.Year)
	assert.True(t, res.Value.Equal(decimal.RequireFromString("1423500")))
	assert.False(t, res.IsFallback())
	assert.Zero(t, testutil.ToFloat64(m.ParameterFallbacks.WithLabelValues("minimum_wage", "prior_year")))
}

func TestResolve_FallsBackToMostRecentPriorYear(t *testing.T) {
	// GIVEN: rows for 2022 and 2024 only
	r, _, m := newResolver(t, nil)
	register(t, r, params.TransportSubsidy, 2022, "117172")
	register(t, r, params.TransportSubsidy, 2024, "162000")

	// WHEN: resolving 2026
	res, err := r.Resolve(context.Background(), params.TransportSubsidy, 2026)

	// THEN: 2024 applies and the fallback is flagged
	require.NoError(t, err)
	assert.Equal(t, params.SourcePriorYear, res.Source)
	assert.Equal(t, 2024, res.Year)
	assert.Equal(t, 2026, res.RequestedYear)
	assert.True(t, res.IsFallback())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ParameterFallbacks.WithLabelValues("transport_subsidy", "prior_year")))
}

func TestResolve_IgnoresLaterYears(t *testing.T) {
	r, _, _ := newResolver(t, params.Defaults{params.MinimumWage: decimal.RequireFromString("1000000")})
	register(t, r, params.MinimumWage, 2025, "1423500")

	res, err := r.Resolve(context.Background(), params.MinimumWage, 2020)

	require.NoError(t, err)
	assert.Equal(t, params.SourceDefault, res.Source)
	assert.True(t, res.Value.Equal(decimal.RequireFromString("1000000")))
}

func TestResolve_NoRowsNoDefault(t *testing.T) {
	r, _, _ := newResolver(t, nil)

	_, err := r.Resolve(context.Background(), params.MinimumWage, 2025)

	require.ErrorIs(t, err, generic.ErrNotFound)
}

func TestResolve_UnknownType(t *testing.T) {
	r, _, _ := newResolver(t, nil)

	_, err := r.Resolve(context.Background(), params.Type("bonus"), 2025)

	require.ErrorIs(t, err, generic.ErrValidation)
}

// =============================================================================
// REGISTER / ARCHIVE
// =============================================================================

func TestRegister_RejectsInvalidInput(t *testing.T) {
	r, _, _ := newResolver(t, nil)

	_, err := r.Register(context.Background(), "hr-1", params.Type("bonus"), 25, decimal.NewFromInt(-1), now)

	var verrs generic.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.ElementsMatch(t, []string{"type", "year", "value"}, verrs.Fields())
}

func TestRegister_RejectsDuplicateYear(t *testing.T) {
	r, _, _ := newResolver(t, nil)
	register(t, r, params.MinimumWage, 2025, "1423500")

	_, err := r.Register(context.Background(), "hr-1", params.MinimumWage, 2025, decimal.NewFromInt(1), now)

	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "year", verr.Field)
}

func TestRegister_RecordsAudit(t *testing.T) {
	r, store, _ := newResolver(t, nil)
	p := register(t, r, params.MinimumWage, 2025, "1423500")

	entries, err := store.QueryAudit(context.Background(), generic.AuditFilter{EntityID: &p.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, generic.AuditParameterRegistered, entries[0].Action)
	assert.Equal(t, generic.Actor("hr-1"), entries[0].Actor)
	assert.Equal(t, "1423500", entries[0].Payload["value"])
}

func TestArchive_FreesYearForCorrection(t *testing.T) {
	// GIVEN: a wrong value registered for 2025
	r, _, _ := newResolver(t, nil)
	wrong := register(t, r, params.MinimumWage, 2025, "1400000")

	// WHEN: it is archived and the right value registered
	require.NoError(t, r.Archive(context.Background(), "hr-1", wrong.ID, now))
	register(t, r, params.MinimumWage, 2025, "1423500")

	// THEN: resolution uses the correction
	res, err := r.Resolve(context.Background(), params.MinimumWage, 2025)
	require.NoError(t, err)
	assert.True(t, res.Value.Equal(decimal.RequireFromString("1423500")))

	list, err := r.List(context.Background(), params.MinimumWage)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestArchive_Twice(t *testing.T) {
	r, _, _ := newResolver(t, nil)
	p := register(t, r, params.MinimumWage, 2025, "1423500")
	require.NoError(t, r.Archive(context.Background(), "hr-1", p.ID, now))

	err := r.Archive(context.Background(), "hr-1", p.ID, now)

	require.ErrorIs(t, err, generic.ErrStaleState)
}

func TestArchive_Unknown(t *testing.T) {
	r, _, _ := newResolver(t, nil)

	err := r.Archive(context.Background(), "hr-1", "missing", now)

	require.ErrorIs(t, err, generic.ErrNotFound)
}
