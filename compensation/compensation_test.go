package compensation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contract-engine/compensation"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/params"
)

func cop(v int64) generic.Money { return generic.NewMoneyFromInt(v, generic.CurrencyCOP) }

// =============================================================================
// TRANSPORT SUBSIDY
// =============================================================================

func TestTransportSubsidy_AtThreshold(t *testing.T) {
	minWage := cop(1_300_000)
	subsidy := cop(162_000)

	// GIVEN: salary exactly 2x minimum wage
	got := compensation.TransportSubsidy(cop(2_600_000), minWage, subsidy)

	// THEN: subsidy is paid
	assert.True(t, got.Equal(subsidy))
}

func TestTransportSubsidy_AboveThreshold(t *testing.T) {
	minWage := cop(1_300_000)
	subsidy := cop(162_000)

	got := compensation.TransportSubsidy(cop(2_600_001), minWage, subsidy)

	assert.True(t, got.IsZero())
	assert.Equal(t, generic.CurrencyCOP, got.Currency)
}

func TestTransportSubsidy_LowSalary(t *testing.T) {
	got := compensation.TransportSubsidy(cop(900_000), cop(1_300_000), cop(162_000))
	assert.True(t, got.Equal(cop(162_000)))
}

// =============================================================================
// TOTAL REMUNERATION
// =============================================================================

func TestTotalRemuneration(t *testing.T) {
	allowances := []compensation.Allowance{
		{Category: compensation.Salarial, Amount: cop(100)},
		{Category: compensation.NonSalarial, Amount: cop(50)},
	}

	total, err := compensation.TotalRemuneration(cop(1000), allowances)
	require.NoError(t, err)
	assert.True(t, total.Equal(cop(1150)))

	// Order does not matter
	reversed := []compensation.Allowance{allowances[1], allowances[0]}
	total2, err := compensation.TotalRemuneration(cop(1000), reversed)
	require.NoError(t, err)
	assert.True(t, total.Equal(total2))
}

func TestTotalRemuneration_NoAllowances(t *testing.T) {
	total, err := compensation.TotalRemuneration(cop(1000), nil)
	require.NoError(t, err)
	assert.True(t, total.Equal(cop(1000)))
}

func TestTotalRemuneration_RejectsNegativeAndMixedCurrency(t *testing.T) {
	allowances := []compensation.Allowance{
		{Category: compensation.Salarial, Amount: cop(-1)},
		{Category: compensation.NonSalarial, Amount: generic.NewMoneyFromInt(10, generic.CurrencyUSD)},
	}

	_, err := compensation.TotalRemuneration(cop(1000), allowances)
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrValidation))

	var verrs generic.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, []string{"allowances[0].amount", "allowances[1].currency"}, verrs.Fields())
}

func TestSummarize_SplitsCategories(t *testing.T) {
	allowances := []compensation.Allowance{
		{Category: compensation.Salarial, Amount: cop(100)},
		{Category: compensation.Salarial, Amount: cop(20)},
		{Category: compensation.NonSalarial, Amount: cop(50)},
	}

	b, err := compensation.Summarize(cop(1000), allowances)
	require.NoError(t, err)
	assert.True(t, b.Salarial.Equal(cop(120)))
	assert.True(t, b.NonSalarial.Equal(cop(50)))
	assert.True(t, b.Total.Equal(cop(1170)))
}

// =============================================================================
// CALCULATOR
// =============================================================================

type fakeParams map[params.Type]params.Resolution

func (f fakeParams) Resolve(_ context.Context, t params.Type, year int) (params.Resolution, error) {
	r, ok := f[t]
	if !ok {
		return params.Resolution{}, &generic.NotFoundError{Entity: "annual parameter", Key: string(t)}
	}
	r.RequestedYear = year
	return r, nil
}

func TestCalculator_Derive(t *testing.T) {
	source := fakeParams{
		params.MinimumWage:      {Type: params.MinimumWage, Year: 2024, Value: decimal.NewFromInt(1_300_000), Source: params.SourceExact},
		params.TransportSubsidy: {Type: params.TransportSubsidy, Year: 2023, Value: decimal.NewFromInt(140_606), Source: params.SourcePriorYear},
	}
	calc := compensation.NewCalculator(source)

	d, err := calc.Derive(context.Background(), generic.MustParseDate("2024-03-01"), cop(2_000_000), nil)
	require.NoError(t, err)

	assert.Equal(t, 2024, d.Year)
	assert.True(t, d.TransportSubsidy.Equal(cop(140_606)))
	assert.True(t, d.Breakdown.Total.Equal(cop(2_000_000)))

	// THEN: the prior-year subsidy is surfaced, the exact wage is not
	require.Len(t, d.Fallbacks, 1)
	assert.Equal(t, params.TransportSubsidy, d.Fallbacks[0].Type)
	assert.Equal(t, 2023, d.Fallbacks[0].Year)
}

func TestCalculator_MissingParameter(t *testing.T) {
	calc := compensation.NewCalculator(fakeParams{})

	_, err := calc.Derive(context.Background(), generic.MustParseDate("2024-03-01"), cop(1), nil)
	assert.True(t, generic.IsNotFound(err))
}
