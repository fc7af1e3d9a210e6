package generic_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contract-engine/generic"
)

func TestMustParseDecimal(t *testing.T) {
	assert.True(t, generic.MustParseDecimal("1423500.50").Equal(decimal.RequireFromString("1423500.5")))

	assert.Panics(t, func() { generic.MustParseDecimal("1.423.500") })
	assert.Panics(t, func() { generic.MustParseDecimal("") })
}

func TestMustParseDate(t *testing.T) {
	assert.Equal(t, "2025-02-28", generic.MustParseDate("2025-02-28").String())
	assert.Panics(t, func() { generic.MustParseDate("2025-02-30") })
}

func TestMoney_Equal(t *testing.T) {
	a := generic.NewMoneyFromInt(100, generic.CurrencyCOP)

	// GIVEN: the same amount at different scales
	b := generic.NewMoney(decimal.RequireFromString("100.00"), generic.CurrencyCOP)
	require.True(t, a.Equal(b))

	// THEN: a different currency is never equal
	assert.False(t, a.Equal(generic.NewMoneyFromInt(100, "USD")))
	assert.True(t, generic.ZeroMoney(generic.CurrencyCOP).IsZero())
}
