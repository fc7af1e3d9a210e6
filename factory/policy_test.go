package factory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contract-engine/factory"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/params"
)

func TestParsePolicy_Full(t *testing.T) {
	// GIVEN: a policy with a three-renewal cap and parameter defaults
	jsonStr := `{
		"id": "co-2025",
		"name": "Colombia labor rules",
		"validity": {"critical_days": 30, "warning_days": 60},
		"tenure": {"max_years": "4", "max_periods": 3},
		"parameter_defaults": {"minimum_wage": "1423500", "transport_subsidy": "200000"}
	}`

	// WHEN
	policy, err := factory.NewPolicyFactory().ParsePolicy(jsonStr)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, "co-2025", policy.ID)
	assert.Equal(t, 30, policy.Validity.CriticalDays)
	assert.Equal(t, 60, policy.Validity.WarningDays)
	assert.True(t, policy.Tenure.MaxYears.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, 3, policy.Tenure.MaxPeriods)
	assert.True(t, policy.ParameterDefaults[params.MinimumWage].Equal(decimal.NewFromInt(1_423_500)))
	assert.True(t, policy.ParameterDefaults[params.TransportSubsidy].Equal(decimal.NewFromInt(200_000)))
}

func TestParsePolicy_EmptyDocumentUsesDefaults(t *testing.T) {
	policy, err := factory.NewPolicyFactory().ParsePolicy(`{}`)

	require.NoError(t, err)
	assert.Equal(t, 35, policy.Validity.CriticalDays)
	assert.Equal(t, 45, policy.Validity.WarningDays)
	assert.True(t, policy.Tenure.MaxYears.Equal(decimal.NewFromInt(4)))
	assert.Zero(t, policy.Tenure.MaxPeriods)
	assert.Empty(t, policy.ParameterDefaults)
}

func TestParsePolicy_ReportsEveryInvalidValue(t *testing.T) {
	jsonStr := `{
		"validity": {"critical_days": 50, "warning_days": 45},
		"tenure": {"max_years": "soon", "max_periods": -1},
		"parameter_defaults": {"bonus": "1", "minimum_wage": "-5"}
	}`

	_, err := factory.NewPolicyFactory().ParsePolicy(jsonStr)

	var verrs generic.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.ElementsMatch(t, []string{
		"validity.warning_days",
		"tenure.max_years",
		"tenure.max_periods",
		"parameter_defaults.bonus",
		"parameter_defaults.minimum_wage",
	}, verrs.Fields())
}

func TestParsePolicy_MalformedJSON(t *testing.T) {
	_, err := factory.NewPolicyFactory().ParsePolicy(`{"validity":`)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	f := factory.NewPolicyFactory()

	policy, err := f.LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, "default", policy.ID)

	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"file","tenure":{"max_years":"3.5"}}`), 0o600))
	policy, err = f.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file", policy.ID)
	assert.Equal(t, "3.5", policy.Tenure.MaxYears.String())

	_, err = f.LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := factory.NewPolicyFactory()
	original, err := f.ParsePolicy(`{"id":"x","tenure":{"max_periods":3},"parameter_defaults":{"minimum_wage":"1300000"}}`)
	require.NoError(t, err)

	again, err := f.FromJSON(f.ToJSON(original))

	require.NoError(t, err)
	assert.Equal(t, original.Validity, again.Validity)
	assert.Equal(t, original.Tenure.MaxPeriods, again.Tenure.MaxPeriods)
	assert.True(t, original.Tenure.MaxYears.Equal(again.Tenure.MaxYears))
	assert.True(t, original.ParameterDefaults[params.MinimumWage].Equal(again.ParameterDefaults[params.MinimumWage]))
}
