/*
Package factory provides JSON to Go engine policy conversion.

PURPOSE:
  Converts a JSON engine policy into the thresholds, tenure limits and
  parameter defaults the services are built with. Legal constants change by
  regulation, not by release, so they live in a file HR can edit and the
  factory turns into the proper Go structs.

JSON SCHEMA:
  {
    "id": "co-2025",
    "name": "Colombia labor rules",
    "validity": {
      "critical_days": 35,
      "warning_days": 45
    },
    "tenure": {
      "max_years": "4",
      "max_periods": 0
    },
    "parameter_defaults": {
      "minimum_wage": "1423500",
      "transport_subsidy": "200000"
    }
  }

  Every section is optional. Missing values fall back to DefaultPolicy().
  Amounts are strings so they parse exactly into decimal.Decimal.

USAGE:
  f := factory.NewPolicyFactory()

  policy, err := f.LoadFile("policy.json")   // "" returns the defaults
  policy, err := f.ParsePolicy(jsonString)

  svc := fixedterm.NewService(store, policy.Tenure, audit, log)

SEE ALSO:
  - contract/validity.go: Thresholds
  - fixedterm/ledger.go: TenurePolicy
  - params/types.go: Defaults
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/warp/contract-engine/contract"
	"github.com/warp/contract-engine/fixedterm"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/params"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of an engine policy.
type PolicyJSON struct {
	ID                string            `json:"id,omitempty"`
	Name              string            `json:"name,omitempty"`
	Validity          *ValidityJSON     `json:"validity,omitempty"`
	Tenure            *TenureJSON       `json:"tenure,omitempty"`
	ParameterDefaults map[string]string `json:"parameter_defaults,omitempty"`
}

// ValidityJSON represents the expiry badge thresholds.
type ValidityJSON struct {
	CriticalDays *int `json:"critical_days,omitempty"`
	WarningDays  *int `json:"warning_days,omitempty"`
}

// TenureJSON represents the fixed-term tenure limits.
type TenureJSON struct {
	MaxYears   string `json:"max_years,omitempty"`
	MaxPeriods *int   `json:"max_periods,omitempty"` // 0 disables the period cap
}

// =============================================================================
// POLICY
// =============================================================================

// Policy is the parsed engine configuration.
type Policy struct {
	ID                string
	Name              string
	Validity          contract.Thresholds
	Tenure            fixedterm.TenurePolicy
	ParameterDefaults params.Defaults
}

// DefaultPolicy returns the rules the engine runs with when no file is given.
// No parameter defaults are set: a year without registered values is an
// error until someone registers them.
func DefaultPolicy() Policy {
	return Policy{
		ID:                "default",
		Name:              "Built-in defaults",
		Validity:          contract.DefaultThresholds(),
		Tenure:            fixedterm.DefaultTenurePolicy(),
		ParameterDefaults: params.Defaults{},
	}
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to Go structs.
type PolicyFactory struct{}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// LoadFile reads and parses a policy file. An empty path yields DefaultPolicy.
func (f *PolicyFactory) LoadFile(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	return f.ParsePolicy(string(raw))
}

// ParsePolicy parses a JSON string into a Policy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PolicyJSON to a Policy, filling gaps from DefaultPolicy.
// Every invalid value is reported at once.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (Policy, error) {
	policy := DefaultPolicy()
	if pj.ID != "" {
		policy.ID = pj.ID
	}
	if pj.Name != "" {
		policy.Name = pj.Name
	}

	var verrs generic.ValidationErrors

	if v := pj.Validity; v != nil {
		if v.CriticalDays != nil {
			policy.Validity.CriticalDays = *v.CriticalDays
		}
		if v.WarningDays != nil {
			policy.Validity.WarningDays = *v.WarningDays
		}
	}
	if policy.Validity.CriticalDays <= 0 {
		verrs.Add("validity.critical_days", "must be positive")
	}
	if policy.Validity.WarningDays <= policy.Validity.CriticalDays {
		verrs.Add("validity.warning_days", "must be greater than critical_days")
	}

	if t := pj.Tenure; t != nil {
		if t.MaxYears != "" {
			years, err := decimal.NewFromString(t.MaxYears)
			if err != nil || !years.IsPositive() {
				verrs.Add("tenure.max_years", fmt.Sprintf("invalid number of years %q", t.MaxYears))
			} else {
				policy.Tenure.MaxYears = years
			}
		}
		if t.MaxPeriods != nil {
			if *t.MaxPeriods < 0 {
				verrs.Add("tenure.max_periods", "must not be negative")
			} else {
				policy.Tenure.MaxPeriods = *t.MaxPeriods
			}
		}
	}

	for name, raw := range pj.ParameterDefaults {
		field := "parameter_defaults." + name
		t := params.Type(name)
		if !t.Valid() {
			verrs.Add(field, "unknown parameter type")
			continue
		}
		value, err := decimal.NewFromString(raw)
		if err != nil || value.IsNegative() {
			verrs.Add(field, fmt.Sprintf("invalid amount %q", raw))
			continue
		}
		policy.ParameterDefaults[t] = value
	}

	if err := verrs.Err(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// ToJSON converts a Policy to PolicyJSON.
func (f *PolicyFactory) ToJSON(policy Policy) PolicyJSON {
	critical := policy.Validity.CriticalDays
	warning := policy.Validity.WarningDays
	maxPeriods := policy.Tenure.MaxPeriods

	pj := PolicyJSON{
		ID:   policy.ID,
		Name: policy.Name,
		Validity: &ValidityJSON{
			CriticalDays: &critical,
			WarningDays:  &warning,
		},
		Tenure: &TenureJSON{
			MaxYears:   policy.Tenure.MaxYears.String(),
			MaxPeriods: &maxPeriods,
		},
	}

	if len(policy.ParameterDefaults) > 0 {
		pj.ParameterDefaults = make(map[string]string, len(policy.ParameterDefaults))
		for t, v := range policy.ParameterDefaults {
			pj.ParameterDefaults[string(t)] = v.String()
		}
	}

	return pj
}
