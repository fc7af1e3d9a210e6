package compensation

import (
	"context"

	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/params"
)

// ParameterSource resolves an annual parameter. *params.Resolver satisfies it.
type ParameterSource interface {
	Resolve(ctx context.Context, t params.Type, year int) (params.Resolution, error)
}

// Derivation is the full set of pay figures for a contract.
type Derivation struct {
	Year             int
	MinimumWage      generic.Money
	SubsidyAmount    generic.Money
	TransportSubsidy generic.Money
	Breakdown        Breakdown

	// Fallbacks lists every parameter that did not come from Year itself.
	Fallbacks []params.Resolution
}

// Calculator combines the pure rules with year-scoped parameters.
type Calculator struct {
	params ParameterSource
}

func NewCalculator(source ParameterSource) *Calculator {
	return &Calculator{params: source}
}

// Derive computes pay figures using the parameters of start's calendar year.
func (c *Calculator) Derive(ctx context.Context, start generic.Date, salary generic.Money, allowances []Allowance) (Derivation, error) {
	breakdown, err := Summarize(salary, allowances)
	if err != nil {
		return Derivation{}, err
	}

	year := start.Year()
	wage, err := c.params.Resolve(ctx, params.MinimumWage, year)
	if err != nil {
		return Derivation{}, err
	}
	subsidy, err := c.params.Resolve(ctx, params.TransportSubsidy, year)
	if err != nil {
		return Derivation{}, err
	}

	d := Derivation{
		Year:          year,
		MinimumWage:   generic.NewMoney(wage.Value, salary.Currency),
		SubsidyAmount: generic.NewMoney(subsidy.Value, salary.Currency),
		Breakdown:     breakdown,
	}
	d.TransportSubsidy = TransportSubsidy(salary, d.MinimumWage, d.SubsidyAmount)

	for _, res := range []params.Resolution{wage, subsidy} {
		if res.IsFallback() {
			d.Fallbacks = append(d.Fallbacks, res)
		}
	}
	return d, nil
}
