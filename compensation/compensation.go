/*
Package compensation derives pay figures from a contract's salary and allowances.

RULES:
  - Transport subsidy is paid when salary <= 2 x minimum wage, else zero.
    It is derived, never user input, and is recomputed whenever salary,
    minimum wage or the subsidy amount changes.
  - Total remuneration = salary + sum(allowance amounts). The transport
    subsidy is a pass-through benefit and is excluded.

  The year-scoped minimum wage and subsidy come from params.Resolver, keyed by
  the calendar year of the contract start date (see calculator.go).
*/
package compensation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/contract-engine/generic"
)

// Category tags an allowance as part of the salary base or not.
type Category string

const (
	Salarial    Category = "salarial"
	NonSalarial Category = "non_salarial"
)

func (c Category) Valid() bool {
	return c == Salarial || c == NonSalarial
}

// Allowance is one ad-hoc pay item on top of the base salary.
type Allowance struct {
	Category    Category
	Description string
	Amount      generic.Money
}

// TransportSubsidy returns subsidy when salary is at most twice the minimum
// wage, and zero in the salary's currency otherwise.
func TransportSubsidy(salary, minimumWage, subsidy generic.Money) generic.Money {
	threshold := minimumWage.Amount.Mul(decimal.NewFromInt(2))
	if salary.Amount.LessThanOrEqual(threshold) {
		return subsidy
	}
	return generic.ZeroMoney(salary.Currency)
}

// TotalRemuneration sums salary and allowances. Every amount must be
// non-negative and in the salary's currency.
func TotalRemuneration(salary generic.Money, allowances []Allowance) (generic.Money, error) {
	if err := validate(salary, allowances); err != nil {
		return generic.Money{}, err
	}
	total := salary
	for _, a := range allowances {
		total = total.Add(a.Amount)
	}
	return total, nil
}

// Breakdown splits allowances by category.
type Breakdown struct {
	Salary      generic.Money
	Salarial    generic.Money
	NonSalarial generic.Money
	Total       generic.Money
}

// Summarize returns the category breakdown and the total remuneration.
func Summarize(salary generic.Money, allowances []Allowance) (Breakdown, error) {
	if err := validate(salary, allowances); err != nil {
		return Breakdown{}, err
	}
	b := Breakdown{
		Salary:      salary,
		Salarial:    generic.ZeroMoney(salary.Currency),
		NonSalarial: generic.ZeroMoney(salary.Currency),
	}
	for _, a := range allowances {
		if a.Category == Salarial {
			b.Salarial = b.Salarial.Add(a.Amount)
		} else {
			b.NonSalarial = b.NonSalarial.Add(a.Amount)
		}
	}
	b.Total = salary.Add(b.Salarial).Add(b.NonSalarial)
	return b, nil
}

func validate(salary generic.Money, allowances []Allowance) error {
	var verrs generic.ValidationErrors
	if salary.IsNegative() {
		verrs.Add("base_salary", "must not be negative")
	}
	for i, a := range allowances {
		field := fmt.Sprintf("allowances[%d]", i)
		if !a.Category.Valid() {
			verrs.Add(field+".category", fmt.Sprintf("unknown category %q", a.Category))
		}
		if a.Amount.IsNegative() {
			verrs.Add(field+".amount", "must not be negative")
		}
		if !a.Amount.SameCurrency(salary) {
			verrs.Add(field+".currency",
				fmt.Sprintf("must be %s like the base salary, got %s", salary.Currency, a.Amount.Currency))
		}
	}
	return verrs.Err()
}
