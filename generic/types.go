/*
Package generic provides the domain-agnostic primitives of the contract engine.

PURPOSE:
  Every component of the engine reasons about calendar days, validity windows
  and money. This package holds those shared building blocks so that the
  domain packages (contract, fixedterm, benefit, params, compensation) agree on
  one representation and one error taxonomy.

KEY CONCEPTS:
  - Date:   A calendar day (UTC, day precision). "Today" is always injected.
  - Span:   Closed interval of days, used by fixed-term periods
  - Window: Validity window with optional end, used by benefit assignments
  - Money:  Decimal amount with a currency (never float64)
  - Actor:  Who invoked a mutating operation (recorded, never authenticated)

DESIGN PRINCIPLES:
  1. Determinism: No function in this package reads the clock
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Dates and money are distinct types, not strings and floats
  4. Structured failures: every rejected operation returns a typed error
     (errors.go) that maps 1:1 to a form-field message

USAGE:
  start := generic.NewDate(2024, time.January, 1)
  end := generic.NewDate(2024, time.December, 31)
  span := generic.Span{Start: start, End: end}
  fmt.Println(span.Days()) // 366

  salary := generic.NewMoney(decimal.NewFromInt(1_300_000), generic.CurrencyCOP)

SEE ALSO:
  - time.go: Date arithmetic
  - period.go: Span and Window
  - errors.go: Error taxonomy
  - store.go: Audit log contract
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal amount with currency
// =============================================================================

type Currency string

const (
	CurrencyCOP Currency = "COP"
	CurrencyUSD Currency = "USD"
)

// DefaultCurrency is used when a record does not state one.
const DefaultCurrency = CurrencyCOP

type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

func NewMoney(amount decimal.Decimal, currency Currency) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Amount: amount, Currency: currency}
}

func NewMoneyFromInt(amount int64, currency Currency) Money {
	return NewMoney(decimal.NewFromInt(amount), currency)
}

// ZeroMoney returns zero in the given currency.
func ZeroMoney(currency Currency) Money { return NewMoney(decimal.Zero, currency) }

// MustParseDecimal parses s and panics on malformed input. For literals only.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (m Money) Add(b Money) Money        { return Money{Amount: m.Amount.Add(b.Amount), Currency: m.Currency} }
func (m Money) IsNegative() bool         { return m.Amount.IsNegative() }
func (m Money) IsZero() bool             { return m.Amount.IsZero() }
func (m Money) SameCurrency(b Money) bool { return m.Currency == b.Currency }
func (m Money) Equal(b Money) bool       { return m.SameCurrency(b) && m.Amount.Equal(b.Amount) }

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + string(m.Currency)
}

// =============================================================================
// IDENTITY
// =============================================================================

// Actor identifies the user behind a mutating operation. The engine only
// records it in created_by / updated_by style fields and the audit log.
type Actor string

// SystemActor is recorded when no user identity was supplied.
const SystemActor Actor = "system"

func (a Actor) OrSystem() Actor {
	if a == "" {
		return SystemActor
	}
	return a
}
