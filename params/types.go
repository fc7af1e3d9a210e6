/*
Package params resolves year-scoped economic constants.

PURPOSE:
  Pay figures depend on values set once per calendar year by regulation
  (minimum wage, transport-subsidy amount). This package stores them as
  AnnualParameter rows and answers "which value applies to year Y".

RESOLUTION ORDER:
  1. exact:      a non-archived row for (type, Y)
  2. prior_year: the most recent non-archived row with year < Y
  3. default:    the configured default for the type
  Nothing found -> *generic.NotFoundError

  A fallback is never hidden: the Resolution says where the value came from,
  and the resolver logs and counts it.

SEE ALSO:
  - compensation/calculator.go: the consumer
  - factory/policy.go: where Defaults come from
*/
package params

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/contract-engine/generic"
)

// Type names an annual parameter.
type Type string

const (
	MinimumWage      Type = "minimum_wage"
	TransportSubsidy Type = "transport_subsidy"
)

func (t Type) Valid() bool {
	switch t {
	case MinimumWage, TransportSubsidy:
		return true
	}
	return false
}

// AnnualParameter is one year-scoped value. (Type, Year) is unique among
// non-archived rows.
type AnnualParameter struct {
	ID        string
	Type      Type
	Year      int
	Value     decimal.Decimal
	Archived  bool
	CreatedBy generic.Actor
	CreatedAt time.Time
}

// Source tells where a resolved value came from.
type Source string

const (
	SourceExact     Source = "exact"
	SourcePriorYear Source = "prior_year"
	SourceDefault   Source = "default"
)

// Resolution is the answer to "value of Type for RequestedYear".
// Year is the year the value actually belongs to (0 for defaults).
type Resolution struct {
	Type          Type
	RequestedYear int
	Year          int
	Value         decimal.Decimal
	Source        Source
}

// IsFallback reports whether the value did not come from the requested year.
func (r Resolution) IsFallback() bool { return r.Source != SourceExact }

func (r Resolution) String() string {
	switch r.Source {
	case SourcePriorYear:
		return fmt.Sprintf("%s %d: %s (from %d)", r.Type, r.RequestedYear, r.Value, r.Year)
	case SourceDefault:
		return fmt.Sprintf("%s %d: %s (default)", r.Type, r.RequestedYear, r.Value)
	}
	return fmt.Sprintf("%s %d: %s", r.Type, r.RequestedYear, r.Value)
}

// Defaults holds the documented last-resort value per type.
type Defaults map[Type]decimal.Decimal

// Store persists annual parameters.
type Store interface {
	// ListParameters returns the non-archived rows of a type (all types when
	// t is empty), in any order.
	ListParameters(ctx context.Context, t Type) ([]AnnualParameter, error)
	GetParameter(ctx context.Context, id string) (*AnnualParameter, error)
	InsertParameter(ctx context.Context, p AnnualParameter) error
	ArchiveParameter(ctx context.Context, id string) error
}
