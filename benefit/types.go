/*
Package benefit tracks which benefit provider an employer is registered with over time.

PURPOSE:
  Employers are registered with an insurer (employer-wide) and with a
  compensation fund (per work location). Providers change over time, so each
  registration is an Assignment with a validity window. Contracts look up the
  assignment in effect on a given date.

KEY CONCEPTS:
  Key:
    (Kind, EmployerID, LocationID). LocationID is required for compensation
    funds and forbidden for insurers, so the two shapes never mix.

  Assignment:
    One provider over [Start, End]. End == nil means open-ended.
    State is active or closed; closing sets both State and a concrete End.

INVARIANT:
  Per Key, at most one assignment is active. The resolver refuses to guess
  when the store violates this (AmbiguousAssignmentError).

CHANGE SEMANTICS:
  change(P2, d) closes the active assignment with End = d-1 and opens P2 with
  Start = d. Both writes run in one transaction when the store implements
  TxStore. Otherwise the close is written and verified first, and a failed
  open surfaces as PartialFailureError.

SEE ALSO:
  - resolver.go: the operations
  - contract/service.go: insurer and compensation-fund lookups per contract
*/
package benefit

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/contract-engine/generic"
)

// Kind discriminates the two provider shapes.
type Kind string

const (
	Insurer          Kind = "insurer"
	CompensationFund Kind = "compensation_fund"
)

func (k Kind) Valid() bool {
	return k == Insurer || k == CompensationFund
}

type State string

const (
	StateActive State = "active"
	StateClosed State = "closed"
)

// Status is the history tag shown to users.
type Status string

const (
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Key identifies the scope an assignment applies to.
type Key struct {
	Kind       Kind
	EmployerID string
	LocationID string
}

// Validate enforces the shape of each kind.
func (k Key) Validate() error {
	var verrs generic.ValidationErrors
	if !k.Kind.Valid() {
		verrs.Add("kind", fmt.Sprintf("unknown benefit kind %q", k.Kind))
	}
	if k.EmployerID == "" {
		verrs.Add("employer_id", "is required")
	}
	switch k.Kind {
	case CompensationFund:
		if k.LocationID == "" {
			verrs.Add("location_id", "is required for compensation funds")
		}
	case Insurer:
		if k.LocationID != "" {
			verrs.Add("location_id", "must be empty for insurers")
		}
	}
	return verrs.Err()
}

func (k Key) String() string {
	if k.LocationID == "" {
		return string(k.Kind) + "/" + k.EmployerID
	}
	return string(k.Kind) + "/" + k.EmployerID + "/" + k.LocationID
}

// Assignment is one employer's relationship to one provider over a window.
type Assignment struct {
	ID         string
	Kind       Kind
	EmployerID string
	LocationID string
	ProviderID string

	Start generic.Date
	End   *generic.Date // nil = open-ended
	State State

	CreatedBy generic.Actor
	UpdatedBy generic.Actor
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a Assignment) Key() Key {
	return Key{Kind: a.Kind, EmployerID: a.EmployerID, LocationID: a.LocationID}
}

func (a Assignment) Window() generic.Window {
	return generic.Window{Start: a.Start, End: a.End}
}

// InEffectOn returns true if the assignment is active and its window covers d.
func (a Assignment) InEffectOn(d generic.Date) bool {
	return a.State == StateActive && a.Window().Covers(d)
}

// HistoryEntry is an assignment tagged for display.
type HistoryEntry struct {
	Assignment
	Status Status
}

// =============================================================================
// STORE
// =============================================================================

// Store persists assignments.
type Store interface {
	// ListAssignments returns every assignment for key, in any order.
	ListAssignments(ctx context.Context, key Key) ([]Assignment, error)
	InsertAssignment(ctx context.Context, a Assignment) error
	// UpdateAssignment overwrites an existing row; missing rows are a NotFoundError.
	UpdateAssignment(ctx context.Context, a Assignment) error
}

// TxStore runs several writes atomically.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
