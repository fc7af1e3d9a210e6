/*
Package contract holds the employment contract record and its lifecycle rules.

PURPOSE:
  A contract flows through, in order:
    1. Approval lock check      (approval.go)
    2. Validity badge           (validity.go)
    3. Tenure summary           (fixedterm, fixed-term contracts only)
    4. Benefit provider lookups (benefit, keyed by employer, location and date)
    5. Pay figures              (compensation, fed by params)
    6. Onboarding completeness  (onboarding.go)
  Service.Evaluate runs that pipeline against the latest stored snapshot.
  Nothing is cached: every evaluation is recomputed.

LIFECYCLE:
  draft ──approve──► approved
    ▲                    │
    └──reopen (admin)────┘
  archived_at is an orthogonal one-way side state (archive or annul);
  only an administrative unarchive clears it.

  Drafts may be saved with partial data any number of times. Approval is the
  only point where completeness is enforced. An approved contract rejects
  every operation except read, archive and annul (StaleStateError).

SEE ALSO:
  - service.go: persistence-facing operations and Evaluate
  - generic/errors.go: error taxonomy
*/
package contract

import (
	"context"
	"time"

	"github.com/warp/contract-engine/compensation"
	"github.com/warp/contract-engine/generic"
)

// Type is the legal form of the contract.
type Type string

const (
	TypeIndefinite             Type = "indefinite"
	TypeFixedTerm              Type = "fixed_term"
	TypePerTask                Type = "per_task"
	TypeInternship             Type = "internship"
	TypeInstitutionalAgreement Type = "institutional_agreement"
)

func (t Type) Valid() bool {
	switch t {
	case TypeIndefinite, TypeFixedTerm, TypePerTask, TypeInternship, TypeInstitutionalAgreement:
		return true
	}
	return false
}

type ApprovalStatus string

const (
	StatusDraft    ApprovalStatus = "draft"
	StatusApproved ApprovalStatus = "approved"
)

// Document identifies the employee. (Type, Number) is unique among
// non-archived contracts.
type Document struct {
	Type   string
	Number string
}

func (d Document) IsZero() bool { return d.Type == "" && d.Number == "" }

func (d Document) String() string { return d.Type + " " + d.Number }

// Contract is one employment record.
type Contract struct {
	ID       string
	Document Document

	// CompanyID is the client company, also the employer for benefit lookups.
	CompanyID  string
	LocationID string

	Type      Type
	StartDate generic.Date
	EndDate   *generic.Date // nil only for indefinite contracts

	ApprovalStatus ApprovalStatus
	ApprovedBy     generic.Actor
	ApprovedAt     *time.Time

	ArchivedAt      *time.Time
	AnnulmentReason string

	BaseSalary       generic.Money
	TransportSubsidy generic.Money // derived
	Allowances       []compensation.Allowance

	Onboarding Onboarding

	CreatedBy generic.Actor
	UpdatedBy generic.Actor
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Contract) IsApproved() bool { return c.ApprovalStatus == StatusApproved }
func (c *Contract) IsArchived() bool { return c.ArchivedAt != nil }

// State is the lock state reported in errors.
func (c *Contract) State() string {
	if c.IsArchived() {
		return "archived"
	}
	return string(c.ApprovalStatus)
}

// =============================================================================
// STORE
// =============================================================================

type ListFilter struct {
	CompanyID       string
	Document        *Document
	IncludeArchived bool
}

// Store persists contracts.
type Store interface {
	GetContract(ctx context.Context, id string) (*Contract, error)
	ListContracts(ctx context.Context, filter ListFilter) ([]Contract, error)
	InsertContract(ctx context.Context, c Contract) error
	UpdateContract(ctx context.Context, c Contract) error
}
