/*
store.go - Audit log contract shared by every mutating operation

PURPOSE:
  The engine never authenticates anyone, but it records who did what.
  Every mutating service operation (approve, annul, archive, benefit
  assign/change/close, period append/remove/replace, parameter registration)
  appends one AuditEntry attributed to the acting user.

  Domain persistence interfaces live next to the code that uses them
  (contract.Store, fixedterm.Store, benefit.Store, params.Store). This file
  only holds the cross-cutting audit contract.

APPEND-ONLY CONTRACT:
  AuditLog has no Update or Delete. Entries are facts about the past.

IMPLEMENTATIONS:
  - store/sqlite: audit_log table
  - store/postgres: audit_log table
  - store/memory: slice, for tests and development

SEE ALSO:
  - contract/service.go, benefit/resolver.go, fixedterm/service.go, params/resolver.go
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// AUDIT LOG - Tracks who did what when
// =============================================================================

// AuditEntry records who did what when.
type AuditEntry struct {
	ID         string
	Timestamp  time.Time
	Actor      Actor
	Action     AuditAction
	EntityType string // contract, benefit_assignment, annual_parameter
	EntityID   string
	Payload    map[string]any // action-specific data
}

type AuditAction string

const (
	AuditContractCreated     AuditAction = "contract_created"
	AuditContractUpdated     AuditAction = "contract_updated"
	AuditContractApproved    AuditAction = "contract_approved"
	AuditContractReopened    AuditAction = "contract_reopened"
	AuditContractAnnulled    AuditAction = "contract_annulled"
	AuditContractArchived    AuditAction = "contract_archived"
	AuditContractUnarchived  AuditAction = "contract_unarchived"
	AuditBenefitAssigned     AuditAction = "benefit_assigned"
	AuditBenefitChanged      AuditAction = "benefit_changed"
	AuditBenefitClosed       AuditAction = "benefit_closed"
	AuditPeriodAppended      AuditAction = "period_appended"
	AuditPeriodRemoved       AuditAction = "period_removed"
	AuditCurrentPeriodSet    AuditAction = "current_period_replaced"
	AuditParameterRegistered AuditAction = "parameter_registered"
	AuditParameterArchived   AuditAction = "parameter_archived"
)

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	EntityID *string
	Actor    *Actor
	Actions  []AuditAction
	From     *time.Time
	To       *time.Time
}

// Matches reports whether an entry passes the filter. Stores that cannot push
// a filter down to their query language apply it with this.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.EntityID != nil && e.EntityID != *f.EntityID {
		return false
	}
	if f.Actor != nil && e.Actor != *f.Actor {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if a == e.Action {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// NopAuditLog discards entries. Used when a service is built without a log.
type NopAuditLog struct{}

func (NopAuditLog) AppendAudit(context.Context, AuditEntry) error { return nil }
func (NopAuditLog) QueryAudit(context.Context, AuditFilter) ([]AuditEntry, error) {
	return nil, nil
}
