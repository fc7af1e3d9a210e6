package contract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/contract-engine/compensation"
	"github.com/warp/contract-engine/generic"
)

// Operation names what a caller is about to do with a contract.
type Operation string

const (
	OpRead        Operation = "read"
	OpUpdate      Operation = "update"
	OpEditPeriods Operation = "edit_periods"
	OpApprove     Operation = "approve"
	OpArchive     Operation = "archive"
	OpAnnul       Operation = "annul"
	OpUnarchive   Operation = "unarchive"
	OpReopen      Operation = "reopen"
)

// Guard returns a StaleStateError when the contract's state forbids op.
//
//	archived: read, unarchive
//	approved: read, archive, annul, reopen
//	draft:    everything except unarchive and reopen
func Guard(c *Contract, op Operation) error {
	if op == OpRead {
		return nil
	}
	allowed := false
	switch {
	case c.IsArchived():
		allowed = op == OpUnarchive
	case c.IsApproved():
		allowed = op == OpArchive || op == OpAnnul || op == OpReopen
	default:
		allowed = op != OpUnarchive && op != OpReopen
	}
	if allowed {
		return nil
	}
	return &generic.StaleStateError{
		Entity:    "contract",
		ID:        c.ID,
		State:     c.State(),
		Operation: string(op),
	}
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Approve locks a draft once every required field and onboarding track is in
// place. All violations are returned together.
func Approve(c *Contract, actor generic.Actor, now time.Time) error {
	if err := Guard(c, OpApprove); err != nil {
		return err
	}
	verrs := RequiredFields(c)
	verrs = append(verrs, Completeness(c.Onboarding)...)
	if err := verrs.Err(); err != nil {
		return err
	}

	at := now.UTC()
	c.ApprovalStatus = StatusApproved
	c.ApprovedBy = actor.OrSystem()
	c.ApprovedAt = &at
	touch(c, actor, now)
	return nil
}

// Annul archives the contract with a mandatory reason. Allowed on drafts and
// approved contracts alike.
func Annul(c *Contract, actor generic.Actor, reason string, now time.Time) error {
	if err := Guard(c, OpAnnul); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return generic.NewValidationError("annulment_reason", "is required")
	}
	at := now.UTC()
	c.ArchivedAt = &at
	c.AnnulmentReason = reason
	touch(c, actor, now)
	return nil
}

// Archive moves the contract out of active views. It cannot be archived twice.
func Archive(c *Contract, actor generic.Actor, now time.Time) error {
	if err := Guard(c, OpArchive); err != nil {
		return err
	}
	at := now.UTC()
	c.ArchivedAt = &at
	touch(c, actor, now)
	return nil
}

// Unarchive is the administrative way back from archival. The approval
// status is left as it was.
func Unarchive(c *Contract, actor generic.Actor, now time.Time) error {
	if err := Guard(c, OpUnarchive); err != nil {
		return err
	}
	c.ArchivedAt = nil
	c.AnnulmentReason = ""
	touch(c, actor, now)
	return nil
}

// Reopen is the administrative approved -> draft transition.
func Reopen(c *Contract, actor generic.Actor, reason string, now time.Time) error {
	if err := Guard(c, OpReopen); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return generic.NewValidationError("reopen_reason", "is required")
	}
	c.ApprovalStatus = StatusDraft
	c.ApprovedBy = ""
	c.ApprovedAt = nil
	touch(c, actor, now)
	return nil
}

// RequiredFields checks the core fields an approved contract must carry.
func RequiredFields(c *Contract) generic.ValidationErrors {
	var verrs generic.ValidationErrors
	if c.Document.Type == "" {
		verrs.Add("document_type", "is required")
	}
	if c.Document.Number == "" {
		verrs.Add("document_number", "is required")
	}
	if c.CompanyID == "" {
		verrs.Add("company_id", "is required")
	}
	if !c.Type.Valid() {
		verrs.Add("contract_type", fmt.Sprintf("unknown contract type %q", c.Type))
	}
	if c.StartDate.IsZero() {
		verrs.Add("start_date", "is required")
	}
	switch {
	case c.EndDate == nil && c.Type != TypeIndefinite && c.Type.Valid():
		verrs.Add("end_date", "is required unless the contract is indefinite")
	case c.EndDate != nil && !c.StartDate.IsZero() && !c.EndDate.After(c.StartDate):
		verrs.Add("end_date", "must be after the start date")
	}
	var pay generic.ValidationErrors
	if _, err := compensation.Summarize(c.BaseSalary, c.Allowances); errors.As(err, &pay) {
		verrs = append(verrs, pay...)
	}
	return verrs
}

func touch(c *Contract, actor generic.Actor, now time.Time) {
	c.UpdatedBy = actor.OrSystem()
	c.UpdatedAt = now.UTC()
}
