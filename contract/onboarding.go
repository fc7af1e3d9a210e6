package contract

import (
	"math"

	"github.com/warp/contract-engine/generic"
)

// =============================================================================
// ONBOARDING TRACKS
// =============================================================================

// TrackID names one onboarding checklist item.
type TrackID string

const (
	TrackMedicalExam       TrackID = "medical_exam"
	TrackContractSignature TrackID = "contract_signature"
	TrackInsurer           TrackID = "insurer"
	TrackHealthPlan        TrackID = "health_plan"
	TrackCompensationFund  TrackID = "compensation_fund"
	TrackSeveranceFund     TrackID = "severance_fund"
	TrackPensionFund       TrackID = "pension_fund"
)

// Track describes one onboarding item. The field names are the ones reported
// in validation errors.
type Track struct {
	ID                    TrackID
	InitiatingField       string
	ReferenceField        string
	ConfirmationDateField string

	// Gated tracks only demand confirmation data once initiated.
	Gated bool
	// Required tracks must be confirmed before approval.
	Required bool
}

// Tracks is iterated in this order by every check.
var Tracks = []Track{
	{
		ID:                    TrackMedicalExam,
		InitiatingField:       "medical_exam_requested",
		ReferenceField:        "medical_exam_result",
		ConfirmationDateField: "medical_exam_date",
		Gated:                 true,
		Required:              true,
	},
	{
		ID:                    TrackContractSignature,
		InitiatingField:       "contract_sent_for_signature",
		ReferenceField:        "signed_contract_reference",
		ConfirmationDateField: "contract_signed_on",
		Required:              true,
	},
	{
		ID:                    TrackInsurer,
		InitiatingField:       "insurer_registration_requested",
		ReferenceField:        "insurer_name",
		ConfirmationDateField: "insurer_confirmed_on",
		Gated:                 true,
		Required:              true,
	},
	{
		ID:                    TrackHealthPlan,
		InitiatingField:       "health_plan_registration_requested",
		ReferenceField:        "health_plan_registration_number",
		ConfirmationDateField: "health_plan_confirmed_on",
		Gated:                 true,
		Required:              true,
	},
	{
		ID:                    TrackCompensationFund,
		InitiatingField:       "compensation_fund_registration_requested",
		ReferenceField:        "compensation_fund_registration_number",
		ConfirmationDateField: "compensation_fund_confirmed_on",
		Gated:                 true,
	},
	{
		ID:                    TrackSeveranceFund,
		InitiatingField:       "severance_fund_registration_requested",
		ReferenceField:        "severance_fund_registration_number",
		ConfirmationDateField: "severance_fund_confirmed_on",
		Gated:                 true,
	},
	{
		ID:                    TrackPensionFund,
		InitiatingField:       "pension_fund_registration_requested",
		ReferenceField:        "pension_fund_registration_number",
		ConfirmationDateField: "pension_fund_confirmed_on",
		Gated:                 true,
		Required:              true,
	},
}

// TrackByID returns the track definition, false for unknown IDs.
func TrackByID(id TrackID) (Track, bool) {
	for _, t := range Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}

// Step is the state of one track on a contract.
type Step struct {
	Initiated   bool
	Reference   string
	ConfirmedOn *generic.Date
}

func (s Step) hasReference() bool { return s.Reference != "" }
func (s Step) hasDate() bool      { return s.ConfirmedOn != nil && !s.ConfirmedOn.IsZero() }

// Completed means initiated with both confirmation values present.
func (s Step) Completed() bool {
	return s.Initiated && s.hasReference() && s.hasDate()
}

// Onboarding holds the steps of a contract. Missing tracks are zero steps.
type Onboarding map[TrackID]Step

// =============================================================================
// CHECKS
// =============================================================================

// ValidatePairs enforces "reference and confirmation date go together" on
// every track. Gated tracks that were never initiated are skipped.
func ValidatePairs(o Onboarding) generic.ValidationErrors {
	var verrs generic.ValidationErrors
	for _, t := range Tracks {
		s := o[t.ID]
		if t.Gated && !s.Initiated {
			continue
		}
		switch {
		case s.hasReference() && !s.hasDate():
			verrs.Add(t.ConfirmationDateField, "is required when "+t.ReferenceField+" is set")
		case s.hasDate() && !s.hasReference():
			verrs.Add(t.ReferenceField, "is required when "+t.ConfirmationDateField+" is set")
		}
	}
	return verrs
}

// Completeness is the approval predicate: every pair consistent and every
// required track initiated and confirmed.
func Completeness(o Onboarding) generic.ValidationErrors {
	verrs := ValidatePairs(o)
	for _, t := range Tracks {
		if !t.Required {
			continue
		}
		s := o[t.ID]
		if !s.Initiated {
			verrs.Add(t.InitiatingField, "must be completed before approval")
			continue
		}
		if !s.hasReference() && !s.hasDate() {
			verrs.Add(t.ReferenceField, "is required before approval")
			verrs.Add(t.ConfirmationDateField, "is required before approval")
		}
	}
	return verrs
}

// Progress returns round(100 * completed / tracks).
func Progress(o Onboarding) int {
	if len(Tracks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range Tracks {
		if o[t.ID].Completed() {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(Tracks))))
}
