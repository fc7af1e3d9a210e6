/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract: dates travel as
  YYYY-MM-DD strings and amounts as decimal strings so nothing is lost to
  float rounding.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Contracts:
    ContractDTO, ContractRequest, AllowanceDTO, StepDTO, EvaluationDTO,
    TransitionRequest, SweepResponse

  Periods:
    PeriodDTO, LedgerResponse, AppendPeriodRequest, ReplaceCurrentRequest

  Benefits:
    AssignmentDTO, AssignmentRequest, ChangeResponse

  Parameters:
    ParameterDTO, RegisterParameterRequest, ResolutionDTO

VALIDATION:
  Request types convert themselves into domain values and report every
  malformed field at once as generic.ValidationErrors. Business rules stay in
  the domain packages.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON type
*/
package api

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/contract-engine/benefit"
	"github.com/warp/contract-engine/compensation"
	"github.com/warp/contract-engine/contract"
	"github.com/warp/contract-engine/fixedterm"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/params"
)

// =============================================================================
// CONTRACTS
// =============================================================================

// AllowanceDTO is one pay item on top of the base salary.
type AllowanceDTO struct {
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	Amount      string `json:"amount"`
}

// StepDTO is the state of one onboarding track.
type StepDTO struct {
	Initiated   bool    `json:"initiated"`
	Reference   string  `json:"reference,omitempty"`
	ConfirmedOn *string `json:"confirmed_on,omitempty"`
}

// ContractDTO represents a contract in API responses.
type ContractDTO struct {
	ID               string             `json:"id"`
	DocumentType     string             `json:"document_type,omitempty"`
	DocumentNumber   string             `json:"document_number,omitempty"`
	CompanyID        string             `json:"company_id,omitempty"`
	LocationID       string             `json:"location_id,omitempty"`
	Type             string             `json:"contract_type,omitempty"`
	StartDate        string             `json:"start_date,omitempty"`
	EndDate          *string            `json:"end_date,omitempty"`
	ApprovalStatus   string             `json:"approval_status"`
	ApprovedBy       string             `json:"approved_by,omitempty"`
	ApprovedAt       *string            `json:"approved_at,omitempty"`
	ArchivedAt       *string            `json:"archived_at,omitempty"`
	AnnulmentReason  string             `json:"annulment_reason,omitempty"`
	Currency         string             `json:"currency"`
	BaseSalary       string             `json:"base_salary"`
	TransportSubsidy string             `json:"transport_subsidy"`
	Allowances       []AllowanceDTO     `json:"allowances"`
	Onboarding       map[string]StepDTO `json:"onboarding"`
	CreatedBy        string             `json:"created_by"`
	UpdatedBy        string             `json:"updated_by"`
	CreatedAt        string             `json:"created_at"`
	UpdatedAt        string             `json:"updated_at"`
}

// ContractRequest is the body of create and update. Drafts accept partial
// data, so every field is optional.
type ContractRequest struct {
	DocumentType   string             `json:"document_type"`
	DocumentNumber string             `json:"document_number"`
	CompanyID      string             `json:"company_id"`
	LocationID     string             `json:"location_id"`
	Type           string             `json:"contract_type"`
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	Currency       string             `json:"currency"`
	BaseSalary     string             `json:"base_salary"`
	Allowances     []AllowanceDTO     `json:"allowances"`
	Onboarding     map[string]StepDTO `json:"onboarding"`
}

// ToContract converts the request, reporting every malformed field.
func (r ContractRequest) ToContract() (contract.Contract, error) {
	var verrs generic.ValidationErrors
	currency := generic.Currency(r.Currency)

	c := contract.Contract{
		Document:   contract.Document{Type: r.DocumentType, Number: r.DocumentNumber},
		CompanyID:  r.CompanyID,
		LocationID: r.LocationID,
		Type:       contract.Type(r.Type),
		BaseSalary: generic.ZeroMoney(currency),
		Onboarding: contract.Onboarding{},
	}

	if r.Type != "" && !c.Type.Valid() {
		verrs.Add("contract_type", fmt.Sprintf("unknown contract type %q", r.Type))
	}
	if r.StartDate != "" {
		if d, ok := parseDateField(&verrs, "start_date", r.StartDate); ok {
			c.StartDate = d
		}
	}
	if r.EndDate != "" {
		if d, ok := parseDateField(&verrs, "end_date", r.EndDate); ok {
			c.EndDate = d.Ptr()
		}
	}
	if r.BaseSalary != "" {
		if amount, ok := parseAmountField(&verrs, "base_salary", r.BaseSalary); ok {
			c.BaseSalary = generic.NewMoney(amount, currency)
		}
	}

	for i, a := range r.Allowances {
		field := fmt.Sprintf("allowances[%d]", i)
		amount, ok := parseAmountField(&verrs, field+".amount", a.Amount)
		if !ok {
			continue
		}
		c.Allowances = append(c.Allowances, compensation.Allowance{
			Category:    compensation.Category(a.Category),
			Description: a.Description,
			Amount:      generic.NewMoney(amount, currency),
		})
	}

	for id, s := range r.Onboarding {
		if _, ok := contract.TrackByID(contract.TrackID(id)); !ok {
			verrs.Add("onboarding."+id, "unknown onboarding track")
			continue
		}
		step := contract.Step{Initiated: s.Initiated, Reference: s.Reference}
		if s.ConfirmedOn != nil && *s.ConfirmedOn != "" {
			if d, ok := parseDateField(&verrs, "onboarding."+id+".confirmed_on", *s.ConfirmedOn); ok {
				step.ConfirmedOn = d.Ptr()
			}
		}
		c.Onboarding[contract.TrackID(id)] = step
	}

	if err := verrs.Err(); err != nil {
		return contract.Contract{}, err
	}
	return c, nil
}

func toContractDTO(c *contract.Contract) ContractDTO {
	dto := ContractDTO{
		ID:               c.ID,
		DocumentType:     c.Document.Type,
		DocumentNumber:   c.Document.Number,
		CompanyID:        c.CompanyID,
		LocationID:       c.LocationID,
		Type:             string(c.Type),
		StartDate:        c.StartDate.String(),
		EndDate:          datePtr(c.EndDate),
		ApprovalStatus:   string(c.ApprovalStatus),
		ApprovedBy:       string(c.ApprovedBy),
		ApprovedAt:       timePtr(c.ApprovedAt),
		ArchivedAt:       timePtr(c.ArchivedAt),
		AnnulmentReason:  c.AnnulmentReason,
		Currency:         string(c.BaseSalary.Currency),
		BaseSalary:       c.BaseSalary.Amount.String(),
		TransportSubsidy: c.TransportSubsidy.Amount.String(),
		Allowances:       make([]AllowanceDTO, 0, len(c.Allowances)),
		Onboarding:       make(map[string]StepDTO, len(c.Onboarding)),
		CreatedBy:        string(c.CreatedBy),
		UpdatedBy:        string(c.UpdatedBy),
		CreatedAt:        c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        c.UpdatedAt.Format(time.RFC3339),
	}
	if dto.Currency == "" {
		dto.Currency = string(generic.DefaultCurrency)
	}
	for _, a := range c.Allowances {
		dto.Allowances = append(dto.Allowances, AllowanceDTO{
			Category:    string(a.Category),
			Description: a.Description,
			Amount:      a.Amount.Amount.String(),
		})
	}
	for id, s := range c.Onboarding {
		dto.Onboarding[string(id)] = StepDTO{
			Initiated:   s.Initiated,
			Reference:   s.Reference,
			ConfirmedOn: datePtr(s.ConfirmedOn),
		}
	}
	return dto
}

// TransitionRequest carries the reason for annul and reopen.
type TransitionRequest struct {
	Reason string `json:"reason"`
}

// =============================================================================
// EVALUATION
// =============================================================================

// TenureDTO is the derived tenure of a fixed-term contract.
type TenureDTO struct {
	TotalPeriods     int    `json:"total_periods"`
	TotalDays        int    `json:"total_days"`
	TotalYears       string `json:"total_years"`
	NextSequence     int    `json:"next_sequence"`
	MustBeIndefinite bool   `json:"must_be_indefinite"`
}

// PayDTO holds the derived pay figures.
type PayDTO struct {
	Year               int             `json:"year"`
	MinimumWage        string          `json:"minimum_wage"`
	SubsidyAmount      string          `json:"subsidy_amount"`
	TransportSubsidy   string          `json:"transport_subsidy"`
	Salarial           string          `json:"salarial_total"`
	NonSalarial        string          `json:"non_salarial_total"`
	TotalRemuneration  string          `json:"total_remuneration"`
	ParameterFallbacks []ResolutionDTO `json:"parameter_fallbacks,omitempty"`
}

// EvaluationDTO is the full status of a contract on one day.
type EvaluationDTO struct {
	ContractID     string            `json:"contract_id"`
	On             string            `json:"on"`
	ApprovalStatus string            `json:"approval_status"`
	Locked         bool              `json:"locked"`
	Archived       bool              `json:"archived"`
	Validity       string            `json:"validity"`
	DaysRemaining  *int              `json:"days_remaining,omitempty"`
	Tenure         *TenureDTO        `json:"tenure,omitempty"`
	Insurer        *AssignmentDTO    `json:"insurer,omitempty"`
	Fund           *AssignmentDTO    `json:"compensation_fund,omitempty"`
	Pay            *PayDTO           `json:"pay,omitempty"`
	Progress       int               `json:"onboarding_progress"`
	Missing        map[string]string `json:"missing,omitempty"`
	Issues         []string          `json:"issues,omitempty"`
}

func toEvaluationDTO(ev *contract.Evaluation) EvaluationDTO {
	dto := EvaluationDTO{
		ContractID:     ev.ContractID,
		On:             ev.On.String(),
		ApprovalStatus: string(ev.ApprovalStatus),
		Locked:         ev.Locked,
		Archived:       ev.Archived,
		Validity:       string(ev.Validity),
		DaysRemaining:  ev.DaysRemaining,
		Progress:       ev.Progress,
		Issues:         ev.Issues,
	}
	if ev.Tenure != nil {
		t := toTenureDTO(*ev.Tenure)
		dto.Tenure = &t
	}
	if ev.Insurer != nil {
		a := toAssignmentDTO(*ev.Insurer)
		dto.Insurer = &a
	}
	if ev.CompensationFund != nil {
		a := toAssignmentDTO(*ev.CompensationFund)
		dto.Fund = &a
	}
	if ev.Pay != nil {
		p := ev.Pay
		dto.Pay = &PayDTO{
			Year:              p.Year,
			MinimumWage:       p.MinimumWage.Amount.String(),
			SubsidyAmount:     p.SubsidyAmount.Amount.String(),
			TransportSubsidy:  p.TransportSubsidy.Amount.String(),
			Salarial:          p.Breakdown.Salarial.Amount.String(),
			NonSalarial:       p.Breakdown.NonSalarial.Amount.String(),
			TotalRemuneration: p.Breakdown.Total.Amount.String(),
		}
		for _, fb := range p.Fallbacks {
			dto.Pay.ParameterFallbacks = append(dto.Pay.ParameterFallbacks, toResolutionDTO(fb))
		}
	}
	if len(ev.Missing) > 0 {
		dto.Missing = ev.Missing.ToMap()
	}
	return dto
}

// AttentionDTO is one contract flagged by the expiry sweep.
type AttentionDTO struct {
	ContractID       string  `json:"contract_id"`
	DocumentType     string  `json:"document_type,omitempty"`
	DocumentNumber   string  `json:"document_number,omitempty"`
	CompanyID        string  `json:"company_id,omitempty"`
	Type             string  `json:"contract_type,omitempty"`
	EndDate          *string `json:"end_date,omitempty"`
	Validity         string  `json:"validity"`
	DaysRemaining    *int    `json:"days_remaining,omitempty"`
	MustBeIndefinite bool    `json:"must_be_indefinite"`
}

// SweepResponse lists the contracts that need action on a day.
type SweepResponse struct {
	On        string         `json:"on"`
	Checked   int            `json:"checked"`
	Failed    int            `json:"failed"`
	Contracts []AttentionDTO `json:"contracts"`
}

func toSweepResponse(r *contract.SweepReport) SweepResponse {
	resp := SweepResponse{
		On:        r.On.String(),
		Checked:   r.Checked,
		Failed:    r.Failed,
		Contracts: make([]AttentionDTO, 0, len(r.Items)),
	}
	for _, it := range r.Items {
		c := it.Contract
		resp.Contracts = append(resp.Contracts, AttentionDTO{
			ContractID:       c.ID,
			DocumentType:     c.Document.Type,
			DocumentNumber:   c.Document.Number,
			CompanyID:        c.CompanyID,
			Type:             string(c.Type),
			EndDate:          datePtr(c.EndDate),
			Validity:         string(it.Validity),
			DaysRemaining:    it.DaysRemaining,
			MustBeIndefinite: it.MustBeIndefinite,
		})
	}
	return resp
}

// =============================================================================
// PERIODS
// =============================================================================

// PeriodDTO represents one fixed-term period.
type PeriodDTO struct {
	ID        string `json:"id"`
	Sequence  int    `json:"sequence"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Kind      string `json:"kind"`
	Current   bool   `json:"current"`
	Days      int    `json:"days"`
}

// LedgerResponse is the period ledger with its derived tenure.
type LedgerResponse struct {
	ContractID string      `json:"contract_id"`
	Periods    []PeriodDTO `json:"periods"`
	Summary    TenureDTO   `json:"summary"`
	// StartDerived is set when the current period's start was computed from history.
	StartDerived bool `json:"start_derived,omitempty"`
}

// AppendPeriodRequest adds one historical period.
type AppendPeriodRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Kind      string `json:"kind"`
}

func (r AppendPeriodRequest) ToPeriod() (fixedterm.Period, error) {
	var verrs generic.ValidationErrors
	start, _ := parseDateField(&verrs, "start_date", r.StartDate)
	end, _ := parseDateField(&verrs, "end_date", r.EndDate)
	kind := fixedterm.Kind(r.Kind)
	if r.Kind != "" && !kind.Valid() {
		verrs.Add("kind", fmt.Sprintf("unknown period kind %q", r.Kind))
	}
	if err := verrs.Err(); err != nil {
		return fixedterm.Period{}, err
	}
	return fixedterm.Period{Start: start, End: end, Kind: kind}, nil
}

// ReplaceCurrentRequest sets the current period. The start is ignored when
// history exists.
type ReplaceCurrentRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Kind      string `json:"kind"`
}

func (r ReplaceCurrentRequest) Parse() (start, end generic.Date, kind fixedterm.Kind, err error) {
	var verrs generic.ValidationErrors
	if r.StartDate != "" {
		start, _ = parseDateField(&verrs, "start_date", r.StartDate)
	}
	end, _ = parseDateField(&verrs, "end_date", r.EndDate)
	kind = fixedterm.Kind(r.Kind)
	if r.Kind != "" && !kind.Valid() {
		verrs.Add("kind", fmt.Sprintf("unknown period kind %q", r.Kind))
	}
	return start, end, kind, verrs.Err()
}

func toLedgerResponse(l *fixedterm.Ledger, summary fixedterm.Summary) LedgerResponse {
	resp := LedgerResponse{
		ContractID: l.ContractID,
		Periods:    []PeriodDTO{},
		Summary:    toTenureDTO(summary),
	}
	for _, p := range l.Periods() {
		resp.Periods = append(resp.Periods, PeriodDTO{
			ID:        p.ID,
			Sequence:  p.Sequence,
			StartDate: p.Start.String(),
			EndDate:   p.End.String(),
			Kind:      string(p.Kind),
			Current:   p.Current,
			Days:      p.Days(),
		})
	}
	return resp
}

func toTenureDTO(s fixedterm.Summary) TenureDTO {
	return TenureDTO{
		TotalPeriods:     s.TotalPeriods,
		TotalDays:        s.TotalDays,
		TotalYears:       s.TotalYears.StringFixed(2),
		NextSequence:     s.NextSequence,
		MustBeIndefinite: s.MustBeIndefinite,
	}
}

// =============================================================================
// BENEFITS
// =============================================================================

// AssignmentDTO represents a benefit provider assignment.
type AssignmentDTO struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"`
	EmployerID string  `json:"employer_id"`
	LocationID string  `json:"location_id,omitempty"`
	ProviderID string  `json:"provider_id"`
	StartDate  string  `json:"start_date"`
	EndDate    *string `json:"end_date,omitempty"`
	State      string  `json:"state"`
	Status     string  `json:"status,omitempty"`
	CreatedBy  string  `json:"created_by"`
	UpdatedBy  string  `json:"updated_by"`
}

// AssignmentRequest is the body of assign, change and close. Close ignores
// the provider.
type AssignmentRequest struct {
	ProviderID    string `json:"provider_id"`
	EffectiveDate string `json:"effective_date"`
}

func (r AssignmentRequest) Effective() (generic.Date, error) {
	var verrs generic.ValidationErrors
	d, _ := parseDateField(&verrs, "effective_date", r.EffectiveDate)
	return d, verrs.Err()
}

// ChangeResponse reports both halves of a provider change.
type ChangeResponse struct {
	Closed *AssignmentDTO `json:"closed,omitempty"`
	Opened AssignmentDTO  `json:"opened"`
}

func toAssignmentDTO(a benefit.Assignment) AssignmentDTO {
	return AssignmentDTO{
		ID:         a.ID,
		Kind:       string(a.Kind),
		EmployerID: a.EmployerID,
		LocationID: a.LocationID,
		ProviderID: a.ProviderID,
		StartDate:  a.Start.String(),
		EndDate:    datePtr(a.End),
		State:      string(a.State),
		CreatedBy:  string(a.CreatedBy),
		UpdatedBy:  string(a.UpdatedBy),
	}
}

func toHistoryDTOs(entries []benefit.HistoryEntry) []AssignmentDTO {
	dtos := make([]AssignmentDTO, 0, len(entries))
	for _, e := range entries {
		dto := toAssignmentDTO(e.Assignment)
		dto.Status = string(e.Status)
		dtos = append(dtos, dto)
	}
	return dtos
}

// =============================================================================
// PARAMETERS
// =============================================================================

// ParameterDTO represents a registered annual parameter.
type ParameterDTO struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Year      int    `json:"year"`
	Value     string `json:"value"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

// RegisterParameterRequest registers the value of a type for a year.
type RegisterParameterRequest struct {
	Type  string `json:"type"`
	Year  int    `json:"year"`
	Value string `json:"value"`
}

func (r RegisterParameterRequest) Amount() (decimal.Decimal, error) {
	var verrs generic.ValidationErrors
	v, _ := parseAmountField(&verrs, "value", r.Value)
	return v, verrs.Err()
}

// ResolutionDTO is the answer to "value of type for year", fallback included.
type ResolutionDTO struct {
	Type          string `json:"type"`
	RequestedYear int    `json:"requested_year"`
	Year          int    `json:"year,omitempty"`
	Value         string `json:"value"`
	Source        string `json:"source"`
	Fallback      bool   `json:"fallback"`
}

func toParameterDTOs(rows []params.AnnualParameter) []ParameterDTO {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Type != rows[j].Type {
			return rows[i].Type < rows[j].Type
		}
		return rows[i].Year < rows[j].Year
	})
	dtos := make([]ParameterDTO, 0, len(rows))
	for _, p := range rows {
		dtos = append(dtos, toParameterDTO(p))
	}
	return dtos
}

func toParameterDTO(p params.AnnualParameter) ParameterDTO {
	return ParameterDTO{
		ID:        p.ID,
		Type:      string(p.Type),
		Year:      p.Year,
		Value:     p.Value.String(),
		CreatedBy: string(p.CreatedBy),
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func toResolutionDTO(r params.Resolution) ResolutionDTO {
	return ResolutionDTO{
		Type:          string(r.Type),
		RequestedYear: r.RequestedYear,
		Year:          r.Year,
		Value:         r.Value.String(),
		Source:        string(r.Source),
		Fallback:      r.IsFallback(),
	}
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditEntryDTO represents one audit log entry.
type AuditEntryDTO struct {
	ID         string         `json:"id"`
	Timestamp  string         `json:"timestamp"`
	Actor      string         `json:"actor"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

func toAuditDTOs(entries []generic.AuditEntry) []AuditEntryDTO {
	dtos := make([]AuditEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, AuditEntryDTO{
			ID:         e.ID,
			Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
			Actor:      string(e.Actor),
			Action:     string(e.Action),
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Payload:    e.Payload,
		})
	}
	return dtos
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// FIELD PARSING
// =============================================================================

func parseDateField(verrs *generic.ValidationErrors, field, raw string) (generic.Date, bool) {
	if raw == "" {
		verrs.Add(field, "is required")
		return generic.Date{}, false
	}
	d, err := generic.ParseDate(raw)
	if err != nil {
		verrs.Add(field, "must be a date in YYYY-MM-DD format")
		return generic.Date{}, false
	}
	return d, true
}

func parseAmountField(verrs *generic.ValidationErrors, field, raw string) (decimal.Decimal, bool) {
	if raw == "" {
		verrs.Add(field, "is required")
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		verrs.Add(field, fmt.Sprintf("invalid amount %q", raw))
		return decimal.Zero, false
	}
	return v, true
}

func datePtr(d *generic.Date) *string {
	if d == nil || d.IsZero() {
		return nil
	}
	s := d.String()
	return &s
}

func timePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
