/*
handlers.go - HTTP API handlers for the contract engine

PURPOSE:
  Exposes the contract engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the domain services.

ENDPOINTS:
  Contracts:
    GET    /api/contracts                       List contracts
    POST   /api/contracts                       Create draft
    GET    /api/contracts/{id}                  Get contract
    PUT    /api/contracts/{id}                  Update draft
    GET    /api/contracts/expiring?on=          Contracts needing action on a day
    GET    /api/contracts/{id}/evaluation?on=   Validity, tenure, providers, pay, onboarding
    GET    /api/contracts/{id}/audit            Audit trail
    POST   /api/contracts/{id}/approve|annul|archive|unarchive|reopen

  Periods (fixed-term only):
    GET    /api/contracts/{id}/periods          Ledger and tenure summary
    POST   /api/contracts/{id}/periods          Append historical period
    PUT    /api/contracts/{id}/periods/current  Replace current period
    DELETE /api/contracts/{id}/periods/{seq}    Remove last historical period

  Benefits:
    GET    /api/benefits/{kind}/{employer}/history?location=
    GET    /api/benefits/{kind}/{employer}/active?location=&on=
    POST   /api/benefits/{kind}/{employer}/assign|change|close?location=

  Parameters:
    GET    /api/parameters?type=                Registered values
    POST   /api/parameters                      Register a value
    GET    /api/parameters/{type}/{year}        Resolve with fallback
    DELETE /api/parameters/{id}                 Archive

REQUEST CONTEXT:
  - X-Actor-ID: recorded on every write and in the audit log, never checked.
  - on=YYYY-MM-DD: the evaluation day, defaulting to the injected clock.

ERROR HANDLING:
  Errors are returned as JSON ErrorResponse with a status from the
  generic error taxonomy:
  - 400: Validation errors, invalid input           (code=validation)
  - 404: Resource not found                         (code=not_found)
  - 409: Overlap, ambiguous record, locked contract (code=overlap|ambiguous|stale_state)
  - 500: Partial failure or internal error          (code=partial_failure|internal)

SECURITY NOTE:
  No authentication. The actor header is trusted as given.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - generic/errors.go: Error taxonomy
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/warp/contract-engine/benefit"
	"github.com/warp/contract-engine/contract"
	"github.com/warp/contract-engine/factory"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/params"
)

// ActorHeader carries the identity of the user behind a request.
const ActorHeader = "X-Actor-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Contracts *contract.Service
	Benefits  *benefit.Resolver
	Params    *params.Resolver
	Audit     generic.AuditLog
	Policy    factory.Policy

	// Now is the request clock; "today" is its calendar day.
	Now func() time.Time

	log zerolog.Logger
}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	Contracts *contract.Service
	Benefits  *benefit.Resolver
	Params    *params.Resolver
	Audit     generic.AuditLog
	Policy    factory.Policy
	Now       func() time.Time
	Logger    zerolog.Logger
}

// NewHandler creates a new handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Audit == nil {
		cfg.Audit = generic.NopAuditLog{}
	}
	return &Handler{
		Contracts: cfg.Contracts,
		Benefits:  cfg.Benefits,
		Params:    cfg.Params,
		Audit:     cfg.Audit,
		Policy:    cfg.Policy,
		Now:       cfg.Now,
		log:       cfg.Logger.With().Str("component", "api").Logger(),
	}
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// ListContracts returns contracts, filtered by company and document.
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := contract.ListFilter{
		CompanyID:       q.Get("company_id"),
		IncludeArchived: q.Get("include_archived") == "true",
	}
	if q.Get("document_type") != "" || q.Get("document_number") != "" {
		filter.Document = &contract.Document{Type: q.Get("document_type"), Number: q.Get("document_number")}
	}

	contracts, err := h.Contracts.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dtos := make([]ContractDTO, len(contracts))
	for i := range contracts {
		dtos[i] = toContractDTO(&contracts[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetContract returns a single contract.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	c, err := h.Contracts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c))
}

// CreateContract stores a new draft.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req ContractRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, err := req.ToContract()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := h.Contracts.Create(r.Context(), actorOf(r), in, h.Now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractDTO(c))
}

// UpdateContract replaces the editable fields of a draft.
func (h *Handler) UpdateContract(w http.ResponseWriter, r *http.Request) {
	var req ContractRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, err := req.ToContract()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := h.Contracts.Update(r.Context(), actorOf(r), chi.URLParam(r, "id"), in, h.Now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c))
}

// EvaluateContract recomputes everything derived about a contract on a day.
func (h *Handler) EvaluateContract(w http.ResponseWriter, r *http.Request) {
	today, err := h.today(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ev, err := h.Contracts.Evaluate(r.Context(), chi.URLParam(r, "id"), today)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEvaluationDTO(ev))
}

// ExpiringContracts lists contracts that are critical, about to expire or
// past their tenure cap on the requested day.
func (h *Handler) ExpiringContracts(w http.ResponseWriter, r *http.Request) {
	today, err := h.today(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	report, err := h.Contracts.Sweep(r.Context(), contract.ListFilter{CompanyID: r.URL.Query().Get("company_id")}, today)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSweepResponse(report))
}

// ContractAudit returns the audit trail of a contract.
func (h *Handler) ContractAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Contracts.Get(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	entries, err := h.Audit.QueryAudit(r.Context(), generic.AuditFilter{EntityID: &id})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditDTOs(entries))
}

// ApproveContract locks a complete draft.
func (h *Handler) ApproveContract(w http.ResponseWriter, r *http.Request) {
	c, err := h.Contracts.Approve(r.Context(), actorOf(r), chi.URLParam(r, "id"), h.Now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c))
}

// AnnulContract archives a contract with a reason.
func (h *Handler) AnnulContract(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.Contracts.Annul(r.Context(), actorOf(r), chi.URLParam(r, "id"), req.Reason, h.Now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c))
}

// ArchiveContract moves a contract out of the active set.
func (h *Handler) ArchiveContract(w http.ResponseWriter, r *http.Request) {
	c, err := h.Contracts.Archive(r.Context(), actorOf(r), chi.URLParam(r, "id"), h.Now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c))
}

// UnarchiveContract restores an archived contract.
func (h *Handler) UnarchiveContract(w http.ResponseWriter, r *http.Request) {
	c, err := h.Contracts.Unarchive(r.Context(), actorOf(r), chi.URLParam(r, "id"), h.Now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c))
}

// ReopenContract returns an approved contract to draft.
func (h *Handler) ReopenContract(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.Contracts.Reopen(r.Context(), actorOf(r), chi.URLParam(r, "id"), req.Reason, h.Now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(c))
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

// GetPeriods returns the ledger and tenure summary.
func (h *Handler) GetPeriods(w http.ResponseWriter, r *http.Request) {
	l, summary, err := h.Contracts.PeriodLedger(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerResponse(l, summary))
}

// AppendPeriod adds a historical period.
func (h *Handler) AppendPeriod(w http.ResponseWriter, r *http.Request) {
	var req AppendPeriodRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := req.ToPeriod()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	now := h.Now()

	l, err := h.Contracts.AppendPeriod(r.Context(), actorOf(r), chi.URLParam(r, "id"), p, generic.DateOf(now), now)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLedgerResponse(l, l.Summarize(h.Policy.Tenure)))
}

// ReplaceCurrentPeriod sets the current period.
func (h *Handler) ReplaceCurrentPeriod(w http.ResponseWriter, r *http.Request) {
	var req ReplaceCurrentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	start, end, kind, err := req.Parse()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	now := h.Now()

	l, derived, err := h.Contracts.ReplaceCurrentPeriod(r.Context(), actorOf(r), chi.URLParam(r, "id"), start, end, kind, generic.DateOf(now), now)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := toLedgerResponse(l, l.Summarize(h.Policy.Tenure))
	resp.StartDerived = derived
	writeJSON(w, http.StatusOK, resp)
}

// RemovePeriod deletes the last historical period.
func (h *Handler) RemovePeriod(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.Atoi(chi.URLParam(r, "seq"))
	if err != nil {
		h.fail(w, r, generic.NewValidationError("sequence", "must be an integer"))
		return
	}
	now := h.Now()

	l, err := h.Contracts.RemovePeriod(r.Context(), actorOf(r), chi.URLParam(r, "id"), seq, generic.DateOf(now), now)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerResponse(l, l.Summarize(h.Policy.Tenure)))
}

// =============================================================================
// BENEFIT HANDLERS
// =============================================================================

// BenefitHistory lists every assignment of a key, tagged active or finished.
func (h *Handler) BenefitHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Benefits.History(r.Context(), benefitKey(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryDTOs(entries))
}

// ActiveBenefit returns the provider in effect on a day. No provider is a
// 404 so clients can tell it apart from an ambiguous store.
func (h *Handler) ActiveBenefit(w http.ResponseWriter, r *http.Request) {
	today, err := h.today(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	key := benefitKey(r)

	a, err := h.Benefits.ResolveActive(r.Context(), key, today)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if a == nil {
		h.fail(w, r, &generic.NotFoundError{Entity: "active assignment", Key: key.String() + " on " + today.String()})
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(*a))
}

// AssignBenefit opens the first assignment of a key.
func (h *Handler) AssignBenefit(w http.ResponseWriter, r *http.Request) {
	var req AssignmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	effective, err := req.Effective()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	a, err := h.Benefits.Assign(r.Context(), actorOf(r), benefitKey(r), req.ProviderID, effective, h.Now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(*a))
}

// ChangeBenefit closes the active assignment and opens the new provider.
func (h *Handler) ChangeBenefit(w http.ResponseWriter, r *http.Request) {
	var req AssignmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	effective, err := req.Effective()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.Benefits.Change(r.Context(), actorOf(r), benefitKey(r), req.ProviderID, effective, h.Now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := ChangeResponse{Opened: toAssignmentDTO(res.Opened)}
	if res.Closed != nil {
		closed := toAssignmentDTO(*res.Closed)
		resp.Closed = &closed
	}
	writeJSON(w, http.StatusOK, resp)
}

// CloseBenefit ends the active assignment without a successor.
func (h *Handler) CloseBenefit(w http.ResponseWriter, r *http.Request) {
	var req AssignmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	effective, err := req.Effective()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	a, err := h.Benefits.Close(r.Context(), actorOf(r), benefitKey(r), effective, h.Now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(*a))
}

// =============================================================================
// PARAMETER HANDLERS
// =============================================================================

// ListParameters returns the registered values, optionally of one type.
func (h *Handler) ListParameters(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Params.List(r.Context(), params.Type(r.URL.Query().Get("type")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toParameterDTOs(rows))
}

// RegisterParameter stores the value of a type for a year.
func (h *Handler) RegisterParameter(w http.ResponseWriter, r *http.Request) {
	var req RegisterParameterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	value, err := req.Amount()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.Params.Register(r.Context(), actorOf(r), params.Type(req.Type), req.Year, value, h.Now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toParameterDTO(*p))
}

// ResolveParameter answers "value of type for year", fallbacks included.
func (h *Handler) ResolveParameter(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		h.fail(w, r, generic.NewValidationError("year", "must be an integer"))
		return
	}

	res, err := h.Params.Resolve(r.Context(), params.Type(chi.URLParam(r, "type")), year)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResolutionDTO(res))
}

// ArchiveParameter retires a registered value.
func (h *Handler) ArchiveParameter(w http.ResponseWriter, r *http.Request) {
	if err := h.Params.Archive(r.Context(), actorOf(r), chi.URLParam(r, "id"), h.Now()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// POLICY / HEALTH
// =============================================================================

// GetPolicy returns the engine policy the server was started with.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.NewPolicyFactory().ToJSON(h.Policy))
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	var verrs generic.ValidationErrors
	var verr *generic.ValidationError
	var perr *generic.InvalidPeriodError
	switch {
	case errors.As(err, &verrs):
		resp.Fields = verrs.ToMap()
	case errors.As(err, &verr):
		resp.Fields = map[string]string{verr.Field: verr.Reason}
	case errors.As(err, &perr) && perr.Field != "":
		resp.Fields = map[string]string{perr.Field: perr.Reason}
	}
	writeJSON(w, status, resp)
}

// fail maps err onto the error taxonomy and writes it.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("code", code).
			Msg("request failed")
	}
	writeError(w, status, code, message, err)
}

func classify(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, generic.ErrPartialFailure):
		return http.StatusInternalServerError, "partial_failure", "Operation partially applied"
	case errors.Is(err, generic.ErrValidation):
		return http.StatusBadRequest, "validation", "Validation failed"
	case errors.Is(err, generic.ErrNotFound):
		return http.StatusNotFound, "not_found", "Not found"
	case errors.Is(err, generic.ErrOverlap):
		return http.StatusConflict, "overlap", "Validity windows overlap"
	case errors.Is(err, generic.ErrAmbiguous):
		return http.StatusConflict, "ambiguous", "Ambiguous active record"
	case errors.Is(err, generic.ErrStaleState):
		return http.StatusConflict, "stale_state", "Record is locked in its current state"
	}
	return http.StatusInternalServerError, "internal", "Internal error"
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body", err)
		return false
	}
	return true
}

func actorOf(r *http.Request) generic.Actor {
	return generic.Actor(r.Header.Get(ActorHeader))
}

// today is the on= query parameter, or the clock's day.
func (h *Handler) today(r *http.Request) (generic.Date, error) {
	raw := r.URL.Query().Get("on")
	if raw == "" {
		return generic.DateOf(h.Now()), nil
	}
	d, err := generic.ParseDate(raw)
	if err != nil {
		return generic.Date{}, generic.NewValidationError("on", "must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

func benefitKey(r *http.Request) benefit.Key {
	return benefit.Key{
		Kind:       benefit.Kind(chi.URLParam(r, "kind")),
		EmployerID: chi.URLParam(r, "employer"),
		LocationID: r.URL.Query().Get("location"),
	}
}
