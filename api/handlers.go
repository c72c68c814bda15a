/*
handlers.go - HTTP API handlers for the funding allocation engine

PURPOSE:
  Exposes the funding engine via REST API. Handles HTTP request/response,
  JSON serialization, input validation, and delegates to domain logic.

ENDPOINTS:
  Employments:
    GET    /api/employments                       List all employments
    POST   /api/employments                       Create employment
    GET    /api/employments/{id}                  Get employment details
    PUT    /api/employments/{id}                  Update employment
    GET    /api/employments/{id}/calculate        Preview one allocation amount
    GET    /api/employments/{id}/allocations      Get allocation set
    PUT    /api/employments/{id}/allocations      Replace allocation set
    POST   /api/employments/{id}/complete-probation  Manual transition trigger
    GET    /api/employments/{id}/history          Audit trail

  Admin:
    POST   /api/admin/sweep                       Run the daily sweep now
    GET    /api/sweeps/runs                       Sweep run history
    POST   /api/admin/reset                       Database reset (dev only)

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store:     Database access (also sweep-run persistence)
  - Service:   Allocation calculation and replacement
  - Processor: Probation transitions and the sweep

ERROR HANDLING:
  Domain errors map to HTTP status by classification:
  - 400: Validation errors, invalid input (funding.IsClientError)
  - 404: Employment not found (funding.IsNotFound)
  - 409: Conflict, already processed (funding.IsConflict)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - funding/service.go: Domain operations
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/funding-engine/funding"
	"github.com/warp/funding-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Service   *funding.Service
	Processor *funding.Processor

	validate *validator.Validate
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, settings funding.Settings) *Handler {
	return &Handler{
		Store:     store,
		Service:   funding.NewService(store, settings),
		Processor: funding.NewProcessor(store, settings),
		validate:  validator.New(),
	}
}

// =============================================================================
// EMPLOYMENT HANDLERS
// =============================================================================

// ListEmployments returns all employments.
func (h *Handler) ListEmployments(w http.ResponseWriter, r *http.Request) {
	employments, err := h.Store.ListEmployments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employments", err)
		return
	}

	asOf := h.Service.Now()
	dtos := make([]EmploymentDTO, len(employments))
	for i, e := range employments {
		dtos[i] = toEmploymentDTO(e, asOf)
	}

	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployment returns a single employment.
func (h *Handler) GetEmployment(w http.ResponseWriter, r *http.Request) {
	id := funding.EmploymentID(chi.URLParam(r, "id"))

	emp, err := h.Store.GetEmployment(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get employment", err)
		return
	}

	writeJSON(w, http.StatusOK, toEmploymentDTO(*emp, h.Service.Now()))
}

// CreateEmployment creates a new employment record.
func (h *Handler) CreateEmployment(w http.ResponseWriter, r *http.Request) {
	var req CreateEmploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	emp, err := employmentFromRequest(req.ID, req.EmployeeID, req.StartDate,
		req.ProbationEndDate, req.ProbationSalary, req.PostProbationSalary,
		req.HealthBenefit, req.PensionBenefit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid employment fields", err)
		return
	}

	created, err := h.Service.CreateEmployment(r.Context(), emp)
	if err != nil {
		writeDomainError(w, "Failed to create employment", err)
		return
	}

	writeJSON(w, http.StatusCreated, toEmploymentDTO(*created, h.Service.Now()))
}

// UpdateEmployment updates salary figures and dates for an employment.
func (h *Handler) UpdateEmployment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateEmploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	emp, err := employmentFromRequest(id, req.EmployeeID, req.StartDate,
		req.ProbationEndDate, req.ProbationSalary, req.PostProbationSalary,
		req.HealthBenefit, req.PensionBenefit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid employment fields", err)
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "employment updated"
	}

	updated, err := h.Service.UpdateEmployment(r.Context(), emp, reason)
	if err != nil {
		writeDomainError(w, "Failed to update employment", err)
		return
	}

	writeJSON(w, http.StatusOK, toEmploymentDTO(*updated, h.Service.Now()))
}

// =============================================================================
// CALCULATION HANDLERS
// =============================================================================

// CalculateAllocation previews the amount for one FTE share without writing
// anything. GET /api/employments/{id}/calculate?fte=60&as_of=2025-03-01
func (h *Handler) CalculateAllocation(w http.ResponseWriter, r *http.Request) {
	id := funding.EmploymentID(chi.URLParam(r, "id"))

	fteParam := r.URL.Query().Get("fte")
	if fteParam == "" {
		writeError(w, http.StatusBadRequest, "Query parameter 'fte' is required", nil)
		return
	}
	fte, err := decimal.NewFromString(fteParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'fte' value", err)
		return
	}

	var asOf *funding.Date
	if s := r.URL.Query().Get("as_of"); s != "" {
		d, err := funding.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'as_of' date (use YYYY-MM-DD)", err)
			return
		}
		asOf = &d
	}

	result, err := h.Service.CalculateAllocation(r.Context(), id, fte, asOf)
	if err != nil {
		writeDomainError(w, "Failed to calculate allocation", err)
		return
	}

	effective := h.Service.Now()
	if asOf != nil {
		effective = *asOf
	}

	writeJSON(w, http.StatusOK, CalculationDTO{
		EmploymentID: string(id),
		FTEPercent:   funding.FormatAmount(fte),
		AsOf:         effective.String(),
		Basis:        string(result.Basis),
		BaseSalary:   funding.FormatAmount(result.BaseSalary),
		Amount:       funding.FormatAmount(result.Amount),
		Formula:      result.Formula,
	})
}

// =============================================================================
// ALLOCATION HANDLERS
// =============================================================================

// GetAllocations returns the employment's current allocation set.
func (h *Handler) GetAllocations(w http.ResponseWriter, r *http.Request) {
	id := funding.EmploymentID(chi.URLParam(r, "id"))

	// 404 on unknown employment rather than an empty list.
	if _, err := h.Store.GetEmployment(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to get employment", err)
		return
	}

	allocs, err := h.Store.GetAllocations(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get allocations", err)
		return
	}

	dtos := make([]AllocationDTO, len(allocs))
	for i, a := range allocs {
		dtos[i] = toAllocationDTO(a)
	}

	writeJSON(w, http.StatusOK, dtos)
}

// ReplaceAllocations validates a proposed set and atomically replaces the
// employment's allocations. PUT /api/employments/{id}/allocations
func (h *Handler) ReplaceAllocations(w http.ResponseWriter, r *http.Request) {
	id := funding.EmploymentID(chi.URLParam(r, "id"))

	var req ReplaceAllocationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	reqs := make([]funding.AllocationRequest, len(req.Allocations))
	for i, item := range req.Allocations {
		fte, err := decimal.NewFromString(item.FTEPercent)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid fte_percent value", err)
			return
		}
		reqs[i] = funding.AllocationRequest{
			Source:     sourceFromDTO(item.Source),
			FTEPercent: fte,
		}
	}

	allocs, err := h.Service.ReplaceAllocations(r.Context(), id, reqs)
	if err != nil {
		writeDomainError(w, "Failed to replace allocations", err)
		return
	}

	dtos := make([]AllocationDTO, len(allocs))
	for i, a := range allocs {
		dtos[i] = toAllocationDTO(a)
	}

	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TRANSITION HANDLERS
// =============================================================================

// CompleteProbation manually triggers the probation transition.
// POST /api/employments/{id}/complete-probation
func (h *Handler) CompleteProbation(w http.ResponseWriter, r *http.Request) {
	id := funding.EmploymentID(chi.URLParam(r, "id"))

	result, err := h.Processor.CompleteProbation(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to complete probation", err)
		return
	}

	dtos := make([]AllocationDTO, len(result.Updated))
	for i, a := range result.Updated {
		dtos[i] = toAllocationDTO(a)
	}

	writeJSON(w, http.StatusOK, TransitionResultDTO{
		EmploymentID:   string(result.Employment.ID),
		TransitionDate: result.TransitionDate.String(),
		Updated:        dtos,
	})
}

// =============================================================================
// HISTORY HANDLERS
// =============================================================================

// GetHistory returns the employment's audit trail.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := funding.EmploymentID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetEmployment(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to get employment", err)
		return
	}

	entries, err := h.Store.GetHistory(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get history", err)
		return
	}

	dtos := make([]HistoryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = HistoryDTO{
			ID:           e.ID,
			EmploymentID: string(e.EmploymentID),
			Reason:       e.Reason,
			Before:       e.Before,
			After:        e.After,
			CreatedAt:    e.CreatedAt.Format(time.RFC3339),
		}
	}

	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerSweep runs the daily sweep immediately and records the run.
// POST /api/admin/sweep
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	run, summary, err := RunSweep(r.Context(), h.Store, h.Processor)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sweep failed", err)
		return
	}

	failures := make([]SweepFailureDTO, len(summary.Failed))
	for i, f := range summary.Failed {
		failures[i] = SweepFailureDTO{
			EmploymentID: string(f.EmploymentID),
			Error:        f.Err,
		}
	}

	writeJSON(w, http.StatusOK, SweepResultDTO{
		RunID:     run.ID,
		Processed: summary.Processed,
		Failed:    failures,
	})
}

// ListSweepRuns returns sweep run history, newest first.
// GET /api/sweeps/runs?status=completed
func (h *Handler) ListSweepRuns(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	runs, err := h.Store.GetSweepRuns(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get sweep runs", err)
		return
	}

	dtos := make([]SweepRunDTO, 0, len(runs))
	for _, run := range runs {
		dto := SweepRunDTO{
			ID:        run.ID,
			SweptAt:   run.SweptAt.Format("2006-01-02"),
			Status:    run.Status,
			Processed: run.Processed,
			Failed:    run.Failed,
			Error:     run.Error,
		}
		if run.CompletedAt != nil {
			dto.CompletedAt = run.CompletedAt.Format(time.RFC3339)
		}
		dtos = append(dtos, dto)
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEmploymentDTO(e funding.Employment, asOf funding.Date) EmploymentDTO {
	dto := EmploymentDTO{
		ID:                  string(e.ID),
		EmployeeID:          string(e.EmployeeID),
		StartDate:           e.StartDate.String(),
		PostProbationSalary: funding.FormatAmount(e.PostProbationSalary),
		ProbationCompleted:  e.ProbationCompleted,
		TransitionState:     string(e.TransitionState(asOf)),
		CreatedAt:           e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           e.UpdatedAt.Format(time.RFC3339),
	}
	if e.ProbationEndDate != nil {
		s := e.ProbationEndDate.String()
		dto.ProbationEndDate = &s
	}
	if e.ProbationSalary != nil {
		s := funding.FormatAmount(*e.ProbationSalary)
		dto.ProbationSalary = &s
	}
	if e.HealthBenefit.Enabled {
		dto.HealthBenefit = &BenefitSettingDTO{
			Enabled:    true,
			Percentage: funding.FormatAmount(e.HealthBenefit.Percentage),
		}
	}
	if e.PensionBenefit.Enabled {
		dto.PensionBenefit = &BenefitSettingDTO{
			Enabled:    true,
			Percentage: funding.FormatAmount(e.PensionBenefit.Percentage),
		}
	}
	return dto
}

func toAllocationDTO(a funding.Allocation) AllocationDTO {
	return AllocationDTO{
		ID:           string(a.ID),
		EmploymentID: string(a.EmploymentID),
		Source: FundingSourceDTO{
			GrantSlotID: a.Source.GrantSlotID,
			OrgFundID:   a.Source.OrgFundID,
		},
		SourceKey:  a.Source.Key(),
		FTEPercent: funding.FormatAmount(a.FTEPercent()),
		Amount:     funding.FormatAmount(a.Amount),
		Basis:      string(a.Basis),
		Status:     string(a.Status),
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  a.UpdatedAt.Format(time.RFC3339),
	}
}

func sourceFromDTO(dto FundingSourceDTO) funding.FundingSource {
	return funding.FundingSource{
		GrantSlotID: dto.GrantSlotID,
		OrgFundID:   dto.OrgFundID,
	}
}

func employmentFromRequest(id, employeeID, startDate string, probationEnd, probationSalary *string,
	postSalary string, health, pension *BenefitSettingDTO) (funding.Employment, error) {

	var emp funding.Employment

	start, err := funding.ParseDate(startDate)
	if err != nil {
		return emp, err
	}

	post, err := decimal.NewFromString(postSalary)
	if err != nil {
		return emp, err
	}

	emp = funding.Employment{
		ID:                  funding.EmploymentID(id),
		EmployeeID:          funding.EmployeeID(employeeID),
		StartDate:           start,
		PostProbationSalary: post,
	}

	if probationEnd != nil {
		d, err := funding.ParseDate(*probationEnd)
		if err != nil {
			return emp, err
		}
		emp.ProbationEndDate = &d
	}
	if probationSalary != nil {
		d, err := decimal.NewFromString(*probationSalary)
		if err != nil {
			return emp, err
		}
		emp.ProbationSalary = &d
	}

	if emp.HealthBenefit, err = benefitFromDTO(health); err != nil {
		return emp, err
	}
	if emp.PensionBenefit, err = benefitFromDTO(pension); err != nil {
		return emp, err
	}

	return emp, nil
}

func benefitFromDTO(dto *BenefitSettingDTO) (funding.BenefitSetting, error) {
	if dto == nil {
		return funding.BenefitSetting{}, nil
	}
	pct := decimal.Zero
	if dto.Percentage != "" {
		var err error
		pct, err = decimal.NewFromString(dto.Percentage)
		if err != nil {
			return funding.BenefitSetting{}, err
		}
	}
	return funding.BenefitSetting{Enabled: dto.Enabled, Percentage: pct}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain error to its HTTP status.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case funding.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case funding.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case funding.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
