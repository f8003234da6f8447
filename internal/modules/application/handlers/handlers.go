// Package handlers provides HTTP handlers for applying programs and treaty
// books to policies and bordereaux.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/cession/internal/domain"
	"github.com/aristath/cession/internal/modules/application"
	"github.com/aristath/cession/internal/modules/runs"
)

// RunStore persists bordereau runs
type RunStore interface {
	Create(run *runs.Run) (string, error)
}

// Handler handles cession HTTP requests
type Handler struct {
	service *application.Service
	runs    RunStore
	log     zerolog.Logger
}

// NewHandler creates a new application handler
func NewHandler(service *application.Service, runs RunStore, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		runs:    runs,
		log:     log.With().Str("handler", "application").Logger(),
	}
}

// ApplyProgramRequest is the body of POST /api/programs/apply
type ApplyProgramRequest struct {
	Policy  *domain.Policy  `json:"policy"`
	Program *domain.Program `json:"program"`
}

// ApplyBordereauRequest is the body of POST /api/bordereau/apply
type ApplyBordereauRequest struct {
	Bordereau domain.Bordereau `json:"bordereau"`
	Program   *domain.Program  `json:"program"`
}

// ApplyTreatyRequest is the body of POST /api/treaties/apply
type ApplyTreatyRequest struct {
	Policy          *domain.Policy    `json:"policy"`
	TreatyBook      domain.TreatyBook `json:"treaty_book"`
	CalculationDate domain.Date       `json:"calculation_date"`
}

// ApplyTreatyBordereauRequest is the body of POST /api/treaties/bordereau
type ApplyTreatyBordereauRequest struct {
	Bordereau       domain.Bordereau  `json:"bordereau"`
	TreatyBook      domain.TreatyBook `json:"treaty_book"`
	CalculationDate domain.Date       `json:"calculation_date"`
}

// BordereauResponse is returned for stored bordereau runs
type BordereauResponse struct {
	RunID   string                     `json:"run_id"`
	Rows    []application.AugmentedRow `json:"rows,omitempty"`
	Results []*domain.PolicyResult     `json:"results"`
	Totals  RunTotals                  `json:"totals"`
}

// RunTotals sums a run's amounts
type RunTotals struct {
	PolicyCount        int     `json:"policy_count"`
	Exposure           float64 `json:"exposure"`
	CededToLayer100Pct float64 `json:"ceded_to_layer_100pct"`
	CededToReinsurer   float64 `json:"ceded_to_reinsurer"`
	RetainedByCedant   float64 `json:"retained_by_cedant"`
}

// HandleApplyProgram handles POST /api/programs/apply
func (h *Handler) HandleApplyProgram(w http.ResponseWriter, r *http.Request) {
	var req ApplyProgramRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Policy == nil || req.Program == nil {
		h.writeError(w, http.StatusBadRequest, "policy and program are required")
		return
	}

	result, err := h.service.ApplyProgram(req.Policy, req.Program)
	if err != nil {
		h.handleError(w, err, "Failed to apply program")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleApplyBordereau handles POST /api/bordereau/apply
func (h *Handler) HandleApplyBordereau(w http.ResponseWriter, r *http.Request) {
	var req ApplyBordereauRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Program == nil {
		h.writeError(w, http.StatusBadRequest, "program is required")
		return
	}

	rows, results, err := h.service.ApplyProgramToBordereau(r.Context(), req.Bordereau, req.Program)
	if err != nil {
		h.handleError(w, err, "Failed to apply program to bordereau")
		return
	}

	run := runs.NewRun(runs.KindProgram, results)
	run.ProgramName = req.Program.Name
	run.CalculationDate = today()
	h.storeAndRespond(w, run, rows)
}

// HandleApplyTreaty handles POST /api/treaties/apply
func (h *Handler) HandleApplyTreaty(w http.ResponseWriter, r *http.Request) {
	var req ApplyTreatyRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Policy == nil {
		h.writeError(w, http.StatusBadRequest, "policy is required")
		return
	}
	if req.CalculationDate.IsZero() {
		req.CalculationDate = today()
	}

	result, err := h.service.ApplyTreatyWithClaimBasis(req.Policy, req.TreatyBook, req.CalculationDate)
	if err != nil {
		h.handleError(w, err, "Failed to apply treaty book")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleApplyTreatyBordereau handles POST /api/treaties/bordereau
func (h *Handler) HandleApplyTreatyBordereau(w http.ResponseWriter, r *http.Request) {
	var req ApplyTreatyBordereauRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.CalculationDate.IsZero() {
		req.CalculationDate = today()
	}

	results, err := h.service.ApplyTreatyManagerToBordereau(r.Context(), req.Bordereau, req.TreatyBook, req.CalculationDate)
	if err != nil {
		h.handleError(w, err, "Failed to apply treaty book to bordereau")
		return
	}

	run := runs.NewRun(runs.KindTreatyBook, results)
	run.CalculationDate = req.CalculationDate
	if len(results) > 0 {
		run.ClaimBasis = results[0].ClaimBasis
	}
	h.storeAndRespond(w, run, nil)
}

func (h *Handler) storeAndRespond(w http.ResponseWriter, run *runs.Run, rows []application.AugmentedRow) {
	id, err := h.runs.Create(run)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to store run")
		h.writeError(w, http.StatusInternalServerError, "failed to store run")
		return
	}

	h.log.Info().
		Str("run_id", id).
		Str("kind", string(run.Kind)).
		Int("policies", run.PolicyCount).
		Float64("ceded", run.TotalCeded).
		Msg("Run stored")

	h.writeJSON(w, http.StatusCreated, BordereauResponse{
		RunID:   id,
		Rows:    rows,
		Results: run.Results,
		Totals: RunTotals{
			PolicyCount:        run.PolicyCount,
			Exposure:           run.TotalExposure,
			CededToLayer100Pct: run.TotalCededLayer,
			CededToReinsurer:   run.TotalCeded,
			RetainedByCedant:   run.TotalRetained,
		},
	})
}

// decode reads the JSON body into v. Bodies that fail domain validation
// while decoding (an unknown participation type, say) are reported as 422.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if domain.IsValidation(err) {
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return false
		}
		h.log.Debug().Err(err).Msg("Failed to decode request body")
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) handleError(w http.ResponseWriter, err error, msg string) {
	if domain.IsValidation(err) {
		h.log.Warn().Err(err).Msg(msg)
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.log.Error().Err(err).Msg(msg)
	h.writeError(w, http.StatusInternalServerError, err.Error())
}

func today() domain.Date {
	return domain.DateOf(time.Now().UTC())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
