package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ongbase/be-hiring-workflow/internal/errors"
	"github.com/ongbase/be-hiring-workflow/internal/hiring"
	"github.com/ongbase/be-hiring-workflow/internal/logger"
	"github.com/ongbase/be-hiring-workflow/internal/service"
)

// HTTPHandler binds the workflow services to the thin HTTP surface consumed
// by the portal frontend. It owns no workflow logic.
type HTTPHandler struct {
	vagas        *service.VagaWorkflow
	candidaturas *service.CandidaturaWorkflow
	queries      *service.QueryFacade
	log          *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(vagas *service.VagaWorkflow, candidaturas *service.CandidaturaWorkflow, queries *service.QueryFacade, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		vagas:        vagas,
		candidaturas: candidaturas,
		queries:      queries,
		log:          log,
	}
}

// RegisterRoutes mounts all endpoints on the router.
func (h *HTTPHandler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/vagas", h.CreateVaga).Methods(http.MethodPost)
	api.HandleFunc("/vagas", h.ListVagas).Methods(http.MethodGet)
	api.HandleFunc("/vagas/{id}", h.GetVaga).Methods(http.MethodGet)
	api.HandleFunc("/vagas/{id}/events", h.SubmitVagaEvent).Methods(http.MethodPost)
	api.HandleFunc("/vagas/{id}/history", h.GetVagaHistory).Methods(http.MethodGet)

	api.HandleFunc("/candidaturas", h.CreateCandidatura).Methods(http.MethodPost)
	api.HandleFunc("/candidaturas", h.ListCandidaturas).Methods(http.MethodGet)
	api.HandleFunc("/candidaturas/{id}", h.GetCandidatura).Methods(http.MethodGet)
	api.HandleFunc("/candidaturas/{id}/events", h.SubmitCandidaturaEvent).Methods(http.MethodPost)
	api.HandleFunc("/candidaturas/{id}/checklist", h.SaveChecklist).Methods(http.MethodPut)
	api.HandleFunc("/candidaturas/{id}/score", h.GetAggregateScore).Methods(http.MethodGet)
	api.HandleFunc("/candidaturas/{id}/history", h.GetCandidaturaHistory).Methods(http.MethodGet)

	api.HandleFunc("/stages/counts", h.GetStageCounts).Methods(http.MethodGet)
}

// ── Vagas ─────────────────────────────────────────────────────────────────────

type createVagaRequest struct {
	service.CreateVagaRequest
	Actor hiring.Actor `json:"actor"`
}

// CreateVaga handles requisition creation.
func (h *HTTPHandler) CreateVaga(w http.ResponseWriter, r *http.Request) {
	var req createVagaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	vaga, err := h.vagas.Create(r.Context(), req.CreateVagaRequest, req.Actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, vaga)
}

// GetVaga handles requisition reads.
func (h *HTTPHandler) GetVaga(w http.ResponseWriter, r *http.Request) {
	vaga, err := h.vagas.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vaga)
}

// ListVagas handles requisition listings, optionally filtered by status.
func (h *HTTPHandler) ListVagas(w http.ResponseWriter, r *http.Request) {
	vagas, err := h.vagas.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vagas": vagas, "total": len(vagas)})
}

type vagaEventRequest struct {
	Event   string                   `json:"event"`
	Payload service.VagaEventPayload `json:"payload"`
	Actor   hiring.Actor             `json:"actor"`
}

// SubmitVagaEvent handles requisition workflow events.
func (h *HTTPHandler) SubmitVagaEvent(w http.ResponseWriter, r *http.Request) {
	var req vagaEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	vaga, err := h.vagas.SubmitEvent(r.Context(), mux.Vars(r)["id"], req.Event, req.Payload, req.Actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vaga)
}

// GetVagaHistory returns the requisition audit trail.
func (h *HTTPHandler) GetVagaHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.vagas.History(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// ── Candidaturas ──────────────────────────────────────────────────────────────

// CreateCandidatura handles incoming applications.
func (h *HTTPHandler) CreateCandidatura(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCandidaturaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cand, err := h.candidaturas.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cand)
}

// GetCandidatura handles application reads.
func (h *HTTPHandler) GetCandidatura(w http.ResponseWriter, r *http.Request) {
	cand, err := h.candidaturas.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cand)
}

// ListCandidaturas handles application listings filtered by vaga and stage.
func (h *HTTPHandler) ListCandidaturas(w http.ResponseWriter, r *http.Request) {
	cands, err := h.candidaturas.List(r.Context(),
		r.URL.Query().Get("vaga_id"),
		r.URL.Query().Get("stage"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidaturas": cands, "total": len(cands)})
}

type candidaturaEventRequest struct {
	Event   string                          `json:"event"`
	Payload service.CandidaturaEventPayload `json:"payload"`
	Actor   hiring.Actor                    `json:"actor"`
}

// SubmitCandidaturaEvent handles application workflow events.
func (h *HTTPHandler) SubmitCandidaturaEvent(w http.ResponseWriter, r *http.Request) {
	var req candidaturaEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cand, err := h.candidaturas.SubmitEvent(r.Context(), mux.Vars(r)["id"], req.Event, req.Payload, req.Actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cand)
}

type checklistRequest struct {
	Checklist map[string]bool `json:"checklist"`
	Actor     hiring.Actor    `json:"actor"`
}

// SaveChecklist handles screening checklist autosaves.
func (h *HTTPHandler) SaveChecklist(w http.ResponseWriter, r *http.Request) {
	var req checklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.candidaturas.SaveChecklist(r.Context(), mux.Vars(r)["id"], req.Checklist, req.Actor); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// GetAggregateScore returns the recomputed written-test score.
func (h *HTTPHandler) GetAggregateScore(w http.ResponseWriter, r *http.Request) {
	score, err := h.candidaturas.AggregateScore(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// GetCandidaturaHistory returns the application audit trail.
func (h *HTTPHandler) GetCandidaturaHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.candidaturas.History(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// ── Dashboard ─────────────────────────────────────────────────────────────────

// GetStageCounts returns per-stage document counts for dashboard tabs.
func (h *HTTPHandler) GetStageCounts(w http.ResponseWriter, r *http.Request) {
	entity := r.URL.Query().Get("entity")
	if entity == "" {
		entity = hiring.CollectionCandidaturas
	}

	counts, err := h.queries.CountByStage(r.Context(), entity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entity": entity, "counts": counts})
}

// ── Error mapping ─────────────────────────────────────────────────────────────

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.CodeOf(err) {
	case errors.ErrCodeValidation:
		status = http.StatusBadRequest
	case errors.ErrCodeInvalidTransition, errors.ErrCodeStaleState, errors.ErrCodeAlreadyExists:
		status = http.StatusConflict
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeUnavailable:
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Unhandled error in HTTP handler")
	}

	body := map[string]any{"error": err.Error(), "code": errors.CodeOf(err)}
	if fields := errors.FieldsOf(err); len(fields) > 0 {
		body["fields"] = fields
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
