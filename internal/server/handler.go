package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"voicebot-evaluator/internal/domain"
)

// EvaluatePath is the single endpoint the client consumes.
const EvaluatePath = "/api/voicebot-evaluator"

// EvaluationService is the core the handler delegates to.
type EvaluationService interface {
	Evaluate(ctx context.Context, req *domain.EvaluateRequest) (*domain.Evaluation, *domain.EvalError)
}

// Handler exposes the evaluation service over HTTP. All failures are
// converted to the fixed JSON envelope at this boundary; no error reaches
// the transport layer unhandled.
type Handler struct {
	service       EvaluationService
	keyConfigured bool
	logger        *slog.Logger
}

// NewHandler creates the HTTP handler. keyConfigured feeds the health probe
// only; the handler never sees the credential itself.
func NewHandler(service EvaluationService, keyConfigured bool, logger *slog.Logger) *Handler {
	return &Handler{
		service:       service,
		keyConfigured: keyConfigured,
		logger:        logger,
	}
}

// Register mounts the evaluate, health, root and not-found routes.
func (h *Handler) Register(r *chi.Mux) {
	r.Post(EvaluatePath, h.HandleEvaluate)
	r.Get(EvaluatePath+"/health", h.HandleHealth)
	r.Get("/", h.HandleRoot)
	r.NotFound(h.HandleNotFound)
}

// HandleEvaluate is POST /api/voicebot-evaluator.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req domain.EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Covers both unparseable bodies and input_text of the wrong
		// type. Same taxonomy as a missing field: the caller sent
		// something the contract does not admit.
		evalErr := domain.ErrValidation("input_text is mandatory").
			WithRequestID(uuid.New().String())
		AddError(r.Context(), err)
		h.writeError(w, evalErr)
		return
	}

	eval, evalErr := h.service.Evaluate(r.Context(), &req)
	if evalErr != nil {
		AddError(r.Context(), evalErr)
		h.writeError(w, evalErr)
		return
	}

	AddLogField(r.Context(), "evaluation_request_id", eval.RequestID)
	h.writeJSON(w, http.StatusOK, eval.Envelope())
}

// HandleHealth is GET /api/voicebot-evaluator/health. Liveness only: reports
// service status and whether the provider credential is configured.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"api_key_configured": h.keyConfigured,
	})
}

// HandleRoot describes the API for anyone poking at the base URL.
func (h *Handler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Voicebot Evaluator API",
		"endpoints": map[string]string{
			"evaluate": "POST " + EvaluatePath,
			"health":   "GET " + EvaluatePath + "/health",
		},
	})
}

// HandleNotFound returns a JSON 404 listing the available routes.
func (h *Handler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusNotFound, map[string]any{
		"error":  "Route not found",
		"path":   r.URL.Path,
		"method": r.Method,
		"available_routes": []string{
			"POST " + EvaluatePath,
			"GET " + EvaluatePath + "/health",
			"GET /",
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, evalErr *domain.EvalError) {
	h.writeJSON(w, evalErr.HTTPStatusCode(), domain.ErrorEnvelope(evalErr))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write response", slog.String("error", err.Error()))
	}
}
