package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/amaslov/tokengate/internal/domain"
	"github.com/amaslov/tokengate/internal/observability"
)

// Handler handles HTTP requests.
type Handler struct {
	metering *domain.MeteringService
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(metering *domain.MeteringService) *Handler {
	return &Handler{metering: metering}
}

// ChatRequest is the payload for POST /v1/chat.
type ChatRequest struct {
	UserID   string           `json:"user_id"`
	Model    string           `json:"model"`
	Messages []domain.Message `json:"messages"`
}

// VisionRequest is the payload for POST /v1/vision/analyze.
type VisionRequest struct {
	UserID   string `json:"user_id"`
	Model    string `json:"model"`
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt"`
}

type errorResponse struct {
	Error     string   `json:"error"`
	Required  int64    `json:"required_tokens,omitempty"`
	Available int64    `json:"available_tokens,omitempty"`
	Attempted []string `json:"attempted_models,omitempty"`
}

// HandleChat processes metered chat completion requests.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.UserID == "" || req.Model == "" || len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "user_id, model and messages are required")
		return
	}

	ctx = observability.WithModel(ctx, req.Model)
	observability.FromContext(ctx).Info("chat request received",
		observability.String("model", req.Model),
		observability.Int("messages", len(req.Messages)))

	resp, err := h.metering.Chat(ctx, req.UserID, req.Model, req.Messages)
	if err != nil {
		h.writeMeteringError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleVision processes metered image analysis requests.
func (h *Handler) HandleVision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req VisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.UserID == "" || req.Model == "" || req.ImageURL == "" {
		writeError(w, http.StatusBadRequest, "user_id, model and image_url are required")
		return
	}

	ctx = observability.WithModel(ctx, req.Model)
	observability.FromContext(ctx).Info("vision request received",
		observability.String("model", req.Model))

	resp, err := h.metering.AnalyzeImage(ctx, req.UserID, req.Model, req.ImageURL, req.Prompt)
	if err != nil {
		h.writeMeteringError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleBalance returns the current token balance snapshot.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	balance, err := h.metering.Balance(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read balance")
		return
	}

	writeJSON(w, http.StatusOK, balance)
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeMeteringError maps the metering error taxonomy to HTTP statuses.
// Insufficient tokens is a payment-required rejection; an exhausted fallback
// chain is an upstream failure.
func (h *Handler) writeMeteringError(w http.ResponseWriter, err error) {
	var insufficient *domain.InsufficientTokensError
	if errors.As(err, &insufficient) {
		writeJSON(w, http.StatusPaymentRequired, errorResponse{
			Error:     "insufficient tokens",
			Required:  insufficient.Required,
			Available: insufficient.Subscription + insufficient.Addons,
		})
		return
	}

	var exhausted *domain.FallbackExhaustedError
	if errors.As(err, &exhausted) {
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:     "all models failed",
			Attempted: exhausted.Attempted,
		})
		return
	}

	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
