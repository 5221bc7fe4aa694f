package email

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

// Handler is the mail sink. It accepts messages, waits a simulated
// transport latency and logs them; nothing leaves the process.
type Handler struct {
	validate   *validator.Validate
	minLatency time.Duration
	jitter     time.Duration
	logger     *slog.Logger
}

func NewHandler(validate *validator.Validate, minLatency, jitter time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		validate:   validate,
		minLatency: minLatency,
		jitter:     jitter,
		logger:     logger,
	}
}

type Message struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"notblank"`
	Body    string `json:"body"`
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(msg); err != nil {
		h.writeError(w, http.StatusBadRequest, "to must be an email address and subject is required")
		return
	}

	delay := h.minLatency
	if h.jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(h.jitter)))
	}

	select {
	case <-r.Context().Done():
		h.logger.Warn("email send aborted", "to", msg.To, "subject", msg.Subject)
		return
	case <-time.After(delay):
	}

	h.logger.Info("email sent", "to", msg.To, "subject", msg.Subject, "body_bytes", len(msg.Body))

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
