package coupons

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.service.Available(r.Context())
	if err != nil {
		h.logger.Error("failed to list coupons", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, coupons)
}

type previewResponse struct {
	Code     string          `json:"code"`
	Discount decimal.Decimal `json:"discount"`
}

// HandlePreview answers GET /coupons/{code}?user_id=&subtotal= with the discount
// the coupon would grant, without recording any usage.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	userID := r.URL.Query().Get("user_id")

	subtotal, err := decimal.NewFromString(r.URL.Query().Get("subtotal"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid subtotal")
		return
	}

	discount, err := h.service.Apply(r.Context(), code, userID, subtotal)
	if err != nil {
		if IsRuleViolation(err) {
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.Error("failed to preview coupon", "error", err, "code", code)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, previewResponse{Code: discount.Coupon.Code, Discount: discount.Amount})
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
