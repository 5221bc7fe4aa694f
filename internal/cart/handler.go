package cart

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/validation"
)

type Handler struct {
	manager  *Manager
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(manager *Manager, validate *validator.Validate, logger *slog.Logger) *Handler {
	return &Handler{
		manager:  manager,
		validate: validate,
		logger:   logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /carts/{cartId}", h.HandleGet)
	mux.HandleFunc("DELETE /carts/{cartId}", h.HandleClear)
	mux.HandleFunc("POST /carts/{cartId}/items", h.HandleAddItem)
	mux.HandleFunc("PATCH /carts/{cartId}/items/{itemId}", h.HandleUpdateQuantity)
	mux.HandleFunc("DELETE /carts/{cartId}/items/{itemId}", h.HandleRemoveItem)
}

type cartView struct {
	ID        string            `json:"id"`
	Items     []domain.CartItem `json:"items"`
	Total     decimal.Decimal   `json:"total"`
	ItemCount int               `json:"item_count"`
}

func viewOf(cartID string, store *Store) cartView {
	return cartView{
		ID:        cartID,
		Items:     store.Items(),
		Total:     store.Total(),
		ItemCount: store.ItemCount(),
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	cartID := r.PathValue("cartId")

	store, err := h.manager.Open(r.Context(), cartID)
	if err != nil {
		h.logger.Error("failed to open cart", "error", err, "cart_id", cartID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, viewOf(cartID, store))
}

type invalidItemResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

type addItemRequest struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Flavor    string          `json:"flavor"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	cartID := r.PathValue("cartId")

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item := domain.CartItem{
		ProductID: req.ProductID,
		Name:      req.Name,
		Image:     req.Image,
		UnitPrice: req.UnitPrice,
		Flavor:    req.Flavor,
		Size:      req.Size,
		Quantity:  req.Quantity,
	}
	if err := h.validate.Struct(item); err != nil {
		h.writeJSON(w, http.StatusBadRequest, invalidItemResponse{
			Error:  "product_id, name, a positive unit_price and a positive quantity are required",
			Fields: validation.Fields(err),
		})
		return
	}

	store, err := h.manager.Open(r.Context(), cartID)
	if err != nil {
		h.logger.Error("failed to open cart", "error", err, "cart_id", cartID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	line, err := store.AddItem(r.Context(), item)
	if err != nil {
		h.logger.Error("failed to add cart item", "error", err, "cart_id", cartID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("cart item added", "cart_id", cartID, "item_id", line.ID, "quantity", line.Quantity)
	h.writeJSON(w, http.StatusOK, viewOf(cartID, store))
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	cartID := r.PathValue("cartId")
	itemID := r.PathValue("itemId")

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	store, err := h.manager.Open(r.Context(), cartID)
	if err != nil {
		h.logger.Error("failed to open cart", "error", err, "cart_id", cartID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := store.UpdateQuantity(r.Context(), itemID, req.Quantity); err != nil {
		h.handleMutationError(w, err, cartID, itemID)
		return
	}

	h.writeJSON(w, http.StatusOK, viewOf(cartID, store))
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID := r.PathValue("cartId")
	itemID := r.PathValue("itemId")

	store, err := h.manager.Open(r.Context(), cartID)
	if err != nil {
		h.logger.Error("failed to open cart", "error", err, "cart_id", cartID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := store.RemoveItem(r.Context(), itemID); err != nil {
		h.handleMutationError(w, err, cartID, itemID)
		return
	}

	h.writeJSON(w, http.StatusOK, viewOf(cartID, store))
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	cartID := r.PathValue("cartId")

	if err := h.manager.Clear(r.Context(), cartID); err != nil {
		h.logger.Error("failed to clear cart", "error", err, "cart_id", cartID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("cart cleared", "cart_id", cartID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMutationError(w http.ResponseWriter, err error, cartID, itemID string) {
	if errors.Is(err, ErrItemNotFound) {
		h.writeError(w, http.StatusNotFound, "cart item not found")
		return
	}
	h.logger.Error("failed to update cart", "error", err, "cart_id", cartID, "item_id", itemID)
	h.writeError(w, http.StatusInternalServerError, "internal server error")
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
