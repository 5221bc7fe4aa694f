package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Services holds one proxy per downstream.
type Services struct {
	Catalog *ServiceProxy
	Cart    *ServiceProxy
	Orders  *ServiceProxy
}

type Handler struct {
	services Services
	timeout  time.Duration
	logger   *slog.Logger
}

func NewHandler(services Services, timeout time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		services: services,
		timeout:  timeout,
		logger:   logger,
	}
}

// Routes is the public surface of the storefront.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if h.timeout > 0 {
		r.Use(middleware.Timeout(h.timeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/products", h.forward(h.services.Catalog))
	r.Get("/products/{id}", h.forward(h.services.Catalog))

	carts := h.forward(h.services.Cart)
	r.Get("/carts/{cartId}", carts)
	r.Delete("/carts/{cartId}", carts)
	r.Post("/carts/{cartId}/items", carts)
	r.Patch("/carts/{cartId}/items/{itemId}", carts)
	r.Delete("/carts/{cartId}/items/{itemId}", carts)

	orders := h.forward(h.services.Orders)
	r.Post("/checkout", orders)
	r.Get("/orders", orders)
	r.Get("/orders/{id}", orders)
	r.Patch("/orders/{id}/status", orders)
	r.Get("/users/{userId}/orders", orders)
	r.Get("/users/{userId}/notifications", orders)
	r.Post("/users/{userId}/notifications/{id}/read", orders)
	r.Get("/coupons", orders)
	r.Get("/coupons/{code}", orders)

	return r
}

func (h *Handler) forward(proxy *ServiceProxy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.proxyRequest(w, r, proxy, r.URL.Path)
	}
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path, "request_id", middleware.GetReqID(r.Context()))
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
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
