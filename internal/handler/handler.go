// Package handler exposes the order engine over a small JSON HTTP API.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/Fabricesimpore/zakamall/internal/domain/order"
	"github.com/Fabricesimpore/zakamall/internal/domain/product"
	"github.com/Fabricesimpore/zakamall/pkg/httpmiddleware"
)

// Handler serves the marketplace API, delegating business logic to the order
// service and product repository.
type Handler struct {
	products     product.Repository
	orderService *order.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(products product.Repository, orderService *order.Service) *Handler {
	return &Handler{
		products:     products,
		orderService: orderService,
	}
}

// Register mounts the API routes on mux. Product listing is public; order
// operations require an API key.
func (h *Handler) Register(mux *http.ServeMux, auth httpmiddleware.Middleware) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.Handle("POST /api/orders", auth(http.HandlerFunc(h.PlaceOrder)))
	mux.Handle("POST /api/orders/{id}/cancel", auth(http.HandlerFunc(h.CancelOrder)))
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Status is already written; encoding can only fail on a dead client.
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Code: status, Message: message})
}

// writeServerError logs the cause and responds with a generic 500. Internal
// detail (integrity problems included) is never exposed to the client.
func writeServerError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}
