package handler

import (
	"net/http"

	"github.com/Fabricesimpore/zakamall/internal/domain/product"
)

type productResponse struct {
	ID            string `json:"id"`
	VendorID      string `json:"vendorId"`
	Name          string `json:"name"`
	Price         string `json:"price"`
	Quantity      int    `json:"quantity"`
	TrackQuantity bool   `json:"trackQuantity"`
}

// ListProducts handles GET /api/products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeServerError(w, r, err)
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func toProductResponse(p product.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		VendorID:      p.VendorID,
		Name:          p.Name,
		Price:         p.Price.StringFixed(2),
		Quantity:      p.Quantity,
		TrackQuantity: p.TrackQuantity,
	}
}
