package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Fabricesimpore/zakamall/internal/domain/auth"
	"github.com/Fabricesimpore/zakamall/internal/domain/commission"
	"github.com/Fabricesimpore/zakamall/internal/domain/money"
	"github.com/Fabricesimpore/zakamall/internal/domain/order"
	"github.com/Fabricesimpore/zakamall/internal/domain/product"
	"github.com/Fabricesimpore/zakamall/internal/domain/vendor"
	"github.com/Fabricesimpore/zakamall/pkg/httpmiddleware"
)

// --- Mock implementations ---

type mockProductRepo struct {
	products []product.Product
	listErr  error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return m.products, m.listErr
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	for i := range m.products {
		if m.products[i].ID == id {
			return &m.products[i], nil
		}
	}
	return nil, product.ErrNotFound
}

type mockVendorRepo struct {
	vendors map[string]*vendor.Vendor
}

func (m *mockVendorRepo) GetByID(_ context.Context, id string) (*vendor.Vendor, error) {
	v, ok := m.vendors[id]
	if !ok {
		return nil, vendor.ErrNotFound
	}
	return v, nil
}

type mockOrderRepo struct {
	lastOrder *order.Order
	levels    []order.StockLevel
	createErr error
	cancelled map[string]bool
	restored  map[string]bool
}

func (m *mockOrderRepo) CreateWithReservation(_ context.Context, o *order.Order, lines []order.LineRequest) ([]order.StockLevel, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, line := range lines {
		o.Items = append(o.Items, order.Item{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: decimal.NewFromInt(10),
		})
	}
	m.lastOrder = o
	return m.levels, nil
}

func (m *mockOrderRepo) MarkCancelled(_ context.Context, orderID string) error {
	if m.cancelled == nil || !m.cancelled[orderID] {
		return order.ErrNotFound
	}
	return nil
}

func (m *mockOrderRepo) RestoreInventory(_ context.Context, orderID string) (bool, error) {
	if m.restored[orderID] {
		return false, nil
	}
	if m.restored == nil {
		m.restored = make(map[string]bool)
	}
	m.restored[orderID] = true
	return true, nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, orderID string) (*order.Order, error) {
	if m.lastOrder != nil && m.lastOrder.ID == orderID {
		return m.lastOrder, nil
	}
	return nil, order.ErrNotFound
}

type mockNotifier struct{}

func (mockNotifier) NotifyLowStock(_ context.Context, _, _ string, _ int) error {
	return nil
}

type mockAPIKeyRepo struct {
	info *auth.APIKeyInfo
	err  error
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, _ string) (*auth.APIKeyInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.info, nil
}

// --- Helpers ---

func rate(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newTestHandler(vendors *mockVendorRepo, orders *mockOrderRepo, products *mockProductRepo) *Handler {
	calc := commission.NewCalculator(money.New(zap.NewNop()))
	svc := order.NewService(vendors, orders, calc, mockNotifier{})
	return NewHandler(products, svc)
}

func serve(h *Handler, r *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Register(mux, func(next http.Handler) http.Handler { return next })
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func postOrder(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return serve(h, r)
}

// --- Tests ---

func TestPlaceOrder(t *testing.T) {
	vendors := &mockVendorRepo{vendors: map[string]*vendor.Vendor{
		"v1": {ID: "v1", UserID: "u1", Name: "Sika Shop", CommissionRate: rate("5.00")},
	}}
	orders := &mockOrderRepo{}
	h := newTestHandler(vendors, orders, &mockProductRepo{})

	w := postOrder(t, h, `{
		"vendorId": "v1",
		"customerId": "c1",
		"subtotal": "30.00",
		"deliveryFee": "2.50",
		"taxAmount": "1.50",
		"totalAmount": "34.00",
		"items": [{"productId": "p1", "quantity": 3}]
	}`)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		ID               string `json:"id"`
		OrderNumber      string `json:"orderNumber"`
		Subtotal         string `json:"subtotal"`
		TotalAmount      string `json:"totalAmount"`
		CommissionRate   string `json:"commissionRate"`
		CommissionAmount string `json:"commissionAmount"`
		VendorEarnings   string `json:"vendorEarnings"`
		Status           string `json:"status"`
		Items            []struct {
			ProductID string `json:"productId"`
			Quantity  int    `json:"quantity"`
			UnitPrice string `json:"unitPrice"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.ID)
	assert.NotEmpty(t, resp.OrderNumber)
	assert.Equal(t, "30.00", resp.Subtotal)
	assert.Equal(t, "34.00", resp.TotalAmount)
	assert.Equal(t, "5.00", resp.CommissionRate)
	assert.Equal(t, "1.50", resp.CommissionAmount)
	assert.Equal(t, "28.50", resp.VendorEarnings)
	assert.Equal(t, "pending", resp.Status)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "p1", resp.Items[0].ProductID)
	assert.Equal(t, 3, resp.Items[0].Quantity)
}

func TestPlaceOrder_InvalidBody(t *testing.T) {
	h := newTestHandler(&mockVendorRepo{}, &mockOrderRepo{}, &mockProductRepo{})

	w := postOrder(t, h, `{not json`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlaceOrder_EmptyItems(t *testing.T) {
	h := newTestHandler(&mockVendorRepo{}, &mockOrderRepo{}, &mockProductRepo{})

	w := postOrder(t, h, `{
		"vendorId": "v1",
		"customerId": "c1",
		"subtotal": "10.00",
		"totalAmount": "10.00",
		"items": []
	}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusBadRequest, body.Code)
	assert.Contains(t, body.Message, "items")
}

func TestPlaceOrder_TotalMismatch(t *testing.T) {
	h := newTestHandler(&mockVendorRepo{}, &mockOrderRepo{}, &mockProductRepo{})

	w := postOrder(t, h, `{
		"vendorId": "v1",
		"customerId": "c1",
		"subtotal": "30.00",
		"deliveryFee": "2.50",
		"taxAmount": "1.50",
		"totalAmount": "30.00",
		"items": [{"productId": "p1", "quantity": 1}]
	}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlaceOrder_NegativeQuantity(t *testing.T) {
	h := newTestHandler(&mockVendorRepo{}, &mockOrderRepo{}, &mockProductRepo{})

	w := postOrder(t, h, `{
		"vendorId": "v1",
		"customerId": "c1",
		"subtotal": "10.00",
		"totalAmount": "10.00",
		"items": [{"productId": "p1", "quantity": -2}]
	}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	vendors := &mockVendorRepo{vendors: map[string]*vendor.Vendor{
		"v1": {ID: "v1", UserID: "u1", Name: "Sika Shop"},
	}}
	orders := &mockOrderRepo{createErr: &order.InsufficientStockError{
		ProductID:   "p1",
		ProductName: "Shea Butter",
		Available:   2,
		Requested:   5,
	}}
	h := newTestHandler(vendors, orders, &mockProductRepo{})

	w := postOrder(t, h, `{
		"vendorId": "v1",
		"customerId": "c1",
		"subtotal": "50.00",
		"totalAmount": "50.00",
		"items": [{"productId": "p1", "quantity": 5}]
	}`)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body struct {
		Message   string `json:"message"`
		ProductID string `json:"productId"`
		Available int    `json:"available"`
		Requested int    `json:"requested"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "p1", body.ProductID)
	assert.Equal(t, 2, body.Available)
	assert.Equal(t, 5, body.Requested)
	assert.Contains(t, body.Message, "Shea Butter")
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	vendors := &mockVendorRepo{vendors: map[string]*vendor.Vendor{
		"v1": {ID: "v1", UserID: "u1", Name: "Sika Shop"},
	}}
	orders := &mockOrderRepo{createErr: &order.ProductNotFoundError{ProductID: "missing"}}
	h := newTestHandler(vendors, orders, &mockProductRepo{})

	w := postOrder(t, h, `{
		"vendorId": "v1",
		"customerId": "c1",
		"subtotal": "10.00",
		"totalAmount": "10.00",
		"items": [{"productId": "missing", "quantity": 1}]
	}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPlaceOrder_UnknownVendorIsServerError(t *testing.T) {
	h := newTestHandler(&mockVendorRepo{}, &mockOrderRepo{}, &mockProductRepo{})

	w := postOrder(t, h, `{
		"vendorId": "ghost",
		"customerId": "c1",
		"subtotal": "10.00",
		"totalAmount": "10.00",
		"items": [{"productId": "p1", "quantity": 1}]
	}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "ghost")
}

func TestCancelOrder(t *testing.T) {
	orders := &mockOrderRepo{
		cancelled: map[string]bool{"o1": true},
		restored:  map[string]bool{},
	}
	h := newTestHandler(&mockVendorRepo{}, orders, &mockProductRepo{})

	r := httptest.NewRequest(http.MethodPost, "/api/orders/o1/cancel", nil)
	w := serve(h, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, orders.restored["o1"])
}

func TestCancelOrder_NotFound(t *testing.T) {
	h := newTestHandler(&mockVendorRepo{}, &mockOrderRepo{}, &mockProductRepo{})

	r := httptest.NewRequest(http.MethodPost, "/api/orders/nope/cancel", nil)
	w := serve(h, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListProducts(t *testing.T) {
	products := &mockProductRepo{products: []product.Product{
		{ID: "p1", VendorID: "v1", Name: "Shea Butter", Price: decimal.RequireFromString("12.5"), Quantity: 7, TrackQuantity: true},
		{ID: "p2", VendorID: "v1", Name: "Bogolan Scarf", Price: decimal.NewFromInt(40), Quantity: 0, TrackQuantity: false},
	}}
	h := newTestHandler(&mockVendorRepo{}, &mockOrderRepo{}, products)

	r := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	w := serve(h, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Price         string `json:"price"`
		Quantity      int    `json:"quantity"`
		TrackQuantity bool   `json:"trackQuantity"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "12.50", resp[0].Price)
	assert.Equal(t, 7, resp[0].Quantity)
	assert.False(t, resp[1].TrackQuantity)
}

func TestListProducts_Error(t *testing.T) {
	products := &mockProductRepo{listErr: errors.New("db down")}
	h := newTestHandler(&mockVendorRepo{}, &mockOrderRepo{}, products)

	r := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	w := serve(h, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

// --- API key middleware ---

func hashKey(pepper, key string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func protectedEcho(repo auth.Repository, pepper string) http.Handler {
	mw := RequireAPIKey(repo, []byte(pepper))
	return httpmiddleware.Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), mw)
}

func TestRequireAPIKey(t *testing.T) {
	const pepper = "test-pepper"
	repo := &mockAPIKeyRepo{info: &auth.APIKeyInfo{
		ID:      "default",
		KeyHash: hashKey(pepper, "valid-key"),
		Name:    "Test key",
	}}
	srv := protectedEcho(repo, pepper)

	r := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	r.Header.Set("api_key", "valid-key")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAPIKey_MissingKey(t *testing.T) {
	srv := protectedEcho(&mockAPIKeyRepo{}, "test-pepper")

	r := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAPIKey_UnknownKey(t *testing.T) {
	repo := &mockAPIKeyRepo{err: errors.New("not found")}
	srv := protectedEcho(repo, "test-pepper")

	r := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	r.Header.Set("api_key", "wrong-key")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAPIKey_HashMismatch(t *testing.T) {
	// Repository returns a row, but its stored hash does not match the
	// presented key.
	repo := &mockAPIKeyRepo{info: &auth.APIKeyInfo{
		ID:      "default",
		KeyHash: hashKey("test-pepper", "some-other-key"),
		Name:    "Test key",
	}}
	srv := protectedEcho(repo, "test-pepper")

	r := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	r.Header.Set("api_key", "valid-key")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
