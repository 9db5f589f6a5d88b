package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"storefront-backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	env           *testEnv
	customer      models.User
	customerToken string
	adminToken    string
	product       models.Product
}

func newOrderFixture(t *testing.T) *orderFixture {
	env := newTestEnv(t)
	customer, customerToken := seedTestUser(t, env.db, "shopper@test.com", models.RoleCustomer)
	_, adminToken := seedTestUser(t, env.db, "admin@test.com", models.RoleAdmin)
	cat := seedCategory(t, env.db, "Shirts", models.StatusActive)
	brand := seedBrand(t, env.db, "Acme", models.StatusActive)
	product := seedProduct(t, env.db, productSeed{title: "Tee", price: "30.00", qty: 5, status: 1, category: cat.ID, brand: brand.ID})
	return &orderFixture{env: env, customer: customer, customerToken: customerToken, adminToken: adminToken, product: product}
}

func (f *orderFixture) orderBody(qty int) map[string]interface{} {
	return map[string]interface{}{
		"name":    "Jane Doe",
		"email":   "jane@example.com",
		"phone":   "555-0100",
		"address": "1 Main St",
		"city":    "Springfield",
		"state":   "IL",
		"zip":     "62701",
		"items":   []map[string]interface{}{{"product_id": f.product.ID, "qty": qty, "size": ""}},
	}
}

func (f *orderFixture) stock(t *testing.T) int {
	t.Helper()
	var p models.Product
	require.NoError(t, f.env.db.First(&p, f.product.ID).Error)
	return p.Qty
}

func (f *orderFixture) placeOrder(t *testing.T, qty int) uint {
	t.Helper()
	w := f.env.do(authRequest("POST", "/api/save-order", f.orderBody(qty), f.customerToken))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return uint(parseResponse(w)["id"].(float64))
}

func TestSaveOrder(t *testing.T) {
	f := newOrderFixture(t)

	w := f.env.do(authRequest("POST", "/api/save-order", f.orderBody(2), f.customerToken))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := parseResponse(w)
	assert.Equal(t, "You have successfully placed your order.", resp["message"])

	var order models.Order
	require.NoError(t, f.env.db.Preload("Items").First(&order, uint(resp["id"].(float64))).Error)
	assert.Equal(t, f.customer.ID, order.UserID)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD"))
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(60)), order.Subtotal.String())
	assert.True(t, order.Shipping.Equal(decimal.NewFromInt(5)), order.Shipping.String())
	assert.True(t, order.TotalPrice.Equal(decimal.NewFromInt(65)), order.TotalPrice.String())

	require.Len(t, order.Items, 1)
	assert.Equal(t, "Tee", order.Items[0].Name)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, order.Items[0].Price.Equal(decimal.NewFromInt(60)))

	assert.Equal(t, 3, f.stock(t))

	mails := f.env.mailer.all()
	require.Len(t, mails, 1)
	assert.Equal(t, "order", mails[0].kind)
	assert.Equal(t, order.OrderNumber, mails[0].orderNumber)
	assert.Equal(t, "65.00", mails[0].total)
}

func TestSaveOrderFreeShipping(t *testing.T) {
	f := newOrderFixture(t)
	id := f.placeOrder(t, 4)

	var order models.Order
	require.NoError(t, f.env.db.First(&order, id).Error)
	assert.True(t, order.Shipping.IsZero())
	assert.True(t, order.TotalPrice.Equal(decimal.NewFromInt(120)))
}

func TestSaveOrderInsufficientStock(t *testing.T) {
	f := newOrderFixture(t)

	w := f.env.do(authRequest("POST", "/api/save-order", f.orderBody(6), f.customerToken))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, fieldErrors(w), "items.0")
	assert.Equal(t, 5, f.stock(t))
	assert.EqualValues(t, 0, f.env.count(&models.Order{}))
}

func TestSaveOrderValidation(t *testing.T) {
	f := newOrderFixture(t)
	body := f.orderBody(1)
	delete(body, "zip")
	body["items"] = []map[string]interface{}{}

	w := f.env.do(authRequest("POST", "/api/save-order", body, f.customerToken))
	require.Equal(t, http.StatusBadRequest, w.Code)
	errs := fieldErrors(w)
	assert.Contains(t, errs, "zip")
	assert.Contains(t, errs, "items")
}

func TestSaveOrderRequiresCustomer(t *testing.T) {
	f := newOrderFixture(t)

	w := f.env.do(jsonRequest("POST", "/api/save-order", f.orderBody(1)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.env.do(authRequest("POST", "/api/save-order", f.orderBody(1), f.adminToken))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCustomerOrderLookups(t *testing.T) {
	f := newOrderFixture(t)
	id := f.placeOrder(t, 1)
	_, otherToken := seedTestUser(t, f.env.db, "other@test.com", models.RoleCustomer)

	for _, path := range []string{"/api/order/%d", "/api/get-order-details/%d"} {
		w := f.env.do(authRequest("GET", fmt.Sprintf(path, id), nil, f.customerToken))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Len(t, dataObject(w)["order_items"], 1)

		w = f.env.do(authRequest("GET", fmt.Sprintf(path, id), nil, otherToken))
		assert.Equal(t, http.StatusNotFound, w.Code)
	}

	w := f.env.do(authRequest("GET", "/api/user/orders", nil, f.customerToken))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, dataArray(w), 1)

	w = f.env.do(authRequest("GET", "/api/user/orders", nil, otherToken))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, dataArray(w), 0)
}

func TestAdminOrders(t *testing.T) {
	f := newOrderFixture(t)
	id := f.placeOrder(t, 1)

	w := f.env.do(authRequest("GET", "/api/admin/orders", nil, f.adminToken))
	require.Equal(t, http.StatusOK, w.Code)
	orders := dataArray(w)
	require.Len(t, orders, 1)
	assert.Equal(t, f.customer.Email, orders[0].(map[string]interface{})["user"].(map[string]interface{})["email"])

	w = f.env.do(authRequest("GET", "/api/admin/orders?status=delivered", nil, f.adminToken))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, dataArray(w), 0)

	w = f.env.do(authRequest("GET", fmt.Sprintf("/api/admin/orders/%d", id), nil, f.adminToken))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, dataObject(w)["order_items"], 1)

	w = f.env.do(authRequest("GET", "/api/admin/orders", nil, f.customerToken))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateOrderStatusTransitions(t *testing.T) {
	f := newOrderFixture(t)
	id := f.placeOrder(t, 2)
	url := fmt.Sprintf("/api/admin/orders/%d/status", id)

	w := f.env.do(authRequest("PUT", url, map[string]interface{}{"status": "shipped"}, f.adminToken))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, parseResponse(w)["message"], "Invalid status transition")

	w = f.env.do(authRequest("PUT", url, map[string]interface{}{"status": "processing", "payment_status": "paid"}, f.adminToken))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "processing", dataObject(w)["status"])
	assert.Equal(t, "paid", dataObject(w)["payment_status"])
	assert.Equal(t, 3, f.stock(t))

	w = f.env.do(authRequest("PUT", url, map[string]interface{}{"status": "cancelled"}, f.adminToken))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 5, f.stock(t))

	w = f.env.do(authRequest("PUT", url, map[string]interface{}{"status": "processing"}, f.adminToken))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.env.do(authRequest("PUT", url, map[string]interface{}{"status": "lost"}, f.adminToken))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, fieldErrors(w), "status")
}
