package handlers_test

import (
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func placeBody(productID int64, qty float64) map[string]any {
	return map[string]any{
		"items":           []map[string]any{{"productId": productID, "quantity": qty}},
		"deliveryAddress": "12 Market Road, Mandya",
		"deliverySlot":    "Morning 8-11",
		"paymentMethod":   "COD",
	}
}

func TestOrders_PlaceAndFulfil(t *testing.T) {
	ta := newTestApp(t)
	farmerTok, _ := ta.register(t, "Ravi", "farmer", nil)
	otherFarmerTok, _ := ta.register(t, "Lakshmi", "farmer", nil)
	buyerTok, _ := ta.register(t, "Asha", "consumer", map[string]any{"locationText": "Bengaluru"})
	rivalTok, _ := ta.register(t, "Imran", "consumer", nil)
	pid := ta.addProduct(t, farmerTok, "Tomato", 40, 5)

	r := ta.do(t, "POST", "/api/orders", buyerTok, placeBody(pid, 5))
	require.Equal(t, fiber.StatusCreated, r.Status, "body=%s", r.Body)
	placed := r.JSON(t)
	orderUUID := placed["orderUuid"].(string)
	require.Equal(t, "200", placed["totalAmount"])

	r = ta.do(t, "POST", "/api/orders", rivalTok, placeBody(pid, 1))
	require.Equal(t, fiber.StatusConflict, r.Status)
	require.Contains(t, r.JSON(t)["error"], "insufficient inventory")

	r = ta.do(t, "GET", fmt.Sprintf("/api/availability?productId=%d", pid), "", nil)
	require.Equal(t, fiber.StatusOK, r.Status)
	require.Equal(t, "OUT_OF_STOCK", r.JSON(t)["status"])

	// buyer and farmer views
	r = ta.do(t, "GET", "/api/orders/consumer", buyerTok, nil)
	require.Equal(t, fiber.StatusOK, r.Status)
	views := r.List(t)
	require.Len(t, views, 1)
	require.Equal(t, orderUUID, views[0]["uuid"])
	require.Equal(t, "Pending", views[0]["status"])

	r = ta.do(t, "GET", "/api/orders/farmer", farmerTok, nil)
	require.Equal(t, fiber.StatusOK, r.Status)
	views = r.List(t)
	require.Len(t, views, 1)
	require.Equal(t, "Asha", views[0]["buyerName"])
	require.Equal(t, "Bengaluru", views[0]["buyerLocation"])

	r = ta.do(t, "GET", "/api/orders/"+orderUUID, buyerTok, nil)
	require.Equal(t, fiber.StatusOK, r.Status)
	r = ta.do(t, "GET", "/api/orders/"+orderUUID, rivalTok, nil)
	require.Equal(t, fiber.StatusNotFound, r.Status)

	// status changes, by uuid and by id
	status := func(tok, id, s string) reply {
		return ta.do(t, "PATCH", "/api/orders/"+id+"/status", tok, map[string]any{"status": s})
	}
	require.Equal(t, fiber.StatusBadRequest, status(farmerTok, orderUUID, "Shipped").Status)
	require.Equal(t, fiber.StatusBadRequest, status(farmerTok, orderUUID, "Pending").Status)
	require.Equal(t, fiber.StatusForbidden, status(otherFarmerTok, orderUUID, "Processing").Status)
	require.Equal(t, fiber.StatusForbidden, status(buyerTok, orderUUID, "Processing").Status)
	require.Equal(t, fiber.StatusNotFound, status(farmerTok, "99999", "Processing").Status)

	r = status(farmerTok, orderUUID, "Processing")
	require.Equal(t, fiber.StatusOK, r.Status, "body=%s", r.Body)
	require.Equal(t, "Processing", r.JSON(t)["status"])

	orderID := fmt.Sprintf("%d", int64(placed["orderId"].(float64)))
	r = status(farmerTok, orderID, "Rejected")
	require.Equal(t, fiber.StatusConflict, r.Status)
	require.Contains(t, r.JSON(t)["error"], "Processing")

	require.Equal(t, fiber.StatusOK, status(farmerTok, orderID, "Packed").Status)
	require.Equal(t, fiber.StatusOK, status(farmerTok, orderID, "Delivered").Status)

	r = ta.do(t, "GET", "/api/orders/earnings", farmerTok, nil)
	require.Equal(t, fiber.StatusOK, r.Status)
	e := r.JSON(t)
	require.Equal(t, "200", e["total"])
	require.EqualValues(t, 1, e["deliveredOrders"])
}

func TestOrders_RejectRestoresStock(t *testing.T) {
	ta := newTestApp(t)
	farmerTok, _ := ta.register(t, "Ravi", "farmer", nil)
	buyerTok, _ := ta.register(t, "Asha", "consumer", nil)
	pid := ta.addProduct(t, farmerTok, "Onion", 30, 10)

	r := ta.do(t, "POST", "/api/orders", buyerTok, placeBody(pid, 4))
	require.Equal(t, fiber.StatusCreated, r.Status)
	orderUUID := r.JSON(t)["orderUuid"].(string)

	r = ta.do(t, "GET", "/api/products/mine", farmerTok, nil)
	require.Equal(t, "6", r.List(t)[0]["availableQty"])

	r = ta.do(t, "PATCH", "/api/orders/"+orderUUID+"/status", farmerTok, map[string]any{"status": "Rejected"})
	require.Equal(t, fiber.StatusOK, r.Status)

	r = ta.do(t, "GET", "/api/products/mine", farmerTok, nil)
	require.Equal(t, "10", r.List(t)[0]["availableQty"])
}

func TestOrders_PlacementErrors(t *testing.T) {
	ta := newTestApp(t)
	farmerTok, _ := ta.register(t, "Ravi", "farmer", nil)
	buyerTok, _ := ta.register(t, "Asha", "consumer", nil)
	pid := ta.addProduct(t, farmerTok, "Ragi", 48, 3)

	cases := []struct {
		name   string
		token  string
		body   any
		status int
	}{
		{"anonymous", "", placeBody(pid, 1), fiber.StatusUnauthorized},
		{"farmer cannot buy", farmerTok, placeBody(pid, 1), fiber.StatusForbidden},
		{"malformed json", buyerTok, `{"items": [`, fiber.StatusBadRequest},
		{"no items", buyerTok, map[string]any{"deliveryAddress": "a", "deliverySlot": "b", "paymentMethod": "COD"}, fiber.StatusBadRequest},
		{"zero quantity", buyerTok, placeBody(pid, 0), fiber.StatusBadRequest},
		{"unknown product", buyerTok, placeBody(pid+40, 1), fiber.StatusUnprocessableEntity},
		{"too much", buyerTok, placeBody(pid, 3.5), fiber.StatusConflict},
		{"upi without reference", buyerTok, map[string]any{
			"items":           []map[string]any{{"productId": pid, "quantity": 1}},
			"deliveryAddress": "a", "deliverySlot": "b", "paymentMethod": "UPI",
		}, fiber.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := ta.do(t, "POST", "/api/orders", tc.token, tc.body)
			require.Equal(t, tc.status, r.Status, "body=%s", r.Body)
		})
	}

	r := ta.do(t, "GET", fmt.Sprintf("/api/availability?productId=%d", pid), "", nil)
	require.Equal(t, "3", r.JSON(t)["qty"])
}

func TestOrders_IdempotencyKey(t *testing.T) {
	ta := newTestApp(t)
	farmerTok, _ := ta.register(t, "Ravi", "farmer", nil)
	buyerTok, _ := ta.register(t, "Asha", "consumer", nil)
	pid := ta.addProduct(t, farmerTok, "Coconut", 18.75, 10)

	first := ta.do(t, "POST", "/api/orders", buyerTok, placeBody(pid, 2), "Idempotency-Key", "checkout-1")
	require.Equal(t, fiber.StatusCreated, first.Status)
	again := ta.do(t, "POST", "/api/orders", buyerTok, placeBody(pid, 2), "Idempotency-Key", "checkout-1")
	require.Equal(t, fiber.StatusOK, again.Status)
	require.Equal(t, first.JSON(t)["orderUuid"], again.JSON(t)["orderUuid"])
	// same body, different formatting, still counts as a replay
	spaced := ta.do(t, "POST", "/api/orders", buyerTok, fmt.Sprintf(`{ "items": [ {"productId": %d, "quantity": 2.0} ],
		"deliveryAddress": "12 Market Road, Mandya", "deliverySlot": "Morning 8-11", "paymentMethod": "COD" }`, pid),
		"Idempotency-Key", "checkout-1")
	require.Equal(t, fiber.StatusOK, spaced.Status, "body=%s", spaced.Body)
	reused := ta.do(t, "POST", "/api/orders", buyerTok, placeBody(pid, 3), "Idempotency-Key", "checkout-1")
	require.Equal(t, fiber.StatusUnprocessableEntity, reused.Status)

	// a failed attempt frees its key
	fail := ta.do(t, "POST", "/api/orders", buyerTok, placeBody(pid, 50), "Idempotency-Key", "checkout-2")
	require.Equal(t, fiber.StatusConflict, fail.Status)
	retry := ta.do(t, "POST", "/api/orders", buyerTok, placeBody(pid, 1), "Idempotency-Key", "checkout-2")
	require.Equal(t, fiber.StatusCreated, retry.Status)

	r := ta.do(t, "GET", "/api/orders/consumer", buyerTok, nil)
	require.Len(t, r.List(t), 2)
}
