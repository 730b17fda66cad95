package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"agriconnect/internal/cache"
	"agriconnect/internal/domain"
	applog "agriconnect/internal/log"
	"agriconnect/internal/repos"
	"agriconnect/internal/services"
)

const headerIdempotencyKey = "Idempotency-Key"

type OrderHandler struct {
	Order   *services.OrderService
	Fulfill *services.FulfillmentService
	Reports *services.ReportService
	Orders  repos.OrderReader
	Idem    cache.Idempotency
}

// Place: POST /api/orders
func (h *OrderHandler) Place(c *fiber.Ctx) error {
	var req services.PlaceOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	u := currentUser(c)
	ctx, cancel := writeCtx(c)
	defer cancel()

	var idemKey string
	if k := strings.TrimSpace(c.Get(headerIdempotencyKey)); k != "" && h.Idem != nil {
		if len(k) > 100 {
			return badRequest(c, "Idempotency-Key too long")
		}
		idemKey = cache.OrderKey(u.ID, k)
		existing, reserved, err := h.Idem.Reserve(ctx, idemKey)
		switch {
		case err != nil:
			applog.Error(c, "orders.idempotency", err, nil)
			idemKey = ""
		case !reserved && existing == cache.Pending:
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "a request with this Idempotency-Key is still in progress"})
		case !reserved:
			orderUUID, fp := cache.ParseOrderRecord(existing)
			if fp != "" && fp != requestFingerprint(req) {
				applog.Security(c, "orders.idempotency.mismatch", map[string]any{"order_uuid": orderUUID})
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Idempotency-Key was already used with a different request"})
			}
			return c.JSON(fiber.Map{"orderUuid": orderUUID, "idempotent": true})
		}
	}

	placed, err := h.Order.PlaceOrder(ctx, u.ID, req)
	if err != nil {
		if idemKey != "" {
			if rerr := h.Idem.Release(ctx, idemKey); rerr != nil {
				applog.Error(c, "orders.idempotency.release", rerr, nil)
			}
		}
		status := StatusFor(err)
		if errors.Is(err, domain.ErrProductNotFound) {
			status = fiber.StatusUnprocessableEntity
		}
		return failWith(c, "orders.place", err, status)
	}
	if idemKey != "" {
		if err := h.Idem.Complete(ctx, idemKey, cache.OrderRecord(placed.OrderUUID, requestFingerprint(req))); err != nil {
			applog.Error(c, "orders.idempotency.complete", err, nil)
		}
	}

	applog.Audit(c, "orders.place", map[string]any{
		"order_id": placed.OrderID, "order_uuid": placed.OrderUUID, "total": placed.TotalAmount.String(),
	})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "order placed",
		"orderUuid":   placed.OrderUUID,
		"orderId":     placed.OrderID,
		"totalAmount": placed.TotalAmount,
	})
}

// requestFingerprint hashes the decoded request, so formatting differences
// in the body do not count as a different request.
func requestFingerprint(req services.PlaceOrderRequest) string {
	b, _ := json.Marshal(req)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (h *OrderHandler) ListConsumer(c *fiber.Ctx) error {
	ctx, cancel := readCtx(c)
	defer cancel()
	out, err := h.Reports.ListOrdersForBuyer(ctx, currentUser(c).ID)
	if err != nil {
		return fail(c, "orders.list.consumer", err)
	}
	return c.JSON(out)
}

func (h *OrderHandler) ListFarmer(c *fiber.Ctx) error {
	ctx, cancel := readCtx(c)
	defer cancel()
	out, err := h.Reports.ListOrdersForFarmer(ctx, currentUser(c).ID)
	if err != nil {
		return fail(c, "orders.list.farmer", err)
	}
	return c.JSON(out)
}

func (h *OrderHandler) Earnings(c *fiber.Ctx) error {
	ctx, cancel := readCtx(c)
	defer cancel()
	e, err := h.Reports.ComputeEarnings(ctx, currentUser(c).ID)
	if err != nil {
		return fail(c, "orders.earnings", err)
	}
	return c.JSON(e)
}

// View: GET /api/orders/:uuid
func (h *OrderHandler) View(c *fiber.Ctx) error {
	id := c.Params("uuid")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": domain.ErrOrderNotFound.Error()})
	}
	ctx, cancel := readCtx(c)
	defer cancel()
	v, err := h.Reports.GetOrder(ctx, id, currentUser(c))
	if err != nil {
		return fail(c, "orders.view", err)
	}
	return c.JSON(v)
}

type statusRequest struct {
	Status domain.Status `json:"status"`
}

// UpdateStatus: PATCH /api/orders/:id/status, :id is the numeric id or the uuid.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	var in statusRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx, cancel := writeCtx(c)
	defer cancel()

	raw := c.Params("id")
	orderID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if _, perr := uuid.Parse(raw); perr != nil {
			return badRequest(c, "invalid order id")
		}
		if orderID, err = h.Orders.OrderIDByUUID(ctx, raw); err != nil {
			return fail(c, "orders.status", err)
		}
	}

	u := currentUser(c)
	o, err := h.Fulfill.UpdateStatus(ctx, orderID, u.ID, in.Status)
	if err != nil {
		return fail(c, "orders.status", err)
	}
	applog.Audit(c, "orders.status", map[string]any{"order_id": o.ID, "status": string(o.Status)})
	return c.JSON(fiber.Map{"message": "order status updated", "status": o.Status})
}
