package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"agriconnect/internal/domain"
	"agriconnect/internal/events"
	applog "agriconnect/internal/log"
	"agriconnect/internal/repos"
	"agriconnect/internal/validate"
)

// OrderService places orders. Stock is reserved at placement and handed
// back only if the order is rejected.
type OrderService struct {
	Store    repos.Store
	Events   events.Publisher
	Producer string
	Now      func() time.Time
}

func NewOrderService(store repos.Store, pub events.Publisher) *OrderService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &OrderService{Store: store, Events: pub, Producer: "agriconnect", Now: func() time.Time { return time.Now().UTC() }}
}

type OrderLineInput struct {
	ProductID int64           `json:"productId"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type PlaceOrderRequest struct {
	Items            []OrderLineInput     `json:"items"`
	DeliveryAddress  string               `json:"deliveryAddress"`
	DeliverySlot     string               `json:"deliverySlot"`
	PaymentMethod    domain.PaymentMethod `json:"paymentMethod"`
	PaymentReference string               `json:"paymentReference"`
}

// Normalize trims text fields, upper-cases the payment method and checks
// every field. It never touches storage.
func (r PlaceOrderRequest) Normalize() (PlaceOrderRequest, error) {
	if len(r.Items) == 0 {
		return r, fmt.Errorf("%w: items: at least one item is required", domain.ErrValidation)
	}
	for i, it := range r.Items {
		if it.ProductID <= 0 {
			return r, fmt.Errorf("%w: items[%d].productId must be positive", domain.ErrValidation, i)
		}
		if !validate.Positive(it.Quantity) {
			return r, fmt.Errorf("%w: items[%d].quantity must be greater than zero", domain.ErrValidation, i)
		}
	}

	var ok bool
	if r.DeliveryAddress, ok = validate.Address(r.DeliveryAddress); !ok {
		return r, fmt.Errorf("%w: deliveryAddress is required (max 500 chars)", domain.ErrValidation)
	}
	if r.DeliverySlot, ok = validate.Slot(r.DeliverySlot); !ok {
		return r, fmt.Errorf("%w: deliverySlot is required", domain.ErrValidation)
	}
	if r.PaymentReference, ok = validate.PaymentReference(r.PaymentReference); !ok {
		return r, fmt.Errorf("%w: paymentReference too long", domain.ErrValidation)
	}
	r.PaymentMethod = domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(string(r.PaymentMethod))))
	switch r.PaymentMethod {
	case domain.PaymentCOD:
	case domain.PaymentUPI:
		if r.PaymentReference == "" {
			return r, fmt.Errorf("%w: paymentReference is required for UPI", domain.ErrValidation)
		}
	default:
		return r, fmt.Errorf("%w: paymentMethod must be COD or UPI", domain.ErrValidation)
	}
	return r, nil
}

type PlacedOrder struct {
	OrderID     int64           `json:"orderId"`
	OrderUUID   string          `json:"orderUuid"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// PlaceOrder checks stock, snapshots prices, creates the order and
// decrements inventory in one transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, buyerID int64, req PlaceOrderRequest) (PlacedOrder, error) {
	if buyerID <= 0 {
		return PlacedOrder{}, fmt.Errorf("%w: buyer is required", domain.ErrValidation)
	}
	req, err := req.Normalize()
	if err != nil {
		return PlacedOrder{}, err
	}

	need := map[int64]decimal.Decimal{}
	for _, it := range req.Items {
		need[it.ProductID] = need[it.ProductID].Add(it.Quantity)
	}
	ids := make([]int64, 0, len(need))
	for id := range need {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	now := s.Now()
	var (
		order domain.Order
		items []domain.OrderItem
	)
	err = s.Store.WithTx(ctx, func(tx repos.Tx) error {
		products := make(map[int64]domain.Product, len(ids))
		for _, id := range ids {
			p, err := tx.LockProduct(ctx, id)
			if err != nil {
				return err
			}
			products[id] = p
		}
		for _, id := range ids {
			p := products[id]
			if p.AvailableQty.LessThan(need[id]) {
				return fmt.Errorf("%w: %s (product %d): requested %s, available %s",
					domain.ErrInsufficientInventory, p.CropName, id, need[id], p.AvailableQty)
			}
		}

		order = domain.Order{
			UUID:             uuid.NewString(),
			BuyerID:          buyerID,
			PaymentMethod:    req.PaymentMethod,
			PaymentReference: req.PaymentReference,
			Status:           domain.StatusPending,
			DeliveryAddress:  req.DeliveryAddress,
			DeliverySlot:     req.DeliverySlot,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		items = make([]domain.OrderItem, 0, len(req.Items))
		total := decimal.Zero
		for _, line := range req.Items {
			p := products[line.ProductID]
			lt := line.Quantity.Mul(p.PricePerKg)
			total = total.Add(lt)
			items = append(items, domain.OrderItem{
				ProductID:  p.ID,
				FarmerID:   p.FarmerID,
				Quantity:   line.Quantity,
				PricePerKg: p.PricePerKg,
				LineTotal:  lt,
			})
		}
		order.TotalAmount = total

		if err := tx.InsertOrder(ctx, &order); err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.InsertOrderItem(ctx, &items[i]); err != nil {
				return err
			}
		}
		for _, id := range ids {
			if err := tx.SetProductQty(ctx, id, products[id].AvailableQty.Sub(need[id]), now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PlacedOrder{}, storeErr(err)
	}

	s.publishPlaced(ctx, order, items)
	return PlacedOrder{OrderID: order.ID, OrderUUID: order.UUID, TotalAmount: order.TotalAmount}, nil
}

func (s *OrderService) publishPlaced(ctx context.Context, o domain.Order, items []domain.OrderItem) {
	payload := events.OrderPlacedPayload{
		OrderID:       o.ID,
		OrderUUID:     o.UUID,
		BuyerID:       o.BuyerID,
		TotalAmount:   o.TotalAmount,
		PaymentMethod: string(o.PaymentMethod),
	}
	for _, it := range items {
		payload.Items = append(payload.Items, events.ItemPayload{
			ProductID:  it.ProductID,
			FarmerID:   it.FarmerID,
			Quantity:   it.Quantity,
			PricePerKg: it.PricePerKg,
			LineTotal:  it.LineTotal,
		})
	}
	publish(ctx, s.Events, s.Producer, events.EventOrderPlaced, o.UUID, o.CreatedAt, payload)
}

// publish sends an event after commit. Failures are logged; the committed
// order stands.
func publish(ctx context.Context, pub events.Publisher, producer, eventType, orderUUID string, at time.Time, payload any) {
	ev, err := events.New(producer, eventType, orderUUID, at, payload)
	if err == nil {
		err = pub.Publish(ctx, orderUUID, ev)
	}
	if err != nil {
		applog.Background("events.publish", err, map[string]any{"event_type": eventType, "order_uuid": orderUUID})
	}
}
