package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"agriconnect/internal/domain"
	"agriconnect/internal/events"
	"agriconnect/internal/repos"
)

type FulfillmentService struct {
	Store    repos.Store
	Events   events.Publisher
	Producer string
	Now      func() time.Time
}

func NewFulfillmentService(store repos.Store, pub events.Publisher) *FulfillmentService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &FulfillmentService{Store: store, Events: pub, Producer: "agriconnect", Now: func() time.Time { return time.Now().UTC() }}
}

// UpdateStatus moves an order one step along the fulfillment graph on
// behalf of a farmer selling in it. Rejecting returns the stock of every
// item in the order.
func (s *FulfillmentService) UpdateStatus(ctx context.Context, orderID, farmerID int64, next domain.Status) (domain.Order, error) {
	if !next.Requestable() {
		return domain.Order{}, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, next)
	}

	now := s.Now()
	var (
		order    domain.Order
		from     domain.Status
		restored bool
	)
	err := s.Store.WithTx(ctx, func(tx repos.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		items, err := tx.OrderItems(ctx, o.ID)
		if err != nil {
			return err
		}
		if !sellsIn(items, farmerID) {
			return fmt.Errorf("%w: order %d", domain.ErrUnauthorized, o.ID)
		}
		if !domain.CanTransition(o.Status, next) {
			return fmt.Errorf("%w: cannot move from %s to %s", domain.ErrInvalidTransition, o.Status, next)
		}

		if next == domain.StatusRejected {
			if err := restoreStock(ctx, tx, items, now); err != nil {
				return err
			}
			restored = true
		}
		if err := tx.SetOrderStatus(ctx, o.ID, next, now); err != nil {
			return err
		}
		from = o.Status
		o.Status = next
		o.UpdatedAt = now
		order = o
		return nil
	})
	if err != nil {
		return domain.Order{}, storeErr(err)
	}

	publish(ctx, s.Events, s.Producer, events.EventOrderStatusChanged, order.UUID, now, events.OrderStatusChangedPayload{
		OrderID:       order.ID,
		OrderUUID:     order.UUID,
		From:          string(from),
		To:            string(next),
		ActorID:       farmerID,
		StockRestored: restored,
	})
	return order, nil
}

func sellsIn(items []domain.OrderItem, farmerID int64) bool {
	for _, it := range items {
		if it.FarmerID == farmerID {
			return true
		}
	}
	return false
}

// restoreStock adds each item's quantity back to its product, locking
// products in ascending id order.
func restoreStock(ctx context.Context, tx repos.Tx, items []domain.OrderItem, at time.Time) error {
	back := map[int64]decimal.Decimal{}
	for _, it := range items {
		back[it.ProductID] = back[it.ProductID].Add(it.Quantity)
	}
	ids := make([]int64, 0, len(back))
	for id := range back {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		p, err := tx.LockProduct(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.SetProductQty(ctx, id, p.AvailableQty.Add(back[id]), at); err != nil {
			return err
		}
	}
	return nil
}
