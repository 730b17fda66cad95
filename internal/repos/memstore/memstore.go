// Package memstore is an in-process repos.Store. One mutex guards all
// state, so transactions are serialized; a failed transaction is undone
// from its journal before the lock is released.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"agriconnect/internal/domain"
	"agriconnect/internal/repos"
)

type Store struct {
	mu       sync.Mutex
	users    map[int64]domain.User
	products map[int64]domain.Product
	orders   map[int64]domain.Order
	items    map[int64][]domain.OrderItem
	uuids    map[string]int64

	nextUser, nextProduct, nextOrder, nextItem int64
}

func New() *Store {
	return &Store{
		users:    map[int64]domain.User{},
		products: map[int64]domain.Product{},
		orders:   map[int64]domain.Order{},
		items:    map[int64][]domain.OrderItem{},
		uuids:    map[string]int64{},
	}
}

// AddUser registers a user and returns its id.
func (s *Store) AddUser(u domain.User) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUser++
	u.ID = s.nextUser
	s.users[u.ID] = u
	return u.ID
}

// AddProduct lists a product and returns its id.
func (s *Store) AddProduct(p domain.Product) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextProduct++
	p.ID = s.nextProduct
	s.products[p.ID] = p
	return p.ID
}

// SetPrice changes a listing's price; existing order items keep theirs.
func (s *Store) SetPrice(id int64, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		p.PricePerKg = price
		s.products[id] = p
	}
}

// Product returns a copy of the stored product.
func (s *Store) Product(id int64) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

// OrderCount reports how many orders exist.
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repos.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &memTx{s: s}
	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
		if err != nil {
			t.rollback()
		}
	}()
	return fn(t)
}

type memTx struct {
	s    *Store
	undo []func()
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) LockProduct(ctx context.Context, id int64) (domain.Product, error) {
	p, ok := t.s.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %d", domain.ErrProductNotFound, id)
	}
	return p, nil
}

func (t *memTx) SetProductQty(ctx context.Context, id int64, qty decimal.Decimal, at time.Time) error {
	p, ok := t.s.products[id]
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrProductNotFound, id)
	}
	if qty.IsNegative() {
		return fmt.Errorf("available_qty of product %d would go negative", id)
	}
	prev := p
	t.undo = append(t.undo, func() { t.s.products[id] = prev })
	p.AvailableQty = qty
	p.UpdatedAt = at
	t.s.products[id] = p
	return nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	if _, dup := t.s.uuids[o.UUID]; dup {
		return fmt.Errorf("duplicate order uuid %s", o.UUID)
	}
	t.s.nextOrder++
	o.ID = t.s.nextOrder
	id, uuid := o.ID, o.UUID
	t.s.orders[id] = *o
	t.s.uuids[uuid] = id
	t.undo = append(t.undo, func() {
		delete(t.s.orders, id)
		delete(t.s.uuids, uuid)
		delete(t.s.items, id)
	})
	return nil
}

func (t *memTx) InsertOrderItem(ctx context.Context, it *domain.OrderItem) error {
	if _, ok := t.s.orders[it.OrderID]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrOrderNotFound, it.OrderID)
	}
	t.s.nextItem++
	it.ID = t.s.nextItem
	orderID := it.OrderID
	prev := t.s.items[orderID]
	t.s.items[orderID] = append(append([]domain.OrderItem(nil), prev...), *it)
	t.undo = append(t.undo, func() { t.s.items[orderID] = prev })
	return nil
}

func (t *memTx) LockOrder(ctx context.Context, id int64) (domain.Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
	}
	return o, nil
}

func (t *memTx) OrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	return append([]domain.OrderItem(nil), t.s.items[orderID]...), nil
}

func (t *memTx) SetOrderStatus(ctx context.Context, id int64, st domain.Status, at time.Time) error {
	o, ok := t.s.orders[id]
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
	}
	prev := o
	t.undo = append(t.undo, func() { t.s.orders[id] = prev })
	o.Status = st
	o.UpdatedAt = at
	t.s.orders[id] = o
	return nil
}

func (s *Store) BuyerOrderLines(ctx context.Context, buyerID int64) ([]domain.OrderLine, error) {
	return s.lines(func(o domain.Order, _ domain.OrderItem) bool { return o.BuyerID == buyerID }), nil
}

func (s *Store) FarmerOrderLines(ctx context.Context, farmerID int64) ([]domain.OrderLine, error) {
	return s.lines(func(_ domain.Order, it domain.OrderItem) bool { return it.FarmerID == farmerID }), nil
}

func (s *Store) OrderLinesByUUID(ctx context.Context, orderUUID string) ([]domain.OrderLine, error) {
	return s.lines(func(o domain.Order, _ domain.OrderItem) bool { return o.UUID == orderUUID }), nil
}

func (s *Store) OrderIDByUUID(ctx context.Context, orderUUID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.uuids[orderUUID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderUUID)
	}
	return id, nil
}

func (s *Store) lines(match func(domain.Order, domain.OrderItem) bool) []domain.OrderLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})

	var out []domain.OrderLine
	for _, o := range orders {
		buyer := s.users[o.BuyerID]
		for _, it := range s.items[o.ID] {
			if !match(o, it) {
				continue
			}
			out = append(out, domain.OrderLine{
				OrderID:         o.ID,
				OrderUUID:       o.UUID,
				BuyerID:         o.BuyerID,
				BuyerName:       buyer.Name,
				BuyerLocation:   buyer.LocationText,
				Status:          o.Status,
				TotalAmount:     o.TotalAmount,
				PaymentMethod:   o.PaymentMethod,
				DeliveryAddress: o.DeliveryAddress,
				DeliverySlot:    o.DeliverySlot,
				CreatedAt:       o.CreatedAt,
				ItemID:          it.ID,
				ProductID:       it.ProductID,
				CropName:        s.products[it.ProductID].CropName,
				FarmerID:        it.FarmerID,
				FarmerName:      s.users[it.FarmerID].Name,
				Quantity:        it.Quantity,
				PricePerKg:      it.PricePerKg,
				LineTotal:       it.LineTotal,
			})
		}
	}
	return out
}

var _ repos.Store = (*Store)(nil)
