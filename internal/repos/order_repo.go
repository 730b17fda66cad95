package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"agriconnect/internal/domain"
)

// OrderRepo serves the read-side order views.
type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderLineSelect = `
  SELECT
    o.id AS order_id, o.order_uuid, o.buyer_id,
    b.name AS buyer_name, COALESCE(b.location_text,'') AS buyer_location,
    o.status, o.total_amount, o.payment_method, o.delivery_address, o.delivery_slot, o.created_at,
    oi.id AS item_id, oi.product_id, p.crop_name, oi.farmer_id, f.name AS farmer_name,
    oi.quantity, oi.price_per_kg, oi.line_total
  FROM orders o
  JOIN order_items oi ON oi.order_id = o.id
  JOIN products p ON p.id = oi.product_id
  JOIN users b ON b.id = o.buyer_id
  JOIN users f ON f.id = oi.farmer_id
`

const orderLineOrder = ` ORDER BY o.created_at DESC, o.id DESC, oi.id ASC`

// BuyerOrderLines returns every item of every order the buyer placed.
func (r *OrderRepo) BuyerOrderLines(ctx context.Context, buyerID int64) ([]domain.OrderLine, error) {
	var out []domain.OrderLine
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(orderLineSelect+`WHERE o.buyer_id = ?`+orderLineOrder), buyerID)
	return out, err
}

// FarmerOrderLines returns only the farmer's own items, across orders.
func (r *OrderRepo) FarmerOrderLines(ctx context.Context, farmerID int64) ([]domain.OrderLine, error) {
	var out []domain.OrderLine
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(orderLineSelect+`WHERE oi.farmer_id = ?`+orderLineOrder), farmerID)
	return out, err
}

func (r *OrderRepo) OrderLinesByUUID(ctx context.Context, orderUUID string) ([]domain.OrderLine, error) {
	var out []domain.OrderLine
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(orderLineSelect+`WHERE o.order_uuid = ?`+orderLineOrder), orderUUID)
	return out, err
}

func (r *OrderRepo) OrderIDByUUID(ctx context.Context, orderUUID string) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, r.db.Rebind(`SELECT id FROM orders WHERE order_uuid = ?`), orderUUID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderUUID)
	}
	return id, err
}
