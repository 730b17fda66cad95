package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"agriconnect/internal/domain"
)

// SQLStore runs the order workflow on SQLite or Postgres. On Postgres the
// rows a transaction reads for writing are held with SELECT ... FOR UPDATE;
// on SQLite the single connection already serializes transactions.
type SQLStore struct {
	*OrderRepo
	db         *sqlx.DB
	lockSuffix string
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	s := &SQLStore{OrderRepo: NewOrderRepo(db), db: db}
	if isPostgres(db) {
		s.lockSuffix = " FOR UPDATE"
	}
	return s
}

func (s *SQLStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqlTx{tx: tx, lock: s.lockSuffix}); err != nil {
		return err
	}
	return tx.Commit()
}

type sqlTx struct {
	tx   *sqlx.Tx
	lock string
}

const productCols = `id, farmer_id, crop_name, price_per_kg, available_qty, unit, harvest_date,
  COALESCE(description,'') AS description, COALESCE(image_url,'') AS image_url, created_at, updated_at`

func (t *sqlTx) LockProduct(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	err := t.tx.GetContext(ctx, &p, t.tx.Rebind(`SELECT `+productCols+` FROM products WHERE id = ?`+t.lock), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%w: %d", domain.ErrProductNotFound, id)
	}
	return p, err
}

func (t *sqlTx) SetProductQty(ctx context.Context, id int64, qty decimal.Decimal, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		UPDATE products SET available_qty = ?, updated_at = ? WHERE id = ?`), qty, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", domain.ErrProductNotFound, id)
	}
	return nil
}

func (t *sqlTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	var ref *string
	if o.PaymentReference != "" {
		ref = &o.PaymentReference
	}
	return t.tx.QueryRowxContext(ctx, t.tx.Rebind(`
		INSERT INTO orders
		  (order_uuid, buyer_id, total_amount, payment_method, payment_reference, status,
		   delivery_address, delivery_slot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		o.UUID, o.BuyerID, o.TotalAmount, string(o.PaymentMethod), ref, string(o.Status),
		o.DeliveryAddress, o.DeliverySlot, o.CreatedAt, o.UpdatedAt).Scan(&o.ID)
}

func (t *sqlTx) InsertOrderItem(ctx context.Context, it *domain.OrderItem) error {
	return t.tx.QueryRowxContext(ctx, t.tx.Rebind(`
		INSERT INTO order_items(order_id, product_id, farmer_id, quantity, price_per_kg, line_total)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`),
		it.OrderID, it.ProductID, it.FarmerID, it.Quantity, it.PricePerKg, it.LineTotal).Scan(&it.ID)
}

func (t *sqlTx) LockOrder(ctx context.Context, id int64) (domain.Order, error) {
	var o domain.Order
	err := t.tx.GetContext(ctx, &o, t.tx.Rebind(`
		SELECT id, order_uuid, buyer_id, total_amount, payment_method,
		  COALESCE(payment_reference,'') AS payment_reference, status,
		  delivery_address, delivery_slot, created_at, updated_at
		FROM orders WHERE id = ?`+t.lock), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
	}
	return o, err
}

func (t *sqlTx) OrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	var out []domain.OrderItem
	err := t.tx.SelectContext(ctx, &out, t.tx.Rebind(`
		SELECT id, order_id, product_id, farmer_id, quantity, price_per_kg, line_total
		FROM order_items WHERE order_id = ? ORDER BY id`), orderID)
	return out, err
}

func (t *sqlTx) SetOrderStatus(ctx context.Context, id int64, s domain.Status, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`), string(s), at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
	}
	return nil
}
