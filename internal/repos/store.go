package repos

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"agriconnect/internal/domain"
)

// Store is what the order workflow runs against. SQLStore and
// memstore.Store implement it.
type Store interface {
	// WithTx runs fn in one isolated transaction. If fn returns an error
	// nothing it wrote is visible afterwards.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	OrderReader
}

// Tx is the set of reads and writes allowed inside a transaction.
type Tx interface {
	// LockProduct reads a product and holds it until the transaction ends.
	// Missing products return domain.ErrProductNotFound.
	LockProduct(ctx context.Context, id int64) (domain.Product, error)
	SetProductQty(ctx context.Context, id int64, qty decimal.Decimal, at time.Time) error

	// InsertOrder and InsertOrderItem assign the generated id.
	InsertOrder(ctx context.Context, o *domain.Order) error
	InsertOrderItem(ctx context.Context, it *domain.OrderItem) error

	// LockOrder reads an order and holds it until the transaction ends.
	// Missing orders return domain.ErrOrderNotFound.
	LockOrder(ctx context.Context, id int64) (domain.Order, error)
	OrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
	SetOrderStatus(ctx context.Context, id int64, s domain.Status, at time.Time) error
}

// OrderReader serves the read-side views. Lines come back newest order
// first, items in insertion order.
type OrderReader interface {
	BuyerOrderLines(ctx context.Context, buyerID int64) ([]domain.OrderLine, error)
	FarmerOrderLines(ctx context.Context, farmerID int64) ([]domain.OrderLine, error)
	OrderLinesByUUID(ctx context.Context, orderUUID string) ([]domain.OrderLine, error)
	OrderIDByUUID(ctx context.Context, orderUUID string) (int64, error)
}
