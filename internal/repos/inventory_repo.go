package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"agriconnect/internal/domain"
)

type InventoryRepo struct{ db *sqlx.DB }

func NewInventoryRepo(db *sqlx.DB) *InventoryRepo { return &InventoryRepo{db: db} }

// Qty returns the current stock of a product.
func (r *InventoryRepo) Qty(ctx context.Context, productID int64) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := r.db.GetContext(ctx, &qty, r.db.Rebind(`SELECT available_qty FROM products WHERE id = ?`), productID)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %d", domain.ErrProductNotFound, productID)
	}
	return qty, err
}

// LowStockRow is a listing at or under the low-stock threshold.
type LowStockRow struct {
	ProductID int64           `db:"product_id" json:"productId"`
	CropName  string          `db:"crop_name" json:"cropName"`
	Qty       decimal.Decimal `db:"available_qty" json:"availableQty"`
}

// LowStock lists a farmer's listings with less than threshold left,
// emptiest first. Quantities are compared as decimals, not in SQL.
func (r *InventoryRepo) LowStock(ctx context.Context, farmerID int64, threshold decimal.Decimal) ([]LowStockRow, error) {
	var all []LowStockRow
	err := r.db.SelectContext(ctx, &all, r.db.Rebind(`
		SELECT id AS product_id, crop_name, available_qty
		FROM products
		WHERE farmer_id = ?`), farmerID)
	if err != nil {
		return nil, err
	}
	rows := make([]LowStockRow, 0, len(all))
	for _, row := range all {
		if row.Qty.LessThan(threshold) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Qty.Cmp(rows[j].Qty); c != 0 {
			return c < 0
		}
		return rows[i].CropName < rows[j].CropName
	})
	return rows, nil
}
