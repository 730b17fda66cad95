package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"agriconnect/internal/domain"
	"agriconnect/internal/geo"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

// ProductFilter narrows a catalog search. Empty Query matches everything.
type ProductFilter struct {
	Query       string
	InStockOnly bool

	// Near keeps farmers located inside the box; farmers without a
	// location are dropped.
	Near   *geo.Box
	Limit  int
	Offset int
}

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	return r.db.QueryRowxContext(ctx, r.db.Rebind(`
		INSERT INTO products
		  (farmer_id, crop_name, price_per_kg, available_qty, unit, harvest_date, description, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		p.FarmerID, p.CropName, p.PricePerKg, p.AvailableQty, p.Unit, p.HarvestDate,
		nullIfEmpty(p.Description), nullIfEmpty(p.ImageURL), p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
}

func (r *ProductRepo) Get(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT `+productCols+` FROM products WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%w: %d", domain.ErrProductNotFound, id)
	}
	return p, err
}

// Update rewrites a listing owned by p.FarmerID. A listing owned by
// someone else is reported as not found.
func (r *ProductRepo) Update(ctx context.Context, p domain.Product) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE products
		SET crop_name = ?, price_per_kg = ?, available_qty = ?, unit = ?, harvest_date = ?,
		    description = ?, image_url = ?, updated_at = ?
		WHERE id = ? AND farmer_id = ?`),
		p.CropName, p.PricePerKg, p.AvailableQty, p.Unit, p.HarvestDate,
		nullIfEmpty(p.Description), nullIfEmpty(p.ImageURL), p.UpdatedAt, p.ID, p.FarmerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", domain.ErrProductNotFound, p.ID)
	}
	return nil
}

// Delete removes a listing that no order refers to.
func (r *ProductRepo) Delete(ctx context.Context, id, farmerID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var refs int
	if err := tx.GetContext(ctx, &refs, tx.Rebind(`SELECT COUNT(*) FROM order_items WHERE product_id = ?`), id); err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("%w: %d", domain.ErrProductInUse, id)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM products WHERE id = ? AND farmer_id = ?`), id, farmerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", domain.ErrProductNotFound, id)
	}
	return tx.Commit()
}

func (r *ProductRepo) ListByFarmer(ctx context.Context, farmerID int64) ([]domain.Product, error) {
	var out []domain.Product
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT `+productCols+` FROM products
		WHERE farmer_id = ?
		ORDER BY created_at DESC, id DESC`), farmerID)
	return out, err
}

// Search lists products with the selling farmer's name and location.
func (r *ProductRepo) Search(ctx context.Context, f ProductFilter) ([]domain.ProductListing, error) {
	where := `1 = 1`
	args := []any{}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		where += ` AND (LOWER(p.crop_name) LIKE ? OR LOWER(COALESCE(p.description,'')) LIKE ?)`
		args = append(args, "%"+q+"%", "%"+q+"%")
	}
	if f.InStockOnly {
		where += ` AND CAST(p.available_qty AS DOUBLE PRECISION) > 0`
	}
	if b := f.Near; b != nil {
		where += ` AND u.location_lat BETWEEN ? AND ?`
		args = append(args, b.MinLat, b.MaxLat)
		if b.AllLng {
			where += ` AND u.location_lng IS NOT NULL`
		} else {
			where += ` AND u.location_lng BETWEEN ? AND ?`
			args = append(args, b.MinLng, b.MaxLng)
		}
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}

	q := `
  SELECT
    p.id, p.farmer_id, p.crop_name, p.price_per_kg, p.available_qty, p.unit, p.harvest_date,
    COALESCE(p.description,'') AS description, COALESCE(p.image_url,'') AS image_url,
    p.created_at, p.updated_at,
    u.name AS farmer_name, u.location_lat, u.location_lng,
    COALESCE(u.location_text,'') AS location_text
  FROM products p
  JOIN users u ON u.id = p.farmer_id
  WHERE ` + where + `
  ORDER BY p.created_at DESC, p.id DESC
  LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	var out []domain.ProductListing
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...)
	return out, err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
