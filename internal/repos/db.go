package repos

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// OpenDB connects, applies the schema and optionally seeds demo accounts
// and listings. SQLite is pinned to one connection so every transaction
// is serialized.
func OpenDB(driver, dsn string, seed bool) (*sqlx.DB, error) {
	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	if seed {
		if err := seedDemo(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}
	return db, nil
}

func isPostgres(db *sqlx.DB) bool { return db.DriverName() == DriverPostgres }

// isUniqueViolation reports whether err is a UNIQUE constraint failure on
// either driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE"))
	}
	return false
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func ensureSchema(db *sqlx.DB) error {
	stmts := sqliteSchema
	if isPostgres(db) {
		stmts = postgresSchema
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Amounts are TEXT on SQLite: NUMERIC affinity would turn decimal strings
// into float64.
var sqliteSchema = []string{
	`PRAGMA foreign_keys = ON`,

	// Users & Sessions
	`CREATE TABLE IF NOT EXISTS users(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('farmer','consumer','admin')),
  location_lat REAL,
  location_lng REAL,
  location_text TEXT,
  created_at DATETIME NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email))`,
	`CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  created_at DATETIME NOT NULL,
  last_seen DATETIME NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id)`,

	// Products
	`CREATE TABLE IF NOT EXISTS products(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  farmer_id INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
  crop_name TEXT NOT NULL,
  price_per_kg TEXT NOT NULL CHECK (CAST(price_per_kg AS REAL) > 0),
  available_qty TEXT NOT NULL CHECK (CAST(available_qty AS REAL) >= 0),
  unit TEXT NOT NULL DEFAULT 'kg',
  harvest_date DATE,
  description TEXT,
  image_url TEXT,
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_products_farmer ON products(farmer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_products_crop ON products(LOWER(crop_name))`,

	// Orders
	`CREATE TABLE IF NOT EXISTS orders(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_uuid TEXT NOT NULL UNIQUE,
  buyer_id INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
  total_amount TEXT NOT NULL CHECK (CAST(total_amount AS REAL) >= 0),
  payment_method TEXT NOT NULL CHECK (payment_method IN ('COD','UPI')),
  payment_reference TEXT,
  status TEXT NOT NULL DEFAULT 'Pending'
    CHECK (status IN ('Pending','Processing','Packed','Delivered','Rejected')),
  delivery_address TEXT NOT NULL,
  delivery_slot TEXT NOT NULL,
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_buyer ON orders(buyer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at)`,
	`CREATE TRIGGER IF NOT EXISTS trg_orders_total_immutable
  BEFORE UPDATE OF total_amount ON orders
  WHEN NEW.total_amount <> OLD.total_amount
BEGIN
  SELECT RAISE(ABORT, 'total_amount is immutable');
END`,
	`CREATE TABLE IF NOT EXISTS order_items(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE RESTRICT,
  farmer_id INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
  quantity TEXT NOT NULL CHECK (CAST(quantity AS REAL) > 0),
  price_per_kg TEXT NOT NULL,
  line_total TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_farmer ON order_items(farmer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_product ON order_items(product_id)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users(
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('farmer','consumer','admin')),
  location_lat DOUBLE PRECISION,
  location_lng DOUBLE PRECISION,
  location_text TEXT,
  created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email))`,
	`CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  created_at TIMESTAMPTZ NOT NULL,
  last_seen TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id)`,
	`CREATE TABLE IF NOT EXISTS products(
  id BIGSERIAL PRIMARY KEY,
  farmer_id BIGINT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
  crop_name TEXT NOT NULL,
  price_per_kg NUMERIC NOT NULL CHECK (price_per_kg > 0),
  available_qty NUMERIC NOT NULL CHECK (available_qty >= 0),
  unit TEXT NOT NULL DEFAULT 'kg',
  harvest_date DATE,
  description TEXT,
  image_url TEXT,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_products_farmer ON products(farmer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_products_crop ON products(LOWER(crop_name))`,
	`CREATE TABLE IF NOT EXISTS orders(
  id BIGSERIAL PRIMARY KEY,
  order_uuid TEXT NOT NULL UNIQUE,
  buyer_id BIGINT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
  total_amount NUMERIC NOT NULL CHECK (total_amount >= 0),
  payment_method TEXT NOT NULL CHECK (payment_method IN ('COD','UPI')),
  payment_reference TEXT,
  status TEXT NOT NULL DEFAULT 'Pending'
    CHECK (status IN ('Pending','Processing','Packed','Delivered','Rejected')),
  delivery_address TEXT NOT NULL,
  delivery_slot TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_buyer ON orders(buyer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at)`,
	`CREATE OR REPLACE FUNCTION orders_total_immutable() RETURNS trigger AS $$
BEGIN
  IF NEW.total_amount <> OLD.total_amount THEN
    RAISE EXCEPTION 'total_amount is immutable';
  END IF;
  RETURN NEW;
END
$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS trg_orders_total_immutable ON orders`,
	`CREATE TRIGGER trg_orders_total_immutable BEFORE UPDATE ON orders
  FOR EACH ROW EXECUTE FUNCTION orders_total_immutable()`,
	`CREATE TABLE IF NOT EXISTS order_items(
  id BIGSERIAL PRIMARY KEY,
  order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE RESTRICT,
  farmer_id BIGINT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
  quantity NUMERIC NOT NULL CHECK (quantity > 0),
  price_per_kg NUMERIC NOT NULL,
  line_total NUMERIC NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_farmer ON order_items(farmer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_product ON order_items(product_id)`,
}

// DemoPassword is the password of every seeded account.
const DemoPassword = "Passw0rd!"

type demoUser struct {
	Name, Email, Role, Place string
	Lat, Lng                 float64
}

type demoProduct struct {
	FarmerEmail, Crop, Desc string
	Price, Qty              string
}

var (
	demoUsers = []demoUser{
		{"Ravi Kumar", "ravi@agriconnect.test", "farmer", "Mandya", 12.5218, 76.8951},
		{"Lakshmi Devi", "lakshmi@agriconnect.test", "farmer", "Tumakuru", 13.3409, 77.1010},
		{"Asha Rao", "asha@agriconnect.test", "consumer", "Bengaluru", 12.9716, 77.5946},
		{"Imran Khan", "imran@agriconnect.test", "consumer", "Mysuru", 12.2958, 76.6394},
		{"Admin", "admin@agriconnect.test", "admin", "", 0, 0},
	}
	demoProducts = []demoProduct{
		{"ravi@agriconnect.test", "Tomato", "Vine ripened, picked this week", "24.50", "120"},
		{"ravi@agriconnect.test", "Ragi", "Finger millet, sun dried", "48", "300"},
		{"lakshmi@agriconnect.test", "Onion", "Red onion, medium size", "32", "4"},
		{"lakshmi@agriconnect.test", "Coconut", "Tender coconut, priced per kg", "18.75", "60"},
	}
)

// seedDemo inserts demo users and listings the first time it runs.
func seedDemo(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM users`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	log.Println("[seed] inserting demo farmers/consumers/products")

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	ctx := context.Background()
	now := time.Now().UTC()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ids := map[string]int64{}
	for _, u := range demoUsers {
		var lat, lng *float64
		if u.Place != "" {
			lat, lng = &u.Lat, &u.Lng
		}
		var id int64
		err := tx.QueryRowxContext(ctx, tx.Rebind(`
			INSERT INTO users(name,email,password_hash,role,location_lat,location_lng,location_text,created_at)
			VALUES(?,?,?,?,?,?,?,?)
			RETURNING id`),
			u.Name, u.Email, string(hash), u.Role, lat, lng, u.Place, now).Scan(&id)
		if err != nil {
			return err
		}
		ids[u.Email] = id
	}

	for _, p := range demoProducts {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO products(farmer_id,crop_name,price_per_kg,available_qty,unit,description,created_at,updated_at)
			VALUES(?,?,?,?,'kg',?,?,?)`),
			ids[p.FarmerEmail], p.Crop, decimal.RequireFromString(p.Price), decimal.RequireFromString(p.Qty),
			p.Desc, now, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}
