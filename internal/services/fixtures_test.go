package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"agriconnect/internal/domain"
	"agriconnect/internal/events"
	"agriconnect/internal/repos"
	"agriconnect/internal/repos/memstore"
	"agriconnect/internal/services"
)

var testNow = time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

// fixture hides which store backs a test.
type fixture struct {
	store      repos.Store
	db         *sqlx.DB
	addUser    func(name, role string) int64
	addProduct func(farmerID int64, crop, price, qty string) int64
	qty        func(productID int64) decimal.Decimal
	setPrice   func(productID int64, price string)
}

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(repos.DriverSQLite, ":memory:", false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sqlFixture(t *testing.T) fixture {
	db := memdb(t)
	users := repos.NewUserRepo(db)
	prods := repos.NewProductRepo(db)
	inv := repos.NewInventoryRepo(db)
	ctx := context.Background()
	return fixture{
		store: repos.NewSQLStore(db),
		db:    db,
		addUser: func(name, role string) int64 {
			u := &domain.User{Name: name, Email: name + "@test.local", Hash: "x", Role: role, LocationText: name + " village", CreatedAt: testNow}
			require.NoError(t, users.Create(ctx, u))
			return u.ID
		},
		addProduct: func(farmerID int64, crop, price, qty string) int64 {
			p := &domain.Product{FarmerID: farmerID, CropName: crop, PricePerKg: dec(price), AvailableQty: dec(qty), Unit: "kg", CreatedAt: testNow, UpdatedAt: testNow}
			require.NoError(t, prods.Create(ctx, p))
			return p.ID
		},
		qty: func(id int64) decimal.Decimal {
			q, err := inv.Qty(ctx, id)
			require.NoError(t, err)
			return q
		},
		setPrice: func(id int64, price string) {
			_, err := db.Exec(`UPDATE products SET price_per_kg = ? WHERE id = ?`, dec(price), id)
			require.NoError(t, err)
		},
	}
}

func memFixture(t *testing.T) fixture {
	s := memstore.New()
	return fixture{
		store: s,
		addUser: func(name, role string) int64 {
			return s.AddUser(domain.User{Name: name, Role: role, LocationText: name + " village"})
		},
		addProduct: func(farmerID int64, crop, price, qty string) int64 {
			return s.AddProduct(domain.Product{FarmerID: farmerID, CropName: crop, PricePerKg: dec(price), AvailableQty: dec(qty), Unit: "kg"})
		},
		qty: func(id int64) decimal.Decimal {
			p, ok := s.Product(id)
			require.True(t, ok)
			return p.AvailableQty
		},
		setPrice: func(id int64, price string) { s.SetPrice(id, dec(price)) },
	}
}

// eachStore runs fn once per store implementation.
func eachStore(t *testing.T, fn func(t *testing.T, f fixture)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, sqlFixture(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, memFixture(t)) })
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	evs  []events.Envelope
}

func (r *recordingPublisher) Publish(_ context.Context, key string, ev events.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	r.evs = append(r.evs, ev)
	return nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.evs {
		out = append(out, e.EventType)
	}
	return out
}

type engine struct {
	orders  *services.OrderService
	fulfill *services.FulfillmentService
	reports *services.ReportService
	pub     *recordingPublisher
}

func newEngine(f fixture) engine {
	pub := &recordingPublisher{}
	clock := func() time.Time { return testNow }

	ps := services.NewOrderService(f.store, pub)
	ps.Now = clock
	fs := services.NewFulfillmentService(f.store, pub)
	fs.Now = clock
	rs := services.NewReportService(f.store)
	rs.Now = clock
	return engine{orders: ps, fulfill: fs, reports: rs, pub: pub}
}

func cod(items ...services.OrderLineInput) services.PlaceOrderRequest {
	return services.PlaceOrderRequest{
		Items:           items,
		DeliveryAddress: "12 Market Road, Mandya",
		DeliverySlot:    "Morning 8-11",
		PaymentMethod:   domain.PaymentCOD,
	}
}

func line(productID int64, qty string) services.OrderLineInput {
	return services.OrderLineInput{ProductID: productID, Quantity: dec(qty)}
}
