package services_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"agriconnect/internal/domain"
	"agriconnect/internal/events"
)

func TestUpdateStatus_ForwardOnly(t *testing.T) {
	eachStore(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		e := newEngine(f)
		farmer := f.addUser("ravi", domain.RoleFarmer)
		buyer := f.addUser("asha", domain.RoleConsumer)
		a := f.addProduct(farmer, "Tomato", "20", "100")

		placed, err := e.orders.PlaceOrder(ctx, buyer, cod(line(a, "1")))
		require.NoError(t, err)
		id := placed.OrderID

		steps := []struct {
			to   domain.Status
			want error
		}{
			{domain.StatusPacked, domain.ErrInvalidTransition},
			{domain.StatusDelivered, domain.ErrInvalidTransition},
			{domain.StatusProcessing, nil},
			{domain.StatusProcessing, domain.ErrInvalidTransition},
			{domain.StatusRejected, domain.ErrInvalidTransition},
			{domain.StatusPacked, nil},
			{domain.StatusDelivered, nil},
			{domain.StatusProcessing, domain.ErrInvalidTransition},
			{domain.StatusRejected, domain.ErrInvalidTransition},
		}
		for _, s := range steps {
			_, err := e.fulfill.UpdateStatus(ctx, id, farmer, s.to)
			if s.want == nil {
				require.NoError(t, err, "to %s", s.to)
			} else {
				require.ErrorIs(t, err, s.want, "to %s", s.to)
			}
		}

		views, err := e.reports.ListOrdersForBuyer(ctx, buyer)
		require.NoError(t, err)
		require.Equal(t, domain.StatusDelivered, views[0].Status)
	})
}

func TestUpdateStatus_InvalidStatusBeforeStorage(t *testing.T) {
	eachStore(t, func(t *testing.T, f fixture) {
		e := newEngine(f)
		for _, s := range []domain.Status{domain.StatusPending, "Shipped", ""} {
			_, err := e.fulfill.UpdateStatus(context.Background(), 999, 1, s)
			require.ErrorIs(t, err, domain.ErrInvalidStatus)
		}
	})
}

func TestUpdateStatus_UnknownOrderAndStranger(t *testing.T) {
	eachStore(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		e := newEngine(f)
		farmer := f.addUser("ravi", domain.RoleFarmer)
		stranger := f.addUser("lakshmi", domain.RoleFarmer)
		buyer := f.addUser("asha", domain.RoleConsumer)
		a := f.addProduct(farmer, "Tomato", "20", "10")

		placed, err := e.orders.PlaceOrder(ctx, buyer, cod(line(a, "1")))
		require.NoError(t, err)

		_, err = e.fulfill.UpdateStatus(ctx, placed.OrderID+50, farmer, domain.StatusProcessing)
		require.ErrorIs(t, err, domain.ErrOrderNotFound)

		_, err = e.fulfill.UpdateStatus(ctx, placed.OrderID, stranger, domain.StatusRejected)
		require.ErrorIs(t, err, domain.ErrUnauthorized)
		requireDec(t, "9", f.qty(a))
	})
}

func TestUpdateStatus_RejectRestoresEveryItem(t *testing.T) {
	eachStore(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		e := newEngine(f)
		ravi := f.addUser("ravi", domain.RoleFarmer)
		lakshmi := f.addUser("lakshmi", domain.RoleFarmer)
		buyer := f.addUser("asha", domain.RoleConsumer)
		tomato := f.addProduct(ravi, "Tomato", "20", "10")
		onion := f.addProduct(lakshmi, "Onion", "30", "6")

		placed, err := e.orders.PlaceOrder(ctx, buyer, cod(line(tomato, "4"), line(onion, "1.5"), line(tomato, "1")))
		require.NoError(t, err)
		requireDec(t, "5", f.qty(tomato))
		requireDec(t, "4.5", f.qty(onion))

		o, err := e.fulfill.UpdateStatus(ctx, placed.OrderID, lakshmi, domain.StatusRejected)
		require.NoError(t, err)
		require.Equal(t, domain.StatusRejected, o.Status)
		requireDec(t, "10", f.qty(tomato))
		requireDec(t, "6", f.qty(onion))

		last := e.pub.evs[len(e.pub.evs)-1]
		require.Equal(t, events.EventOrderStatusChanged, last.EventType)
		p, err := events.UnwrapPayload[events.OrderStatusChangedPayload](last)
		require.NoError(t, err)
		require.Equal(t, "Pending", p.From)
		require.Equal(t, "Rejected", p.To)
		require.True(t, p.StockRestored)

		_, err = e.fulfill.UpdateStatus(ctx, placed.OrderID, ravi, domain.StatusRejected)
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
		requireDec(t, "10", f.qty(tomato))
	})
}

func TestUpdateStatus_ConcurrentUpdatesFromSameState(t *testing.T) {
	eachStore(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		e := newEngine(f)
		farmer := f.addUser("ravi", domain.RoleFarmer)
		buyer := f.addUser("asha", domain.RoleConsumer)
		a := f.addProduct(farmer, "Tomato", "20", "10")

		placed, err := e.orders.PlaceOrder(ctx, buyer, cod(line(a, "2")))
		require.NoError(t, err)

		var won, lost atomic.Int32
		var g errgroup.Group
		for i := 0; i < 8; i++ {
			g.Go(func() error {
				_, err := e.fulfill.UpdateStatus(ctx, placed.OrderID, farmer, domain.StatusRejected)
				switch {
				case err == nil:
					won.Add(1)
				case errors.Is(err, domain.ErrInvalidTransition):
					lost.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		require.EqualValues(t, 1, won.Load())
		require.EqualValues(t, 7, lost.Load())
		requireDec(t, "10", f.qty(a))
	})
}
