package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestKafkaPublisher_FlushesOnShutdown(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, 8)

	for i := 0; i < 3; i++ {
		ev, err := New("test", EventOrderPlaced, "o-1", time.Now(), OrderPlacedPayload{OrderID: int64(i + 1)})
		require.NoError(t, err)
		require.NoError(t, p.Publish(context.Background(), "o-1", ev))
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()
	p.WaitClosed()

	w.mu.Lock()
	defer w.mu.Unlock()
	require.True(t, w.closed)
	require.Len(t, w.msgs, 3)
	for i, m := range w.msgs {
		require.Equal(t, "o-1", string(m.Key))
		var env Envelope
		require.NoError(t, json.Unmarshal(m.Value, &env))
		require.Equal(t, EventOrderPlaced, env.EventType)
		payload, err := UnwrapPayload[OrderPlacedPayload](env)
		require.NoError(t, err)
		require.Equal(t, int64(i+1), payload.OrderID)
	}
}

func TestKafkaPublisher_FullBufferRespectsContext(t *testing.T) {
	p := newKafkaPublisher(&fakeWriter{}, 1)
	ev, err := New("test", EventOrderStatusChanged, "o-2", time.Now(), OrderStatusChangedPayload{OrderID: 2})
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), "o-2", ev))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, p.Publish(ctx, "o-2", ev), ErrPublisherFull)
}

func TestNew_EnvelopeFields(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	ev, err := New("agriconnect", EventOrderPlaced, "abc", at, OrderPlacedPayload{
		OrderUUID:   "abc",
		TotalAmount: decimal.RequireFromString("49.50"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, ev.EventID)
	require.Equal(t, 1, ev.EventVersion)
	require.Equal(t, time.UTC, ev.OccurredAt.Location())
	require.True(t, ev.OccurredAt.Equal(at))

	p, err := UnwrapPayload[OrderPlacedPayload](ev)
	require.NoError(t, err)
	require.True(t, p.TotalAmount.Equal(decimal.RequireFromString("49.5")))
}

func TestKafkaPublisher_FullBufferDropsAfterShortWait(t *testing.T) {
	p := newKafkaPublisher(&fakeWriter{}, 1)
	p.enqueueWait = 10 * time.Millisecond
	ev, err := New("test", EventOrderPlaced, "o-3", time.Now(), OrderPlacedPayload{OrderID: 3})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), "o-3", ev))

	// a request context with a long deadline must not hold the caller
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	require.ErrorIs(t, p.Publish(ctx, "o-3", ev), ErrPublisherFull)
	require.Less(t, time.Since(start), time.Second)
}
