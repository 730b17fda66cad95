package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	applog "agriconnect/internal/log"
)

// ErrPublisherFull is returned when the outbound buffer stays full for
// longer than the enqueue wait or ctx is done first. The event is dropped.
var ErrPublisherFull = errors.New("event buffer full")

const defaultEnqueueWait = 50 * time.Millisecond

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher buffers events and writes them from one goroutine.
// Publish never waits on the broker; a full buffer costs a caller at most
// the enqueue wait.
type KafkaPublisher struct {
	w           messageWriter
	inbox       chan kafka.Message
	closeCh     chan struct{}
	enqueueWait time.Duration
}

func NewKafkaPublisher(brokers []string, topic string, buf int) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}, buf)
}

func newKafkaPublisher(w messageWriter, buf int) *KafkaPublisher {
	if buf <= 0 {
		buf = 256
	}
	return &KafkaPublisher{
		w:           w,
		inbox:       make(chan kafka.Message, buf),
		closeCh:     make(chan struct{}),
		enqueueWait: defaultEnqueueWait,
	}
}

// Start runs the writer loop until ctx is done, then flushes what is
// buffered and closes the writer.
func (p *KafkaPublisher) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *KafkaPublisher) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			if err := p.w.Close(); err != nil {
				applog.Background("events.close", err, nil)
			}
			return
		}
	}
}

func (p *KafkaPublisher) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		applog.Background("events.write", err, map[string]any{"key": string(m.Key)})
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, ev Envelope) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	m := kafka.Message{
		Key:     []byte(key),
		Value:   b,
		Time:    ev.OccurredAt,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(ev.EventType)}},
	}
	select {
	case p.inbox <- m:
		return nil
	default:
	}

	wait := time.NewTimer(p.enqueueWait)
	defer wait.Stop()
	select {
	case p.inbox <- m:
		return nil
	case <-wait.C:
	case <-ctx.Done():
	}
	applog.Background("events.drop", ErrPublisherFull, map[string]any{
		"key": key, "event_id": ev.EventID, "event_type": ev.EventType,
	})
	return ErrPublisherFull
}

// WaitClosed blocks until the writer loop has flushed and exited.
func (p *KafkaPublisher) WaitClosed() { <-p.closeCh }
