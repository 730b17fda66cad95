package events

import (
	"context"

	applog "agriconnect/internal/log"
)

// LogPublisher records events in the application log. It is used when no
// broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, key string, ev Envelope) error {
	applog.Background("event."+ev.EventType, nil, map[string]any{
		"key":      key,
		"event_id": ev.EventID,
		"payload":  string(ev.Payload),
	})
	return nil
}
