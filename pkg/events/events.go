// Package events publishes domain events to a message broker.
// Subjects are derived from a configured prefix and the event name,
// e.g. "safestack.alert.created" on NATS or "safestack/alert/created" on MQTT.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/safestack/pkg/lifecycle"
)

// Envelope wraps every published payload.
type Envelope struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

// Publisher sends events to a broker and participates in lifecycle coordination.
type Publisher interface {
	lifecycle.ReadinessChecker
	Start(lc *lifecycle.Coordinator) error
	Publish(ctx context.Context, name string, data any) error
}

// New creates a Publisher for the configured provider.
func New(cfg *Config, logger *slog.Logger) (Publisher, error) {
	logger = logger.With("system", "events", "provider", cfg.Provider)

	switch cfg.Provider {
	case ProviderNone:
		return Noop{}, nil
	case ProviderNATS:
		return newNATS(cfg, logger), nil
	case ProviderMQTT:
		return newMQTT(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown events provider %q", cfg.Provider)
	}
}

// Noop discards every event.
type Noop struct{}

func (Noop) Ready() bool { return true }

func (Noop) Start(*lifecycle.Coordinator) error { return nil }

func (Noop) Publish(context.Context, string, any) error { return nil }

func encode(name string, data any) ([]byte, error) {
	payload, err := json.Marshal(Envelope{
		Type: name,
		Time: time.Now().UTC(),
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", name, err)
	}
	return payload, nil
}

// retry calls send until it succeeds, the context ends, or maxRetries
// additional attempts have failed. Attempt i waits i*100ms beforehand.
func retry(ctx context.Context, maxRetries int, send func() error) error {
	var err error
	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i*100) * time.Millisecond):
			}
		}

		if err = send(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("publish failed after %d retries: %w", maxRetries, err)
}
