package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/JaimeStill/safestack/pkg/lifecycle"
)

type natsPublisher struct {
	cfg    *Config
	logger *slog.Logger
	conn   atomic.Pointer[nats.Conn]
}

func newNATS(cfg *Config, logger *slog.Logger) *natsPublisher {
	return &natsPublisher{cfg: cfg, logger: logger}
}

func (p *natsPublisher) Ready() bool {
	conn := p.conn.Load()
	return conn != nil && conn.IsConnected()
}

func (p *natsPublisher) Start(lc *lifecycle.Coordinator) error {
	p.logger.Info("starting events publisher", "url", p.cfg.URL)
	lc.Register("events", p)

	lc.OnStartup(func() {
		opts := []nats.Option{
			nats.Name(p.cfg.ClientID),
			nats.MaxReconnects(-1),
			nats.RetryOnFailedConnect(true),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				p.logger.Warn("nats disconnected", "error", err)
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				p.logger.Info("nats reconnected", "url", c.ConnectedUrl())
			}),
		}
		if p.cfg.Username != "" {
			opts = append(opts, nats.UserInfo(p.cfg.Username, p.cfg.Password))
		}

		conn, err := nats.Connect(p.cfg.URL, opts...)
		if err != nil {
			p.logger.Error("nats connect failed", "error", err)
			return
		}
		p.conn.Store(conn)
		p.logger.Info("nats connected")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if conn := p.conn.Load(); conn != nil {
			if err := conn.Drain(); err != nil {
				p.logger.Error("nats drain failed", "error", err)
			}
		}
		p.logger.Info("events publisher stopped")
	})

	return nil
}

func (p *natsPublisher) Publish(ctx context.Context, name string, data any) error {
	conn := p.conn.Load()
	if conn == nil {
		return fmt.Errorf("publish %s: nats not connected", name)
	}

	payload, err := encode(name, data)
	if err != nil {
		return err
	}

	subject := p.cfg.Prefix + "." + name
	return retry(ctx, p.cfg.MaxRetries, func() error {
		return conn.Publish(subject, payload)
	})
}
