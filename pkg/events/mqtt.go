package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/JaimeStill/safestack/pkg/lifecycle"
)

const mqttPublishTimeout = 2 * time.Second

type mqttPublisher struct {
	cfg    *Config
	logger *slog.Logger
	client mqtt.Client
}

func newMQTT(cfg *Config, logger *slog.Logger) *mqttPublisher {
	p := &mqttPublisher{cfg: cfg, logger: logger}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.URL)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt connection established", "broker", cfg.URL)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", "error", err)
	}

	p.client = mqtt.NewClient(opts)
	return p
}

func (p *mqttPublisher) Ready() bool {
	return p.client.IsConnectionOpen()
}

func (p *mqttPublisher) Start(lc *lifecycle.Coordinator) error {
	p.logger.Info("starting events publisher", "broker", p.cfg.URL)
	lc.Register("events", p)

	lc.OnStartup(func() {
		token := p.client.Connect()
		if !token.WaitTimeout(10 * time.Second) {
			p.logger.Warn("mqtt connect timeout, retrying in background")
			return
		}
		if err := token.Error(); err != nil {
			p.logger.Error("mqtt connect failed", "error", err)
		}
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		p.client.Disconnect(250)
		p.logger.Info("events publisher stopped")
	})

	return nil
}

func (p *mqttPublisher) Publish(ctx context.Context, name string, data any) error {
	payload, err := encode(name, data)
	if err != nil {
		return err
	}

	topic := p.topic(name)
	return retry(ctx, p.cfg.MaxRetries, func() error {
		token := p.client.Publish(topic, byte(p.cfg.QoS), false, payload)
		if !token.WaitTimeout(mqttPublishTimeout) {
			return fmt.Errorf("publish %s: timeout", topic)
		}
		return token.Error()
	})
}

func (p *mqttPublisher) topic(name string) string {
	return p.cfg.Prefix + "/" + strings.ReplaceAll(name, ".", "/")
}
