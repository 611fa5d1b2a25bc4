package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/events"
)

const flushTimeout = 5 * time.Second

// NATSPublisher publishes each committed event on <prefix>.<type>.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL           string
	SubjectPrefix string // Subject prefix (default: "settlement.events")
	Logger        *zap.Logger
}

// NewNATSPublisher connects to NATS.
func NewNATSPublisher(cfg *NATSConfig) (*NATSPublisher, error) {
	logger := cfg.Logger
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "settlement.events"
	}

	nc, err := nats.Connect(
		cfg.URL,
		nats.Name("exchange-settlement"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats-disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats-reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	logger.Info("nats-publisher-connected",
		zap.String("url", nc.ConnectedUrl()),
		zap.String("prefix", prefix))

	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger}, nil
}

// Subject returns the subject events of type t are published on.
func (n *NATSPublisher) Subject(t events.Type) string {
	return n.prefix + "." + string(t)
}

// Publish sends every event and flushes the connection.
func (n *NATSPublisher) Publish(_ context.Context, evs []events.Event) error {
	for _, e := range evs {
		data, err := json.Marshal(e)
		if err != nil {
			SinkEventsTotal.WithLabelValues("nats", "failed").Inc()
			return fmt.Errorf("encode %s event: %w", e.Type, err)
		}
		if err := n.nc.Publish(n.Subject(e.Type), data); err != nil {
			SinkEventsTotal.WithLabelValues("nats", "failed").Inc()
			return fmt.Errorf("publish %s event: %w", e.Type, err)
		}
		SinkEventsTotal.WithLabelValues("nats", "ok").Inc()
	}
	if err := n.nc.FlushTimeout(flushTimeout); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	return nil
}

// Close drains the connection.
func (n *NATSPublisher) Close() error {
	n.logger.Info("closing-nats-publisher")
	return n.nc.Drain()
}
