package notification

import (
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/model"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// AlertHandler processes one received alert batch.
type AlertHandler func(runID string, alerts []model.Alert)

// Subscriber is responsible for subscribing to the alert subject and decoding messages.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	logger  *zap.Logger
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.NATSConfig, logger *zap.Logger) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("ddospectra-alerts"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	logger.Info("Connected to NATS server", zap.String("url", cfg.URL))
	return &Subscriber{nc: nc, subject: cfg.Subject, logger: logger}, nil
}

// Start subscribes to the alert subject and hands every decoded batch to handler.
func (s *Subscriber) Start(handler AlertHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		s.handle(msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to '%s': %w", s.subject, err)
	}
	s.sub = sub
	s.logger.Info("Subscribed, waiting for alerts", zap.String("subject", s.subject))
	return nil
}

func (s *Subscriber) handle(data []byte, handler AlertHandler) {
	runID, alerts, err := Decode(data)
	if err != nil {
		s.logger.Warn("Dropping undecodable alert message", zap.Error(err))
		return
	}
	handler(runID, alerts)
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		s.logger.Info("NATS connection closed")
	}
}
