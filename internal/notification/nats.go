package notification

import (
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/model"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// NATSNotifier publishes alert batches to a NATS subject as protobuf-encoded
// google.protobuf.Struct messages.
type NATSNotifier struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewNATSNotifier connects to the NATS server.
func NewNATSNotifier(cfg config.NATSConfig, logger *zap.Logger) (*NATSNotifier, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("ddospectra"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	logger.Info("Connected to NATS server", zap.String("url", cfg.URL), zap.String("subject", cfg.Subject))
	return &NATSNotifier{nc: nc, subject: cfg.Subject, logger: logger}, nil
}

// Send publishes the alerts of a run and flushes the connection.
func (n *NATSNotifier) Send(runID string, alerts []model.Alert) error {
	data, err := Encode(runID, alerts, time.Now())
	if err != nil {
		return err
	}
	if err := n.nc.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish alerts: %w", err)
	}
	return n.nc.FlushTimeout(5 * time.Second)
}

// Close drains and closes the NATS connection.
func (n *NATSNotifier) Close() {
	if n.nc != nil {
		n.nc.Drain()
		n.logger.Info("NATS connection drained and closed")
	}
}

// Encode serializes an alert batch.
func Encode(runID string, alerts []model.Alert, sentAt time.Time) ([]byte, error) {
	list := make([]interface{}, len(alerts))
	for i, al := range alerts {
		list[i] = map[string]interface{}{
			"rule":      al.Rule,
			"column":    al.Column,
			"metric":    al.Metric,
			"operator":  al.Operator,
			"threshold": al.Threshold,
			"observed":  al.Observed,
		}
	}
	msg, err := structpb.NewStruct(map[string]interface{}{
		"run_id":  runID,
		"sent_at": sentAt.UTC().Format(time.RFC3339Nano),
		"alerts":  list,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build alert message: %w", err)
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert message: %w", err)
	}
	return data, nil
}

// Decode parses a message produced by Encode.
func Decode(data []byte) (string, []model.Alert, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal alert message: %w", err)
	}
	fields := msg.GetFields()
	var alerts []model.Alert
	for _, v := range fields["alerts"].GetListValue().GetValues() {
		a := v.GetStructValue().GetFields()
		alerts = append(alerts, model.Alert{
			Rule:      a["rule"].GetStringValue(),
			Column:    a["column"].GetStringValue(),
			Metric:    a["metric"].GetStringValue(),
			Operator:  a["operator"].GetStringValue(),
			Threshold: a["threshold"].GetNumberValue(),
			Observed:  a["observed"].GetNumberValue(),
		})
	}
	return fields["run_id"].GetStringValue(), alerts, nil
}
