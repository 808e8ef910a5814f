package notification

import (
	"DDoSpectra/internal/model"

	"go.uber.org/zap"
)

// LogNotifier writes alerts to the logger. It is used when no message bus is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs at warn level.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs each alert.
func (n *LogNotifier) Send(runID string, alerts []model.Alert) error {
	for _, a := range alerts {
		n.logger.Warn("Alert triggered",
			zap.String("run_id", runID),
			zap.String("rule", a.Rule),
			zap.String("column", a.Column),
			zap.String("metric", a.Metric),
			zap.Float64("observed", a.Observed),
			zap.String("operator", a.Operator),
			zap.Float64("threshold", a.Threshold))
	}
	return nil
}

// Close is a no-op.
func (n *LogNotifier) Close() {}
