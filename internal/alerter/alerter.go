package alerter

import (
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/model"
	"fmt"

	"go.uber.org/zap"
)

// Rule metrics.
const (
	MetricMaxAbsZScore       = "max_abs_zscore"
	MetricAnomalousIntervals = "anomalous_intervals"
	MetricDominantFrequency  = "dominant_frequency"
	MetricDominantPower      = "dominant_power"
	MetricTotalPower         = "total_power"
	MetricACFPeak            = "acf_peak"
	MetricACFPeakLag         = "acf_peak_lag"
	MetricP95                = "p95"
)

// Alerter evaluates feature summaries against the configured rules and hands the
// triggered alerts to a notifier.
type Alerter struct {
	rules    []config.AlerterRule
	notifier model.Notifier
	logger   *zap.Logger
}

// NewAlerter creates a new Alerter. notifier may be nil.
func NewAlerter(cfg config.AlerterConfig, notifier model.Notifier, logger *zap.Logger) (*Alerter, error) {
	for _, rule := range cfg.Rules {
		if _, ok := metricFeature[rule.Metric]; !ok {
			return nil, &model.ConfigurationError{Param: "alerter.rules." + rule.Name, Reason: fmt.Sprintf("unknown metric '%s'", rule.Metric)}
		}
		if !validOperator(rule.Operator) {
			return nil, &model.ConfigurationError{Param: "alerter.rules." + rule.Name, Reason: fmt.Sprintf("unknown operator '%s'", rule.Operator)}
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Alerter{rules: cfg.Rules, notifier: notifier, logger: logger}, nil
}

// metricFeature names the feature a metric is derived from.
var metricFeature = map[string]string{
	MetricMaxAbsZScore:       model.FeatureZScore,
	MetricAnomalousIntervals: model.FeatureZScore,
	MetricDominantFrequency:  model.FeaturePSD,
	MetricDominantPower:      model.FeaturePSD,
	MetricTotalPower:         model.FeaturePSD,
	MetricACFPeak:            model.FeatureACF,
	MetricACFPeakLag:         model.FeatureACF,
	MetricP95:                model.FeatureDetrend,
}

func metricValue(s model.FeatureSummary, metric string) float64 {
	switch metric {
	case MetricMaxAbsZScore:
		return s.MaxAbsZScore
	case MetricAnomalousIntervals:
		return float64(len(s.AnomalousIntervals))
	case MetricDominantFrequency:
		return s.DominantFrequency
	case MetricDominantPower:
		return s.DominantPower
	case MetricTotalPower:
		return s.TotalPower
	case MetricACFPeak:
		return s.ACFPeakValue
	case MetricACFPeakLag:
		return float64(s.ACFPeakLag)
	default:
		return s.P95
	}
}

// Evaluate checks every rule against the matching columns. A rule with an empty column
// applies to all columns. Rules over a feature that failed are skipped.
func (a *Alerter) Evaluate(features []model.SignalFeatures) []model.Alert {
	var alerts []model.Alert
	for _, rule := range a.rules {
		for i := range features {
			f := &features[i]
			if rule.Column != "" && rule.Column != f.Column {
				continue
			}
			if !f.OK(metricFeature[rule.Metric]) {
				a.logger.Debug("Skipping rule over failed feature",
					zap.String("rule", rule.Name), zap.String("column", f.Column))
				continue
			}
			value := metricValue(f.Summary, rule.Metric)
			if !check(value, rule.Threshold, rule.Operator) {
				continue
			}
			alerts = append(alerts, model.Alert{
				Rule:      rule.Name,
				Column:    f.Column,
				Metric:    rule.Metric,
				Operator:  rule.Operator,
				Threshold: rule.Threshold,
				Observed:  value,
			})
		}
	}
	return alerts
}

// Notify sends the alerts through the notifier. It is a no-op without alerts or
// notifier.
func (a *Alerter) Notify(runID string, alerts []model.Alert) error {
	if len(alerts) == 0 || a.notifier == nil {
		return nil
	}
	if err := a.notifier.Send(runID, alerts); err != nil {
		return fmt.Errorf("failed to send alert notification: %w", err)
	}
	a.logger.Info("Alert notification sent", zap.Int("alerts", len(alerts)))
	return nil
}

// Message renders an alert as a single line.
func Message(al model.Alert) string {
	return fmt.Sprintf("%s: %s %s = %.4g (%s %.4g)", al.Rule, al.Column, al.Metric, al.Observed, al.Operator, al.Threshold)
}

func validOperator(op string) bool {
	switch op {
	case ">", "<", "=", ">=", "<=":
		return true
	}
	return false
}

// check compares a value against a threshold based on an operator.
func check(value, threshold float64, operator string) bool {
	switch operator {
	case ">":
		return value > threshold
	case "<":
		return value < threshold
	case "=":
		return value == threshold
	case ">=":
		return value >= threshold
	case "<=":
		return value <= threshold
	default:
		return false
	}
}
