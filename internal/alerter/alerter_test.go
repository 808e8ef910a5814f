package alerter

import (
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/model"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	runID  string
	alerts []model.Alert
}

func (n *recordingNotifier) Send(runID string, alerts []model.Alert) error {
	n.runID, n.alerts = runID, alerts
	return nil
}

func (n *recordingNotifier) Close() {}

func features() []model.SignalFeatures {
	return []model.SignalFeatures{
		{
			Column: "udp_packet_count",
			Errors: map[string]error{},
			Summary: model.FeatureSummary{
				MaxAbsZScore:       4.2,
				AnomalousIntervals: []int{10, 11},
				ACFPeakValue:       0.8,
				ACFPeakLag:         10,
			},
		},
		{
			Column:  "http_packet_count",
			Errors:  map[string]error{model.FeatureZScore: errors.New("boom")},
			Summary: model.FeatureSummary{MaxAbsZScore: 9},
		},
	}
}

func TestEvaluate(t *testing.T) {
	n := &recordingNotifier{}
	a, err := NewAlerter(config.AlerterConfig{Rules: []config.AlerterRule{
		{Name: "burst", Metric: MetricMaxAbsZScore, Operator: ">", Threshold: 3},
		{Name: "cycle", Column: "udp_packet_count", Metric: MetricACFPeak, Operator: ">=", Threshold: 0.5},
		{Name: "quiet", Column: "udp_packet_count", Metric: MetricAnomalousIntervals, Operator: "<", Threshold: 1},
	}}, n, zap.NewNop())
	require.NoError(t, err)

	alerts := a.Evaluate(features())
	require.Len(t, alerts, 2)
	assert.Equal(t, "burst", alerts[0].Rule)
	assert.Equal(t, "udp_packet_count", alerts[0].Column)
	assert.Equal(t, 4.2, alerts[0].Observed)
	assert.Equal(t, "cycle", alerts[1].Rule)
	assert.Contains(t, Message(alerts[1]), "acf_peak = 0.8")

	require.NoError(t, a.Notify("run-9", alerts))
	assert.Equal(t, "run-9", n.runID)
	assert.Len(t, n.alerts, 2)
}

func TestNewAlerter_RejectsBadRules(t *testing.T) {
	_, err := NewAlerter(config.AlerterConfig{Rules: []config.AlerterRule{{Name: "x", Metric: "nope", Operator: ">"}}}, nil, nil)
	assert.Equal(t, model.ExitConfiguration, model.ExitCode(err))

	_, err = NewAlerter(config.AlerterConfig{Rules: []config.AlerterRule{{Name: "x", Metric: MetricP95, Operator: "!="}}}, nil, nil)
	assert.Equal(t, model.ExitConfiguration, model.ExitCode(err))
}

func TestCheck(t *testing.T) {
	assert.True(t, check(2, 1, ">"))
	assert.True(t, check(1, 1, ">="))
	assert.True(t, check(1, 1, "="))
	assert.False(t, check(1, 2, ">"))
	assert.False(t, check(1, 2, "~"))
}
