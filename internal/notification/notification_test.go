package notification

import (
	"DDoSpectra/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEncodeDecode(t *testing.T) {
	alerts := []model.Alert{
		{Rule: "burst", Column: "udp_packet_count", Metric: "max_abs_zscore", Operator: ">", Threshold: 3, Observed: 4.5},
		{Rule: "cycle", Column: "udp_packet_count", Metric: "acf_peak", Operator: ">=", Threshold: 0.5, Observed: 0.75},
	}
	data, err := Encode("run-1", alerts, time.Unix(0, 0))
	require.NoError(t, err)

	runID, got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)
	assert.Equal(t, alerts, got)

	_, _, err = Decode([]byte{0xff, 0xff})
	assert.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	n := NewLogNotifier(zap.New(core))
	require.NoError(t, n.Send("r", []model.Alert{{Rule: "burst", Column: "c"}}))
	n.Close()
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "burst", logs.All()[0].ContextMap()["rule"])
}

var _ model.Notifier = (*NATSNotifier)(nil)
var _ model.Notifier = (*LogNotifier)(nil)

func TestSubscriberHandle(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := &Subscriber{logger: zap.New(core)}

	var gotRun string
	var got []model.Alert
	handler := func(runID string, alerts []model.Alert) {
		gotRun, got = runID, alerts
	}

	data, err := Encode("run-7", []model.Alert{{Rule: "burst", Column: "c", Observed: 9}}, time.Unix(0, 0))
	require.NoError(t, err)
	s.handle(data, handler)
	assert.Equal(t, "run-7", gotRun)
	require.Len(t, got, 1)
	assert.Equal(t, 9.0, got[0].Observed)

	gotRun = ""
	s.handle([]byte{0xff, 0xff}, handler)
	assert.Empty(t, gotRun)
	assert.Equal(t, 1, logs.Len())
}
