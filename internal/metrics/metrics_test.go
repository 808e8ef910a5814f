package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountersAreIsolatedPerRun(t *testing.T) {
	a, b := New(), New()
	a.Records.WithLabelValues("udp", OutcomeKept).Add(3)

	assert.Equal(t, 3.0, testutil.ToFloat64(a.Records.WithLabelValues("udp", OutcomeKept)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Records.WithLabelValues("udp", OutcomeKept)))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.WindowsEmitted.WithLabelValues("http").Add(120)
	m.ObserveStage("aggregate", time.Now())

	path := filepath.Join(t.TempDir(), "run.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ddospectra_windows_emitted_total{source="http"} 120`)
	assert.Contains(t, string(data), "ddospectra_stage_duration_seconds")
}
