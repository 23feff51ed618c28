package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jadegate/jadegate/internal/runtime"
)

// NewMetrics registers its collectors on the global Prometheus registry, so
// every metrics assertion shares a single instance to avoid a duplicate
// registration panic across test functions.
func TestMetricsRecordSessionAndCallSignals(t *testing.T) {
	m := NewMetrics()

	m.SessionOpened("session-1")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sessionsOpened))

	m.CallRecorded("list_files", runtime.VerdictAllow)
	m.CallRecorded("shell_exec", runtime.VerdictDeny)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.blockedTotal), "exactly one of the two calls was blocked")

	m.BreakerTripped("shell_exec")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.breakerTrips.WithLabelValues("shell_exec")))

	m.SessionClosed("session-1", 2, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sessionsClosed))

	m.TOFUAlert("server/read_file", "new_tool", "first sighting")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.tofuAlerts.WithLabelValues("new_tool")))
}

func TestNewLoggerBuildsBothModes(t *testing.T) {
	_, err := NewLogger(false)
	assert.NoError(t, err)
	_, err = NewLogger(true)
	assert.NoError(t, err)
}
