package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerProducesOrderedMetrics(t *testing.T) {
	timer := NewTimer()

	timer.StartAcquire()
	time.Sleep(time.Millisecond)
	timer.EndAcquire()

	timer.StartRequestHeaders()
	timer.EndRequestHeaders()

	timer.StartTTFB()
	time.Sleep(time.Millisecond)
	timer.EndTTFB()

	m := timer.Metrics()
	require.Greater(t, m.ConnectionAcquire, time.Duration(0))
	require.Greater(t, m.TTFB, time.Duration(0))
	assert.GreaterOrEqual(t, m.TotalTime, m.ConnectionAcquire)
	assert.Zero(t, m.RequestBody, "unmarked phases report zero")
}

func TestMetricsStringMentionsEveryPhase(t *testing.T) {
	m := Metrics{
		ConnectionAcquire: time.Millisecond,
		TTFB:              2 * time.Millisecond,
		TotalTime:         5 * time.Millisecond,
	}
	s := m.String()
	for _, phase := range []string{"acquire", "reqHeaders", "reqBody", "ttfb", "total"} {
		assert.Contains(t, s, phase)
	}
}
