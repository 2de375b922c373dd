// Package timing measures per-exchange timing breakdowns: connection
// acquisition, request/response framing, and time-to-first-byte.
package timing

import (
	"fmt"
	"time"
)

// Metrics is one exchange's timing breakdown.
type Metrics struct {
	ConnectionAcquire time.Duration
	RequestHeaders    time.Duration
	RequestBody       time.Duration
	TTFB              time.Duration // time from request-sent to first response byte
	TotalTime         time.Duration
}

func (m Metrics) String() string {
	return fmt.Sprintf("acquire: %v, reqHeaders: %v, reqBody: %v, ttfb: %v, total: %v",
		m.ConnectionAcquire, m.RequestHeaders, m.RequestBody, m.TTFB, m.TotalTime)
}

// Timer accumulates the marks needed to build a Metrics for one exchange.
type Timer struct {
	start time.Time

	acquireStart, acquireEnd         time.Time
	reqHeadersStart, reqHeadersEnd   time.Time
	reqBodyStart, reqBodyEnd         time.Time
	ttfbStart, ttfbEnd               time.Time
}

// NewTimer starts a Timer; start marks the exchange's overall beginning.
func NewTimer() *Timer { return &Timer{start: time.Now()} }

func (t *Timer) StartAcquire() { t.acquireStart = time.Now() }
func (t *Timer) EndAcquire()   { t.acquireEnd = time.Now() }

func (t *Timer) StartRequestHeaders() { t.reqHeadersStart = time.Now() }
func (t *Timer) EndRequestHeaders()   { t.reqHeadersEnd = time.Now() }

func (t *Timer) StartRequestBody() { t.reqBodyStart = time.Now() }
func (t *Timer) EndRequestBody()   { t.reqBodyEnd = time.Now() }

func (t *Timer) StartTTFB() { t.ttfbStart = time.Now() }
func (t *Timer) EndTTFB()   { t.ttfbEnd = time.Now() }

func duration(start, end time.Time) time.Duration {
	if start.IsZero() || end.IsZero() {
		return 0
	}
	return end.Sub(start)
}

// Metrics finalizes the timer into a Metrics snapshot; TotalTime runs from
// NewTimer to the call to Metrics.
func (t *Timer) Metrics() Metrics {
	return Metrics{
		ConnectionAcquire: duration(t.acquireStart, t.acquireEnd),
		RequestHeaders:    duration(t.reqHeadersStart, t.reqHeadersEnd),
		RequestBody:       duration(t.reqBodyStart, t.reqBodyEnd),
		TTFB:              duration(t.ttfbStart, t.ttfbEnd),
		TotalTime:         time.Since(t.start),
	}
}
