package model

import (
	"io"
	"time"

	"github.com/WhileEndless/httpcore/internal/route"
	"github.com/WhileEndless/httpcore/internal/timing"
	"github.com/WhileEndless/httpcore/internal/wire"
)

// ResponseBody is a response payload streamed back from a codec or the
// disk cache.
type ResponseBody interface {
	io.ReadCloser
	ContentLength() int64
}

// Response is one HTTP response, annotated with the chain of prior
// responses that produced it: cache/network provenance, redirect history
// via PriorResponse.
type Response struct {
	Request    *Request
	Protocol   string // "http/1.1" or "h2"
	Code       int
	Message    string
	Headers    *wire.Headers
	Body       ResponseBody
	Route      route.Route
	Sent       time.Time
	Received   time.Time
	Timings    timing.Metrics

	// NetworkResponse holds a network-side view of this Response. The
	// built-in interceptors never set it: it is nil both for responses
	// read from the network and for cache entries revalidated by a 304.
	NetworkResponse *Response
	// CacheResponse is set when a cache entry contributed to this
	// Response, whether served as-is or revalidated.
	CacheResponse *Response
	// PriorResponse is the previous hop's Response when this Response was
	// reached by following a redirect or an authentication challenge.
	PriorResponse *Response
}

// IsSuccessful reports whether Code is in [200,300), mirroring the common
// HTTP convention used by redirect/retry decision points.
func (r *Response) IsSuccessful() bool { return r.Code >= 200 && r.Code < 300 }

// IsRedirect reports whether Code is one of the redirect statuses the
// follow-up interceptor understands.
func (r *Response) IsRedirect() bool {
	switch r.Code {
	case 300, 301, 302, 303, 307, 308:
		return true
	}
	return false
}
