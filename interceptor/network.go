package interceptor

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/WhileEndless/httpcore/internal/conn"
	"github.com/WhileEndless/httpcore/internal/errors"
	"github.com/WhileEndless/httpcore/internal/logging"
	"github.com/WhileEndless/httpcore/internal/model"
	"github.com/WhileEndless/httpcore/internal/pool"
	"github.com/WhileEndless/httpcore/internal/route"
	"github.com/WhileEndless/httpcore/internal/timing"
	"github.com/WhileEndless/httpcore/internal/wire"
	"github.com/WhileEndless/httpcore/listener"
)

// AddressResolver maps a request's target host/port/scheme to the pool
// Address that identifies which connections may serve it.
type AddressResolver func(req *model.Request) (*route.Address, error)

// Network is the terminal interceptor: it obtains a Connection via
// Dialer, writes the request, reads the response, and returns a Response
// whose Body releases the connection back to the pool when closed.
type Network struct {
	Dialer      *Dialer
	ResolveAddr AddressResolver
	Listener    listener.Listener // optional; defaults to a no-op
	Log         *logrus.Logger    // optional; defaults to logging.NewDefault()
}

func (n *Network) logger() *logrus.Logger {
	if n.Log == nil {
		return logging.NewDefault()
	}
	return n.Log
}

func (n *Network) Intercept(chain Chain) (*model.Response, error) {
	req := chain.Request()
	lis := n.listenerOrNoop()
	call := listener.CallInfo{Method: req.Method, URL: req.URL.String()}

	timer := timing.NewTimer()

	addr, err := n.ResolveAddr(req)
	if err != nil {
		return nil, err
	}

	timer.StartAcquire()
	reused := n.Dialer.Pool.Has(addr)
	c, codec, err := n.Dialer.Obtain(chain.Context(), addr)
	timer.EndAcquire()
	if err != nil {
		return nil, err
	}
	lis.ConnectionAcquired(call, addr.Key(), reused)
	exchange := conn.NewExchange(c, codec)

	key := addr.Key()
	log := n.logger()
	checkout := pool.TrackCheckout(c, func(leaked pool.Connection) {
		log.WithField("address", key).Warn("connection checked out but never released; closing to avoid leaking it")
		n.Dialer.Evict(addr, leaked.(*conn.Connection))
	})

	if req.Body != nil && req.Body.IsDuplex() && c.Protocol() != conn.ProtocolH2 {
		checkout.Release()
		n.fail(addr, c, exchange)
		return nil, errors.NewProtocolError("duplex request bodies require HTTP/2", nil)
	}

	sent := time.Now()
	lis.RequestHeadersStart(call)
	timer.StartRequestHeaders()
	if err := exchange.WriteRequestHeaders(req.Method, req.URL, req.Headers); err != nil {
		checkout.Release()
		n.fail(addr, c, exchange)
		return nil, err
	}
	timer.EndRequestHeaders()
	lis.RequestHeadersEnd(call)

	// Expect: 100-continue holds the body back until the server invites it
	// (or answers with a final status, which abandons the body). Duplex
	// bodies skip the negotiation: their writes begin unconditionally.
	var status *wire.StatusLine
	var headers *wire.Headers
	writeBody := req.Body != nil
	if writeBody && !req.Body.IsDuplex() && expectsContinue(req.Headers) {
		proceed, interimStatus, interimHeaders, cerr := exchange.AwaitContinue()
		if cerr != nil {
			checkout.Release()
			n.fail(addr, c, exchange)
			return nil, cerr
		}
		if !proceed {
			writeBody = false
			status, headers = interimStatus, interimHeaders
			// The server may still be expecting the announced body; this
			// connection cannot carry another exchange safely.
			c.MarkUnhealthy()
		}
	}

	if writeBody {
		bodyReader, berr := req.Body.Reader()
		if berr != nil {
			checkout.Release()
			n.fail(addr, c, exchange)
			return nil, berr
		}
		lis.RequestBodyStart(call)
		timer.StartRequestBody()
		if err := exchange.WriteRequestBody(bodyReader); err != nil {
			bodyReader.Close()
			checkout.Release()
			n.fail(addr, c, exchange)
			return nil, err
		}
		bodyReader.Close()
		timer.EndRequestBody()
		lis.RequestBodyEnd(call, req.Body.ContentLength())
	}

	lis.ResponseHeadersStart(call)
	timer.StartTTFB()
	if status == nil {
		var rerr error
		status, headers, rerr = exchange.ReadResponseHeaders()
		if rerr != nil {
			timer.EndTTFB()
			checkout.Release()
			n.fail(addr, c, exchange)
			return nil, rerr
		}
	}
	timer.EndTTFB()
	lis.ResponseHeadersEnd(call, status.Code)

	lis.ResponseBodyStart(call)
	body, err := exchange.ResponseBody(headers)
	if err != nil {
		checkout.Release()
		n.fail(addr, c, exchange)
		return nil, err
	}

	resp := &model.Response{
		Request:  req,
		Protocol: protocolName(c),
		Code:     status.Code,
		Message:  status.Reason,
		Headers:  headers,
		Route:    c.Route(),
		Sent:     sent,
		Received: time.Now(),
		Timings:  timer.Metrics(),
	}
	length := contentLengthOf(headers)
	resp.Body = &releasingBody{
		ReadCloser: body,
		length:     length,
		onClose: func() {
			checkout.Release()
			exchange.Close()
			n.Dialer.Release(addr, c)
			lis.ResponseBodyEnd(call, length)
			lis.ConnectionReleased(call, addr.Key())
		},
	}
	return resp, nil
}

func (n *Network) listenerOrNoop() listener.Listener {
	if n.Listener == nil {
		return listener.NoopListener{}
	}
	return n.Listener
}

func (n *Network) fail(addr *route.Address, c *conn.Connection, e *conn.Exchange) {
	e.Close()
	n.Dialer.Evict(addr, c)
}

// expectsContinue reports whether the request head asks the server for an
// interim 100 before the body is sent.
func expectsContinue(h *wire.Headers) bool {
	return strings.EqualFold(strings.TrimSpace(h.Get("Expect")), "100-continue")
}

func protocolName(c *conn.Connection) string {
	if c.Protocol() == conn.ProtocolH2 {
		return "h2"
	}
	return "http/1.1"
}

func contentLengthOf(h interface{ Get(string) string }) int64 {
	v := h.Get("Content-Length")
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// releasingBody wraps a codec's response body so that Close() also closes
// out the exchange and returns the connection to the pool, exactly once.
type releasingBody struct {
	io.ReadCloser
	length  int64
	onClose func()
	closed  bool
}

func (r *releasingBody) ContentLength() int64 { return r.length }

func (r *releasingBody) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.ReadCloser.Close()
	r.onClose()
	return err
}
