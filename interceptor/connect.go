package interceptor

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/WhileEndless/httpcore/internal/conn"
	"github.com/WhileEndless/httpcore/internal/errors"
	"github.com/WhileEndless/httpcore/internal/h1"
	"github.com/WhileEndless/httpcore/internal/h2"
	"github.com/WhileEndless/httpcore/internal/pool"
	"github.com/WhileEndless/httpcore/internal/route"
	"github.com/WhileEndless/httpcore/internal/wire"
	"github.com/WhileEndless/httpcore/listener"
)

// Dialer obtains a usable Connection for an Address: an existing pooled
// one if available, otherwise a freshly dialed one enumerated by the
// route planner.
type Dialer struct {
	Pool        *pool.Pool
	Database    *route.Database
	ConnTimeout time.Duration
	// PingInterval, when positive, enables the HTTP/2 keepalive probe on
	// every h2 connection this dialer establishes.
	PingInterval time.Duration
	Listener     listener.Listener // optional; defaults to a no-op

	mu    sync.Mutex
	h2set map[string]*h2.Connection // Address.Key() -> shared H2 connection
}

func NewDialer(p *pool.Pool, db *route.Database, connTimeout time.Duration) *Dialer {
	return &Dialer{Pool: p, Database: db, ConnTimeout: connTimeout, h2set: make(map[string]*h2.Connection)}
}

func (d *Dialer) listenerOrNoop() listener.Listener {
	if d.Listener == nil {
		return listener.NoopListener{}
	}
	return d.Listener
}

// Obtain returns a ready Connection plus the codec to drive one exchange
// on it, checking out one stream/slot.
func (d *Dialer) Obtain(ctx context.Context, addr *route.Address) (*conn.Connection, conn.Codec, error) {
	if c, ok := d.Pool.Acquire(addr, time.Now()); ok {
		cc := c.(*conn.Connection)
		return cc, d.codecFor(cc, addr), nil
	}
	return d.dialFresh(ctx, addr)
}

// DialNew always dials a brand new connection for addr, registering it in
// the pool checked out once, without first trying to reuse an idle one.
// Address-policy pre-warming uses this to open connections ahead of
// traffic.
func (d *Dialer) DialNew(ctx context.Context, addr *route.Address) (*conn.Connection, error) {
	c, _, err := d.dialFresh(ctx, addr)
	return c, err
}

func (d *Dialer) dialFresh(ctx context.Context, addr *route.Address) (*conn.Connection, conn.Codec, error) {
	lis := d.listenerOrNoop()
	call := listener.CallInfo{URL: addr.Key()}
	selector := route.Plan(ctx, addr, d.Database)
	plan := route.NewTLSFallbackPlan(addr.TLSSpecs)

	var lastErr error
	for selector.HasNext() {
		sel, err := selector.Next(ctx)
		if err != nil {
			lastErr = err
			break
		}
		for _, rt := range sel.Routes {
			lis.ConnectStart(call, rt.Key())
			c, err := conn.Dial(ctx, rt, plan, d.ConnTimeout)
			if err != nil {
				lastErr = err
				d.Database.Failed(rt)
				lis.ConnectFailed(call, rt.Key(), "", err)
				continue
			}
			d.Database.Succeeded(rt)
			d.Pool.Put(addr, c, time.Now())
			lis.ConnectEnd(call, rt.Key(), protocolName(c))
			return c, d.codecFor(c, addr), nil
		}
	}
	if lastErr == nil {
		lastErr = errors.NewValidationError("no routes available")
	}
	return nil, nil, lastErr
}

func (d *Dialer) codecFor(c *conn.Connection, addr *route.Address) conn.Codec {
	if c.Protocol() != conn.ProtocolH2 {
		return h1.New(c.Raw())
	}

	key := addr.Key()
	d.mu.Lock()
	h2conn, ok := d.h2set[key]
	if !ok {
		var err error
		h2conn, err = h2.NewConnection(c.Raw(), h2.Options{
			PingInterval: d.PingInterval,
			// Keep the pool's stream accounting in lockstep with the
			// peer's advertised MAX_CONCURRENT_STREAMS.
			OnSettings: func(maxStreams uint32) {
				c.SetMaxStreamCount(int32(maxStreams))
			},
			OnFailure: func(error) {
				c.MarkUnhealthy()
				d.forgetH2(key)
			},
		})
		if err != nil {
			d.mu.Unlock()
			// Fall back to treating the connection as unusable; caller
			// will see a protocol error on the first write.
			return failingCodec{err: err}
		}
		d.h2set[key] = h2conn
	}
	d.mu.Unlock()

	codec, err := h2conn.OpenStream()
	if err != nil {
		return failingCodec{err: err}
	}
	return codec
}

// forgetH2 drops a dead h2 connection from the shared set so the next call
// for the address dials afresh instead of multiplexing onto a corpse.
func (d *Dialer) forgetH2(key string) {
	d.mu.Lock()
	delete(d.h2set, key)
	d.mu.Unlock()
}

// Release returns conn to the pool after one exchange completes.
func (d *Dialer) Release(addr *route.Address, c *conn.Connection) {
	d.Pool.Release(addr, c, time.Now())
}

// Evict removes conn from the pool after a protocol-fatal error.
func (d *Dialer) Evict(addr *route.Address, c *conn.Connection) {
	d.Pool.Evict(addr, c)
}

// failingCodec reports err from every method, used when H2 connection
// setup itself fails after a connection was already dialed.
type failingCodec struct{ err error }

func (f failingCodec) WriteRequestHeaders(string, *wire.URL, *wire.Headers) error { return f.err }
func (f failingCodec) AwaitContinue() (bool, *wire.StatusLine, *wire.Headers, error) {
	return false, nil, nil, f.err
}
func (f failingCodec) WriteRequestBody(io.Reader) error                          { return f.err }
func (f failingCodec) ReadResponseHeaders() (*wire.StatusLine, *wire.Headers, error) {
	return nil, nil, f.err
}
func (f failingCodec) ResponseBody(*wire.Headers) (io.ReadCloser, error) { return nil, f.err }
func (f failingCodec) Finish() error                                     { return nil }
