// Package conn dials a route to a live connection: TCP dial, optional
// proxy tunnel, TLS handshake with fallback-plan retry, and ALPN protocol
// negotiation.
package conn

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/WhileEndless/httpcore/internal/errors"
	"github.com/WhileEndless/httpcore/internal/route"
	netproxy "golang.org/x/net/proxy"
)

// Protocol identifies the negotiated application protocol.
type Protocol string

const (
	ProtocolHTTP11 Protocol = "http/1.1"
	ProtocolH2     Protocol = "h2"
)

// Connection is a single dialed, possibly TLS-wrapped, socket plus its
// negotiated protocol and route identity. It implements pool.Connection.
type Connection struct {
	raw       net.Conn
	route     route.Route
	protocol  Protocol
	createdAt time.Time

	// streamCount is the number of exchanges currently open on this
	// connection: at most 1 for HTTP/1.1, unbounded-by-this-field for H2
	// (the codec enforces SETTINGS_MAX_CONCURRENT_STREAMS itself).
	streamCount int32
	maxStreams  int32
	unhealthy   int32 // set to 1 once a protocol error poisons the connection
}

// Dial establishes a connection for route r: TCP dial (directly, or via an
// HTTP CONNECT / SOCKS5 tunnel through r.Proxy), then a TLS handshake
// using plan's current spec if r.Address.IsHTTPS().
func Dial(ctx context.Context, r route.Route, plan *route.TLSFallbackPlan, connTimeout time.Duration) (*Connection, error) {
	targetAddr := net.JoinHostPort(r.SocketAddress.String(), itoa(r.Port))

	dialer := &net.Dialer{Timeout: connTimeout}
	var raw net.Conn
	var err error

	if r.Proxy.Direct {
		raw, err = dialer.DialContext(ctx, "tcp", targetAddr)
		if err != nil {
			return nil, errors.NewConnectTimeoutError(r.Address.Host, r.Port, err)
		}
	} else {
		raw, err = dialViaProxy(ctx, dialer, r)
		if err != nil {
			return nil, err
		}
	}

	protocol := ProtocolHTTP11
	maxStreams := int32(1)

	if r.Address.IsHTTPS() {
		tlsConn, negotiated, herr := handshake(ctx, raw, r.Address.Host, plan)
		if herr != nil {
			raw.Close()
			return nil, herr
		}
		raw = tlsConn
		if negotiated == "h2" {
			protocol = ProtocolH2
			maxStreams = 100 // provisional until the peer's SETTINGS frame updates it
		}
	}

	return &Connection{
		raw:        raw,
		route:      r,
		protocol:   protocol,
		createdAt:  time.Now(),
		maxStreams: maxStreams,
	}, nil
}

func handshake(ctx context.Context, raw net.Conn, sni string, plan *route.TLSFallbackPlan) (net.Conn, string, error) {
	for {
		cfg := plan.Current().Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = sni
		}
		if len(cfg.NextProtos) == 0 {
			cfg.NextProtos = []string{"h2", "http/1.1"}
		}
		tlsConn := tls.Client(raw, cfg)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			if plan.HasNext() && route.IsRetryableHandshakeError(err) {
				plan.Advance()
				continue
			}
			host, _, _ := net.SplitHostPort(raw.RemoteAddr().String())
			return nil, "", errors.NewHandshakeError(host, 0, err)
		}
		return tlsConn, tlsConn.ConnectionState().NegotiatedProtocol, nil
	}
}

func dialViaProxy(ctx context.Context, dialer *net.Dialer, r route.Route) (net.Conn, error) {
	proxyAddr := net.JoinHostPort(r.Proxy.Host, itoa(r.Proxy.Port))
	targetAddr := net.JoinHostPort(r.Address.Host, itoa(r.Address.Port))

	switch r.Proxy.Type {
	case "http", "https":
		return connectViaHTTPProxy(ctx, dialer, proxyAddr, targetAddr, r)
	case "socks5":
		d, err := netproxy.SOCKS5("tcp", proxyAddr, nil, dialer)
		if err != nil {
			return nil, errors.NewValidationError("socks5 dialer: " + err.Error())
		}
		c, err := d.(netproxy.ContextDialer).DialContext(ctx, "tcp", targetAddr)
		if err != nil {
			return nil, errors.NewConnectTimeoutError(r.Proxy.Host, r.Proxy.Port, err)
		}
		return c, nil
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("unsupported proxy type %q", r.Proxy.Type))
	}
}

func connectViaHTTPProxy(ctx context.Context, dialer *net.Dialer, proxyAddr, targetAddr string, r route.Route) (net.Conn, error) {
	conn, err := dialer.DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, errors.NewConnectTimeoutError(r.Proxy.Host, r.Proxy.Port, err)
	}

	req := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n", targetAddr, r.Address.Host)
	if r.Address.ProxyAuthHeader != nil {
		if auth, ok := r.Address.ProxyAuthHeader(""); ok {
			req += "Proxy-Authorization: " + auth + "\r\n"
		}
	}
	req += "\r\n"

	if _, err := conn.Write([]byte(req)); err != nil {
		conn.Close()
		return nil, errors.NewWriteTimeoutError("proxy connect", err)
	}

	reader := bufio.NewReader(conn)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, errors.NewUnexpectedEOFError("proxy connect", err)
	}
	if !strings.Contains(statusLine, " 200") {
		conn.Close()
		return nil, errors.NewProtocolError("proxy CONNECT failed: "+strings.TrimSpace(statusLine), nil)
	}
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			conn.Close()
			return nil, errors.NewUnexpectedEOFError("proxy connect", err)
		}
		if line == "\r\n" || line == "\n" {
			break
		}
	}
	return conn, nil
}

func itoa(n int) string { return fmt.Sprintf("%d", n) }

// --- pool.Connection implementation ---

func (c *Connection) Route() route.Route { return c.route }
func (c *Connection) IsMultiplexed() bool { return c.protocol == ProtocolH2 }

func (c *Connection) IsHealthy(now time.Time) bool {
	if atomic.LoadInt32(&c.unhealthy) == 1 {
		return false
	}
	one := make([]byte, 1)
	c.raw.SetReadDeadline(time.Now().Add(time.Millisecond))
	_, err := c.raw.Read(one)
	c.raw.SetReadDeadline(time.Time{})
	if err == nil {
		return false
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	return false
}

func (c *Connection) AllocatedStreamCount() int { return int(atomic.LoadInt32(&c.streamCount)) }
func (c *Connection) MaxStreamCount() int        { return int(atomic.LoadInt32(&c.maxStreams)) }
func (c *Connection) SetMaxStreamCount(n int32)  { atomic.StoreInt32(&c.maxStreams, n) }

func (c *Connection) AcquireStream() { atomic.AddInt32(&c.streamCount, 1) }
func (c *Connection) ReleaseStream() { atomic.AddInt32(&c.streamCount, -1) }

func (c *Connection) MarkUnhealthy() { atomic.StoreInt32(&c.unhealthy, 1) }

func (c *Connection) Protocol() Protocol { return c.protocol }
func (c *Connection) Raw() net.Conn      { return c.raw }
func (c *Connection) CreatedAt() time.Time { return c.createdAt }

func (c *Connection) Close() error { return c.raw.Close() }

var _ io.Closer = (*Connection)(nil)
