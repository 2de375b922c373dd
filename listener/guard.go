package listener

import (
	"net"

	"github.com/sirupsen/logrus"

	"github.com/WhileEndless/httpcore/internal/logging"
)

// guarded wraps a Listener so a panic inside any callback is recovered,
// logged, and swallowed rather than propagating into the call it's
// observing.
type guarded struct {
	inner Listener
	log   *logrus.Logger
}

// Guard wraps l so a panic in its callbacks can never crash the call being
// observed; a callback that blocks still blocks the call. Wrapping an already-guarded Listener is a no-op.
func Guard(l Listener) Listener {
	if g, ok := l.(*guarded); ok {
		return g
	}
	return &guarded{inner: l, log: logging.NewDefault()}
}

func (g *guarded) recover(event string) {
	if r := recover(); r != nil {
		g.log.WithField("event", event).WithField("panic", r).Warn("listener panicked")
	}
}

func (g *guarded) CallStart(c CallInfo) { defer g.recover("CallStart"); g.inner.CallStart(c) }

func (g *guarded) ProxySelectStart(c CallInfo, url string) {
	defer g.recover("ProxySelectStart")
	g.inner.ProxySelectStart(c, url)
}
func (g *guarded) ProxySelectEnd(c CallInfo, proxies []string) {
	defer g.recover("ProxySelectEnd")
	g.inner.ProxySelectEnd(c, proxies)
}

func (g *guarded) DNSStart(c CallInfo, domain string) {
	defer g.recover("DNSStart")
	g.inner.DNSStart(c, domain)
}
func (g *guarded) DNSEnd(c CallInfo, domain string, ips []net.IP, err error) {
	defer g.recover("DNSEnd")
	g.inner.DNSEnd(c, domain, ips, err)
}

func (g *guarded) ConnectStart(c CallInfo, addr string) {
	defer g.recover("ConnectStart")
	g.inner.ConnectStart(c, addr)
}
func (g *guarded) ConnectEnd(c CallInfo, addr, protocol string) {
	defer g.recover("ConnectEnd")
	g.inner.ConnectEnd(c, addr, protocol)
}
func (g *guarded) ConnectFailed(c CallInfo, addr, protocol string, err error) {
	defer g.recover("ConnectFailed")
	g.inner.ConnectFailed(c, addr, protocol, err)
}

func (g *guarded) SecureConnectStart(c CallInfo) {
	defer g.recover("SecureConnectStart")
	g.inner.SecureConnectStart(c)
}
func (g *guarded) SecureConnectEnd(c CallInfo, tlsVersion string, err error) {
	defer g.recover("SecureConnectEnd")
	g.inner.SecureConnectEnd(c, tlsVersion, err)
}

func (g *guarded) ConnectionAcquired(c CallInfo, addr string, reused bool) {
	defer g.recover("ConnectionAcquired")
	g.inner.ConnectionAcquired(c, addr, reused)
}
func (g *guarded) ConnectionReleased(c CallInfo, addr string) {
	defer g.recover("ConnectionReleased")
	g.inner.ConnectionReleased(c, addr)
}

func (g *guarded) RequestHeadersStart(c CallInfo) {
	defer g.recover("RequestHeadersStart")
	g.inner.RequestHeadersStart(c)
}
func (g *guarded) RequestHeadersEnd(c CallInfo) {
	defer g.recover("RequestHeadersEnd")
	g.inner.RequestHeadersEnd(c)
}
func (g *guarded) RequestBodyStart(c CallInfo) {
	defer g.recover("RequestBodyStart")
	g.inner.RequestBodyStart(c)
}
func (g *guarded) RequestBodyEnd(c CallInfo, bytesWritten int64) {
	defer g.recover("RequestBodyEnd")
	g.inner.RequestBodyEnd(c, bytesWritten)
}

func (g *guarded) ResponseHeadersStart(c CallInfo) {
	defer g.recover("ResponseHeadersStart")
	g.inner.ResponseHeadersStart(c)
}
func (g *guarded) ResponseHeadersEnd(c CallInfo, statusCode int) {
	defer g.recover("ResponseHeadersEnd")
	g.inner.ResponseHeadersEnd(c, statusCode)
}
func (g *guarded) ResponseBodyStart(c CallInfo) {
	defer g.recover("ResponseBodyStart")
	g.inner.ResponseBodyStart(c)
}
func (g *guarded) ResponseBodyEnd(c CallInfo, bytesRead int64) {
	defer g.recover("ResponseBodyEnd")
	g.inner.ResponseBodyEnd(c, bytesRead)
}

func (g *guarded) Canceled(c CallInfo)  { defer g.recover("Canceled"); g.inner.Canceled(c) }
func (g *guarded) CallEnd(c CallInfo)   { defer g.recover("CallEnd"); g.inner.CallEnd(c) }
func (g *guarded) CallFailed(c CallInfo, err error) {
	defer g.recover("CallFailed")
	g.inner.CallFailed(c, err)
}

var _ Listener = (*guarded)(nil)
