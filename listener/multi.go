package listener

import "net"

// multiListener fans each event out to every listener in order. Built
// only through Multi, which guards each member first.
type multiListener []Listener

func (m multiListener) CallStart(c CallInfo) {
	for _, l := range m {
		l.CallStart(c)
	}
}
func (m multiListener) ProxySelectStart(c CallInfo, url string) {
	for _, l := range m {
		l.ProxySelectStart(c, url)
	}
}
func (m multiListener) ProxySelectEnd(c CallInfo, proxies []string) {
	for _, l := range m {
		l.ProxySelectEnd(c, proxies)
	}
}
func (m multiListener) DNSStart(c CallInfo, domain string) {
	for _, l := range m {
		l.DNSStart(c, domain)
	}
}
func (m multiListener) DNSEnd(c CallInfo, domain string, ips []net.IP, err error) {
	for _, l := range m {
		l.DNSEnd(c, domain, ips, err)
	}
}
func (m multiListener) ConnectStart(c CallInfo, addr string) {
	for _, l := range m {
		l.ConnectStart(c, addr)
	}
}
func (m multiListener) ConnectEnd(c CallInfo, addr, protocol string) {
	for _, l := range m {
		l.ConnectEnd(c, addr, protocol)
	}
}
func (m multiListener) ConnectFailed(c CallInfo, addr, protocol string, err error) {
	for _, l := range m {
		l.ConnectFailed(c, addr, protocol, err)
	}
}
func (m multiListener) SecureConnectStart(c CallInfo) {
	for _, l := range m {
		l.SecureConnectStart(c)
	}
}
func (m multiListener) SecureConnectEnd(c CallInfo, tlsVersion string, err error) {
	for _, l := range m {
		l.SecureConnectEnd(c, tlsVersion, err)
	}
}
func (m multiListener) ConnectionAcquired(c CallInfo, addr string, reused bool) {
	for _, l := range m {
		l.ConnectionAcquired(c, addr, reused)
	}
}
func (m multiListener) ConnectionReleased(c CallInfo, addr string) {
	for _, l := range m {
		l.ConnectionReleased(c, addr)
	}
}
func (m multiListener) RequestHeadersStart(c CallInfo) {
	for _, l := range m {
		l.RequestHeadersStart(c)
	}
}
func (m multiListener) RequestHeadersEnd(c CallInfo) {
	for _, l := range m {
		l.RequestHeadersEnd(c)
	}
}
func (m multiListener) RequestBodyStart(c CallInfo) {
	for _, l := range m {
		l.RequestBodyStart(c)
	}
}
func (m multiListener) RequestBodyEnd(c CallInfo, bytesWritten int64) {
	for _, l := range m {
		l.RequestBodyEnd(c, bytesWritten)
	}
}
func (m multiListener) ResponseHeadersStart(c CallInfo) {
	for _, l := range m {
		l.ResponseHeadersStart(c)
	}
}
func (m multiListener) ResponseHeadersEnd(c CallInfo, statusCode int) {
	for _, l := range m {
		l.ResponseHeadersEnd(c, statusCode)
	}
}
func (m multiListener) ResponseBodyStart(c CallInfo) {
	for _, l := range m {
		l.ResponseBodyStart(c)
	}
}
func (m multiListener) ResponseBodyEnd(c CallInfo, bytesRead int64) {
	for _, l := range m {
		l.ResponseBodyEnd(c, bytesRead)
	}
}
func (m multiListener) Canceled(c CallInfo) {
	for _, l := range m {
		l.Canceled(c)
	}
}
func (m multiListener) CallEnd(c CallInfo) {
	for _, l := range m {
		l.CallEnd(c)
	}
}
func (m multiListener) CallFailed(c CallInfo, err error) {
	for _, l := range m {
		l.CallFailed(c, err)
	}
}

var _ Listener = multiListener(nil)
