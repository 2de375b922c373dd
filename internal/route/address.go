// Package route implements the route planner: proxy enumeration,
// DNS resolution, Happy-Eyeballs ordering, the route database of recently
// failed routes, and TLS-spec fallback selection.
package route

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
)

// Proxy describes one hop: either DIRECT or a concrete proxy endpoint.
type Proxy struct {
	Direct bool
	Type   string // "http", "https", "socks5" (DIRECT when Direct==true)
	Host   string
	Port   int
}

func (p Proxy) String() string {
	if p.Direct {
		return "DIRECT"
	}
	return fmt.Sprintf("%s://%s:%d", p.Type, p.Host, p.Port)
}

// DirectProxy is the sentinel DIRECT route.
var DirectProxy = Proxy{Direct: true}

// ProxySelector chooses proxies for a URL, mirroring java.net.ProxySelector:
// it may return several proxies in preference order.
type ProxySelector interface {
	Select(ctx context.Context, host string) []Proxy
}

// StaticProxySelector always returns the same list (or none, for DIRECT).
type StaticProxySelector []Proxy

func (s StaticProxySelector) Select(ctx context.Context, host string) []Proxy { return []Proxy(s) }

// Resolver resolves a hostname to an ordered list of IPs.
type Resolver interface {
	LookupIP(ctx context.Context, host string) ([]net.IP, error)
}

// SystemResolver resolves via the platform resolver.
type SystemResolver struct{ Resolver *net.Resolver }

func (r SystemResolver) LookupIP(ctx context.Context, host string) ([]net.IP, error) {
	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}
	addrs, err := res.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, len(addrs))
	for i, a := range addrs {
		ips[i] = a.IP
	}
	return ips, nil
}

// Address is the connection pool's key: everything that determines whether two
// requests may share a connection.
type Address struct {
	Host             string
	Port             int
	Protocols        []string // ALPN preference order, e.g. ["h2", "http/1.1"]
	TLSSpecs         []*tls.Config
	DNS              Resolver
	ProxyAuthHeader  func(challenge string) (string, bool)
	Proxy            *Proxy // explicit proxy, nil means "use ProxySelector"
	ProxySelector    ProxySelector
	FastFallback     bool // Happy-Eyeballs interleaving toggle
}

// Key returns a value usable as a map key for connection-pool lookups:
// Address equality is by every field that changes wire behavior.
func (a *Address) Key() string {
	proxy := "none"
	if a.Proxy != nil {
		proxy = a.Proxy.String()
	}
	return fmt.Sprintf("%s|%d|%s|%v", a.Host, a.Port, proxy, a.Protocols)
}

// IsHTTPS reports whether this address requires TLS (non-empty TLSSpecs).
func (a *Address) IsHTTPS() bool { return len(a.TLSSpecs) > 0 }
