package route

import (
	"context"
	"net"
	"sort"

	"github.com/WhileEndless/httpcore/internal/errors"
)

// Selection is one emitted batch of routes for a single proxy.
type Selection struct {
	Proxy  Proxy
	Routes []Route
}

// Selector enumerates (proxy, socket-address) attempts for an address:
// proxy list first, then per-proxy DNS
// resolution, Happy-Eyeballs reordering, and route-database deprioritizing.
type Selector struct {
	address  *Address
	db       *Database
	proxies  []Proxy
	proxyIdx int
}

// Plan begins route selection for address, consulting routeDatabase to
// deprioritize recently-failed routes.
func Plan(ctx context.Context, address *Address, db *Database) *Selector {
	var proxies []Proxy
	switch {
	case address.Proxy != nil && !address.Proxy.Direct:
		proxies = []Proxy{*address.Proxy}
	case address.ProxySelector != nil:
		candidates := address.ProxySelector.Select(ctx, address.Host)
		for _, p := range candidates {
			if p.Direct {
				continue
			}
			proxies = append(proxies, p)
		}
		if len(proxies) == 0 {
			proxies = append(proxies, DirectProxy)
		}
	default:
		proxies = []Proxy{DirectProxy}
	}

	return &Selector{address: address, db: db, proxies: proxies}
}

// HasNext reports whether another Selection is available.
func (s *Selector) HasNext() bool { return s.proxyIdx < len(s.proxies) }

// Next resolves the current proxy (or the target host, for DIRECT) and
// returns the next Selection, advancing past proxy-level exhaustion. DNS
// failures are recorded and skipped unless the proxy was the last one, in
// which case UnknownHost surfaces to the caller.
func (s *Selector) Next(ctx context.Context) (*Selection, error) {
	var lastErr error
	for s.proxyIdx < len(s.proxies) {
		proxy := s.proxies[s.proxyIdx]
		s.proxyIdx++

		resolveHost := s.address.Host
		resolvePort := s.address.Port
		if !proxy.Direct {
			resolveHost = proxy.Host
			resolvePort = proxy.Port
		}

		ips, err := s.resolve(ctx, resolveHost)
		if err != nil {
			lastErr = errors.NewUnknownHostError(resolveHost, err)
			if s.proxyIdx >= len(s.proxies) {
				return nil, lastErr
			}
			continue
		}

		if s.address.FastFallback {
			ips = InterleaveHappyEyeballs(ips)
		}

		routes := make([]Route, 0, len(ips))
		for _, ip := range ips {
			routes = append(routes, Route{
				Address:       s.address,
				Proxy:         proxy,
				SocketAddress: ip,
				Port:          resolvePort,
			})
		}
		s.deprioritizeFailed(routes)

		return &Selection{Proxy: proxy, Routes: routes}, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.NewValidationError("route selector exhausted")
}

func (s *Selector) resolve(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	dns := s.address.DNS
	if dns == nil {
		dns = SystemResolver{}
	}
	return dns.LookupIP(ctx, host)
}

// deprioritizeFailed performs a stable sort moving routes present in the
// route database to the end of the slice, within this single selection.
func (s *Selector) deprioritizeFailed(routes []Route) {
	if s.db == nil {
		return
	}
	sort.SliceStable(routes, func(i, j int) bool {
		return !s.db.IsFailed(routes[i]) && s.db.IsFailed(routes[j])
	})
}
