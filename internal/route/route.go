package route

import (
	"net"
	"strconv"
)

// Route is a resolved attempt: address + proxy + socket address.
type Route struct {
	Address       *Address
	Proxy         Proxy
	SocketAddress net.IP
	Port          int
}

// Equal compares by address, proxy, and socket-address.
func (r Route) Equal(o Route) bool {
	return r.Address == o.Address &&
		r.Proxy == o.Proxy &&
		r.SocketAddress.Equal(o.SocketAddress) &&
		r.Port == o.Port
}

// Key renders a stable string identity for map storage (route database,
// connection pool secondary indices).
func (r Route) Key() string {
	return r.Proxy.String() + "->" + r.SocketAddress.String() + ":" + strconv.Itoa(r.Port)
}
