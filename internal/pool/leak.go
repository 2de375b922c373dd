package pool

import "runtime"

// Checkout tracks one in-flight use of a pooled connection so that a caller
// which forgets to release it is still noticed, instead of silently
// pinning the connection active forever.
type Checkout struct {
	conn     Connection
	released bool
	onLeak   func(Connection)
}

// TrackCheckout wraps conn in a Checkout whose finalizer fires onLeak if
// the Checkout is garbage-collected before Release is called. The caller
// must keep the returned *Checkout reachable for the lifetime of its use
// and call Release when done; a released Checkout is inert at finalization.
func TrackCheckout(conn Connection, onLeak func(Connection)) *Checkout {
	c := &Checkout{conn: conn, onLeak: onLeak}
	runtime.SetFinalizer(c, func(c *Checkout) {
		if !c.released && c.onLeak != nil {
			c.onLeak(c.conn)
		}
	})
	return c
}

// Release marks the checkout as returned, suppressing the leak callback.
func (c *Checkout) Release() {
	c.released = true
	runtime.SetFinalizer(c, nil)
}
