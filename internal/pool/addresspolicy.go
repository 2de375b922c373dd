package pool

import (
	"context"
	"time"

	"github.com/WhileEndless/httpcore/internal/route"
)

// Dialer creates a brand new connection for addr. Address-policy
// pre-warming uses this to open connections before any request needs them.
type Dialer func(ctx context.Context, addr *route.Address) (Connection, error)

// AddressPolicy describes how many concurrent connections a particular
// address should keep warm, independent of live traffic.
type AddressPolicy struct {
	Address            *route.Address
	MinimumConcurrency int
}

// Warm dials new connections for policy.Address until the pool holds at
// least policy.MinimumConcurrency idle-or-active connections for it, or
// dialer returns an error.
func (p *Pool) Warm(ctx context.Context, policy AddressPolicy, dial Dialer) error {
	for {
		p.mu.Lock()
		count := len(p.byKey[policy.Address.Key()])
		p.mu.Unlock()
		if count >= policy.MinimumConcurrency {
			return nil
		}
		conn, err := dial(ctx, policy.Address)
		if err != nil {
			return err
		}
		p.Put(policy.Address, conn, time.Now())
		p.Release(policy.Address, conn, time.Now())
	}
}
