// Package pool implements the connection pool: per-address idle
// connection reuse, HTTP/2 multiplexing awareness, LRU-style eviction, and
// address-policy pre-warming.
package pool

import (
	"sync"
	"time"

	"github.com/WhileEndless/httpcore/internal/route"
	"github.com/WhileEndless/httpcore/pkg/constants"
)

// Connection is the subset of a pooled connection's behavior the pool
// needs: its route identity, multiplexing capacity, and health.
type Connection interface {
	Route() route.Route
	IsMultiplexed() bool
	IsHealthy(now time.Time) bool
	AllocatedStreamCount() int
	MaxStreamCount() int
	Close() error
}

// entry tracks one pooled connection alongside its checkout count and the
// time it last became fully idle (inUse == 0).
type entry struct {
	conn      Connection
	inUse     int
	idleSince time.Time
	createdAt time.Time
}

// Config holds the pool's eviction tunables.
type Config struct {
	// MaxIdleConnections bounds the total number of fully-idle connections
	// kept across all addresses; the oldest idle connection is evicted
	// first when the bound is exceeded.
	MaxIdleConnections int

	// MaxIdleTime is how long a fully-idle connection may sit before the
	// cleanup pass closes it.
	MaxIdleTime time.Duration

	// MaxConnectionLifetime bounds total connection age regardless of
	// activity; zero means unbounded.
	MaxConnectionLifetime time.Duration
}

// DefaultConfig returns the pool's stock eviction settings.
func DefaultConfig() Config {
	return Config{
		MaxIdleConnections: constants.DefaultMaxIdleConnections,
		MaxIdleTime:        constants.DefaultKeepAliveDuration,
	}
}

// Pool is keyed by route.Address.Key(); each key maps to every connection
// (idle or checked out) currently associated with that address.
type Pool struct {
	mu     sync.Mutex
	cfg    Config
	byKey  map[string][]*entry
	closed bool
}

// New returns an empty pool.
func New(cfg Config) *Pool {
	if cfg.MaxIdleConnections <= 0 {
		cfg.MaxIdleConnections = constants.DefaultMaxIdleConnections
	}
	if cfg.MaxIdleTime <= 0 {
		cfg.MaxIdleTime = constants.DefaultKeepAliveDuration
	}
	return &Pool{cfg: cfg, byKey: make(map[string][]*entry)}
}

// Acquire finds a healthy, non-full connection for addr and checks it out,
// returning (nil, false) when none is available.
func (p *Pool) Acquire(addr *route.Address, now time.Time) (Connection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.byKey[addr.Key()] {
		if !e.conn.IsHealthy(now) {
			continue
		}
		if e.conn.IsMultiplexed() {
			if e.conn.AllocatedStreamCount() >= e.conn.MaxStreamCount() {
				continue
			}
		} else if e.inUse > 0 {
			continue
		}
		e.inUse++
		e.idleSince = time.Time{}
		return e.conn, true
	}
	return nil, false
}

// Has reports whether addr currently has at least one healthy, reusable
// connection, without checking one out. Used by listeners to report
// whether a connection was reused or freshly dialed.
func (p *Pool) Has(addr *route.Address) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	for _, e := range p.byKey[addr.Key()] {
		if !e.conn.IsHealthy(now) {
			continue
		}
		if e.conn.IsMultiplexed() {
			if e.conn.AllocatedStreamCount() < e.conn.MaxStreamCount() {
				return true
			}
			continue
		}
		if e.inUse == 0 {
			return true
		}
	}
	return false
}

// Put registers a newly created connection under addr, checked out once
// (the caller that dialed it is using it immediately). A connection that
// is already registered under addr is left as it is.
func (p *Pool) Put(addr *route.Address, conn Connection, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := addr.Key()
	for _, e := range p.byKey[key] {
		if e.conn == conn {
			return
		}
	}
	p.byKey[key] = append(p.byKey[key], &entry{conn: conn, inUse: 1, createdAt: now})
}

// Release returns one checkout of conn to the pool. A connection only
// becomes eligible for eviction once every checkout has been released.
func (p *Pool) Release(addr *route.Address, conn Connection, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.byKey[addr.Key()] {
		if e.conn == conn {
			if e.inUse > 0 {
				e.inUse--
			}
			if e.inUse == 0 {
				e.idleSince = now
			}
			return
		}
	}
}

// Evict removes conn from the pool unconditionally (e.g. after a protocol
// error) and closes it.
func (p *Pool) Evict(addr *route.Address, conn Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := addr.Key()
	list := p.byKey[key]
	for i, e := range list {
		if e.conn == conn {
			p.byKey[key] = append(list[:i], list[i+1:]...)
			conn.Close()
			return
		}
	}
}

// Stats summarizes pool occupancy for diagnostics and tests.
type Stats struct {
	Idle   int
	Active int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	var s Stats
	for _, list := range p.byKey {
		for _, e := range list {
			if e.inUse == 0 {
				s.Idle++
			} else {
				s.Active++
			}
		}
	}
	return s
}

// Close evicts and closes every connection in the pool.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for key, list := range p.byKey {
		for _, e := range list {
			e.conn.Close()
		}
		delete(p.byKey, key)
	}
}
