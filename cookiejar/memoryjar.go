package cookiejar

import (
	"sync"
	"time"

	"github.com/WhileEndless/httpcore/internal/wire"
)

type cookieKey struct {
	domain string
	path   string
	name   string
}

// MemoryJar is the default Jar: an in-memory set keyed by
// (domain, path, name), with expired entries evicted lazily on read.
type MemoryJar struct {
	mu      sync.Mutex
	entries map[cookieKey]*Cookie
	Now     func() time.Time
}

// NewMemoryJar returns an empty MemoryJar.
func NewMemoryJar() *MemoryJar {
	return &MemoryJar{entries: make(map[cookieKey]*Cookie)}
}

func (j *MemoryJar) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

// LoadFor returns every stored cookie whose domain, path, and Secure
// attribute are satisfied by u, sorted by path length (longest first) per
// RFC 6265 §5.4, skipping anything that has expired.
func (j *MemoryJar) LoadFor(u *wire.URL) []*Cookie {
	now := j.now()
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []*Cookie
	for key, c := range j.entries {
		if c.Expired(now) {
			delete(j.entries, key)
			continue
		}
		if c.HostOnly {
			if !domainMatches(u.Host, c.Domain) || u.Host != c.Domain {
				continue
			}
		} else if !domainMatches(u.Host, c.Domain) {
			continue
		}
		if !pathMatches(u.Path(), c.Path) {
			continue
		}
		if c.Secure && u.Scheme != "https" {
			continue
		}
		out = append(out, c)
	}
	for i := 1; i < len(out); i++ {
		for k := i; k > 0 && len(out[k].Path) > len(out[k-1].Path); k-- {
			out[k], out[k-1] = out[k-1], out[k]
		}
	}
	return out
}

// SaveFrom stores cookies parsed from a response against u's host,
// replacing any existing entry with the same (domain, path, name) and
// deleting it outright if the new cookie is already expired (the
// standard way a server clears a cookie: Max-Age=0).
func (j *MemoryJar) SaveFrom(u *wire.URL, cookies []*Cookie) {
	now := j.now()
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, c := range cookies {
		key := cookieKey{domain: c.Domain, path: c.Path, name: c.Name}
		if c.Expired(now) {
			delete(j.entries, key)
			continue
		}
		j.entries[key] = c
	}
}

// pathMatches implements RFC 6265 §5.1.4's cookie-path default-match.
func pathMatches(requestPath, cookiePath string) bool {
	if requestPath == cookiePath {
		return true
	}
	if len(requestPath) > len(cookiePath) && requestPath[:len(cookiePath)] == cookiePath {
		if cookiePath[len(cookiePath)-1] == '/' {
			return true
		}
		return requestPath[len(cookiePath)] == '/'
	}
	return false
}
