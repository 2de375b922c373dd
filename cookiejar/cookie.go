// Package cookiejar implements the engine's cookie store (§4.J): RFC 6265
// parsing and storage, with the Public Suffix List used to reject domain
// cookies set on registrable-suffix boundaries.
package cookiejar

import "time"

// Cookie is one stored cookie, keyed by (Domain, Path, Name).
type Cookie struct {
	Name  string
	Value string

	Domain   string    // always lowercase; DNS label that scopes this cookie
	Path     string
	Expires  time.Time // zero means session cookie
	HostOnly bool      // true if the Set-Cookie carried no Domain attribute
	Secure   bool
	HTTPOnly bool
	SameSite string // "", "Strict", "Lax", or "None"

	Created time.Time
}

// Expired reports whether the cookie's Expires time has passed. Session
// cookies (zero Expires) never expire on their own.
func (c *Cookie) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && !now.Before(c.Expires)
}
