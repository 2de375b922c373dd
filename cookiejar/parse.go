package cookiejar

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/WhileEndless/httpcore/internal/errors"
	"github.com/WhileEndless/httpcore/internal/wire"
)

// ParseSetCookie parses one Set-Cookie header value per RFC 6265 §5.2,
// scoping it to the request URL that produced it. now is the creation
// timestamp (injected so callers can use a fake clock in tests).
func ParseSetCookie(header string, reqURL *wire.URL, now time.Time) (*Cookie, error) {
	parts := strings.Split(header, ";")
	nameValue := strings.TrimSpace(parts[0])
	eq := strings.IndexByte(nameValue, '=')
	if eq < 0 {
		return nil, errors.NewValidationError("set-cookie missing name=value")
	}
	name := strings.TrimSpace(nameValue[:eq])
	value := strings.TrimSpace(nameValue[eq+1:])
	if name == "" {
		return nil, errors.NewValidationError("set-cookie has empty name")
	}
	value = strings.Trim(value, `"`)

	c := &Cookie{Name: name, Value: value, Path: "/", Created: now}
	hasMaxAge := false

	for _, attr := range parts[1:] {
		attr = strings.TrimSpace(attr)
		if attr == "" {
			continue
		}
		k, v, _ := strings.Cut(attr, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		switch k {
		case "domain":
			c.Domain = strings.ToLower(strings.TrimPrefix(v, "."))
		case "path":
			if strings.HasPrefix(v, "/") {
				c.Path = v
			}
		case "expires":
			if t, ok := wire.ParseHTTPDate(v); ok && !hasMaxAge {
				c.Expires = t
			}
		case "max-age":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				hasMaxAge = true
				if n <= 0 {
					c.Expires = now.Add(-time.Second)
				} else {
					c.Expires = now.Add(time.Duration(n) * time.Second)
				}
			}
		case "secure":
			c.Secure = true
		case "httponly":
			c.HTTPOnly = true
		case "samesite":
			c.SameSite = titleCase(v)
		}
	}

	if c.Domain == "" {
		c.Domain = strings.ToLower(reqURL.Host)
		c.HostOnly = true
	} else if err := validateDomainScope(c.Domain, reqURL.Host); err != nil {
		return nil, err
	}

	return c, nil
}

// validateDomainScope rejects a Domain attribute that names a public
// suffix, or a suffix the requesting host isn't itself a member of:
// domain cookies must never be set on registrable-suffix boundaries.
func validateDomainScope(domain, requestHost string) error {
	if !domainMatches(requestHost, domain) {
		return errors.NewValidationError("set-cookie domain does not match request host")
	}
	if suffix, icann := publicsuffix.PublicSuffix(domain); icann && suffix == domain {
		return errors.NewValidationError("set-cookie domain is a public suffix")
	}
	return nil
}

// titleCase uppercases the first rune of an ASCII SameSite token
// ("strict" -> "Strict") without pulling in the deprecated strings.Title.
func titleCase(s string) string {
	s = strings.ToLower(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// domainMatches reports whether host is domain or a subdomain of it,
// the match rule RFC 6265 §5.1.3 uses both to accept a Domain attribute
// and to decide which stored cookies apply to an outgoing request.
func domainMatches(host, domain string) bool {
	host = strings.ToLower(host)
	domain = strings.ToLower(domain)
	if host == domain {
		return true
	}
	return strings.HasSuffix(host, "."+domain)
}
