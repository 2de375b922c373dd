package wire

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/WhileEndless/httpcore/internal/errors"
)

// Query is a single ordered (name, value?) query pair; value is nil when the
// pair had no "=" in the original string (a bare flag parameter).
type Query struct {
	Name  string
	Value *string
}

// URL is the engine's canonical URL value: immutable once parsed,
// with scheme/host/port/path/query/fragment already canonicalized.
type URL struct {
	Scheme   string
	Host     string // canonical (lowercased ASCII / punycode / IPv6-bracket-free)
	Port     int
	Segments []string // encoded path segments; [""] denotes root
	Query    []Query
	Fragment string
	hasFrag  bool
}

func defaultPort(scheme string) int {
	switch scheme {
	case "https", "wss":
		return 443
	default:
		return 80
	}
}

// ParseURL parses a URL following WHATWG-style permissive rules, percent-
// encoding components that require it, and rewriting ws/wss to http/https.
// Canonicalization is idempotent: parsing the String() of a parsed URL
// returns an equal value.
func ParseURL(raw string) (*URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.NewValidationError("malformed URL: " + raw)
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "ws":
		scheme = "http"
	case "wss":
		scheme = "https"
	case "http", "https":
	default:
		return nil, errors.NewValidationError("unsupported scheme: " + u.Scheme)
	}

	if u.Hostname() == "" {
		return nil, errors.NewValidationError("URL has no host: " + raw)
	}

	host := u.Hostname()
	var canonHost string
	if strings.Contains(host, ":") { // IPv6 literal
		canonHost = strings.ToLower(host)
	} else {
		canonHost, err = CanonicalizeHost(host)
		if err != nil {
			return nil, err
		}
	}

	port := defaultPort(scheme)
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return nil, errors.NewValidationError("invalid port: " + p)
		}
		port = n
	}

	segments := strings.Split(strings.TrimPrefix(u.EscapedPath(), "/"), "/")
	if len(segments) == 0 {
		segments = []string{""}
	}

	var queries []Query
	if u.RawQuery != "" {
		for _, pair := range strings.Split(u.RawQuery, "&") {
			if pair == "" {
				continue
			}
			if idx := strings.IndexByte(pair, '='); idx >= 0 {
				v := pair[idx+1:]
				queries = append(queries, Query{Name: pair[:idx], Value: &v})
			} else {
				queries = append(queries, Query{Name: pair})
			}
		}
	}

	result := &URL{
		Scheme:   scheme,
		Host:     canonHost,
		Port:     port,
		Segments: segments,
		Query:    queries,
	}
	if u.Fragment != "" || strings.Contains(raw, "#") {
		result.Fragment = u.EscapedFragment()
		result.hasFrag = true
	}
	return result, nil
}

// IsDefaultPort reports whether Port matches the scheme's implicit default.
func (u *URL) IsDefaultPort() bool { return u.Port == defaultPort(u.Scheme) }

// Path renders the encoded path, e.g. "/a/b".
func (u *URL) Path() string {
	return "/" + strings.Join(u.Segments, "/")
}

// String renders the URL canonically; re-parsing it returns an equal value.
func (u *URL) String() string {
	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	if strings.Contains(u.Host, ":") {
		b.WriteByte('[')
		b.WriteString(u.Host)
		b.WriteByte(']')
	} else {
		b.WriteString(u.Host)
	}
	if !u.IsDefaultPort() {
		fmt.Fprintf(&b, ":%d", u.Port)
	}
	b.WriteString(u.Path())
	if len(u.Query) > 0 {
		b.WriteByte('?')
		for i, q := range u.Query {
			if i > 0 {
				b.WriteByte('&')
			}
			b.WriteString(q.Name)
			if q.Value != nil {
				b.WriteByte('=')
				b.WriteString(*q.Value)
			}
		}
	}
	if u.hasFrag {
		b.WriteByte('#')
		b.WriteString(u.Fragment)
	}
	return b.String()
}

// Equal compares two URLs field-by-field (used by redirect cross-host checks
// and cache key derivation).
func (u *URL) Equal(o *URL) bool {
	return u != nil && o != nil && u.String() == o.String()
}

// IsCrossHost reports whether o has a different host, port or scheme than
// u — used to decide whether Authorization/Proxy-Authorization must be
// dropped on redirect.
func (u *URL) IsCrossHost(o *URL) bool {
	return !strings.EqualFold(u.Host, o.Host) || u.Port != o.Port || u.Scheme != o.Scheme
}
