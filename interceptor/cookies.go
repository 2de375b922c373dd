package interceptor

import (
	"strings"

	"github.com/WhileEndless/httpcore/cookiejar"
	"github.com/WhileEndless/httpcore/internal/model"
)

// Cookies loads a Cookie header from Jar before the request proceeds and
// saves any Set-Cookie headers the response carries back into it.
// It sits just inside Bridge, after header defaulting but before the
// cache/connect stages, so a cache hit still gets to apply its
// Set-Cookie history exactly like a live response would.
type Cookies struct {
	Jar cookiejar.Jar
}

func (c *Cookies) Intercept(chain Chain) (*model.Response, error) {
	req := chain.Request()
	if c.Jar == nil {
		return chain.Proceed(req)
	}

	if cookies := c.Jar.LoadFor(req.URL); len(cookies) > 0 {
		if existing := req.Headers.Get("Cookie"); existing == "" {
			req = req.WithHeader("Cookie", encodeCookieHeader(cookies))
		}
	}

	resp, err := chain.Proceed(req)
	if err != nil {
		return nil, err
	}

	if setCookies := resp.Headers.Values("Set-Cookie"); len(setCookies) > 0 {
		now := resp.Received
		parsed := make([]*cookiejar.Cookie, 0, len(setCookies))
		for _, header := range setCookies {
			ck, perr := cookiejar.ParseSetCookie(header, req.URL, now)
			if perr == nil {
				parsed = append(parsed, ck)
			}
		}
		if len(parsed) > 0 {
			c.Jar.SaveFrom(req.URL, parsed)
		}
	}
	return resp, nil
}

func encodeCookieHeader(cookies []*cookiejar.Cookie) string {
	var b strings.Builder
	for i, ck := range cookies {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ck.Name)
		b.WriteByte('=')
		b.WriteString(ck.Value)
	}
	return b.String()
}
