package websocket

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"strings"
	"time"

	"github.com/WhileEndless/httpcore/internal/conn"
	"github.com/WhileEndless/httpcore/internal/errors"
	"github.com/WhileEndless/httpcore/internal/h1"
	"github.com/WhileEndless/httpcore/internal/route"
	"github.com/WhileEndless/httpcore/internal/wire"
)

// acceptGUID is the fixed key-derivation constant of RFC 6455 §1.3.
const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

func computeAcceptKey(key string) string {
	h := sha1.Sum([]byte(key + acceptGUID))
	return base64.StdEncoding.EncodeToString(h[:])
}

// Dial obtains a connection for addr and performs the RFC 6455 §4.K
// upgrade handshake over it, returning a ready Conn. The upgrade is
// always HTTP/1.1: it dials directly rather than going through the
// interceptor chain, since redirects/caching/retry don't apply to it.
func Dial(ctx context.Context, addr *route.Address, reqURL *wire.URL, extraHeaders *wire.Headers, connTimeout time.Duration, opts Options) (*Conn, error) {
	plan := route.NewTLSFallbackPlan(addr.TLSSpecs)
	selector := route.Plan(ctx, addr, route.NewDatabase())

	var c *conn.Connection
	var lastErr error
	for selector.HasNext() {
		sel, err := selector.Next(ctx)
		if err != nil {
			lastErr = err
			break
		}
		for _, rt := range sel.Routes {
			cc, derr := conn.Dial(ctx, rt, plan, connTimeout)
			if derr != nil {
				lastErr = derr
				continue
			}
			c = cc
			break
		}
		if c != nil {
			break
		}
	}
	if c == nil {
		if lastErr == nil {
			lastErr = errors.NewValidationError("no routes available for websocket upgrade")
		}
		return nil, lastErr
	}

	key, err := newWebSocketKey()
	if err != nil {
		c.Close()
		return nil, err
	}

	headers := wire.NewHeaders()
	if extraHeaders != nil {
		for i := 0; i < extraHeaders.Len(); i++ {
			headers.Add(extraHeaders.Name(i), extraHeaders.Value(i))
		}
	}
	headers.Set("Host", reqURL.Host)
	headers.Set("Upgrade", "websocket")
	headers.Set("Connection", "Upgrade")
	headers.Set("Sec-WebSocket-Key", key)
	headers.Set("Sec-WebSocket-Version", "13")
	if opts.PermessageDeflate {
		headers.Set("Sec-WebSocket-Extensions", "permessage-deflate; client_max_window_bits")
	}

	codec := h1.New(c.Raw())
	if err := codec.WriteRequestHeaders("GET", reqURL, headers); err != nil {
		c.Close()
		return nil, err
	}
	status, respHeaders, err := codec.ReadResponseHeaders()
	if err != nil {
		c.Close()
		return nil, err
	}
	if status.Code != 101 {
		c.Close()
		return nil, errors.NewProtocolError("websocket upgrade rejected", nil)
	}
	if !strings.EqualFold(respHeaders.Get("Upgrade"), "websocket") ||
		!strings.Contains(strings.ToLower(respHeaders.Get("Connection")), "upgrade") {
		c.Close()
		return nil, errors.NewProtocolError("websocket upgrade response missing Upgrade/Connection", nil)
	}
	if respHeaders.Get("Sec-WebSocket-Accept") != computeAcceptKey(key) {
		c.Close()
		return nil, errors.NewProtocolError("websocket Sec-WebSocket-Accept mismatch", nil)
	}

	var deflate *deflateExtension
	if opts.PermessageDeflate && negotiatedDeflate(respHeaders.Get("Sec-WebSocket-Extensions")) {
		ext := respHeaders.Get("Sec-WebSocket-Extensions")
		d, err := newDeflateExtension(
			strings.Contains(ext, "client_no_context_takeover"),
			strings.Contains(ext, "server_no_context_takeover"),
		)
		if err != nil {
			c.Close()
			return nil, err
		}
		deflate = d
	}

	return newConn(c.Raw(), true, deflate, opts), nil
}

func newWebSocketKey() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", errors.NewIOError("generate websocket key", err)
	}
	return base64.StdEncoding.EncodeToString(b[:]), nil
}

func negotiatedDeflate(extensionsHeader string) bool {
	return strings.Contains(strings.ToLower(extensionsHeader), "permessage-deflate")
}
