// Package h1 implements the HTTP/1.1 wire codec: request-line and header
// serialization, and tolerant fixed/chunked/until-close body framing.
package h1

import (
	"bufio"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/WhileEndless/httpcore/internal/errors"
	"github.com/WhileEndless/httpcore/internal/wire"
)

// Codec implements conn.Codec for one connection's worth of HTTP/1.1
// exchanges. A single Codec only ever carries one exchange at a time;
// keep-alive reuse constructs a fresh Codec per exchange over the same
// net.Conn.
type Codec struct {
	rw            io.ReadWriter
	r             *bufio.Reader
	expectTrailer bool
	trailer       *wire.Headers
}

// New wraps rw (typically a *conn.Connection's raw socket) for one exchange.
func New(rw io.ReadWriter) *Codec {
	return &Codec{rw: rw, r: bufio.NewReader(rw)}
}

// WriteRequestHeaders writes the request line and headers. The caller is
// responsible for Host and Content-Length/Transfer-Encoding.
func (c *Codec) WriteRequestHeaders(method string, url *wire.URL, headers *wire.Headers) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", method, url.Path())
	for i := 0; i < headers.Len(); i++ {
		fmt.Fprintf(&b, "%s: %s\r\n", headers.Name(i), headers.Value(i))
	}
	b.WriteString("\r\n")
	_, err := io.WriteString(c.rw, b.String())
	if err != nil {
		return errors.NewWriteTimeoutError("write request headers", err)
	}
	return nil
}

// WriteRequestBody copies body verbatim; the caller has already chosen
// fixed-length or chunked framing and written the matching header.
func (c *Codec) WriteRequestBody(body io.Reader) error {
	if body == nil {
		return nil
	}
	if _, err := io.Copy(c.rw, body); err != nil {
		return errors.NewWriteTimeoutError("write request body", err)
	}
	return nil
}

// readHead reads one status line plus header block, interim or final.
func (c *Codec) readHead() (*wire.StatusLine, *wire.Headers, error) {
	tp := textproto.NewReader(c.r)
	line, err := tp.ReadLine()
	if err != nil {
		return nil, nil, errors.NewUnexpectedEOFError("read status line", err)
	}
	status, err := wire.ParseStatusLine(line)
	if err != nil {
		return nil, nil, err
	}

	headers := wire.NewHeaders()
	for {
		hline, err := tp.ReadLine()
		if err != nil {
			return nil, nil, errors.NewUnexpectedEOFError("read response headers", err)
		}
		if hline == "" {
			break
		}
		name, value, ok := splitHeaderLine(hline)
		if !ok {
			continue
		}
		headers.Add(name, value)
	}
	return status, headers, nil
}

// AwaitContinue reads the server's answer to an Expect: 100-continue head:
// a 100 means proceed with the body (its headers are discarded); any other
// status is the final response and the body must be abandoned.
func (c *Codec) AwaitContinue() (bool, *wire.StatusLine, *wire.Headers, error) {
	status, headers, err := c.readHead()
	if err != nil {
		return false, nil, nil, err
	}
	if status.Code == 100 {
		return true, nil, nil, nil
	}
	return false, status, headers, nil
}

// ReadResponseHeaders reads the status line and header block. Interim 1xx
// responses (100 Continue and friends) are read, their headers discarded,
// and the header read re-entered; 101 is returned as-is since a protocol
// switch means there is no further response coming.
func (c *Codec) ReadResponseHeaders() (*wire.StatusLine, *wire.Headers, error) {
	for {
		status, headers, err := c.readHead()
		if err != nil {
			return nil, nil, err
		}
		if status.Code >= 100 && status.Code < 200 && status.Code != 101 {
			continue
		}
		return status, headers, nil
	}
}

func splitHeaderLine(line string) (name, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

// ResponseBody returns a reader implementing the body-framing rule
// selected by headers: chunked Transfer-Encoding, fixed Content-Length, or
// read-until-close, tolerant of the RFC violations real servers commit.
func (c *Codec) ResponseBody(headers *wire.Headers) (io.ReadCloser, error) {
	if isChunked(headers) {
		return &chunkedReader{tp: textproto.NewReader(c.r), trailer: &c.trailer}, nil
	}
	if cl, ok := contentLength(headers); ok {
		return &fixedReader{r: c.r, remaining: cl}, nil
	}
	return &untilCloseReader{r: c.r}, nil
}

// Finish is a no-op for HTTP/1.1: a Codec carries a single exchange, and
// keep-alive reuse builds a new Codec for the next one.
func (c *Codec) Finish() error { return nil }

func isChunked(h *wire.Headers) bool {
	for _, v := range h.Values("Transfer-Encoding") {
		if strings.EqualFold(strings.TrimSpace(lastToken(v)), "chunked") {
			return true
		}
	}
	return false
}

func lastToken(v string) string {
	parts := strings.Split(v, ",")
	return strings.TrimSpace(parts[len(parts)-1])
}

func contentLength(h *wire.Headers) (int64, bool) {
	vals := h.Values("Content-Length")
	if len(vals) == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(vals[0]), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// fixedReader reads exactly `remaining` bytes, tolerating a short read from
// a server that violates its own Content-Length (treated as a truncated
// body, not an error).
type fixedReader struct {
	r         *bufio.Reader
	remaining int64
}

func (f *fixedReader) Read(p []byte) (int, error) {
	if f.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > f.remaining {
		p = p[:f.remaining]
	}
	n, err := f.r.Read(p)
	f.remaining -= int64(n)
	if err == io.EOF && f.remaining > 0 {
		f.remaining = 0
		return n, io.EOF
	}
	return n, err
}

func (f *fixedReader) Close() error { return nil }

// chunkedReader decodes chunked Transfer-Encoding, storing any trailer
// headers for the caller to merge once the terminating chunk is read.
type chunkedReader struct {
	tp      *textproto.Reader
	trailer **wire.Headers
	size    int64
	done    bool
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.done {
		return 0, io.EOF
	}
	if c.size == 0 {
		line, err := c.tp.ReadLine()
		if err != nil {
			return 0, errors.NewProtocolError("reading chunk size", err)
		}
		size, err := strconv.ParseInt(strings.TrimSpace(strings.Split(line, ";")[0]), 16, 64)
		if err != nil {
			return 0, errors.NewProtocolError("invalid chunk size", err)
		}
		if size == 0 {
			c.readTrailer()
			c.done = true
			return 0, io.EOF
		}
		c.size = size
	}
	if int64(len(p)) > c.size {
		p = p[:c.size]
	}
	n, err := c.tp.R.Read(p)
	c.size -= int64(n)
	if err != nil {
		return n, errors.NewIOError("reading chunk body", err)
	}
	if c.size == 0 {
		crlf := make([]byte, 2)
		if _, err := io.ReadFull(c.tp.R, crlf); err != nil {
			return n, errors.NewIOError("reading chunk CRLF", err)
		}
	}
	return n, nil
}

func (c *chunkedReader) readTrailer() {
	headers := wire.NewHeaders()
	for {
		line, err := c.tp.ReadLine()
		if err != nil || line == "" {
			break
		}
		if name, value, ok := splitHeaderLine(line); ok {
			headers.Add(name, value)
		}
	}
	*c.trailer = headers
}

func (c *chunkedReader) Close() error { return nil }

// untilCloseReader reads to EOF, used when neither Content-Length nor
// chunked encoding is present (HTTP/1.0-style close-delimited bodies).
type untilCloseReader struct{ r *bufio.Reader }

func (u *untilCloseReader) Read(p []byte) (int, error) { return u.r.Read(p) }
func (u *untilCloseReader) Close() error                { return nil }
