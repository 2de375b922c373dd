package h1

import (
	"bytes"
	"io"
	"strings"
	"testing"

	stderrors "errors"

	"github.com/WhileEndless/httpcore/internal/errors"
	"github.com/WhileEndless/httpcore/internal/wire"
)

// duplexBuffer pairs a canned server response with a capture of everything
// the codec writes.
type duplexBuffer struct {
	in  *bytes.Reader
	out bytes.Buffer
}

func newDuplex(response string) *duplexBuffer {
	return &duplexBuffer{in: bytes.NewReader([]byte(response))}
}

func (d *duplexBuffer) Read(p []byte) (int, error)  { return d.in.Read(p) }
func (d *duplexBuffer) Write(p []byte) (int, error) { return d.out.Write(p) }

func mustURL(t *testing.T, raw string) *wire.URL {
	t.Helper()
	u, err := wire.ParseURL(raw)
	if err != nil {
		t.Fatalf("parse %q failed: %v", raw, err)
	}
	return u
}

func TestWriteRequestHeaders(t *testing.T) {
	d := newDuplex("")
	c := New(d)

	h := wire.NewHeaders()
	h.Add("Host", "example.com")
	h.Add("Accept", "*/*")
	if err := c.WriteRequestHeaders("GET", mustURL(t, "http://example.com/a/b"), h); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	want := "GET /a/b HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n"
	if got := d.out.String(); got != want {
		t.Fatalf("wire bytes mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestReadResponseFixedLength(t *testing.T) {
	d := newDuplex("HTTP/1.1 200 OK\r\nContent-Length: 11\r\n\r\nhello world")
	c := New(d)

	status, headers, err := c.ReadResponseHeaders()
	if err != nil {
		t.Fatalf("read headers failed: %v", err)
	}
	if status.Code != 200 || headers.Get("Content-Length") != "11" {
		t.Fatalf("unexpected head: %+v %v", status, headers)
	}
	body, err := c.ResponseBody(headers)
	if err != nil {
		t.Fatalf("body failed: %v", err)
	}
	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("body read failed: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("body mismatch: %q", got)
	}
}

func TestReadResponseChunked(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	c := New(newDuplex(raw))

	_, headers, err := c.ReadResponseHeaders()
	if err != nil {
		t.Fatalf("read headers failed: %v", err)
	}
	body, err := c.ResponseBody(headers)
	if err != nil {
		t.Fatalf("body failed: %v", err)
	}
	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("body read failed: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("chunked body mismatch: %q", got)
	}
}

func TestReadResponseChunkedNonHexSizeIsProtocolError(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\nzz\r\noops\r\n0\r\n\r\n"
	c := New(newDuplex(raw))

	_, headers, err := c.ReadResponseHeaders()
	if err != nil {
		t.Fatalf("read headers failed: %v", err)
	}
	body, _ := c.ResponseBody(headers)
	_, err = io.ReadAll(body)
	if err == nil {
		t.Fatalf("expected a protocol error for a non-hex chunk size")
	}
	var engineErr *errors.Error
	if !stderrors.As(err, &engineErr) || engineErr.Kind != errors.KindProtocol {
		t.Fatalf("expected Protocol kind, got %v", err)
	}
}

func TestReadResponseUntilClose(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n\r\nstreamed until the server closes"
	c := New(newDuplex(raw))

	_, headers, err := c.ReadResponseHeaders()
	if err != nil {
		t.Fatalf("read headers failed: %v", err)
	}
	body, _ := c.ResponseBody(headers)
	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("body read failed: %v", err)
	}
	if string(got) != "streamed until the server closes" {
		t.Fatalf("until-close body mismatch: %q", got)
	}
}

func TestReadResponseSkipsInterim100(t *testing.T) {
	raw := "HTTP/1.1 100 Continue\r\n\r\n" +
		"HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"
	c := New(newDuplex(raw))

	status, headers, err := c.ReadResponseHeaders()
	if err != nil {
		t.Fatalf("read headers failed: %v", err)
	}
	if status.Code != 200 {
		t.Fatalf("interim 100 should be skipped, got %d", status.Code)
	}
	body, _ := c.ResponseBody(headers)
	got, _ := io.ReadAll(body)
	if string(got) != "ok" {
		t.Fatalf("body mismatch after interim skip: %q", got)
	}
}

func TestAwaitContinueProceedsOn100(t *testing.T) {
	raw := "HTTP/1.1 100 Continue\r\n\r\n" +
		"HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"
	c := New(newDuplex(raw))

	proceed, status, _, err := c.AwaitContinue()
	if err != nil {
		t.Fatalf("await failed: %v", err)
	}
	if !proceed || status != nil {
		t.Fatalf("a 100 must invite the body: proceed=%v status=%v", proceed, status)
	}

	// The body would be written here; the final head is still readable.
	final, _, err := c.ReadResponseHeaders()
	if err != nil {
		t.Fatalf("read headers failed: %v", err)
	}
	if final.Code != 200 {
		t.Fatalf("expected the final 200, got %d", final.Code)
	}
}

func TestAwaitContinueAbandonsBodyOnFinalStatus(t *testing.T) {
	raw := "HTTP/1.1 417 Expectation Failed\r\nContent-Length: 0\r\n\r\n"
	c := New(newDuplex(raw))

	proceed, status, headers, err := c.AwaitContinue()
	if err != nil {
		t.Fatalf("await failed: %v", err)
	}
	if proceed {
		t.Fatalf("a final status must abandon the body")
	}
	if status == nil || status.Code != 417 {
		t.Fatalf("expected the 417 head, got %+v", status)
	}
	if headers.Get("Content-Length") != "0" {
		t.Fatalf("final head's headers must come back with it")
	}
}

func TestReadResponse101NotSkipped(t *testing.T) {
	raw := "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\n\r\n"
	c := New(newDuplex(raw))
	status, _, err := c.ReadResponseHeaders()
	if err != nil {
		t.Fatalf("read headers failed: %v", err)
	}
	if status.Code != 101 {
		t.Fatalf("101 must surface to the caller, got %d", status.Code)
	}
}

func TestReadResponseTruncatedFixedBody(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\nshort"
	c := New(newDuplex(raw))

	_, headers, err := c.ReadResponseHeaders()
	if err != nil {
		t.Fatalf("read headers failed: %v", err)
	}
	body, _ := c.ResponseBody(headers)
	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("a short body is surfaced as EOF, not an error: %v", err)
	}
	if string(got) != "short" {
		t.Fatalf("unexpected truncated body: %q", got)
	}
}

func TestWriteRequestBody(t *testing.T) {
	d := newDuplex("")
	c := New(d)
	if err := c.WriteRequestBody(strings.NewReader("payload")); err != nil {
		t.Fatalf("write body failed: %v", err)
	}
	if d.out.String() != "payload" {
		t.Fatalf("body bytes mismatch: %q", d.out.String())
	}
}

func TestChunkedIgnoresExtensions(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5;ext=1\r\nhello\r\n0\r\n\r\n"
	c := New(newDuplex(raw))
	_, headers, err := c.ReadResponseHeaders()
	if err != nil {
		t.Fatalf("read headers failed: %v", err)
	}
	body, _ := c.ResponseBody(headers)
	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("body read failed: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("chunk extensions should be ignored: %q", got)
	}
}
