package conn

import (
	"io"

	"github.com/WhileEndless/httpcore/internal/wire"
)

// Codec is implemented by internal/h1 and internal/h2: it knows how to
// write a request and read a response over an already-established
// Connection's raw socket.
type Codec interface {
	WriteRequestHeaders(method string, url *wire.URL, headers *wire.Headers) error
	// AwaitContinue blocks for the interim answer to an Expect:
	// 100-continue request head. proceed=true means the body should be
	// written (a 100 arrived, or the transport has no interim responses);
	// otherwise the server's final head is returned and the body must be
	// abandoned.
	AwaitContinue() (proceed bool, status *wire.StatusLine, headers *wire.Headers, err error)
	WriteRequestBody(body io.Reader) error
	ReadResponseHeaders() (*wire.StatusLine, *wire.Headers, error)
	ResponseBody(headers *wire.Headers) (io.ReadCloser, error)
	// Finish releases any per-exchange codec state (e.g. an HTTP/2 stream)
	// without closing the underlying Connection.
	Finish() error
}

// Exchange is one request/response cycle carried out over a checked-out
// Connection via its negotiated-protocol Codec.
type Exchange struct {
	conn  *Connection
	codec Codec
}

// NewExchange starts a new exchange on conn, acquiring one of its stream
// slots (always 1 for HTTP/1.1, up to MaxStreamCount for H2).
func NewExchange(c *Connection, codec Codec) *Exchange {
	c.AcquireStream()
	return &Exchange{conn: c, codec: codec}
}

func (e *Exchange) Connection() *Connection { return e.conn }

func (e *Exchange) WriteRequestHeaders(method string, url *wire.URL, headers *wire.Headers) error {
	return e.codec.WriteRequestHeaders(method, url, headers)
}

func (e *Exchange) AwaitContinue() (bool, *wire.StatusLine, *wire.Headers, error) {
	return e.codec.AwaitContinue()
}

func (e *Exchange) WriteRequestBody(body io.Reader) error {
	return e.codec.WriteRequestBody(body)
}

func (e *Exchange) ReadResponseHeaders() (*wire.StatusLine, *wire.Headers, error) {
	return e.codec.ReadResponseHeaders()
}

func (e *Exchange) ResponseBody(headers *wire.Headers) (io.ReadCloser, error) {
	return e.codec.ResponseBody(headers)
}

// Close releases the exchange's stream slot. It does not close the
// Connection, which may serve further exchanges (keep-alive or H2
// multiplexing).
func (e *Exchange) Close() error {
	err := e.codec.Finish()
	e.conn.ReleaseStream()
	return err
}
