package h2

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"

	"github.com/WhileEndless/httpcore/internal/errors"
	"github.com/WhileEndless/httpcore/internal/wire"
	"github.com/WhileEndless/httpcore/pkg/constants"
)

const (
	defaultInitialWindow = 4194304
	defaultMaxFrameSize  = 16384

	// provisionalMaxStreams bounds concurrent streams until the peer's
	// SETTINGS frame announces its real MAX_CONCURRENT_STREAMS.
	provisionalMaxStreams = 100
)

// Options configures one HTTP/2 connection.
type Options struct {
	// PingInterval enables the keepalive probe: a PING is written every
	// interval, and a missing ACK by the next interval fails the
	// connection. Zero disables pinging.
	PingInterval time.Duration

	// OnSettings is invoked with the peer's MAX_CONCURRENT_STREAMS each
	// time a SETTINGS frame updates it, so the connection pool's stream
	// accounting can track the real limit.
	OnSettings func(maxConcurrentStreams uint32)

	// OnFailure is invoked once when the connection dies (read error,
	// GOAWAY, ping timeout) so its owner can stop handing it out.
	OnFailure func(err error)
}

// Connection is one HTTP/2 connection: a single shared Framer and HPACK
// codec multiplexing many Streams, per RFC 7540. It implements the
// conn.Codec factory role — OpenStream creates a fresh per-exchange Codec
// bound to a freshly-allocated stream.
type Connection struct {
	raw    net.Conn
	framer *http2.Framer
	hpack  *hpackCodec
	opts   Options
	done   chan struct{}

	mu             sync.Mutex
	streams        map[uint32]*Stream
	nextStreamID   uint32
	maxConcurrent  uint32
	peerWindow     int32 // connection-level peer flow-control window
	closed         bool
	readErr        error
	pendingHeaders map[uint32][]byte // accumulates HEADERS+CONTINUATION until END_HEADERS

	awaitingPong    bool
	successfulPings int
}

// NewConnection sends the client preface and initial SETTINGS frame, then
// starts the background read loop that demultiplexes incoming frames to
// their Streams. Per RFC 7540 §3.5 the preface must precede anything else.
func NewConnection(raw net.Conn, opts Options) (*Connection, error) {
	if _, err := raw.Write([]byte(http2.ClientPreface)); err != nil {
		return nil, errors.NewWriteTimeoutError("write h2 preface", err)
	}
	framer := http2.NewFramer(raw, raw)

	c := &Connection{
		raw:            raw,
		framer:         framer,
		hpack:          newHPACKCodec(constants.DefaultHPACKTableSize),
		opts:           opts,
		done:           make(chan struct{}),
		streams:        make(map[uint32]*Stream),
		nextStreamID:   1,
		peerWindow:     defaultInitialWindow,
		pendingHeaders: make(map[uint32][]byte),
	}

	if err := framer.WriteSettings(
		http2.Setting{ID: http2.SettingInitialWindowSize, Val: defaultInitialWindow},
		http2.Setting{ID: http2.SettingMaxFrameSize, Val: defaultMaxFrameSize},
		http2.Setting{ID: http2.SettingEnablePush, Val: 0},
	); err != nil {
		return nil, errors.NewProtocolError("write initial settings", err)
	}

	go c.readLoopFn()
	if opts.PingInterval > 0 {
		go c.pingLoop(opts.PingInterval)
	}
	return c, nil
}

// OpenStream allocates the next client-initiated stream ID (odd, per RFC
// 7540 §5.1.1) and returns a Codec bound to it. It fails once the peer's
// MAX_CONCURRENT_STREAMS is reached or the connection has died.
func (c *Connection) OpenStream() (*Codec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.NewUnexpectedEOFError("open h2 stream", c.readErr)
	}
	if len(c.streams) >= c.maxStreamsLocked() {
		return nil, errors.NewProtocolError("h2 concurrent stream limit reached", nil)
	}
	id := c.nextStreamID
	c.nextStreamID += 2
	s := newStream(id, defaultInitialWindow)
	s.setState(StateOpen)
	c.streams[id] = s
	return &Codec{conn: c, stream: s}, nil
}

func (c *Connection) maxStreamsLocked() int {
	if c.maxConcurrent == 0 {
		return provisionalMaxStreams
	}
	return int(c.maxConcurrent)
}

// pingLoop writes a keepalive PING every interval; if the previous PING's
// ACK has not arrived by the time the next one is due, the connection is
// failed with a read-timeout error.
func (c *Connection) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		if c.awaitingPong {
			successes := c.successfulPings
			c.mu.Unlock()
			c.failAll(errors.NewPingTimeoutError(interval.Milliseconds(), successes))
			return
		}
		c.awaitingPong = true
		err := c.framer.WritePing(false, [8]byte{'k', 'e', 'e', 'p', 'a', 'l', 'i', 'v'})
		c.mu.Unlock()
		if err != nil {
			c.failAll(errors.NewWriteTimeoutError("write h2 ping", err))
			return
		}
	}
}

func (c *Connection) IsHealthy(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *Connection) AllocatedStreamCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams)
}

func (c *Connection) MaxStreamCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxStreamsLocked()
}

func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.framer.WriteGoAway(0, http2.ErrCodeNo, nil)
	c.mu.Unlock()
	close(c.done)
	return c.raw.Close()
}

func (c *Connection) readLoopFn() {
	for {
		frame, err := c.framer.ReadFrame()
		if err != nil {
			c.failAll(err)
			return
		}
		c.dispatch(frame)
	}
}

func (c *Connection) dispatch(frame http2.Frame) {
	switch f := frame.(type) {
	case *http2.SettingsFrame:
		c.handleSettings(f)
	case *http2.HeadersFrame:
		c.handleHeaders(f)
	case *http2.ContinuationFrame:
		c.handleContinuation(f)
	case *http2.DataFrame:
		c.handleData(f)
	case *http2.WindowUpdateFrame:
		c.handleWindowUpdate(f)
	case *http2.PingFrame:
		if f.IsAck() {
			c.mu.Lock()
			if c.awaitingPong {
				c.awaitingPong = false
				c.successfulPings++
			}
			c.mu.Unlock()
		} else {
			c.mu.Lock()
			c.framer.WritePing(true, f.Data)
			c.mu.Unlock()
		}
	case *http2.GoAwayFrame:
		c.failAll(fmt.Errorf("server sent GOAWAY: %v", f.ErrCode))
	case *http2.RSTStreamFrame:
		c.streamByID(f.StreamID, func(s *Stream) {
			s.closeWithError(fmt.Errorf("stream reset: %v", f.ErrCode))
		})
	}
}

func (c *Connection) handleSettings(f *http2.SettingsFrame) {
	if f.IsAck() {
		return
	}
	f.ForeachSetting(func(s http2.Setting) error {
		if s.ID == http2.SettingMaxConcurrentStreams {
			c.mu.Lock()
			c.maxConcurrent = s.Val
			c.mu.Unlock()
			if c.opts.OnSettings != nil {
				c.opts.OnSettings(s.Val)
			}
		}
		return nil
	})
	c.framer.WriteSettingsAck()
}

// handleHeaders and handleContinuation accumulate HEADERS+CONTINUATION
// block fragments until END_HEADERS, per RFC 7540 §6.10.
func (c *Connection) handleHeaders(f *http2.HeadersFrame) {
	c.mu.Lock()
	combined := append(c.pendingHeaders[f.StreamID], f.HeaderBlockFragment()...)
	if !f.HeadersEnded() {
		c.pendingHeaders[f.StreamID] = combined
		c.mu.Unlock()
		return
	}
	delete(c.pendingHeaders, f.StreamID)
	c.mu.Unlock()
	c.deliverHeaders(f.StreamID, combined, f.StreamEnded())
}

func (c *Connection) handleContinuation(f *http2.ContinuationFrame) {
	c.mu.Lock()
	combined := append(c.pendingHeaders[f.StreamID], f.HeaderBlockFragment()...)
	if !f.HeadersEnded() {
		c.pendingHeaders[f.StreamID] = combined
		c.mu.Unlock()
		return
	}
	delete(c.pendingHeaders, f.StreamID)
	c.mu.Unlock()
	c.deliverHeaders(f.StreamID, combined, false)
}

func (c *Connection) deliverHeaders(streamID uint32, block []byte, endStream bool) {
	fields, err := c.hpack.decodeHeaders(block)
	c.streamByID(streamID, func(s *Stream) {
		s.deliverHeaders(frameResult{fields: fields, err: err})
		if endStream {
			s.setState(StateHalfClosedRemote)
			s.closeWithError(nil)
		}
	})
}

func (c *Connection) handleData(f *http2.DataFrame) {
	data := append([]byte(nil), f.Data()...)
	c.streamByID(f.StreamID, func(s *Stream) {
		if len(data) > 0 {
			s.deliverData(data)
		}
		if f.StreamEnded() {
			s.setState(StateHalfClosedRemote)
			s.closeWithError(nil)
		}
	})
	if len(data) > 0 {
		c.framer.WriteWindowUpdate(0, uint32(len(data)))
		c.framer.WriteWindowUpdate(f.StreamID, uint32(len(data)))
	}
}

func (c *Connection) handleWindowUpdate(f *http2.WindowUpdateFrame) {
	if f.StreamID == 0 {
		c.mu.Lock()
		c.peerWindow += int32(f.Increment)
		c.mu.Unlock()
		return
	}
	c.streamByID(f.StreamID, func(s *Stream) {
		s.addSendWindow(int32(f.Increment))
	})
}

func (c *Connection) streamByID(id uint32, fn func(*Stream)) {
	c.mu.Lock()
	s, ok := c.streams[id]
	c.mu.Unlock()
	if ok {
		fn(s)
	}
}

func (c *Connection) failAll(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.readErr = err
	streams := make([]*Stream, 0, len(c.streams))
	for _, s := range c.streams {
		streams = append(streams, s)
	}
	c.mu.Unlock()
	close(c.done)
	c.raw.Close()
	for _, s := range streams {
		s.closeWithError(err)
	}
	if c.opts.OnFailure != nil {
		c.opts.OnFailure(err)
	}
}

// Codec implements conn.Codec for a single stream of an h2 Connection.
type Codec struct {
	conn   *Connection
	stream *Stream
	closed int32
}

func (cd *Codec) WriteRequestHeaders(method string, url *wire.URL, headers *wire.Headers) error {
	pseudo := []hpackField{
		{Name: ":method", Value: method},
		{Name: ":scheme", Value: url.Scheme},
		{Name: ":authority", Value: authority(url)},
		{Name: ":path", Value: url.Path()},
	}
	regular := make([]hpackField, 0, headers.Len())
	for i := 0; i < headers.Len(); i++ {
		name := headers.Name(i)
		if name == "Host" || name == "Connection" {
			continue // connection-specific headers are invalid over HTTP/2
		}
		regular = append(regular, hpackField{Name: name, Value: headers.Value(i)})
	}

	block, err := cd.conn.hpack.encodeHeaders(pseudo, regular)
	if err != nil {
		return errors.NewProtocolError("hpack encode", err)
	}

	cd.conn.mu.Lock()
	defer cd.conn.mu.Unlock()
	return cd.conn.framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      cd.stream.id,
		BlockFragment: block,
		EndHeaders:    true,
	})
}

// AwaitContinue always proceeds: interim 100-continue negotiation does not
// exist over HTTP/2, where body writes may begin before the response head.
func (cd *Codec) AwaitContinue() (bool, *wire.StatusLine, *wire.Headers, error) {
	return true, nil, nil, nil
}

func authority(u *wire.URL) string {
	if u.IsDefaultPort() {
		return u.Host
	}
	return u.Host + ":" + strconv.Itoa(u.Port)
}

func (cd *Codec) WriteRequestBody(body io.Reader) error {
	if body == nil {
		cd.conn.mu.Lock()
		err := cd.conn.framer.WriteData(cd.stream.id, true, nil)
		cd.conn.mu.Unlock()
		return err
	}
	buf := make([]byte, defaultMaxFrameSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			for !cd.stream.consumeSendWindow(int32(n)) {
				time.Sleep(time.Millisecond) // wait for a WINDOW_UPDATE, polled rather than blocked
			}
			cd.conn.mu.Lock()
			werr := cd.conn.framer.WriteData(cd.stream.id, false, buf[:n])
			cd.conn.mu.Unlock()
			if werr != nil {
				return errors.NewWriteTimeoutError("write h2 data frame", werr)
			}
		}
		if rerr == io.EOF {
			cd.conn.mu.Lock()
			err := cd.conn.framer.WriteData(cd.stream.id, true, nil)
			cd.conn.mu.Unlock()
			return err
		}
		if rerr != nil {
			return errors.NewIOError("read request body", rerr)
		}
	}
}

func (cd *Codec) ReadResponseHeaders() (*wire.StatusLine, *wire.Headers, error) {
	var res frameResult
	select {
	case res = <-cd.stream.headers:
	case <-cd.stream.done:
		// The stream ended before a header block arrived; one may still be
		// buffered from the delivery that closed it.
		select {
		case res = <-cd.stream.headers:
		default:
			return nil, nil, errors.NewUnexpectedEOFError("read h2 response headers", cd.conn.readErr)
		}
	}
	if res.err != nil {
		return nil, nil, errors.NewProtocolError("hpack decode", res.err)
	}
	headers := wire.NewHeaders()
	statusCode := 200
	for _, f := range res.fields {
		if f.Name == ":status" {
			if n, err := strconv.Atoi(f.Value); err == nil {
				statusCode = n
			}
			continue
		}
		headers.Add(f.Name, f.Value)
	}
	return &wire.StatusLine{Major: 2, Minor: 0, Code: statusCode, Reason: ""}, headers, nil
}

// h2Body adapts a Stream's queued DATA payloads to io.ReadCloser.
type h2Body struct {
	stream *Stream
	buf    []byte
}

func (b *h2Body) Read(p []byte) (int, error) {
	for len(b.buf) == 0 {
		chunk, err := b.stream.nextData()
		if err == io.EOF {
			return 0, io.EOF
		}
		if err != nil {
			return 0, errors.NewProtocolError("h2 stream reset", err)
		}
		b.buf = chunk
	}
	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

func (b *h2Body) Close() error { return nil }

func (cd *Codec) ResponseBody(headers *wire.Headers) (io.ReadCloser, error) {
	return &h2Body{stream: cd.stream}, nil
}

// Finish closes out the stream's bookkeeping in the connection after the
// exchange completes; the Connection itself is left open for reuse.
func (cd *Codec) Finish() error {
	if !atomic.CompareAndSwapInt32(&cd.closed, 0, 1) {
		return nil
	}
	cd.conn.mu.Lock()
	delete(cd.conn.streams, cd.stream.id)
	cd.conn.mu.Unlock()
	return nil
}
