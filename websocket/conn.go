package websocket

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/WhileEndless/httpcore/internal/errors"
	"github.com/WhileEndless/httpcore/scheduler"
)

// defaultMaxMessagePayloadBytes bounds assembled message size by default.
const defaultMaxMessagePayloadBytes = 16 * 1024 * 1024

// defaultCancelAfterClose is how long a close handshake may dangle before
// the socket is torn down.
const defaultCancelAfterClose = 60 * time.Second

// Options configures a WebSocket connection's behavior.
type Options struct {
	PermessageDeflate      bool
	MaxMessagePayloadBytes int64
	PingInterval           time.Duration
	CancelAfterClose       time.Duration
}

func (o Options) maxPayload() int64 {
	if o.MaxMessagePayloadBytes > 0 {
		return o.MaxMessagePayloadBytes
	}
	return defaultMaxMessagePayloadBytes
}

func (o Options) cancelAfterClose() time.Duration {
	if o.CancelAfterClose > 0 {
		return o.CancelAfterClose
	}
	return defaultCancelAfterClose
}

// Listener receives WebSocket lifecycle events: it must not block. Conn
// itself never calls a Listener, so it neither delivers these events nor
// recovers a panic raised by one.
type Listener interface {
	OnMessage(opcode Opcode, data []byte)
	OnClosing(code int, reason string)
	OnClosed(code int, reason string)
	OnFailure(err error)
}

// Conn is one established WebSocket connection.
type Conn struct {
	raw       net.Conn
	isClient  bool // true: we mask outgoing frames, reject masked incoming ones
	deflate   *deflateExtension
	opts      Options
	writeMu   sync.Mutex
	closeOnce sync.Once

	pongCh       chan struct{}
	closed       chan struct{}
	sentClose    bool
	recvClose    bool
	awaitingPong atomic.Bool // set by the ping scheduler goroutine, read there too
	pingSched    *scheduler.Scheduler
}

func newConn(raw net.Conn, isClient bool, deflate *deflateExtension, opts Options) *Conn {
	return &Conn{
		raw:      raw,
		isClient: isClient,
		deflate:  deflate,
		opts:     opts,
		pongCh:   make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

// WriteMessage sends one complete message as a single frame (no
// fragmentation on send, matching a typical client's needs).
func (c *Conn) WriteMessage(opcode Opcode, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	rsv1 := false
	if c.deflate != nil && !opcode.isControl() {
		compressed, err := c.deflate.compress(data)
		if err != nil {
			return err
		}
		data = compressed
		rsv1 = true
	}

	var maskKey *[4]byte
	if c.isClient {
		var k [4]byte
		if err := randomMaskKey(&k); err != nil {
			return err
		}
		maskKey = &k
	}
	return writeFrame(c.raw, true, rsv1, opcode, maskKey, data)
}

// Ping sends a ping control frame.
func (c *Conn) Ping(payload []byte) error { return c.WriteMessage(OpPing, payload) }

// StartPinging schedules a recurring ping on sched at opts.PingInterval;
// if a pong isn't observed before the next ping comes due, the connection
// is failed. A no-op if PingInterval is unset.
func (c *Conn) StartPinging(sched *scheduler.Scheduler, onFailure func(error)) {
	if c.opts.PingInterval <= 0 {
		return
	}
	c.pingSched = sched
	var tick func()
	tick = func() {
		select {
		case <-c.pongCh:
			// drain any pong seen since the previous tick; presence means healthy
			c.awaitingPong.Store(false)
		default:
			if c.awaitingPong.Load() {
				onFailure(errors.NewProtocolError("websocket peer did not answer ping", nil))
				return
			}
		}
		c.awaitingPong.Store(true)
		if err := c.Ping(nil); err != nil {
			onFailure(err)
			return
		}
		sched.Schedule(scheduler.Task{Queue: "websocket-ping", Name: c.pingTaskName(), Run: tick}, c.opts.PingInterval)
	}
	sched.Schedule(scheduler.Task{Queue: "websocket-ping", Name: c.pingTaskName(), Run: tick}, c.opts.PingInterval)
}

func (c *Conn) pingTaskName() string { return c.raw.RemoteAddr().String() }

// ReadMessage blocks for the next complete message, assembling
// continuation frames and answering ping/pong/close control frames as it
// goes.
func (c *Conn) ReadMessage() (Opcode, []byte, error) {
	var assembled []byte
	var messageOpcode Opcode
	var compressed bool

	for {
		h, err := readFrameHeader(c.raw, !c.isClient)
		if err != nil {
			return 0, nil, err
		}
		payload, err := readFramePayload(c.raw, h)
		if err != nil {
			return 0, nil, err
		}

		if h.opcode.isControl() {
			if err := c.handleControl(h.opcode, payload); err != nil {
				return 0, nil, err
			}
			if h.opcode == OpClose {
				return OpClose, payload, io.EOF
			}
			continue
		}

		if h.opcode != OpContinuation {
			messageOpcode = h.opcode
			compressed = h.rsv1
			assembled = assembled[:0]
		}
		assembled = append(assembled, payload...)
		if int64(len(assembled)) > c.opts.maxPayload() {
			return 0, nil, errors.NewProtocolError("websocket message exceeds maxMessagePayloadBytes", nil)
		}
		if h.fin {
			if compressed && c.deflate != nil {
				out, err := c.deflate.decompress(assembled)
				if err != nil {
					return 0, nil, err
				}
				return messageOpcode, out, nil
			}
			return messageOpcode, assembled, nil
		}
	}
}

func (c *Conn) handleControl(opcode Opcode, payload []byte) error {
	switch opcode {
	case OpPing:
		return c.WriteMessage(OpPong, payload)
	case OpPong:
		select {
		case c.pongCh <- struct{}{}:
		default:
		}
		return nil
	case OpClose:
		c.recvClose = true
		if !c.sentClose {
			c.sendCloseLocked(closeCodeFromPayload(payload), "")
		}
		c.closeOnce.Do(func() { close(c.closed) })
		return nil
	}
	return nil
}

// Close sends a close frame (if one hasn't already been sent) and, once
// the peer's close has also been seen by ReadMessage (or
// Options.CancelAfterClose elapses), closes the underlying socket.
func (c *Conn) Close(code int, reason string) error {
	if c.pingSched != nil {
		c.pingSched.Cancel("websocket-ping", c.pingTaskName())
	}

	c.writeMu.Lock()
	err := c.sendCloseLocked(code, reason)
	c.writeMu.Unlock()

	timer := time.NewTimer(c.opts.cancelAfterClose())
	defer timer.Stop()
	select {
	case <-c.closed:
	case <-timer.C:
	}
	c.closeOnce.Do(func() { close(c.closed) })
	return firstNonNil(err, c.raw.Close())
}

func (c *Conn) sendCloseLocked(code int, reason string) error {
	if c.sentClose {
		return nil
	}
	c.sentClose = true
	payload := encodeCloseFrame(code, reason)
	var maskKey *[4]byte
	if c.isClient {
		var k [4]byte
		if err := randomMaskKey(&k); err != nil {
			return err
		}
		maskKey = &k
	}
	return writeFrame(c.raw, true, false, OpClose, maskKey, payload)
}

func firstNonNil(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
