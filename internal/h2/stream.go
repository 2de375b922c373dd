// Package h2 implements the HTTP/2 wire codec: one shared Framer per
// Connection, HPACK encode/decode via golang.org/x/net/http2/hpack, and
// per-stream flow control and multiplexing.
package h2

import (
	"io"
	"sync"
)

// StreamState mirrors RFC 7540 §5.1's state machine, simplified to what a
// client-only implementation observes.
type StreamState int

const (
	StateIdle StreamState = iota
	StateOpen
	StateHalfClosedLocal
	StateHalfClosedRemote
	StateClosed
)

// Stream is one HTTP/2 request/response exchange multiplexed over a shared
// Connection. Incoming DATA payloads queue in pending; the advertised
// flow-control window bounds how much the peer can put there, so the queue
// needs no bound of its own. Delivery and teardown are serialized by mu so
// a frame racing a RST_STREAM can never touch a closed stream.
type Stream struct {
	mu         sync.Mutex
	id         uint32
	state      StreamState
	sendWindow int32
	recvWindow int32
	closed     bool

	headers  chan frameResult
	pending  [][]byte
	notify   chan struct{} // pulsed when pending grows
	done     chan struct{} // closed on stream end
	resetErr error
}

type frameResult struct {
	fields []hpackField
	err    error
}

func newStream(id uint32, initialWindow int32) *Stream {
	return &Stream{
		id:         id,
		state:      StateIdle,
		sendWindow: initialWindow,
		recvWindow: initialWindow,
		headers:    make(chan frameResult, 1),
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

func (s *Stream) ID() uint32 { return s.id }

func (s *Stream) setState(st StreamState) {
	s.mu.Lock()
	if !s.closed {
		s.state = st
	}
	s.mu.Unlock()
}

func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// deliverHeaders hands a decoded header block to the stream's reader,
// dropped if the stream already closed.
func (s *Stream) deliverHeaders(res frameResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.headers <- res:
	default:
	}
}

// deliverData queues one DATA frame's payload for the stream's body reader.
func (s *Stream) deliverData(b []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, b)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// nextData blocks for the next queued payload. It returns io.EOF after a
// clean END_STREAM and the stream's terminal error after a reset, once the
// queue has drained.
func (s *Stream) nextData() ([]byte, error) {
	for {
		s.mu.Lock()
		if len(s.pending) > 0 {
			b := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()
			return b, nil
		}
		if s.closed {
			err := s.resetErr
			s.mu.Unlock()
			if err == nil {
				return nil, io.EOF
			}
			return nil, err
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-s.done:
		}
	}
}

// consumeSendWindow deducts n bytes from the stream's flow-control window,
// reporting whether the full write fits without exceeding it.
func (s *Stream) consumeSendWindow(n int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendWindow < n {
		return false
	}
	s.sendWindow -= n
	return true
}

func (s *Stream) addSendWindow(delta int32) {
	s.mu.Lock()
	s.sendWindow += delta
	s.mu.Unlock()
}

// closeWithError ends the stream: a nil err is a clean END_STREAM, anything
// else a reset/connection failure surfaced to pending reads. Queued data
// stays readable; only the end-of-stream condition changes. Idempotent.
func (s *Stream) closeWithError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.resetErr = err
	s.state = StateClosed
	close(s.done)
}
