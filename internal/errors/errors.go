// Package errors provides structured error types for the httpcore engine.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Kind represents the category of error that occurred, per the engine's
// error taxonomy (IO, Protocol, Handshake, UnknownHost, Http, Cache).
type Kind string

const (
	KindIO          Kind = "io"
	KindProtocol    Kind = "protocol"
	KindHandshake   Kind = "handshake"
	KindUnknownHost Kind = "unknown_host"
	KindHTTP        Kind = "http"
	KindCache       Kind = "cache"
	KindValidation  Kind = "validation"
)

// Subkind refines KindIO into the specific transport failure observed.
type Subkind string

const (
	SubConnectTimeout Subkind = "connect_timeout"
	SubReadTimeout    Subkind = "read_timeout"
	SubWriteTimeout   Subkind = "write_timeout"
	SubUnexpectedEOF  Subkind = "unexpected_eof"
	SubCanceled       Subkind = "canceled"
)

// Error is a structured error with enough context to drive retry and
// follow-up decisions without string-matching the message.
type Error struct {
	Kind      Kind
	Subkind   Subkind
	Op        string
	Message   string
	Cause     error
	Host      string
	Port      int
	Addr      string
	Timestamp time.Time

	// Suppressed holds later attempts' errors when the retry interceptor
	// exhausts routes: the first failure is the primary Error, later
	// failures across retried routes are attached here instead of discarded.
	Suppressed []error
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Kind))
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Addr != "" {
		parts = append(parts, e.Addr)
	} else if e.Host != "" {
		if e.Port > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", e.Host, e.Port))
		} else {
			parts = append(parts, e.Host)
		}
	}

	s := strings.Join(parts, " ")
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	if n := len(e.Suppressed); n > 0 {
		s += fmt.Sprintf(" (+%d suppressed)", n)
	}
	return s
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && e.Kind != t.Kind {
		return false
	}
	if t.Subkind != "" && e.Subkind != t.Subkind {
		return false
	}
	return true
}

// AddSuppressed attaches a subsequent attempt's failure to the primary error.
func (e *Error) AddSuppressed(err error) {
	if err == nil {
		return
	}
	e.Suppressed = append(e.Suppressed, err)
}

func newErr(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause, Timestamp: time.Now()}
}

func NewUnknownHostError(host string, cause error) *Error {
	e := newErr(KindUnknownHost, "lookup", fmt.Sprintf("DNS lookup failed for host %s", host), cause)
	e.Host = host
	e.Addr = host
	return e
}

func NewConnectTimeoutError(host string, port int, cause error) *Error {
	e := newErr(KindIO, "connect", "connect timed out", cause)
	e.Subkind = SubConnectTimeout
	e.Host, e.Port, e.Addr = host, port, fmt.Sprintf("%s:%d", host, port)
	return e
}

// NewPingTimeoutError reports a keepalive probe that went unanswered: the
// peer did not acknowledge a PING within the configured interval.
func NewPingTimeoutError(intervalMillis int64, successfulPings int) *Error {
	e := newErr(KindIO, "ping",
		fmt.Sprintf("sent ping but didn't receive pong within %dms (after %d successful ping/pongs)",
			intervalMillis, successfulPings), nil)
	e.Subkind = SubReadTimeout
	return e
}

func NewReadTimeoutError(op string, cause error) *Error {
	e := newErr(KindIO, op, "read timed out", cause)
	e.Subkind = SubReadTimeout
	return e
}

func NewWriteTimeoutError(op string, cause error) *Error {
	e := newErr(KindIO, op, "write timed out", cause)
	e.Subkind = SubWriteTimeout
	return e
}

func NewUnexpectedEOFError(op string, cause error) *Error {
	e := newErr(KindIO, op, "unexpected EOF", cause)
	e.Subkind = SubUnexpectedEOF
	return e
}

func NewCanceledError(op string) *Error {
	e := newErr(KindIO, op, "call canceled", context.Canceled)
	e.Subkind = SubCanceled
	return e
}

func NewIOError(op string, cause error) *Error {
	return newErr(KindIO, op, fmt.Sprintf("I/O error during %s", op), cause)
}

func NewHandshakeError(host string, port int, cause error) *Error {
	e := newErr(KindHandshake, "handshake", fmt.Sprintf("TLS handshake failed for %s:%d", host, port), cause)
	e.Host, e.Port, e.Addr = host, port, fmt.Sprintf("%s:%d", host, port)
	return e
}

func NewProtocolError(message string, cause error) *Error {
	return newErr(KindProtocol, "parse", message, cause)
}

func NewValidationError(message string) *Error {
	return newErr(KindValidation, "validate", message, nil)
}

func NewCacheError(op string, cause error) *Error {
	return newErr(KindCache, op, "cache error, degrading to miss", cause)
}

// IsRetryable reports whether the retry interceptor may retry this
// error: only IO and Handshake kinds are eligible, and a canceled call is
// never retried.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	if e.Kind == KindIO && e.Subkind == SubCanceled {
		return false
	}
	return e.Kind == KindIO || e.Kind == KindHandshake
}

func IsCanceled(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Subkind == SubCanceled
	}
	return errors.Is(err, context.Canceled)
}

func IsTimeoutError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		switch e.Subkind {
		case SubConnectTimeout, SubReadTimeout, SubWriteTimeout:
			return true
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
