package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{NewUnexpectedEOFError("read", nil), true},
		{NewConnectTimeoutError("example.com", 443, nil), true},
		{NewHandshakeError("example.com", 443, nil), true},
		{NewCanceledError("read"), false},
		{NewProtocolError("bad frame", nil), false},
		{NewUnknownHostError("example.com", nil), false},
		{NewValidationError("bad input"), false},
		{fmt.Errorf("plain error"), false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestIsRetryableWrapped(t *testing.T) {
	wrapped := fmt.Errorf("attempt 2: %w", NewReadTimeoutError("read", nil))
	if !IsRetryable(wrapped) {
		t.Fatalf("wrapped engine errors should still be classified")
	}
}

func TestIsCanceled(t *testing.T) {
	if !IsCanceled(NewCanceledError("read")) {
		t.Fatalf("canceled error not detected")
	}
	if IsCanceled(NewReadTimeoutError("read", nil)) {
		t.Fatalf("timeout misclassified as canceled")
	}
}

func TestIsTimeoutError(t *testing.T) {
	for _, err := range []error{
		NewConnectTimeoutError("h", 1, nil),
		NewReadTimeoutError("read", nil),
		NewWriteTimeoutError("write", nil),
	} {
		if !IsTimeoutError(err) {
			t.Fatalf("%v should classify as a timeout", err)
		}
	}
	if IsTimeoutError(NewProtocolError("x", nil)) {
		t.Fatalf("protocol error is not a timeout")
	}
}

func TestSuppressedAccumulation(t *testing.T) {
	primary := NewUnexpectedEOFError("read", nil)
	primary.AddSuppressed(NewConnectTimeoutError("example.com", 443, nil))
	primary.AddSuppressed(nil) // ignored
	primary.AddSuppressed(NewReadTimeoutError("read", nil))

	if len(primary.Suppressed) != 2 {
		t.Fatalf("expected 2 suppressed errors, got %d", len(primary.Suppressed))
	}
	msg := primary.Error()
	if !strings.Contains(msg, "(+2 suppressed)") {
		t.Fatalf("message should mention suppressed count: %q", msg)
	}
}

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := NewReadTimeoutError("read", nil)
	if !stderrors.Is(err, &Error{Kind: KindIO}) {
		t.Fatalf("kind-only target should match")
	}
	if !stderrors.Is(err, &Error{Kind: KindIO, Subkind: SubReadTimeout}) {
		t.Fatalf("kind+subkind target should match")
	}
	if stderrors.Is(err, &Error{Kind: KindProtocol}) {
		t.Fatalf("wrong kind must not match")
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := NewIOError("read", cause)
	if !stderrors.Is(err, cause) {
		t.Fatalf("cause should be reachable via Unwrap")
	}
}
