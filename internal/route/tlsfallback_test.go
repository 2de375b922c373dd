package route

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"testing"
)

func TestTLSFallbackPlanIteration(t *testing.T) {
	modern := &tls.Config{MinVersion: tls.VersionTLS13}
	compatible := &tls.Config{MinVersion: tls.VersionTLS10}
	plan := NewTLSFallbackPlan([]*tls.Config{modern, compatible})

	if plan.Current() != modern {
		t.Fatalf("expected the first spec first")
	}
	if !plan.HasNext() {
		t.Fatalf("expected another spec")
	}
	plan.Advance()
	if plan.Current() != compatible {
		t.Fatalf("expected the second spec after advance")
	}
	if plan.HasNext() {
		t.Fatalf("expected exhaustion after the last spec")
	}
}

func TestTLSFallbackPlanEmptyGetsDefault(t *testing.T) {
	plan := NewTLSFallbackPlan(nil)
	if plan.Current() == nil {
		t.Fatalf("empty spec list should produce a usable default")
	}
}

func TestIsRetryableHandshakeError(t *testing.T) {
	if IsRetryableHandshakeError(nil) {
		t.Fatalf("nil is not retryable")
	}
	if IsRetryableHandshakeError(x509.UnknownAuthorityError{}) {
		t.Fatalf("certificate trust failures must not trigger spec fallback")
	}
	if IsRetryableHandshakeError(x509.CertificateInvalidError{Cert: &x509.Certificate{}, Reason: x509.Expired}) {
		t.Fatalf("certificate validity failures must not trigger spec fallback")
	}
	if IsRetryableHandshakeError(x509.HostnameError{Certificate: &x509.Certificate{}, Host: "example.com"}) {
		t.Fatalf("hostname mismatches must not trigger spec fallback")
	}
	if !IsRetryableHandshakeError(tls.RecordHeaderError{Msg: "bad record"}) {
		t.Fatalf("record-layer failures should be retryable with a downgraded spec")
	}
	if !IsRetryableHandshakeError(fmt.Errorf("tls: handshake failure")) {
		t.Fatalf("generic handshake alerts should be retryable")
	}
	wrapped := fmt.Errorf("connect: %w", x509.UnknownAuthorityError{})
	if IsRetryableHandshakeError(wrapped) {
		t.Fatalf("wrapped certificate failures must not be retryable")
	}
}
