package route

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"syscall"
)

// TLSFallbackPlan iterates an address's tls-specs in order for one
// connection attempt.
type TLSFallbackPlan struct {
	specs []*tls.Config
	index int
}

// NewTLSFallbackPlan returns a plan starting at the first configured spec.
func NewTLSFallbackPlan(specs []*tls.Config) *TLSFallbackPlan {
	if len(specs) == 0 {
		specs = []*tls.Config{{MinVersion: tls.VersionTLS12}}
	}
	return &TLSFallbackPlan{specs: specs}
}

// Current returns the TLS spec to try next.
func (p *TLSFallbackPlan) Current() *tls.Config { return p.specs[p.index] }

// HasNext reports whether another, strictly different, spec remains.
// Specs differ when their version range or cipher-suite list differs.
func (p *TLSFallbackPlan) HasNext() bool {
	if p.index+1 >= len(p.specs) {
		return false
	}
	cur, next := p.specs[p.index], p.specs[p.index+1]
	if cur.MinVersion != next.MinVersion || cur.MaxVersion != next.MaxVersion || len(cur.CipherSuites) != len(next.CipherSuites) {
		return true
	}
	for i := range cur.CipherSuites {
		if cur.CipherSuites[i] != next.CipherSuites[i] {
			return true
		}
	}
	return false
}

// Advance moves to the next spec.
func (p *TLSFallbackPlan) Advance() { p.index++ }

// IsRetryableHandshakeError reports whether a handshake failure is eligible
// for TLS-spec fallback: the cause must be a handshake-layer error that is
// neither a certificate problem nor a non-handshake I/O error.
func IsRetryableHandshakeError(err error) bool {
	if err == nil {
		return false
	}
	var certErr x509.CertificateInvalidError
	if errors.As(err, &certErr) {
		return false
	}
	var unknownAuth x509.UnknownAuthorityError
	if errors.As(err, &unknownAuth) {
		return false
	}
	var hostErr x509.HostnameError
	if errors.As(err, &hostErr) {
		return false
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	// Any other TLS-layer error (alert, version mismatch, cipher mismatch)
	// is treated as handshake-retryable; plain I/O errors (timeouts, resets)
	// are not handshake errors and are handled by the generic IO retry path
	// instead of TLS-spec fallback.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return false
	}
	_, isAlert := err.(*tls.CertificateVerificationError)
	if isAlert {
		return false
	}
	return true
}
