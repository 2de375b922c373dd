// Package tlsconfig defines the TLS connection specs a client offers
// during handshake fallback: an ordered ladder of version ranges and
// cipher-suite sets, tried strictest first.
package tlsconfig

import "crypto/tls"

// Spec is one rung of the fallback ladder: a named TLS version range plus
// the cipher suites to enable for it. A nil CipherSuites list leaves the
// crypto/tls defaults in place (TLS 1.3 suites are not configurable).
type Spec struct {
	Name         string
	MinVersion   uint16
	MaxVersion   uint16
	CipherSuites []uint16
}

// ecdheSuites are the TLS 1.2 AEAD suites every modern server speaks.
var ecdheSuites = []uint16{
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
}

// legacySuites extends ecdheSuites with the CBC and plain-RSA suites old
// middleboxes still require.
var legacySuites = append(append([]uint16(nil), ecdheSuites...),
	tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA,
	tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA,
	tls.TLS_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_RSA_WITH_AES_128_CBC_SHA,
	tls.TLS_RSA_WITH_AES_256_CBC_SHA,
)

var (
	// ModernTLS negotiates TLS 1.3 only.
	ModernTLS = Spec{Name: "modern", MinVersion: tls.VersionTLS13, MaxVersion: tls.VersionTLS13}

	// SecureTLS is the recommended production rung: TLS 1.2+ with AEAD
	// suites.
	SecureTLS = Spec{Name: "secure", MinVersion: tls.VersionTLS12, MaxVersion: tls.VersionTLS13, CipherSuites: ecdheSuites}

	// CompatibleTLS reaches back to TLS 1.0 with the legacy suite list for
	// servers that never upgraded.
	CompatibleTLS = Spec{Name: "compatible", MinVersion: tls.VersionTLS10, MaxVersion: tls.VersionTLS13, CipherSuites: legacySuites}
)

// DefaultFallback is the ladder a client offers when none is configured:
// secure first, then the permissive rung for old servers.
func DefaultFallback() []Spec {
	return []Spec{SecureTLS, CompatibleTLS}
}

// Apply writes the spec's version bounds and suites onto cfg.
func (s Spec) Apply(cfg *tls.Config) {
	cfg.MinVersion = s.MinVersion
	cfg.MaxVersion = s.MaxVersion
	cfg.CipherSuites = s.CipherSuites
}

// Config returns a clone of base with the spec applied, for building the
// per-address fallback list without mutating the shared base config.
func (s Spec) Config(base *tls.Config) *tls.Config {
	cfg := base.Clone()
	s.Apply(cfg)
	return cfg
}

// SpecFor builds a "custom" spec with the given version bounds, for
// callers that configure explicit version bounds instead of a ladder:
// legacy suites when min is below TLS 1.2, the ECDHE AEAD suites
// otherwise, and no suite list when min is TLS 1.3 or higher.
func SpecFor(min, max uint16) Spec {
	spec := Spec{Name: "custom", MinVersion: min, MaxVersion: max}
	if min != 0 && min < tls.VersionTLS12 {
		spec.CipherSuites = legacySuites
	} else {
		spec.CipherSuites = ecdheSuites
	}
	if min >= tls.VersionTLS13 {
		spec.CipherSuites = nil
	}
	return spec
}

var versionNames = map[uint16]string{
	tls.VersionTLS10: "TLS 1.0",
	tls.VersionTLS11: "TLS 1.1",
	tls.VersionTLS12: "TLS 1.2",
	tls.VersionTLS13: "TLS 1.3",
}

// VersionName renders a TLS version constant for logs and events.
func VersionName(v uint16) string {
	if name, ok := versionNames[v]; ok {
		return name
	}
	return "unknown"
}

// IsVersionDeprecated reports whether v predates TLS 1.2.
func IsVersionDeprecated(v uint16) bool { return v < tls.VersionTLS12 }
