package wire

import (
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"

	"github.com/WhileEndless/httpcore/internal/errors"
)

// idnaProfile mirrors browsers' lenient "IDNA2008 + transitional mapping"
// profile: lowercase, map deviation characters, and only fail for labels
// that are structurally invalid rather than merely unregistered.
var idnaProfile = idna.New(
	idna.MapForLookup(),
	idna.Transitional(true),
	idna.BidiRule(),
)

// CanonicalizeHost applies IDNA mapping, NFC normalization, then Punycode.
// It rejects hosts with zero-length or >63-byte labels, total
// length over 253 bytes, or prohibited ASCII control codes, and is
// idempotent: canonicalizing an already-canonical host is a no-op.
func CanonicalizeHost(host string) (string, error) {
	if host == "" {
		return "", errors.NewValidationError("empty host")
	}
	for i := 0; i < len(host); i++ {
		c := host[i]
		if c < 0x20 || c == 0x7F {
			return "", errors.NewValidationError("control character in host")
		}
	}

	normalized := norm.NFC.String(host)

	ascii, err := idnaProfile.ToASCII(normalized)
	if err != nil {
		return "", errors.NewValidationError("invalid IDN host: " + host)
	}
	ascii = strings.ToLower(ascii)

	if len(ascii) > 253 {
		return "", errors.NewValidationError("host exceeds 253 bytes")
	}
	for _, label := range strings.Split(ascii, ".") {
		if len(label) == 0 || len(label) > 63 {
			return "", errors.NewValidationError("invalid host label length")
		}
	}
	return ascii, nil
}
