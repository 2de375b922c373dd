// Package wire implements the wire codec primitives: headers, URLs,
// media types, status lines, HTTP-dates, Cache-Control, and hostnames —
// parsed and rendered with exact byte fidelity.
package wire

import (
	"strings"

	"github.com/WhileEndless/httpcore/internal/errors"
)

// Headers is an ordered list of (name, value) pairs. Name comparison is
// ASCII case-insensitive; multi-valued headers are kept as separate pairs,
// never joined.
type Headers struct {
	names  []string
	values []string
}

// NewHeaders returns an empty header list.
func NewHeaders() *Headers {
	return &Headers{}
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x21 || c > 0x7E {
			return false
		}
	}
	return true
}

func validValue(value string) bool {
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != 0x09 && (c < 0x20 || c > 0x7E) {
			return false
		}
	}
	return true
}

// Add appends a header pair, validating name and value octets. Invalid
// pairs are rejected with a *errors.Error of kind Validation.
func (h *Headers) Add(name, value string) error {
	if !validName(name) {
		return errors.NewValidationError("invalid header name: " + name)
	}
	if !validValue(value) {
		return errors.NewValidationError("invalid header value for " + name)
	}
	h.names = append(h.names, name)
	h.values = append(h.values, value)
	return nil
}

// Set replaces all existing values for name with a single value.
func (h *Headers) Set(name, value string) error {
	h.RemoveAll(name)
	return h.Add(name, value)
}

// Get returns the first value for name, or "" if absent.
func (h *Headers) Get(name string) string {
	for i, n := range h.names {
		if strings.EqualFold(n, name) {
			return h.values[i]
		}
	}
	return ""
}

// Values returns every value recorded for name, in insertion order.
func (h *Headers) Values(name string) []string {
	var out []string
	for i, n := range h.names {
		if strings.EqualFold(n, name) {
			out = append(out, h.values[i])
		}
	}
	return out
}

// RemoveAll deletes every pair whose name matches, case-insensitively.
func (h *Headers) RemoveAll(name string) {
	names := h.names[:0]
	values := h.values[:0]
	for i, n := range h.names {
		if !strings.EqualFold(n, name) {
			names = append(names, n)
			values = append(values, h.values[i])
		}
	}
	h.names, h.values = names, values
}

// Len returns the number of pairs (not unique names).
func (h *Headers) Len() int { return len(h.names) }

// Name returns the header name at index i.
func (h *Headers) Name(i int) string { return h.names[i] }

// Value returns the header value at index i.
func (h *Headers) Value(i int) string { return h.values[i] }

// Clone returns an independent copy.
func (h *Headers) Clone() *Headers {
	c := &Headers{
		names:  append([]string(nil), h.names...),
		values: append([]string(nil), h.values...),
	}
	return c
}

// Vary returns the comma-separated, trimmed values of every Vary header
// entry, used by the cache's varied-header matching.
func (h *Headers) Vary() []string {
	var out []string
	for _, raw := range h.Values("Vary") {
		for _, tok := range strings.Split(raw, ",") {
			tok = strings.TrimSpace(tok)
			if tok != "" {
				out = append(out, tok)
			}
		}
	}
	return out
}

// String renders the headers as CRLF-terminated "Name: value" lines, as
// they'd appear on the wire; the terminating blank line is not included.
func (h *Headers) String() string {
	var b strings.Builder
	for i := range h.names {
		b.WriteString(h.names[i])
		b.WriteString(": ")
		b.WriteString(h.values[i])
		b.WriteString("\r\n")
	}
	return b.String()
}
