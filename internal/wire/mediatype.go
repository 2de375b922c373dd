package wire

import (
	"strings"

	"github.com/WhileEndless/httpcore/internal/errors"
)

// MediaType is a parsed `type/subtype` plus ordered parameters, per the
// RFC 7231 grammar referenced in §3.1 / §4.A.
type MediaType struct {
	Type    string
	Subtype string
	Params  []MediaParam
}

// MediaParam is a single case-insensitive-named media-type parameter.
type MediaParam struct {
	Name  string
	Value string
}

// ParseMediaType parses a Content-Type-shaped string into a MediaType.
func ParseMediaType(s string) (*MediaType, error) {
	parts := strings.Split(s, ";")
	typeSub := strings.TrimSpace(parts[0])
	slash := strings.IndexByte(typeSub, '/')
	if slash <= 0 || slash == len(typeSub)-1 {
		return nil, errors.NewValidationError("invalid media type: " + s)
	}
	mt := &MediaType{
		Type:    strings.ToLower(strings.TrimSpace(typeSub[:slash])),
		Subtype: strings.ToLower(strings.TrimSpace(typeSub[slash+1:])),
	}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		eq := strings.IndexByte(p, '=')
		if eq < 0 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(p[:eq]))
		value := strings.Trim(strings.TrimSpace(p[eq+1:]), `"`)
		mt.Params = append(mt.Params, MediaParam{Name: name, Value: value})
	}
	return mt, nil
}

// Param returns the value of the named parameter, case-insensitively.
func (m *MediaType) Param(name string) (string, bool) {
	for _, p := range m.Params {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}

// String renders "type/subtype; name=value; ...".
func (m *MediaType) String() string {
	var b strings.Builder
	b.WriteString(m.Type)
	b.WriteByte('/')
	b.WriteString(m.Subtype)
	for _, p := range m.Params {
		b.WriteString("; ")
		b.WriteString(p.Name)
		b.WriteByte('=')
		b.WriteString(p.Value)
	}
	return b.String()
}
