package wire

import "testing"

func TestParseMediaType(t *testing.T) {
	m, err := ParseMediaType(`text/html; charset=UTF-8; boundary="abc"`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if m.Type != "text" || m.Subtype != "html" {
		t.Fatalf("unexpected type: %s/%s", m.Type, m.Subtype)
	}
	if v, ok := m.Param("CHARSET"); !ok || v != "UTF-8" {
		t.Fatalf("case-insensitive param lookup failed: %q %v", v, ok)
	}
	if v, ok := m.Param("boundary"); !ok || v != "abc" {
		t.Fatalf("quoted param not unwrapped: %q", v)
	}
}

func TestParseMediaTypeRejects(t *testing.T) {
	for _, s := range []string{"texthtml", "/html", "text/"} {
		if _, err := ParseMediaType(s); err == nil {
			t.Fatalf("expected %q to be rejected", s)
		}
	}
}

func TestMediaTypeString(t *testing.T) {
	m, _ := ParseMediaType("Application/JSON; charset=utf-8")
	if got := m.String(); got != "application/json; charset=utf-8" {
		t.Fatalf("unexpected render: %s", got)
	}
}
