package wire

import (
	"testing"
	"time"
)

func TestParseHTTPDateFormats(t *testing.T) {
	want := time.Date(1994, time.November, 6, 8, 49, 37, 0, time.UTC)
	for _, s := range []string{
		"Sun, 06 Nov 1994 08:49:37 GMT", // RFC 1123
		"Sunday, 06-Nov-94 08:49:37 GMT", // RFC 1036
		"Sun Nov  6 08:49:37 1994",       // asctime
	} {
		got, ok := ParseHTTPDate(s)
		if !ok {
			t.Fatalf("failed to parse %q", s)
		}
		if !got.Equal(want) {
			t.Fatalf("parse of %q = %v, want %v", s, got, want)
		}
	}
}

func TestParseHTTPDateRejectsGarbage(t *testing.T) {
	if _, ok := ParseHTTPDate("not a date"); ok {
		t.Fatalf("expected garbage to fail")
	}
}

func TestFormatHTTPDateIsRFC1123(t *testing.T) {
	in := time.Date(1994, time.November, 6, 8, 49, 37, 0, time.UTC)
	if got := FormatHTTPDate(in); got != "Sun, 06 Nov 1994 08:49:37 GMT" {
		t.Fatalf("unexpected serialization: %s", got)
	}
}

func TestHTTPDateRoundTrip(t *testing.T) {
	in := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	out, ok := ParseHTTPDate(FormatHTTPDate(in))
	if !ok || !out.Equal(in) {
		t.Fatalf("round trip failed: %v != %v", out, in)
	}
}
