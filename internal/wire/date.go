package wire

import (
	"strings"
	"time"
)

// httpDateLayouts enumerates the accepted date formats: RFC 1123,
// RFC 1036, ANSI-C asctime, and common non-standard variants seen in the
// wild (two-digit years, missing leading zero on day-of-month).
var httpDateLayouts = []string{
	time.RFC1123,                     // Sun, 06 Nov 1994 08:49:37 GMT
	"Mon, 2 Jan 2006 15:04:05 GMT",    // non-standard single-digit day
	time.RFC850,                      // Sunday, 06-Nov-94 08:49:37 GMT (RFC 1036 family)
	time.ANSIC,                       // Sun Nov  6 08:49:37 1994 (asctime)
	"Mon Jan 2 15:04:05 2006",         // asctime without double-space day pad
	"Mon, 02-Jan-2006 15:04:05 GMT",  // non-standard dash-separated date
	"Mon, 02 Jan 2006 15:04:05 -0700", // numeric-offset variant, GMT-assumed below
}

// ParseHTTPDate accepts RFC 1123, RFC 1036, asctime, and common variants.
// GMT is always assumed regardless of the literal zone text.
func ParseHTTPDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range httpDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, mo, d := t.Date()
			h, mi, sec := t.Clock()
			return time.Date(y, mo, d, h, mi, sec, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// FormatHTTPDate serializes RFC 1123 only, always in GMT.
func FormatHTTPDate(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
}
