package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParseCacheControlDirectives(t *testing.T) {
	cc := ParseCacheControl([]string{"no-cache, no-store, max-age=120, must-revalidate"}, false)
	if !cc.NoCache || !cc.NoStore || !cc.MustRevalidate {
		t.Fatalf("boolean directives not parsed: %+v", cc)
	}
	if cc.MaxAge != 120 {
		t.Fatalf("expected max-age 120, got %d", cc.MaxAge)
	}
	if cc.SMaxAge != -1 {
		t.Fatalf("expected s-maxage unset, got %d", cc.SMaxAge)
	}
}

func TestParseCacheControlQuotedFieldList(t *testing.T) {
	cc := ParseCacheControl([]string{`no-cache="Set-Cookie, Authorization", public`}, false)
	if !cc.NoCache || !cc.Public {
		t.Fatalf("directives not parsed: %+v", cc)
	}
	if len(cc.NoCacheFields) != 2 || cc.NoCacheFields[0] != "Set-Cookie" {
		t.Fatalf("unexpected no-cache field list: %v", cc.NoCacheFields)
	}
}

func TestParseCacheControlMaxStaleBare(t *testing.T) {
	cc := ParseCacheControl([]string{"max-stale"}, false)
	if !cc.MaxStaleBare || cc.MaxStale != -1 {
		t.Fatalf("bare max-stale not recognized: %+v", cc)
	}
	cc = ParseCacheControl([]string{"max-stale=30"}, false)
	if cc.MaxStaleBare || cc.MaxStale != 30 {
		t.Fatalf("valued max-stale not recognized: %+v", cc)
	}
}

func TestCacheControlStringRoundTrip(t *testing.T) {
	inputs := []string{
		"no-cache",
		"no-store, max-age=60",
		"public, s-maxage=600, immutable",
		"private, must-revalidate, min-fresh=5",
		"only-if-cached, no-transform",
		"max-stale",
	}
	ignore := cmpopts.IgnoreFields(CacheControl{}, "MultipleHeaders", "HadPragma")
	for _, s := range inputs {
		first := ParseCacheControl([]string{s}, false)
		second := ParseCacheControl([]string{first.String()}, false)
		if diff := cmp.Diff(first, second, ignore); diff != "" {
			t.Fatalf("round trip of %q changed the directive set:\n%s", s, diff)
		}
	}
}

func TestCacheControlNonCanonicalMarkers(t *testing.T) {
	cc := ParseCacheControl([]string{"max-age=1", "no-store"}, false)
	if !cc.MultipleHeaders {
		t.Fatalf("multiple headers not marked non-canonical")
	}
	cc = ParseCacheControl(nil, true)
	if !cc.HadPragma || !cc.NoCache {
		t.Fatalf("pragma no-cache should imply no-cache and mark non-canonical: %+v", cc)
	}
}
