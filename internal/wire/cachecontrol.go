package wire

import (
	"strconv"
	"strings"
)

// CacheControl is a parsed Cache-Control directive set. Round-trips via String()
// when constructed from ParseCacheControl, UNLESS MultipleHeaders or
// HadPragma is set — in that case the original header text is considered
// non-canonical and must not be reused.
type CacheControl struct {
	NoCache        bool
	NoCacheFields  []string // field-names listed after "no-cache=" (conditional no-cache)
	NoStore        bool
	MaxAge         int64 // -1 if unset
	SMaxAge        int64 // -1 if unset
	Private        bool
	Public         bool
	MustRevalidate bool
	MaxStale       int64 // -1 if unset (bare "max-stale" means "any")
	MaxStaleBare   bool
	MinFresh       int64 // -1 if unset
	OnlyIfCached   bool
	NoTransform    bool
	Immutable      bool

	MultipleHeaders bool
	HadPragma       bool
}

// NewCacheControl returns a CacheControl with all numeric directives unset.
func NewCacheControl() *CacheControl {
	return &CacheControl{MaxAge: -1, SMaxAge: -1, MaxStale: -1, MinFresh: -1}
}

// ParseCacheControl tolerantly tokenizes one or more Cache-Control header
// values plus an optional Pragma: no-cache marker.
func ParseCacheControl(values []string, hadPragmaNoCache bool) *CacheControl {
	cc := NewCacheControl()
	cc.MultipleHeaders = len(values) > 1
	cc.HadPragma = hadPragmaNoCache
	if hadPragmaNoCache {
		cc.NoCache = true
	}

	for _, header := range values {
		for _, directive := range splitDirectives(header) {
			applyDirective(cc, directive)
		}
	}
	return cc
}

func splitDirectives(header string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(header); i++ {
		switch header[i] {
		case '"':
			depth ^= 1
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(header[start:i]))
				start = i + 1
			}
		}
	}
	out = append(out, strings.TrimSpace(header[start:]))
	return out
}

func applyDirective(cc *CacheControl, directive string) {
	if directive == "" {
		return
	}
	name := directive
	value := ""
	if eq := strings.IndexByte(directive, '='); eq >= 0 {
		name = strings.TrimSpace(directive[:eq])
		value = strings.Trim(strings.TrimSpace(directive[eq+1:]), `"`)
	}
	switch strings.ToLower(name) {
	case "no-cache":
		cc.NoCache = true
		if value != "" {
			for _, f := range strings.Split(value, ",") {
				cc.NoCacheFields = append(cc.NoCacheFields, strings.TrimSpace(f))
			}
		}
	case "no-store":
		cc.NoStore = true
	case "max-age":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			cc.MaxAge = n
		}
	case "s-maxage":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			cc.SMaxAge = n
		}
	case "private":
		cc.Private = true
	case "public":
		cc.Public = true
	case "must-revalidate":
		cc.MustRevalidate = true
	case "max-stale":
		if value == "" {
			cc.MaxStaleBare = true
		} else if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			cc.MaxStale = n
		}
	case "min-fresh":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			cc.MinFresh = n
		}
	case "only-if-cached":
		cc.OnlyIfCached = true
	case "no-transform":
		cc.NoTransform = true
	case "immutable":
		cc.Immutable = true
	}
}

// String renders the directive set as a canonical Cache-Control header
// value. Callers must check MultipleHeaders/HadPragma before reusing this
// for a header that was parsed from non-canonical input.
func (cc *CacheControl) String() string {
	var parts []string
	if cc.NoCache {
		if len(cc.NoCacheFields) > 0 {
			parts = append(parts, "no-cache=\""+strings.Join(cc.NoCacheFields, ", ")+"\"")
		} else {
			parts = append(parts, "no-cache")
		}
	}
	if cc.NoStore {
		parts = append(parts, "no-store")
	}
	if cc.MaxAge >= 0 {
		parts = append(parts, "max-age="+strconv.FormatInt(cc.MaxAge, 10))
	}
	if cc.SMaxAge >= 0 {
		parts = append(parts, "s-maxage="+strconv.FormatInt(cc.SMaxAge, 10))
	}
	if cc.Private {
		parts = append(parts, "private")
	}
	if cc.Public {
		parts = append(parts, "public")
	}
	if cc.MustRevalidate {
		parts = append(parts, "must-revalidate")
	}
	if cc.MaxStaleBare {
		parts = append(parts, "max-stale")
	} else if cc.MaxStale >= 0 {
		parts = append(parts, "max-stale="+strconv.FormatInt(cc.MaxStale, 10))
	}
	if cc.MinFresh >= 0 {
		parts = append(parts, "min-fresh="+strconv.FormatInt(cc.MinFresh, 10))
	}
	if cc.OnlyIfCached {
		parts = append(parts, "only-if-cached")
	}
	if cc.NoTransform {
		parts = append(parts, "no-transform")
	}
	if cc.Immutable {
		parts = append(parts, "immutable")
	}
	return strings.Join(parts, ", ")
}
