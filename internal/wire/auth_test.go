package wire

import "testing"

func TestParseChallengesSingle(t *testing.T) {
	out := ParseChallenges(`Basic realm="protected area"`)
	if len(out) != 1 {
		t.Fatalf("expected 1 challenge, got %d", len(out))
	}
	if out[0].Scheme != "Basic" {
		t.Fatalf("expected scheme Basic, got %q", out[0].Scheme)
	}
	if out[0].Params["realm"] != "protected area" {
		t.Fatalf("unexpected realm: %q", out[0].Params["realm"])
	}
}

func TestParseChallengesMultiple(t *testing.T) {
	out := ParseChallenges(`Bearer realm="api", error="invalid_token", Basic realm="fallback"`)
	if len(out) != 2 {
		t.Fatalf("expected 2 challenges, got %d: %+v", len(out), out)
	}
	if out[0].Scheme != "Bearer" || out[0].Params["error"] != "invalid_token" {
		t.Fatalf("unexpected first challenge: %+v", out[0])
	}
	if out[1].Scheme != "Basic" || out[1].Params["realm"] != "fallback" {
		t.Fatalf("unexpected second challenge: %+v", out[1])
	}
}

func TestParseChallengesBareScheme(t *testing.T) {
	out := ParseChallenges("Negotiate")
	if len(out) != 1 || out[0].Scheme != "Negotiate" || len(out[0].Params) != 0 {
		t.Fatalf("unexpected: %+v", out)
	}
}

func TestBasicAuthHeader(t *testing.T) {
	if got := BasicAuthHeader("user", "pass"); got != "Basic dXNlcjpwYXNz" {
		t.Fatalf("unexpected basic auth header: %s", got)
	}
}
