package wire

import "testing"

func TestHeadersOrderAndMultiValue(t *testing.T) {
	h := NewHeaders()
	if err := h.Add("Set-Cookie", "a=1"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := h.Add("Content-Type", "text/plain"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := h.Add("Set-Cookie", "b=2"); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if h.Len() != 3 {
		t.Fatalf("expected 3 pairs, got %d", h.Len())
	}
	if got := h.Values("set-cookie"); len(got) != 2 || got[0] != "a=1" || got[1] != "b=2" {
		t.Fatalf("multi-value lookup wrong: %v", got)
	}
	if h.Name(0) != "Set-Cookie" || h.Name(1) != "Content-Type" || h.Name(2) != "Set-Cookie" {
		t.Fatalf("insertion order not preserved")
	}
}

func TestHeadersCaseInsensitiveGet(t *testing.T) {
	h := NewHeaders()
	h.Add("Content-Length", "12")
	if h.Get("content-length") != "12" {
		t.Fatalf("case-insensitive get failed")
	}
	if h.Get("CONTENT-LENGTH") != "12" {
		t.Fatalf("case-insensitive get failed")
	}
}

func TestHeadersSetReplacesAll(t *testing.T) {
	h := NewHeaders()
	h.Add("Accept", "a")
	h.Add("accept", "b")
	h.Set("Accept", "c")
	if got := h.Values("Accept"); len(got) != 1 || got[0] != "c" {
		t.Fatalf("set did not replace all values: %v", got)
	}
}

func TestHeadersValidation(t *testing.T) {
	h := NewHeaders()
	if err := h.Add("", "value"); err == nil {
		t.Fatalf("expected empty name to be rejected")
	}
	if err := h.Add("Bad Name", "value"); err == nil {
		t.Fatalf("expected space in name to be rejected")
	}
	if err := h.Add("Name", "bad\x00value"); err == nil {
		t.Fatalf("expected NUL in value to be rejected")
	}
	if err := h.Add("Name", "tab\tis\tfine"); err != nil {
		t.Fatalf("expected HT in value to be allowed: %v", err)
	}
}

func TestHeadersVary(t *testing.T) {
	h := NewHeaders()
	h.Add("Vary", "Accept-Encoding, User-Agent")
	h.Add("Vary", "Origin")
	got := h.Vary()
	want := []string{"Accept-Encoding", "User-Agent", "Origin"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestHeadersCloneIsIndependent(t *testing.T) {
	h := NewHeaders()
	h.Add("A", "1")
	c := h.Clone()
	c.Set("A", "2")
	if h.Get("A") != "1" {
		t.Fatalf("clone mutation leaked into original")
	}
}
