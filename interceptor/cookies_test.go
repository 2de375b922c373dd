package interceptor

import (
	"context"
	"testing"

	"github.com/WhileEndless/httpcore/cookiejar"
	"github.com/WhileEndless/httpcore/internal/model"
)

func TestCookiesSavedAndReplayed(t *testing.T) {
	jar := cookiejar.NewMemoryJar()
	ci := &Cookies{Jar: jar}

	first := respondWith(200, "Set-Cookie", "session=abc123; Path=/")
	second := respondWith(200)
	term := &terminal{responses: []*model.Response{first, second}}

	run := func(req *model.Request) *model.Response {
		chain := NewChain(context.Background(), []Interceptor{ci, term}, req)
		resp, err := chain.Proceed(req)
		if err != nil {
			t.Fatalf("call failed: %v", err)
		}
		return resp
	}

	run(testRequest(t, "GET", "http://example.com/login"))
	run(testRequest(t, "GET", "http://example.com/account"))

	if got := term.seen[0].Headers.Get("Cookie"); got != "" {
		t.Fatalf("first request should carry no cookies, got %q", got)
	}
	if got := term.seen[1].Headers.Get("Cookie"); got != "session=abc123" {
		t.Fatalf("second request should replay the stored cookie, got %q", got)
	}
}

func TestCookiesUserHeaderWins(t *testing.T) {
	jar := cookiejar.NewMemoryJar()
	ci := &Cookies{Jar: jar}

	term := &terminal{responses: []*model.Response{
		respondWith(200, "Set-Cookie", "stored=1"),
		respondWith(200),
	}}

	req := testRequest(t, "GET", "http://example.com/")
	chain := NewChain(context.Background(), []Interceptor{ci, term}, req)
	if _, err := chain.Proceed(req); err != nil {
		t.Fatalf("call failed: %v", err)
	}

	manual := testRequest(t, "GET", "http://example.com/")
	manual.Headers.Add("Cookie", "manual=override")
	chain = NewChain(context.Background(), []Interceptor{ci, term}, manual)
	if _, err := chain.Proceed(manual); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if got := term.seen[1].Headers.Get("Cookie"); got != "manual=override" {
		t.Fatalf("a caller-set Cookie header must win over the jar, got %q", got)
	}
}
