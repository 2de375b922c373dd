package interceptor

import (
	"bytes"
	"context"
	"testing"

	"github.com/WhileEndless/httpcore/internal/errors"
	"github.com/WhileEndless/httpcore/internal/model"
)

func runRetryChain(t *testing.T, r *RetryAndFollowUp, term *terminal, req *model.Request) (*model.Response, error) {
	t.Helper()
	chain := NewChain(context.Background(), []Interceptor{r, term}, req)
	return chain.Proceed(req)
}

func TestRetryFollowsRedirect(t *testing.T) {
	term := &terminal{responses: []*model.Response{
		respondWith(302, "Location", "http://example.com/new"),
		respondWith(200),
	}}
	r := NewRetryAndFollowUp()

	resp, err := runRetryChain(t, r, term, testRequest(t, "GET", "http://example.com/"))
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if resp.Code != 200 {
		t.Fatalf("expected final 200, got %d", resp.Code)
	}
	if resp.PriorResponse == nil || resp.PriorResponse.Code != 302 {
		t.Fatalf("prior response chain missing: %+v", resp.PriorResponse)
	}
	if len(term.seen) != 2 {
		t.Fatalf("expected exactly two network requests, got %d", len(term.seen))
	}
	if got := term.seen[1].URL.Path(); got != "/new" {
		t.Fatalf("redirect target not followed: %s", got)
	}
}

func TestRetryFollowsRelativeRedirect(t *testing.T) {
	term := &terminal{responses: []*model.Response{
		respondWith(301, "Location", "/moved"),
		respondWith(200),
	}}
	r := NewRetryAndFollowUp()

	if _, err := runRetryChain(t, r, term, testRequest(t, "GET", "http://example.com/old")); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if got := term.seen[1].URL.Path(); got != "/moved" {
		t.Fatalf("relative redirect not resolved: %s", got)
	}
}

func TestRedirect303BecomesGET(t *testing.T) {
	term := &terminal{responses: []*model.Response{
		respondWith(303, "Location", "http://example.com/result"),
		respondWith(200),
	}}
	r := NewRetryAndFollowUp()

	req := testRequest(t, "POST", "http://example.com/form")
	req.Body = model.BytesRequestBody{Data: []byte("payload")}
	if _, err := runRetryChain(t, r, term, req); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	follow := term.seen[1]
	if follow.Method != "GET" {
		t.Fatalf("303 must rewrite the method to GET, got %s", follow.Method)
	}
	if follow.Body != nil {
		t.Fatalf("303 must drop the request body")
	}
}

func TestCrossHostRedirectDropsAuthorization(t *testing.T) {
	term := &terminal{responses: []*model.Response{
		respondWith(302, "Location", "http://other.example.org/"),
		respondWith(200),
	}}
	r := NewRetryAndFollowUp()

	req := testRequest(t, "GET", "http://example.com/")
	req.Headers.Add("Authorization", "Bearer secret")
	if _, err := runRetryChain(t, r, term, req); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if term.seen[1].Headers.Get("Authorization") != "" {
		t.Fatalf("Authorization must be dropped on a cross-host redirect")
	}
}

func TestSameHostRedirectKeepsAuthorization(t *testing.T) {
	term := &terminal{responses: []*model.Response{
		respondWith(302, "Location", "http://example.com/next"),
		respondWith(200),
	}}
	r := NewRetryAndFollowUp()

	req := testRequest(t, "GET", "http://example.com/")
	req.Headers.Add("Authorization", "Bearer secret")
	if _, err := runRetryChain(t, r, term, req); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if term.seen[1].Headers.Get("Authorization") == "" {
		t.Fatalf("Authorization should survive a same-host redirect")
	}
}

func TestRedirectLoopTerminates(t *testing.T) {
	var responses []*model.Response
	for i := 0; i < 30; i++ {
		responses = append(responses, respondWith(302, "Location", "http://example.com/loop"))
	}
	term := &terminal{responses: responses}
	r := NewRetryAndFollowUp()

	if _, err := runRetryChain(t, r, term, testRequest(t, "GET", "http://example.com/")); err == nil {
		t.Fatalf("a redirect loop must terminate with an error")
	}
	if len(term.seen) > 21 {
		t.Fatalf("follow-up count must be bounded at 20, saw %d requests", len(term.seen))
	}
}

func TestRetryOnRetryableIOError(t *testing.T) {
	term := &terminal{
		errs:      []error{errors.NewUnexpectedEOFError("read", nil), nil},
		responses: []*model.Response{nil, respondWith(200)},
	}
	r := NewRetryAndFollowUp()

	resp, err := runRetryChain(t, r, term, testRequest(t, "GET", "http://example.com/"))
	if err != nil {
		t.Fatalf("retryable IO failure should be retried: %v", err)
	}
	if resp.Code != 200 {
		t.Fatalf("expected recovery, got %d", resp.Code)
	}
	if len(term.seen) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(term.seen))
	}
}

func TestNoRetryOnProtocolError(t *testing.T) {
	term := &terminal{
		errs:      []error{errors.NewProtocolError("bad frame", nil)},
		responses: []*model.Response{nil},
	}
	r := NewRetryAndFollowUp()

	if _, err := runRetryChain(t, r, term, testRequest(t, "GET", "http://example.com/")); err == nil {
		t.Fatalf("protocol errors must be fatal to the call")
	}
	if len(term.seen) != 1 {
		t.Fatalf("protocol error must not be retried, saw %d attempts", len(term.seen))
	}
}

func TestNoRetryOnCanceled(t *testing.T) {
	term := &terminal{
		errs:      []error{errors.NewCanceledError("read")},
		responses: []*model.Response{nil},
	}
	r := NewRetryAndFollowUp()

	if _, err := runRetryChain(t, r, term, testRequest(t, "GET", "http://example.com/")); err == nil {
		t.Fatalf("canceled calls must surface immediately")
	}
	if len(term.seen) != 1 {
		t.Fatalf("canceled call must not be retried, saw %d attempts", len(term.seen))
	}
}

func TestNoRetryForOneShotBody(t *testing.T) {
	term := &terminal{
		errs:      []error{errors.NewUnexpectedEOFError("read", nil), nil},
		responses: []*model.Response{nil, respondWith(200)},
	}
	r := NewRetryAndFollowUp()

	req := testRequest(t, "POST", "http://example.com/stream")
	req.Body = model.ReaderRequestBody{R: bytes.NewReader([]byte("once")), Length: 4}
	if _, err := runRetryChain(t, r, term, req); err == nil {
		t.Fatalf("a one-shot body must not be replayed after an IO failure")
	}
	if len(term.seen) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(term.seen))
	}
}

func TestNoRedirectForOneShotBody(t *testing.T) {
	term := &terminal{responses: []*model.Response{
		respondWith(307, "Location", "http://example.com/elsewhere"),
		respondWith(200),
	}}
	r := NewRetryAndFollowUp()

	req := testRequest(t, "POST", "http://example.com/stream")
	req.Body = model.ReaderRequestBody{R: bytes.NewReader([]byte("once")), Length: 4}
	resp, err := runRetryChain(t, r, term, req)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if resp.Code != 307 {
		t.Fatalf("a 307 that would replay a one-shot body must surface as-is, got %d", resp.Code)
	}
	if len(term.seen) != 1 {
		t.Fatalf("the redirect must not be followed, saw %d requests", len(term.seen))
	}
}

func TestAuthenticatorAnswers401(t *testing.T) {
	term := &terminal{responses: []*model.Response{
		respondWith(401, "WWW-Authenticate", `Basic realm="protected"`),
		respondWith(200),
	}}
	r := NewRetryAndFollowUp()
	r.ResponseAuth = func(resp *model.Response) (*model.Request, bool) {
		return resp.Request.WithHeader("Authorization", "Basic dXNlcjpwYXNz"), true
	}

	resp, err := runRetryChain(t, r, term, testRequest(t, "GET", "http://example.com/secret"))
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if resp.Code != 200 {
		t.Fatalf("expected authenticated retry to succeed, got %d", resp.Code)
	}
	if term.seen[1].Headers.Get("Authorization") == "" {
		t.Fatalf("authenticated follow-up missing credentials")
	}
}

func TestSecondIdenticalChallengeTerminates(t *testing.T) {
	// Stale credentials: the server repeats the exact same challenge.
	var responses []*model.Response
	for i := 0; i < 5; i++ {
		responses = append(responses, respondWith(401, "WWW-Authenticate", `Basic realm="protected"`))
	}
	term := &terminal{responses: responses}
	r := NewRetryAndFollowUp()
	r.ResponseAuth = func(resp *model.Response) (*model.Request, bool) {
		return resp.Request.WithHeader("Authorization", "Basic c3RhbGU6Y3JlZHM="), true
	}

	resp, err := runRetryChain(t, r, term, testRequest(t, "GET", "http://example.com/secret"))
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if resp.Code != 401 {
		t.Fatalf("the repeated challenge should surface, got %d", resp.Code)
	}
	if len(term.seen) != 2 {
		t.Fatalf("a second identical challenge must terminate, saw %d attempts", len(term.seen))
	}
}

func TestChangedChallengeMayRetryAgain(t *testing.T) {
	term := &terminal{responses: []*model.Response{
		respondWith(401, "WWW-Authenticate", `Basic realm="first"`),
		respondWith(401, "WWW-Authenticate", `Basic realm="second"`),
		respondWith(200),
	}}
	r := NewRetryAndFollowUp()
	r.ResponseAuth = func(resp *model.Response) (*model.Request, bool) {
		return resp.Request.WithHeader("Authorization", "Basic dXNlcjpwYXNz"), true
	}

	resp, err := runRetryChain(t, r, term, testRequest(t, "GET", "http://example.com/"))
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if resp.Code != 200 {
		t.Fatalf("distinct challenges should each get one attempt, got %d", resp.Code)
	}
	if len(term.seen) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(term.seen))
	}
}

func TestUnansweredChallengeSurfaces(t *testing.T) {
	term := &terminal{responses: []*model.Response{
		respondWith(401, "WWW-Authenticate", "Basic"),
	}}
	r := NewRetryAndFollowUp()

	resp, err := runRetryChain(t, r, term, testRequest(t, "GET", "http://example.com/"))
	if err != nil {
		t.Fatalf("an unanswered 401 is a response, not an error: %v", err)
	}
	if resp.Code != 401 {
		t.Fatalf("expected the 401 to surface, got %d", resp.Code)
	}
}
