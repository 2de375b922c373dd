package interceptor

import (
	"context"
	"testing"

	"github.com/WhileEndless/httpcore/internal/model"
	"github.com/WhileEndless/httpcore/internal/wire"
)

func testRequest(t *testing.T, method, rawURL string) *model.Request {
	t.Helper()
	u, err := wire.ParseURL(rawURL)
	if err != nil {
		t.Fatalf("parse %q failed: %v", rawURL, err)
	}
	return &model.Request{Method: method, URL: u, Headers: wire.NewHeaders()}
}

// terminal builds a stub terminal interceptor returning canned responses in
// sequence, recording each request it sees.
type terminal struct {
	responses []*model.Response
	errs      []error
	seen      []*model.Request
}

func (s *terminal) Intercept(chain Chain) (*model.Response, error) {
	i := len(s.seen)
	s.seen = append(s.seen, chain.Request())
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	resp := s.responses[i]
	resp.Request = chain.Request()
	return resp, nil
}

func respondWith(code int, headers ...string) *model.Response {
	h := wire.NewHeaders()
	for i := 0; i+1 < len(headers); i += 2 {
		h.Add(headers[i], headers[i+1])
	}
	return &model.Response{Code: code, Message: "", Headers: h, Protocol: "http/1.1", Body: model.NewBytesResponseBody(nil)}
}

func TestChainRunsInOrder(t *testing.T) {
	var order []string
	mk := func(name string) Interceptor {
		return InterceptorFunc(func(chain Chain) (*model.Response, error) {
			order = append(order, name)
			return chain.Proceed(chain.Request())
		})
	}
	term := &terminal{responses: []*model.Response{respondWith(200)}}
	chain := NewChain(context.Background(), []Interceptor{mk("first"), mk("second"), term}, testRequest(t, "GET", "http://example.com/"))

	if _, err := chain.Proceed(chain.Request()); err != nil {
		t.Fatalf("proceed failed: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("interceptors ran out of order: %v", order)
	}
}

func TestChainShortCircuit(t *testing.T) {
	short := InterceptorFunc(func(chain Chain) (*model.Response, error) {
		return respondWith(200), nil
	})
	term := &terminal{responses: []*model.Response{respondWith(500)}}
	chain := NewChain(context.Background(), []Interceptor{short, term}, testRequest(t, "GET", "http://example.com/"))

	resp, err := chain.Proceed(chain.Request())
	if err != nil {
		t.Fatalf("proceed failed: %v", err)
	}
	if resp.Code != 200 {
		t.Fatalf("short-circuit response lost: %d", resp.Code)
	}
	if len(term.seen) != 0 {
		t.Fatalf("terminal interceptor must not run after a short circuit")
	}
}

func TestChainRewritesRequestDownstream(t *testing.T) {
	rewrite := InterceptorFunc(func(chain Chain) (*model.Response, error) {
		return chain.Proceed(chain.Request().WithHeader("X-Injected", "yes"))
	})
	term := &terminal{responses: []*model.Response{respondWith(200)}}
	chain := NewChain(context.Background(), []Interceptor{rewrite, term}, testRequest(t, "GET", "http://example.com/"))

	if _, err := chain.Proceed(chain.Request()); err != nil {
		t.Fatalf("proceed failed: %v", err)
	}
	if term.seen[0].Headers.Get("X-Injected") != "yes" {
		t.Fatalf("downstream interceptor did not see the rewritten request")
	}
}
