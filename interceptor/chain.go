// Package interceptor implements the call-execution pipeline:
// an ordered chain of Interceptors through which every request passes —
// retry/follow-up, bridge (header defaulting), cache, connect, and
// network — each able to short-circuit, retry, or rewrite the exchange.
package interceptor

import (
	"context"

	"github.com/WhileEndless/httpcore/internal/model"
)

// Interceptor observes or rewrites one leg of the chain. Implementations
// call chain.Proceed to continue to the next interceptor, or return a
// Response/error directly to short-circuit (the cache interceptor serving
// a fresh hit without touching the network, for instance).
type Interceptor interface {
	Intercept(chain Chain) (*model.Response, error)
}

// InterceptorFunc adapts a plain function to Interceptor.
type InterceptorFunc func(chain Chain) (*model.Response, error)

func (f InterceptorFunc) Intercept(chain Chain) (*model.Response, error) { return f(chain) }

// Chain exposes the current request and the ability to advance.
type Chain interface {
	Context() context.Context
	Request() *model.Request
	Proceed(req *model.Request) (*model.Response, error)
}

// realChain is a singly-linked cursor over an ordered interceptor list.
type realChain struct {
	ctx          context.Context
	interceptors []Interceptor
	index        int
	request      *model.Request
}

// NewChain builds the initial chain cursor for req over interceptors, in
// the order they should run.
func NewChain(ctx context.Context, interceptors []Interceptor, req *model.Request) Chain {
	return &realChain{ctx: ctx, interceptors: interceptors, index: 0, request: req}
}

func (c *realChain) Context() context.Context { return c.ctx }
func (c *realChain) Request() *model.Request  { return c.request }

func (c *realChain) Proceed(req *model.Request) (*model.Response, error) {
	if c.index >= len(c.interceptors) {
		panic("interceptor chain exhausted without a terminal interceptor")
	}
	next := &realChain{
		ctx:          c.ctx,
		interceptors: c.interceptors,
		index:        c.index + 1,
		request:      req,
	}
	return c.interceptors[c.index].Intercept(next)
}
