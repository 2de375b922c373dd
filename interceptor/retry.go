package interceptor

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/WhileEndless/httpcore/internal/errors"
	"github.com/WhileEndless/httpcore/internal/model"
	"github.com/WhileEndless/httpcore/internal/wire"
)

// Authenticator responds to a 401/407 challenge by producing a follow-up
// request carrying credentials, or declines by returning ok=false.
type Authenticator func(resp *model.Response) (req *model.Request, ok bool)

// RetryAndFollowUp is the outermost interceptor: it retries IO/handshake
// failures across routes (the actual route exhaustion lives in the
// connect interceptor; this layer retries the whole exchange once more
// when the failure is retryable) and follows HTTP redirects and auth
// challenges.
type RetryAndFollowUp struct {
	MaxFollowUps      int
	MaxRetries        int
	ResponseAuth      Authenticator
	ProxyAuth         Authenticator
}

func NewRetryAndFollowUp() *RetryAndFollowUp {
	return &RetryAndFollowUp{MaxFollowUps: 20, MaxRetries: 1}
}

func (r *RetryAndFollowUp) Intercept(chain Chain) (*model.Response, error) {
	req := chain.Request()
	var priorResponse *model.Response
	var lastErr *errors.Error

	for followUps := 0; ; followUps++ {
		if followUps > r.MaxFollowUps {
			return nil, errors.NewProtocolError("too many follow-up requests", nil)
		}

		resp, err := r.attempt(chain, req)
		if err != nil {
			var e *errors.Error
			if !asEngineError(err, &e) {
				return nil, err
			}
			if lastErr != nil {
				lastErr.AddSuppressed(e)
				e = lastErr
			}
			if errors.IsRetryable(err) && bodyReplayable(req) {
				lastErr = e
				continue
			}
			return nil, e
		}
		lastErr = nil
		resp.PriorResponse = priorResponse

		next, ok := r.followUp(req, resp)
		if !ok {
			return resp, nil
		}
		// Release the superseded response's connection slot before the
		// follow-up runs; its head lives on as PriorResponse, body-less.
		if resp.Body != nil {
			resp.Body.Close()
			resp.Body = nil
		}
		priorResponse = resp
		req = next
	}
}

// attempt retries a single exchange across transient IO/handshake failures,
// waiting an exponentially growing interval between attempts so a flaky
// route or a momentarily overloaded server isn't hammered.
func (r *RetryAndFollowUp) attempt(chain Chain, req *model.Request) (*model.Response, error) {
	bo := newRetryBackOff()
	var lastErr error
	for i := 0; i <= r.MaxRetries; i++ {
		resp, err := chain.Proceed(req)
		if err == nil {
			return resp, nil
		}
		if !errors.IsRetryable(err) || !bodyReplayable(req) {
			return nil, err
		}
		lastErr = err
		if i < r.MaxRetries {
			if werr := waitBackOff(chain.Context(), bo); werr != nil {
				return nil, lastErr
			}
		}
	}
	return nil, lastErr
}

func newRetryBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0 // bounded by MaxRetries, not elapsed time
	return b
}

func waitBackOff(ctx context.Context, bo backoff.BackOff) error {
	d := bo.NextBackOff()
	if d == backoff.Stop {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// bodyReplayable reports whether req's body may be streamed again on a
// retry or follow-up: absent bodies always are, one-shot and duplex bodies
// never are.
func bodyReplayable(req *model.Request) bool {
	if req.Body == nil {
		return true
	}
	return !req.Body.IsOneShot() && !req.Body.IsDuplex()
}

// repeatedChallenge walks the prior-response chain looking for an earlier
// 401/407 carrying the identical challenge. An authenticator must not
// loop: the second identical challenge terminates the follow-ups.
func repeatedChallenge(resp *model.Response) bool {
	header := "WWW-Authenticate"
	if resp.Code == 407 {
		header = "Proxy-Authenticate"
	}
	challenge := strings.Join(resp.Headers.Values(header), ", ")
	for prior := resp.PriorResponse; prior != nil; prior = prior.PriorResponse {
		if prior.Code == resp.Code && strings.Join(prior.Headers.Values(header), ", ") == challenge {
			return true
		}
	}
	return false
}

// followUp returns the next request to issue (a redirect target or an
// authenticated retry) and whether one applies at all.
func (r *RetryAndFollowUp) followUp(req *model.Request, resp *model.Response) (*model.Request, bool) {
	switch resp.Code {
	case 401:
		if r.ResponseAuth == nil || repeatedChallenge(resp) {
			return nil, false
		}
		return r.ResponseAuth(resp)
	case 407:
		if r.ProxyAuth == nil || repeatedChallenge(resp) {
			return nil, false
		}
		return r.ProxyAuth(resp)
	}
	if !resp.IsRedirect() {
		return nil, false
	}
	location := resp.Headers.Get("Location")
	if location == "" {
		return nil, false
	}
	target, err := wire.ParseURL(location)
	if err != nil {
		// relative Location: resolve against the request URL's origin.
		target = resolveRelative(req.URL, location)
		if target == nil {
			return nil, false
		}
	}

	method := req.Method
	body := req.Body
	if resp.Code == 303 || ((resp.Code == 301 || resp.Code == 302) && method == "POST") {
		method = "GET"
		body = nil
	}
	if body != nil && (body.IsOneShot() || body.IsDuplex()) {
		// The redirect target would need the body streamed again, which a
		// one-shot or duplex body cannot do.
		return nil, false
	}

	headers := req.Headers.Clone()
	if req.URL.IsCrossHost(target) {
		headers.RemoveAll("Authorization")
	}
	next := &model.Request{Method: method, URL: target, Headers: headers, Body: body, Tag: req.Tag}
	return next, true
}

func resolveRelative(base *wire.URL, ref string) *wire.URL {
	abs := base.Scheme + "://" + base.Host
	if !base.IsDefaultPort() {
		abs += ":" + strconv.Itoa(base.Port)
	}
	if len(ref) == 0 || ref[0] != '/' {
		abs += "/"
	}
	abs += ref
	u, err := wire.ParseURL(abs)
	if err != nil {
		return nil
	}
	return u
}

func asEngineError(err error, target **errors.Error) bool {
	e, ok := err.(*errors.Error)
	if ok {
		*target = e
	}
	return ok
}
