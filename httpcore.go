// Package httpcore is the engine's public entry point: a Client built
// once and shared across calls, each Call executed synchronously via
// Execute or asynchronously via Enqueue, routed through the interceptor
// chain.
package httpcore

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/WhileEndless/httpcore/cache"
	"github.com/WhileEndless/httpcore/cookiejar"
	"github.com/WhileEndless/httpcore/internal/errors"
	"github.com/WhileEndless/httpcore/internal/logging"
	"github.com/WhileEndless/httpcore/internal/model"
	"github.com/WhileEndless/httpcore/internal/pool"
	"github.com/WhileEndless/httpcore/internal/route"
	"github.com/WhileEndless/httpcore/internal/timing"
	"github.com/WhileEndless/httpcore/internal/wire"
	"github.com/WhileEndless/httpcore/interceptor"
	"github.com/WhileEndless/httpcore/listener"
	"github.com/WhileEndless/httpcore/pkg/constants"
	"github.com/WhileEndless/httpcore/pkg/tlsconfig"
	"github.com/WhileEndless/httpcore/scheduler"
)

// Request is the caller-facing request value; Do/Execute convert it to
// the engine's internal model.Request at the edge so nothing outside
// this package needs to import internal/model.
type Request struct {
	Method  string
	URL     string
	Headers map[string][]string
	Body    model.RequestBody
	Tag     any
}

// Response is the caller-facing response value.
type Response struct {
	Code     int
	Message  string
	Headers  map[string][]string
	Body     model.ResponseBody
	Protocol string
	Sent     time.Time
	Received time.Time
	Timings  timing.Metrics
}

func (r *Response) Close() error {
	if r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// Client is immutable once built; every exported method is safe to call
// concurrently from multiple goroutines.
type Client struct {
	interceptors []interceptor.Interceptor
	network      *interceptor.Network
	dialer       *interceptor.Dialer
	pool         *pool.Pool
	db           *route.Database
	cacheStore   *cache.Cache
	jar          cookiejar.Jar
	sched        *scheduler.Scheduler
	lis          listener.Listener
	log          *logrus.Logger
	tlsConfig    *tls.Config
	explicitTLS  bool
	proxy        route.ProxySelector
}

// Builder assembles a Client: every knob defaults sanely so
// NewBuilder().Build() alone is a usable client.
type Builder struct {
	connTimeout      time.Duration
	pingInterval     time.Duration
	poolConfig       pool.Config
	cacheDir         string
	cacheMaxSize     int64
	jar              cookiejar.Jar
	lis              listener.Listener
	log              *logrus.Logger
	tlsMinVersion    uint16
	tlsMaxVersion    uint16
	insecureTLS      bool
	proxy            route.ProxySelector
	responseAuth     interceptor.Authenticator
	proxyAuth        interceptor.Authenticator
	maxFollowUps     int
	maxRetries       int
	schedulerWorkers int
}

// NewBuilder returns a Builder with the engine's documented defaults
//.
func NewBuilder() *Builder {
	return &Builder{
		connTimeout:      constants.DefaultConnTimeout,
		poolConfig:       pool.DefaultConfig(),
		maxFollowUps:     constants.MaxFollowUps,
		maxRetries:       1,
		schedulerWorkers: 4,
	}
}

func (b *Builder) ConnTimeout(d time.Duration) *Builder { b.connTimeout = d; return b }

// PingInterval enables the HTTP/2 keepalive probe: a PING every d, and a
// missing ACK by the next interval fails the connection. Zero (the
// default) disables pinging; constants.DefaultPingInterval is a reasonable
// value for long-lived clients.
func (b *Builder) PingInterval(d time.Duration) *Builder { b.pingInterval = d; return b }

func (b *Builder) ConnectionPool(cfg pool.Config) *Builder { b.poolConfig = cfg; return b }

// Cache enables the on-disk HTTP cache at dir, bounded by maxSize bytes.
func (b *Builder) Cache(dir string, maxSize int64) *Builder {
	b.cacheDir, b.cacheMaxSize = dir, maxSize
	return b
}

// CookieJar installs a cookiejar.Jar; a fresh cookiejar.NewMemoryJar() is
// a reasonable default for callers that don't need persistence.
func (b *Builder) CookieJar(j cookiejar.Jar) *Builder { b.jar = j; return b }

func (b *Builder) Listener(l listener.Listener) *Builder { b.lis = l; return b }

func (b *Builder) Logger(l *logrus.Logger) *Builder { b.log = l; return b }

// TLSVersions bounds the negotiated TLS version range.
func (b *Builder) TLSVersions(min, max uint16) *Builder {
	b.tlsMinVersion, b.tlsMaxVersion = min, max
	return b
}

func (b *Builder) InsecureSkipVerify(insecure bool) *Builder { b.insecureTLS = insecure; return b }

func (b *Builder) ProxySelector(p route.ProxySelector) *Builder { b.proxy = p; return b }

// ResponseAuthenticator handles 401 challenges.
func (b *Builder) ResponseAuthenticator(a interceptor.Authenticator) *Builder {
	b.responseAuth = a
	return b
}

// ProxyAuthenticator handles 407 challenges.
func (b *Builder) ProxyAuthenticator(a interceptor.Authenticator) *Builder {
	b.proxyAuth = a
	return b
}

func (b *Builder) MaxFollowUps(n int) *Builder { b.maxFollowUps = n; return b }
func (b *Builder) MaxRetries(n int) *Builder   { b.maxRetries = n; return b }

// Build assembles the Client, wiring the interceptor chain in its fixed
// order: RetryAndFollowUp, Bridge, Cookies, Cache (only when a cache
// directory is configured), Network.
func (b *Builder) Build() *Client {
	log := b.log
	if log == nil {
		log = logging.NewDefault()
	}
	lis := b.lis
	if lis == nil {
		lis = listener.NoopListener{}
	}
	lis = listener.Guard(lis)

	tlsCfg := &tls.Config{InsecureSkipVerify: b.insecureTLS}
	explicitTLS := b.tlsMinVersion != 0 || b.tlsMaxVersion != 0
	if explicitTLS {
		tlsconfig.SpecFor(b.tlsMinVersion, b.tlsMaxVersion).Apply(tlsCfg)
	}

	p := pool.New(b.poolConfig)
	db := route.NewDatabase()
	dialer := interceptor.NewDialer(p, db, b.connTimeout)
	dialer.PingInterval = b.pingInterval
	dialer.Listener = lis

	var cacheStore *cache.Cache
	if b.cacheDir != "" {
		store, err := cache.Open(b.cacheDir, b.cacheMaxSize)
		if err != nil {
			log.WithError(err).Warn("disk cache unavailable, continuing without it")
		} else {
			cacheStore = store
		}
	}

	jar := b.jar
	if jar == nil {
		jar = cookiejar.NewMemoryJar()
	}

	c := &Client{
		pool:       p,
		dialer:     dialer,
		db:         db,
		cacheStore: cacheStore,
		jar:        jar,
		sched:      scheduler.New(clockwork.NewRealClock(), b.schedulerWorkers),
		lis:         lis,
		log:         log,
		tlsConfig:   tlsCfg,
		explicitTLS: explicitTLS,
		proxy:       b.proxy,
	}

	network := &interceptor.Network{
		Dialer:      dialer,
		ResolveAddr: c.resolveAddress,
		Listener:    lis,
		Log:         log,
	}
	c.network = network

	retry := &interceptor.RetryAndFollowUp{
		MaxFollowUps: b.maxFollowUps,
		MaxRetries:   b.maxRetries,
		ResponseAuth: b.responseAuth,
		ProxyAuth:    b.proxyAuth,
	}
	cookies := &interceptor.Cookies{Jar: jar}
	bridge := &interceptor.Bridge{Log: log}

	c.interceptors = []interceptor.Interceptor{retry, bridge, cookies}
	if cacheStore != nil {
		c.interceptors = append(c.interceptors, &interceptor.Cache{Store: cacheStore})
	}
	c.interceptors = append(c.interceptors, network)

	c.startPoolCleanup()
	return c
}

// startPoolCleanup schedules the pool's idle-connection sweep on
// the client's Scheduler, rescheduling itself after each pass so it runs
// for the client's lifetime.
func (c *Client) startPoolCleanup() {
	const interval = constants.CleanupInterval
	var tick func()
	tick = func() {
		c.pool.Cleanup(time.Now())
		c.sched.Schedule(scheduler.Task{Queue: "pool-cleanup", Name: "sweep", Run: tick}, interval)
	}
	c.sched.Schedule(scheduler.Task{Queue: "pool-cleanup", Name: "sweep", Run: tick}, interval)
}

// resolveAddress maps a request's URL to the pool Address that identifies
// which connections may serve it, the engine's default
// AddressResolver.
func (c *Client) resolveAddress(req *model.Request) (*route.Address, error) {
	addr := &route.Address{
		Host:      req.URL.Host,
		Port:      req.URL.Port,
		Protocols: []string{"http/1.1"},
		DNS:       route.SystemResolver{},
	}
	if c.proxy != nil {
		addr.ProxySelector = c.proxy
	}
	if req.URL.Scheme == "https" {
		if c.explicitTLS {
			cfg := c.tlsConfig.Clone()
			cfg.ServerName = req.URL.Host
			addr.TLSSpecs = []*tls.Config{cfg}
		} else {
			// No explicit version bounds: offer the fallback ladder so a
			// failed strict handshake can retry on the permissive rung.
			for _, spec := range tlsconfig.DefaultFallback() {
				cfg := spec.Config(c.tlsConfig)
				cfg.ServerName = req.URL.Host
				addr.TLSSpecs = append(addr.TLSSpecs, cfg)
			}
		}
		addr.Protocols = []string{"h2", "http/1.1"}
	}
	return addr, nil
}

// PreWarm opens connections to the address a GET to rawURL would use until
// the pool holds at least minConcurrency of them, independent of live
// traffic. Excess connections above
// minConcurrency are never force-closed; they simply idle out under the
// pool's normal cleanup.
func (c *Client) PreWarm(ctx context.Context, rawURL string, minConcurrency int) error {
	u, err := wire.ParseURL(rawURL)
	if err != nil {
		return fmt.Errorf("httpcore: invalid URL %q: %w", rawURL, err)
	}
	addr, err := c.resolveAddress(&model.Request{Method: "GET", URL: u, Headers: wire.NewHeaders()})
	if err != nil {
		return err
	}
	policy := pool.AddressPolicy{Address: addr, MinimumConcurrency: minConcurrency}
	return c.pool.Warm(ctx, policy, func(ctx context.Context, addr *route.Address) (pool.Connection, error) {
		return c.dialer.DialNew(ctx, addr)
	})
}

// Call represents one in-flight or completed request/response exchange
//: Execute runs it synchronously, Enqueue runs it on a goroutine and
// reports through a callback, and Cancel is safe to call from any
// goroutine, any number of times.
type Call struct {
	client   *Client
	request  *model.Request
	mu       sync.Mutex
	canceled bool
	executed bool
	cancel   context.CancelFunc
}

// NewCall builds a Call for req without starting it.
func (c *Client) NewCall(req *Request) (*Call, error) {
	internalReq, err := toInternalRequest(req)
	if err != nil {
		return nil, err
	}
	return &Call{client: c, request: internalReq}, nil
}

// Cancel aborts the call if it hasn't finished yet. Idempotent.
func (call *Call) Cancel() {
	call.mu.Lock()
	defer call.mu.Unlock()
	if call.canceled {
		return
	}
	call.canceled = true
	if call.cancel != nil {
		call.cancel()
	}
}

// Execute runs the call synchronously on the calling goroutine.
func (call *Call) Execute(ctx context.Context) (*Response, error) {
	call.mu.Lock()
	if call.executed {
		call.mu.Unlock()
		return nil, errors.NewValidationError("call already executed")
	}
	call.executed = true
	ctx, cancel := context.WithCancel(ctx)
	call.cancel = cancel
	canceledAlready := call.canceled
	call.mu.Unlock()
	if canceledAlready {
		cancel()
	}
	defer cancel()

	callInfo := listener.CallInfo{Method: call.request.Method, URL: call.request.URL.String()}
	call.client.lis.CallStart(callInfo)

	chain := interceptor.NewChain(ctx, call.client.interceptors, call.request)
	resp, err := chain.Proceed(call.request)
	if err != nil {
		if errors.IsCanceled(err) {
			call.client.lis.Canceled(callInfo)
		}
		call.client.lis.CallFailed(callInfo, err)
		return nil, err
	}
	call.client.lis.CallEnd(callInfo)
	return toPublicResponse(resp), nil
}

// Enqueue runs the call on its own goroutine, invoking done with the
// result once it completes.
func (call *Call) Enqueue(ctx context.Context, done func(*Response, error)) {
	go func() {
		resp, err := call.Execute(ctx)
		done(resp, err)
	}()
}

// Do is a convenience wrapper equivalent to NewCall(req) followed by
// Execute(ctx).
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	call, err := c.NewCall(req)
	if err != nil {
		return nil, err
	}
	return call.Execute(ctx)
}

// Close releases the connection pool, scheduler, and disk cache.
func (c *Client) Close() error {
	c.pool.Close()
	c.sched.Shutdown()
	if c.cacheStore != nil {
		return c.cacheStore.Close()
	}
	return nil
}

func toInternalRequest(req *Request) (*model.Request, error) {
	u, err := wire.ParseURL(req.URL)
	if err != nil {
		return nil, fmt.Errorf("httpcore: invalid URL %q: %w", req.URL, err)
	}
	headers := wire.NewHeaders()
	for name, values := range req.Headers {
		for _, v := range values {
			if err := headers.Add(name, v); err != nil {
				return nil, err
			}
		}
	}
	method := req.Method
	if method == "" {
		method = "GET"
	}
	return &model.Request{Method: method, URL: u, Headers: headers, Body: req.Body, Tag: req.Tag}, nil
}

func toPublicResponse(resp *model.Response) *Response {
	headers := make(map[string][]string, resp.Headers.Len())
	for i := 0; i < resp.Headers.Len(); i++ {
		name := resp.Headers.Name(i)
		headers[name] = append(headers[name], resp.Headers.Value(i))
	}
	return &Response{
		Code:     resp.Code,
		Message:  resp.Message,
		Headers:  headers,
		Body:     resp.Body,
		Protocol: resp.Protocol,
		Sent:     resp.Sent,
		Received: resp.Received,
		Timings:  resp.Timings,
	}
}
