package interceptor

import (
	"bytes"
	"io"
	"time"

	"github.com/WhileEndless/httpcore/cache"
	"github.com/WhileEndless/httpcore/internal/model"
	"github.com/WhileEndless/httpcore/internal/wire"
)

// cacheableStatuses are the response codes RFC 7234 permits storing even
// without an explicit freshness lifetime.
var cacheableStatuses = map[int]bool{
	200: true, 203: true, 204: true, 300: true, 301: true,
	404: true, 405: true, 410: true, 414: true, 501: true, 308: true,
}

// hopByHop headers are never copied from a 304 response onto a cached
// entry's header set.
var hopByHop = map[string]bool{
	"Connection": true, "Keep-Alive": true, "Proxy-Authenticate": true,
	"Proxy-Authorization": true, "Te": true, "Trailer": true,
	"Transfer-Encoding": true, "Upgrade": true,
}

// Cache serves reads from an on-disk cache.Cache and records cacheable
// responses into it, implementing the RFC 7234 freshness/validation/
// storage rules of RFC 7234. It sits inside Bridge and Cookies in the
// chain, so it sees the fully-prepared request, and inside
// RetryAndFollowUp, so it never retries or follows redirects itself.
type Cache struct {
	Store *cache.Cache
	Now   func() time.Time
}

func (c *Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Cache) Intercept(chain Chain) (*model.Response, error) {
	req := chain.Request()
	if req.Method != "GET" || c.Store == nil {
		return chain.Proceed(req)
	}

	key := cache.Key(req.URL.String())
	reqCC := wire.ParseCacheControl(req.Headers.Values("Cache-Control"), req.Headers.Get("Pragma") == "no-cache")

	snap, hit := c.Store.Get(key)
	var meta *cache.Metadata
	if hit {
		m, err := cache.ReadMetadata(snap.Metadata())
		if err != nil || !variedHeadersMatch(m, req) {
			snap.Close()
			hit = false
		} else {
			meta = m
		}
	}

	if hit && !reqCC.NoCache && isFresh(meta, reqCC, c.now()) {
		return c.servedFromCache(req, meta, snap), nil
	}

	outgoing := req
	if hit {
		outgoing = addValidators(req, meta)
	}

	resp, err := chain.Proceed(outgoing)
	if err != nil {
		if hit {
			snap.Close()
		}
		return nil, err
	}

	if hit && resp.Code == 304 {
		merged := mergeHeaders(meta, resp.Headers)
		meta.Headers = merged
		var buf bytes.Buffer
		if werr := cache.WriteMetadata(&buf, meta); werr == nil {
			c.Store.UpdateMetadata(key, buf.Bytes())
		}
		resp.Body.Close()
		return c.servedFromCache(req, meta, snap), nil
	}
	if hit {
		snap.Close()
	}

	return c.maybeStore(key, req, reqCC, resp), nil
}

func (c *Cache) servedFromCache(req *model.Request, meta *cache.Metadata, snap *cache.Snapshot) *model.Response {
	headers := wire.NewHeaders()
	for _, h := range meta.Headers {
		headers.Add(h.Name, h.Value)
	}
	resp := &model.Response{
		Request:  req,
		Protocol: "http/1.1",
		Code:     meta.StatusCode,
		Message:  meta.StatusMessage,
		Headers:  headers,
		Sent:     time.UnixMilli(meta.SentMillis),
		Received: time.UnixMilli(meta.ReceivedMillis),
	}
	resp.CacheResponse = &model.Response{Code: meta.StatusCode, Headers: headers}
	resp.Body = &snapshotBody{snap: snap, r: snap.Body(), length: snap.BodySize()}
	return resp
}

func (c *Cache) maybeStore(key string, req *model.Request, reqCC *wire.CacheControl, resp *model.Response) *model.Response {
	respCC := wire.ParseCacheControl(resp.Headers.Values("Cache-Control"), false)
	if !isCacheable(req, reqCC, resp, respCC) {
		c.Store.Remove(key)
		return resp
	}

	editor, err := c.Store.Edit(key)
	if err != nil || resp.Body == nil {
		return resp
	}

	meta := buildMetadata(req, resp)
	if err := cache.WriteMetadata(editor.MetadataWriter(), meta); err != nil {
		editor.Abort()
		return resp
	}

	resp.Body = &teeBody{
		ResponseBody: resp.Body,
		w:            editor.BodyWriter(),
		editor:       editor,
	}
	return resp
}

func isCacheable(req *model.Request, reqCC *wire.CacheControl, resp *model.Response, respCC *wire.CacheControl) bool {
	if req.Method != "GET" {
		return false
	}
	if reqCC.NoStore || respCC.NoStore {
		return false
	}
	if !cacheableStatuses[resp.Code] && freshnessLifetime(resp.Headers, respCC, time.Now()) <= 0 {
		return false
	}
	if req.Headers.Get("Authorization") != "" && !(respCC.Public || respCC.MustRevalidate || respCC.SMaxAge >= 0) {
		return false
	}
	return true
}

func variedHeadersMatch(m *cache.Metadata, req *model.Request) bool {
	for name, want := range m.VariedHeaders {
		if req.Headers.Get(name) != want {
			return false
		}
	}
	return true
}

// isFresh implements the RFC 7234 read-path freshness check: currentAge +
// min-fresh <= freshnessLifetime - max-stale.
func isFresh(m *cache.Metadata, reqCC *wire.CacheControl, now time.Time) bool {
	headers := headersFromFields(m.Headers)
	respCC := wire.ParseCacheControl(headers.Values("Cache-Control"), false)
	if respCC.NoCache {
		return false
	}

	dateValue, ok := wire.ParseHTTPDate(headers.Get("Date"))
	if !ok {
		dateValue = time.UnixMilli(m.ReceivedMillis)
	}
	requestTime := time.UnixMilli(m.SentMillis)
	responseTime := time.UnixMilli(m.ReceivedMillis)

	apparentAge := responseTime.Sub(dateValue)
	if apparentAge < 0 {
		apparentAge = 0
	}
	responseDelay := responseTime.Sub(requestTime)
	correctedInitialAge := apparentAge + responseDelay
	residentTime := now.Sub(responseTime)
	currentAge := correctedInitialAge + residentTime

	lifetime := freshnessLifetime(headers, respCC, dateValue)

	maxStale := time.Duration(0)
	if reqCC.MaxStaleBare {
		maxStale = lifetime // "any" staleness: equivalent to no ceiling below lifetime
	} else if reqCC.MaxStale >= 0 {
		maxStale = time.Duration(reqCC.MaxStale) * time.Second
	}
	minFresh := time.Duration(0)
	if reqCC.MinFresh >= 0 {
		minFresh = time.Duration(reqCC.MinFresh) * time.Second
	}
	if reqCC.MaxAge >= 0 {
		if capped := time.Duration(reqCC.MaxAge) * time.Second; capped < lifetime {
			lifetime = capped
		}
	}

	return currentAge+minFresh <= lifetime-maxStale
}

func freshnessLifetime(headers *wire.Headers, cc *wire.CacheControl, date time.Time) time.Duration {
	if cc.MaxAge >= 0 {
		return time.Duration(cc.MaxAge) * time.Second
	}
	if expiresHeader := headers.Get("Expires"); expiresHeader != "" {
		if expires, ok := wire.ParseHTTPDate(expiresHeader); ok {
			return expires.Sub(date)
		}
		return 0
	}
	if lastModifiedHeader := headers.Get("Last-Modified"); lastModifiedHeader != "" {
		if lastModified, ok := wire.ParseHTTPDate(lastModifiedHeader); ok && date.After(lastModified) {
			return date.Sub(lastModified) / 10
		}
	}
	return 0
}

func addValidators(req *model.Request, m *cache.Metadata) *model.Request {
	headers := req.Headers.Clone()
	h := headersFromFields(m.Headers)
	if etag := h.Get("ETag"); etag != "" {
		headers.Set("If-None-Match", etag)
	}
	if lastModified := h.Get("Last-Modified"); lastModified != "" {
		headers.Set("If-Modified-Since", lastModified)
	}
	return req.WithHeaders(headers)
}

func mergeHeaders(m *cache.Metadata, network *wire.Headers) []cache.HeaderField {
	merged := wire.NewHeaders()
	for _, h := range m.Headers {
		merged.Add(h.Name, h.Value)
	}
	for i := 0; i < network.Len(); i++ {
		name := network.Name(i)
		if hopByHop[name] {
			continue
		}
		merged.Set(name, network.Value(i))
	}
	out := make([]cache.HeaderField, 0, merged.Len())
	for i := 0; i < merged.Len(); i++ {
		out = append(out, cache.HeaderField{Name: merged.Name(i), Value: merged.Value(i)})
	}
	return out
}

func buildMetadata(req *model.Request, resp *model.Response) *cache.Metadata {
	m := &cache.Metadata{
		URL:            req.URL.String(),
		Method:         req.Method,
		VariedHeaders:  map[string]string{},
		StatusCode:     resp.Code,
		StatusMessage:  resp.Message,
		SentMillis:     resp.Sent.UnixMilli(),
		ReceivedMillis: resp.Received.UnixMilli(),
	}
	for _, name := range resp.Headers.Vary() {
		m.VariedHeaders[name] = req.Headers.Get(name)
	}
	for i := 0; i < resp.Headers.Len(); i++ {
		m.Headers = append(m.Headers, cache.HeaderField{Name: resp.Headers.Name(i), Value: resp.Headers.Value(i)})
	}
	return m
}

func headersFromFields(fields []cache.HeaderField) *wire.Headers {
	h := wire.NewHeaders()
	for _, f := range fields {
		h.Add(f.Name, f.Value)
	}
	return h
}

// snapshotBody adapts a cache.Snapshot's body stream to model.ResponseBody,
// closing the snapshot (releasing its file handles) when the body closes.
type snapshotBody struct {
	snap   *cache.Snapshot
	r      io.Reader
	length int64
}

func (b *snapshotBody) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *snapshotBody) ContentLength() int64        { return b.length }
func (b *snapshotBody) Close() error                { return b.snap.Close() }

// teeBody copies a live network response body into a cache.Editor as the
// caller reads it, committing on a clean EOF and aborting on any read
// error or early close: only what the caller actually consumed gets cached.
type teeBody struct {
	model.ResponseBody
	w      io.Writer
	editor *cache.Editor
	done   bool
}

func (b *teeBody) Read(p []byte) (int, error) {
	n, err := b.ResponseBody.Read(p)
	if n > 0 {
		if _, werr := b.w.Write(p[:n]); werr != nil && !b.done {
			b.done = true
			b.editor.Abort()
		}
	}
	if err == io.EOF && !b.done {
		b.done = true
		b.editor.Commit()
	}
	return n, err
}

func (b *teeBody) Close() error {
	if !b.done {
		b.done = true
		b.editor.Abort()
	}
	return b.ResponseBody.Close()
}
