package interceptor

import (
	"io"
	"strconv"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"github.com/WhileEndless/httpcore/internal/logging"
	"github.com/WhileEndless/httpcore/internal/model"
)

// Bridge fills in headers an application-level caller shouldn't need to
// set by hand — Host, Content-Length/Transfer-Encoding, a default
// Accept-Encoding: gzip — and transparently decompresses the response
// body when its compression was requested here rather than by the caller.
// The decode table also recognizes brotli for servers that send it anyway.
type Bridge struct {
	Log *logrus.Logger // optional; defaults to logging.NewDefault()
}

func (b Bridge) logger() *logrus.Logger {
	if b.Log == nil {
		return logging.NewDefault()
	}
	return b.Log
}

func (b Bridge) Intercept(chain Chain) (*model.Response, error) {
	req := chain.Request()
	headers := req.Headers.Clone()

	if headers.Get("Host") == "" {
		headers.Set("Host", req.URL.Host)
	}

	transparentEncoding := false
	if req.Body != nil {
		if cl := req.Body.ContentLength(); cl >= 0 {
			headers.Set("Content-Length", strconv.FormatInt(cl, 10))
		} else {
			headers.Set("Transfer-Encoding", "chunked")
		}
		if ct := req.Body.ContentType(); ct != "" && headers.Get("Content-Type") == "" {
			headers.Set("Content-Type", ct)
		}
	}
	if headers.Get("Accept-Encoding") == "" {
		headers.Set("Accept-Encoding", "gzip")
		transparentEncoding = true
	}

	log := b.logger()
	if log.IsLevelEnabled(logrus.DebugLevel) {
		fields := logrus.Fields{"method": req.Method, "url": req.URL.String()}
		for i := 0; i < headers.Len(); i++ {
			fields["header."+headers.Name(i)] = logging.Redact(headers.Name(i), headers.Value(i))
		}
		log.WithFields(fields).Debug("sending request")
	}

	resp, err := chain.Proceed(req.WithHeaders(headers))
	if err != nil {
		return nil, err
	}

	encoding := resp.Headers.Get("Content-Encoding")
	if !transparentEncoding || encoding == "" || resp.Body == nil {
		return resp, nil
	}

	decoded, derr := decompress(encoding, resp.Body)
	if derr != nil {
		return resp, nil // leave the compressed body as-is; decompression is best-effort
	}
	stripped := resp.Headers.Clone()
	stripped.RemoveAll("Content-Encoding")
	stripped.RemoveAll("Content-Length")
	cp := *resp
	cp.Headers = stripped
	cp.Body = &model.StreamResponseBody{ReadCloser: decoded, Length: -1}
	return &cp, nil
}

func decompress(encoding string, body io.ReadCloser) (io.ReadCloser, error) {
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, err
		}
		return readCloserPair{Reader: gz, closer: body}, nil
	case "br":
		return readCloserPair{Reader: brotli.NewReader(body), closer: body}, nil
	default:
		return body, nil
	}
}

// readCloserPair lets a decompressing io.Reader close the underlying
// compressed body it wraps.
type readCloserPair struct {
	io.Reader
	closer io.Closer
}

func (r readCloserPair) Close() error { return r.closer.Close() }
