package model

import (
	"bytes"
	"io"
)

// BytesRequestBody is a RequestBody backed by an in-memory buffer, used for
// small bodies and for internal bodies the engine constructs itself
// (CONNECT tunnels, cache conditional requests carry none). It is freely
// replayable: every Reader call starts over from the first byte.
type BytesRequestBody struct {
	Data []byte
	Type string
}

func (b BytesRequestBody) ContentLength() int64 { return int64(len(b.Data)) }
func (b BytesRequestBody) ContentType() string  { return b.Type }
func (b BytesRequestBody) Reader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}
func (b BytesRequestBody) IsOneShot() bool { return false }
func (b BytesRequestBody) IsDuplex() bool  { return false }

// ReaderRequestBody streams a caller-supplied reader exactly once. Length
// is -1 when unknown, which forces chunked framing. Because the underlying
// reader cannot be rewound, the body is one-shot and its request is never
// retried or replayed through a redirect.
type ReaderRequestBody struct {
	R      io.Reader
	Length int64
	Type   string
	Duplex bool
}

func (b ReaderRequestBody) ContentLength() int64 { return b.Length }
func (b ReaderRequestBody) ContentType() string  { return b.Type }
func (b ReaderRequestBody) Reader() (io.ReadCloser, error) {
	if rc, ok := b.R.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(b.R), nil
}
func (b ReaderRequestBody) IsOneShot() bool { return true }
func (b ReaderRequestBody) IsDuplex() bool  { return b.Duplex }

// BytesResponseBody is a ResponseBody backed by an in-memory buffer.
type BytesResponseBody struct {
	Data []byte
	r    *bytes.Reader
}

func NewBytesResponseBody(data []byte) *BytesResponseBody {
	return &BytesResponseBody{Data: data, r: bytes.NewReader(data)}
}

func (b *BytesResponseBody) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *BytesResponseBody) Close() error               { return nil }
func (b *BytesResponseBody) ContentLength() int64       { return int64(len(b.Data)) }

// StreamResponseBody wraps a codec-provided io.ReadCloser with a known or
// unknown (-1) content length.
type StreamResponseBody struct {
	io.ReadCloser
	Length int64
}

func (s *StreamResponseBody) ContentLength() int64 { return s.Length }
