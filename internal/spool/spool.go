// Package spool provides memory-efficient staging storage that spills to
// disk once a value exceeds a threshold, used by the cache editor to
// accumulate a metadata/body pair before it is committed under the
// journal's lock.
package spool

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/WhileEndless/httpcore/internal/errors"
)

// DefaultMemoryLimit is the default memory threshold before spilling to disk.
const DefaultMemoryLimit = 4 * 1024 * 1024 // 4MB

// Buffer stores data either in memory or spooled to a temporary file once
// it exceeds the configured threshold.
type Buffer struct {
	buf    bytes.Buffer
	file   *os.File
	path   string
	size   int64
	limit  int64
	mu     sync.Mutex
	closed bool
}

// New creates a new Buffer with the provided memory limit.
func New(limit int64) *Buffer {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &Buffer{limit: limit}
}

// Write stores the provided bytes, spilling to disk once above the
// configured memory threshold.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, errors.NewIOError("spool buffer is closed", nil)
	}

	b.size += int64(len(p))

	if b.file == nil && int64(b.buf.Len()+len(p)) <= b.limit {
		return b.buf.Write(p)
	}

	if b.file == nil {
		tmp, err := os.CreateTemp("", "httpcore-cache-*.tmp")
		if err != nil {
			return 0, errors.NewIOError("creating spool temp file", err)
		}
		b.file = tmp
		b.path = tmp.Name()

		if b.buf.Len() > 0 {
			if _, err := tmp.Write(b.buf.Bytes()); err != nil {
				b.closeLocked()
				return 0, errors.NewIOError("writing spool temp file", err)
			}
		}
		b.buf.Reset()
	}

	n, err := b.file.Write(p)
	if err != nil {
		return n, errors.NewIOError("writing spool temp file", err)
	}
	return n, nil
}

// Bytes returns the in-memory data; empty if the value spilled to disk.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file != nil {
		return nil
	}
	return b.buf.Bytes()
}

// Path returns the filesystem path backing a spilled value, or "" if the
// value never left memory.
func (b *Buffer) Path() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.path
}

// Size returns the total number of bytes written so far.
func (b *Buffer) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// IsSpilled reports whether the buffer has spilled to disk.
func (b *Buffer) IsSpilled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file != nil
}

// Reader returns a fresh reader over the stored data.
func (b *Buffer) Reader() (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.NewIOError("spool buffer is closed", nil)
	}
	if b.file != nil {
		if err := b.file.Sync(); err != nil {
			return nil, errors.NewIOError("syncing spool temp file", err)
		}
		f, err := os.Open(b.path)
		if err != nil {
			return nil, errors.NewIOError("opening spool temp file", err)
		}
		return f, nil
	}
	return io.NopCloser(bytes.NewReader(b.buf.Bytes())), nil
}

// Close releases the buffer, removing any spilled temp file. Idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *Buffer) closeLocked() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.file != nil {
		err := b.file.Close()
		if removeErr := os.Remove(b.path); removeErr != nil && err == nil {
			err = errors.NewIOError("removing spool temp file", removeErr)
		}
		b.file = nil
		b.path = ""
		if err != nil {
			return errors.NewIOError("closing spool temp file", err)
		}
	}
	return nil
}
