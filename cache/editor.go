package cache

import (
	"io"
	"os"
	"path/filepath"

	"github.com/WhileEndless/httpcore/internal/errors"
	"github.com/WhileEndless/httpcore/internal/spool"
)

// Editor stages a new metadata/body pair for key until Commit or Abort is
// called; at most one Editor may be open per key at a time.
type Editor struct {
	cache   *Cache
	key     string
	buffers [2]*spool.Buffer
	done    bool
}

func newEditor(c *Cache, key string) *Editor {
	return &Editor{
		cache:   c,
		key:     key,
		buffers: [2]*spool.Buffer{spool.New(0), spool.New(0)},
	}
}

// MetadataWriter returns the writer for the entry's metadata stream.
func (e *Editor) MetadataWriter() io.Writer { return e.buffers[0] }

// BodyWriter returns the writer for the entry's body stream.
func (e *Editor) BodyWriter() io.Writer { return e.buffers[1] }

// Abort discards the staged value without committing it to the cache.
func (e *Editor) Abort() error {
	return e.finish(false)
}

// Commit persists the staged metadata/body pair, making it visible to
// subsequent Gets, and runs LRU eviction if the cache now exceeds maxSize.
func (e *Editor) Commit() error {
	return e.finish(true)
}

func (e *Editor) finish(commit bool) error {
	if e.done {
		return errors.NewValidationError("editor already closed")
	}
	e.done = true
	return e.cache.finishEdit(e, commit)
}

// persist moves the staged buffers to their final on-disk names, returning
// the committed sizes.
func (e *Editor) persist(dir string) ([2]int64, error) {
	var sizes [2]int64
	for i, buf := range e.buffers {
		target := filepath.Join(dir, entryFileName(e.key, i))
		size := buf.Size()
		if buf.IsSpilled() {
			if err := os.Rename(buf.Path(), target); err != nil {
				return sizes, errors.NewCacheError("persist spilled cache value", err)
			}
		} else {
			if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
				return sizes, errors.NewCacheError("persist cache value", err)
			}
			buf.Close()
		}
		sizes[i] = size
	}
	return sizes, nil
}

func (e *Editor) discard() {
	for _, buf := range e.buffers {
		buf.Close()
	}
}

func entryFileName(key string, index int) string {
	suffix := ".0"
	if index == 1 {
		suffix = ".1"
	}
	return key + suffix
}
