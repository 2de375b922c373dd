// Package cache implements the engine's on-disk, journaled HTTP response
// cache: a content-addressed key space, two streams per
// entry (metadata, body), an append-only journal for crash-safe recovery,
// and LRU eviction bounded by a configured maximum size. The journal
// design mirrors a classic DiskLruCache; freshness/cacheability policy
// (RFC 7234) lives one layer up in interceptor/cache.go, which is the
// only caller that should know about HTTP semantics.
package cache

import (
	"container/list"
	"os"
	"path/filepath"
	"sync"

	"github.com/WhileEndless/httpcore/internal/errors"
)

const valueCount = 2 // metadata, body

// Cache is a single on-disk journaled cache directory.
type Cache struct {
	dir     string
	maxSize int64

	mu      sync.Mutex
	journal *journal
	entries map[string]*entry
	lru     *list.List // most-recently-used at Back
	size    int64
	closed  bool
}

// Open opens (or creates) a cache directory with the given size bound.
func Open(dir string, maxSize int64) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewCacheError("create cache dir", err)
	}
	j, res, err := openJournal(dir, valueCount)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		dir:     dir,
		maxSize: maxSize,
		journal: j,
		entries: make(map[string]*entry),
		lru:     list.New(),
	}

	for key := range res.dirty {
		// An edit was in progress when the cache last closed; its staged
		// files (if any survived under a .tmp name) are orphaned and the
		// entry itself never committed.
		os.Remove(filepath.Join(dir, key+".0"))
		os.Remove(filepath.Join(dir, key+".1"))
	}
	for key, sizes := range res.clean {
		e := newEntry(key)
		e.sizes = sizes
		e.lru = c.lru.PushBack(e)
		c.entries[key] = e
		c.size += e.totalSize()
	}
	return c, nil
}

// Get looks up key, returning a Snapshot of its committed value. The
// caller must Close the Snapshot.
func (c *Cache) Get(key string) (*Snapshot, bool) {
	if !validKey(key) {
		return nil, false
	}
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.editor != nil {
		c.mu.Unlock()
		return nil, false
	}
	c.lru.MoveToBack(e.lru)
	e.readers++
	sizes := e.sizes
	c.journal.writeRead(key)
	c.mu.Unlock()

	meta, err := os.Open(filepath.Join(c.dir, key+".0"))
	if err != nil {
		c.releaseSnapshot(key)
		return nil, false
	}
	body, err := os.Open(filepath.Join(c.dir, key+".1"))
	if err != nil {
		meta.Close()
		c.releaseSnapshot(key)
		return nil, false
	}
	return &Snapshot{cache: c, key: key, sizes: sizes, metadata: meta, body: body}, true
}

// Edit opens a new Editor for key. It fails if an editor for key is
// already open.
func (c *Cache) Edit(key string) (*Editor, error) {
	if !validKey(key) {
		return nil, errors.NewValidationError("cache key out of range")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.NewCacheError("edit", errors.NewValidationError("cache closed"))
	}
	e, ok := c.entries[key]
	if ok && e.editor != nil {
		return nil, errors.NewCacheError("edit", errors.NewValidationError("editor already open for key"))
	}
	if !ok {
		e = newEntry(key)
		e.lru = c.lru.PushBack(e)
		c.entries[key] = e
	}
	ed := newEditor(c, key)
	e.editor = ed
	if err := c.journal.writeDirty(key); err != nil {
		e.editor = nil
		return nil, err
	}
	return ed, nil
}

// Remove deletes key's entry, if present, from the cache.
func (c *Cache) Remove(key string) error {
	if !validKey(key) {
		return nil
	}
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	if e.editor != nil || e.readers > 0 {
		e.pendingRM = true
		c.mu.Unlock()
		return nil
	}
	c.removeEntryLocked(e)
	err := c.journal.writeRemove(key)
	c.mu.Unlock()
	return err
}

func (c *Cache) finishEdit(e *Editor, commit bool) error {
	c.mu.Lock()
	ent, ok := c.entries[e.key]
	if !ok || ent.editor != e {
		c.mu.Unlock()
		e.discard()
		return errors.NewCacheError("commit", errors.NewValidationError("stale editor"))
	}
	ent.editor = nil
	c.mu.Unlock()

	if !commit {
		e.discard()
		c.mu.Lock()
		if ent.readers == 0 && ent.sizes == [2]int64{} {
			c.removeEntryLocked(ent)
		}
		c.mu.Unlock()
		return nil
	}

	sizes, err := e.persist(c.dir)
	if err != nil {
		e.discard()
		return err
	}

	c.mu.Lock()
	c.size += sizes[0] + sizes[1] - ent.totalSize()
	ent.sizes = sizes
	c.lru.MoveToBack(ent.lru)
	jerr := c.journal.writeClean(e.key, sizes)
	c.trimToSizeLocked()
	if c.journal.needsRebuild(len(c.entries)) {
		c.rebuildLocked()
	}
	c.mu.Unlock()
	return jerr
}

func (c *Cache) releaseSnapshot(key string) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		e.readers--
		if e.readers <= 0 && e.pendingRM {
			c.removeEntryLocked(e)
		}
	}
	c.mu.Unlock()
}

// trimToSizeLocked evicts LRU entries until size<=maxSize. Must be called
// with c.mu held.
func (c *Cache) trimToSizeLocked() {
	for c.maxSize > 0 && c.size > c.maxSize {
		front := c.lru.Front()
		if front == nil {
			return
		}
		e := front.Value.(*entry)
		if e.editor != nil || e.readers > 0 {
			// Can't evict something in use; give up rather than spin.
			return
		}
		c.removeEntryLocked(e)
		c.journal.writeRemove(e.key)
	}
}

func (c *Cache) removeEntryLocked(e *entry) {
	delete(c.entries, e.key)
	c.lru.Remove(e.lru)
	c.size -= e.totalSize()
	os.Remove(filepath.Join(c.dir, e.key+".0"))
	os.Remove(filepath.Join(c.dir, e.key+".1"))
}

func (c *Cache) rebuildLocked() {
	res := &replayResult{clean: map[string][2]int64{}, dirty: map[string]bool{}}
	for key, e := range c.entries {
		res.clean[key] = e.sizes
	}
	c.journal.rewrite(res)
}

// UpdateMetadata replaces key's metadata stream in place, for the 304
// revalidation merge path where the body is
// unchanged but headers must be refreshed without re-streaming the body.
func (c *Cache) UpdateMetadata(key string, data []byte) error {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.editor != nil {
		c.mu.Unlock()
		return errors.NewCacheError("update metadata", errors.NewValidationError("no committed entry for key"))
	}
	c.mu.Unlock()

	path := filepath.Join(c.dir, key+".0")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewCacheError("update metadata", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	newSize := int64(len(data))
	c.size += newSize - e.sizes[0]
	e.sizes[0] = newSize
	c.lru.MoveToBack(e.lru)
	return c.journal.writeClean(key, e.sizes)
}

// Size returns the current total size in bytes of all committed entries.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Close flushes and closes the journal. Outstanding Snapshots remain
// usable until they are closed individually.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.journal.close()
}
