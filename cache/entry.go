package cache

import "container/list"

// entry is the in-memory record for one cache key. Its position in
// the owning Cache's lru list.List reflects access recency.
type entry struct {
	key       string
	sizes     [2]int64
	lru       *list.Element
	readers   int     // open Snapshots; an entry with readers>0 can't be removed from disk yet
	editor    *Editor // non-nil while a write is in flight
	pendingRM bool    // Remove was requested while readers/editor were active
}

func newEntry(key string) *entry {
	return &entry{key: key}
}

func (e *entry) totalSize() int64 { return e.sizes[0] + e.sizes[1] }
