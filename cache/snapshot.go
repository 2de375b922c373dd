package cache

import (
	"io"
	"os"
)

// Snapshot is a committed entry's metadata+body streams as of the moment
// Get returned it. A snapshot holds open file handles and must be closed.
type Snapshot struct {
	cache *Cache
	key   string
	sizes [2]int64

	metadata *os.File
	body     *os.File
	closed   bool
}

// Metadata returns the snapshot's metadata stream.
func (s *Snapshot) Metadata() io.Reader { return s.metadata }

// Body returns the snapshot's body stream.
func (s *Snapshot) Body() io.Reader { return s.body }

// MetadataSize returns the size in bytes of the metadata stream at commit time.
func (s *Snapshot) MetadataSize() int64 { return s.sizes[0] }

// BodySize returns the size in bytes of the body stream at commit time.
func (s *Snapshot) BodySize() int64 { return s.sizes[1] }

// Edit opens an editor for the same key, for revalidation writes that
// replace this snapshot's content.
func (s *Snapshot) Edit() (*Editor, error) { return s.cache.Edit(s.key) }

// Close releases the snapshot's file handles. Idempotent.
func (s *Snapshot) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err1 := s.metadata.Close()
	err2 := s.body.Close()
	s.cache.releaseSnapshot(s.key)
	if err1 != nil {
		return err1
	}
	return err2
}
