// Persistent extraction cache.
//
// Extraction is the slowest stage of the pipeline, so converted markdown
// is cached across runs keyed by the sha256 of the source file's bytes.
// Two stores back the cache: an in-memory map for tests and cache-less
// configurations, and an embedded bbolt database for production. The
// bbolt store is always fronted by the S3-FIFO layer in s3fifo.go, which
// bounds both the in-memory footprint and the on-disk item count.

package extract

import (
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/veilkit/veil/internal/logger"
)

// Store is the key-value layer under the extraction cache. All
// implementations must be safe for concurrent use.
type Store interface {
	Get(key string) (value string, ok bool)
	Set(key, value string)
	Delete(key string)
	Close() error
}

// Cache is the extraction result cache: content hash of the source file
// to extracted markdown.
type Cache struct {
	store Store
}

// NewCache opens the cache. An empty path yields a memory-only cache;
// otherwise a bbolt database at path is opened and fronted by an S3-FIFO
// eviction layer bounded to capacity items.
func NewCache(path string, capacity int, log *logger.Logger) (*Cache, error) {
	if log == nil {
		log = logger.New("EXTRACT", "info")
	}
	if path == "" {
		return &Cache{store: newMemoryStore()}, nil
	}
	bs, err := newBoltStore(path)
	if err != nil {
		return nil, err
	}
	log.Infof("CACHE", "extraction cache opened at %s (capacity %d)", path, capacity)
	return &Cache{store: newS3FIFO(bs, capacity, log)}, nil
}

// Get returns the cached markdown for key.
func (c *Cache) Get(key string) (string, bool) { return c.store.Get(key) }

// Set stores markdown under key, overwriting any existing entry.
func (c *Cache) Set(key, markdown string) { c.store.Set(key, markdown) }

// Close releases the underlying store.
func (c *Cache) Close() error { return c.store.Close() }

// --- memoryStore ----------------------------------------------------------

type memoryStore struct {
	mu    sync.RWMutex
	items map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: make(map[string]string)}
}

func (s *memoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()
	return v, ok
}

func (s *memoryStore) Set(key, value string) {
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
}

func (s *memoryStore) Delete(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

func (s *memoryStore) Close() error { return nil }

// --- boltStore ------------------------------------------------------------

const boltBucket = "extract_cache"

// boltStore persists entries in an embedded bbolt database so extraction
// results survive process restarts.
type boltStore struct {
	db *bolt.DB
}

func newBoltStore(path string) (*boltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open extraction cache %q: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache bucket: %w", err)
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Get(key string) (string, bool) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			value = string(v)
		}
		return nil
	})
	if err != nil {
		return "", false
	}
	return value, value != ""
}

func (s *boltStore) Set(key, value string) {
	_ = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if b == nil {
			return fmt.Errorf("bucket %q not found", boltBucket)
		}
		return b.Put([]byte(key), []byte(value))
	})
}

func (s *boltStore) Delete(key string) {
	_ = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

func (s *boltStore) Close() error { return s.db.Close() }
