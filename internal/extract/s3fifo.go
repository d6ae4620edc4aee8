// S3-FIFO eviction layer for the extraction cache.
//
// s3fifo keeps a bounded hot set of extraction results in memory in front
// of the bbolt store and deletes what it evicts from disk, so neither the
// process footprint nor the database grows without bound. The policy
// ("Simple, Scalable, FIFO-based cache eviction", Yang et al., 2023) uses
// two FIFO queues plus a ghost set:
//
//   - S (~10% of capacity) takes all new keys on probation.
//   - M (the rest) holds keys promoted out of S after at least one hit.
//   - G remembers keys recently evicted from S in a bounded ring; a key
//     seen in G on insert skips S and goes straight to M.
//
// Each resident entry carries a saturating hit counter (max 3), bumped on
// Get and reset on promotion. Evicting from S promotes counted entries to
// M and fully drops the rest (memory, ghost ring, backing store). Evicting
// from M drops the entry without touching G.
//
// A single mutex guards the in-memory state. Backing-store deletions run
// on their own goroutines so evictions never wait on bbolt; bbolt carries
// its own locking for the read and write paths.

package extract

import (
	"container/list"
	"sync"

	"github.com/veilkit/veil/internal/logger"
)

type s3fifoEntry struct {
	value string
	freq  uint8
	elem  *list.Element
	inM   bool
}

type s3fifo struct {
	mu sync.Mutex

	capacity int
	sTarget  int
	ghostCap int

	entries map[string]*s3fifoEntry

	// FIFO queues; element values are string keys.
	sQueue *list.List
	mQueue *list.List

	// Ghost ring with O(1) membership.
	ghostBuf   []string
	ghostSet   map[string]struct{}
	ghostHead  int
	ghostCount int

	backing Store
}

// newS3FIFO fronts backing with an S3-FIFO layer bounded to capacity
// resident items. Capacities below 2 are clamped to 2.
func newS3FIFO(backing Store, capacity int, log *logger.Logger) Store {
	if capacity < 2 {
		capacity = 2
	}
	sTarget := capacity / 10
	if sTarget < 1 {
		sTarget = 1
	}
	ghostCap := 2 * sTarget
	if ghostCap < 4 {
		ghostCap = 4
	}
	if log != nil {
		log.Debugf("CACHE", "S3-FIFO layer capacity=%d sTarget=%d ghostCap=%d", capacity, sTarget, ghostCap)
	}
	return &s3fifo{
		capacity: capacity,
		sTarget:  sTarget,
		ghostCap: ghostCap,
		entries:  make(map[string]*s3fifoEntry, capacity),
		sQueue:   list.New(),
		mQueue:   list.New(),
		ghostBuf: make([]string, ghostCap),
		ghostSet: make(map[string]struct{}, ghostCap),
		backing:  backing,
	}
}

// Get serves memory hits with a frequency bump. Misses fall back to the
// backing store and re-warm the hot set.
func (c *s3fifo) Get(key string) (string, bool) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if e.freq < 3 {
			e.freq++
		}
		v := e.value
		c.mu.Unlock()
		return v, true
	}
	c.mu.Unlock()

	value, ok := c.backing.Get(key)
	if !ok {
		return "", false
	}
	c.insert(key, value)
	return value, true
}

// Set stores the entry in memory and in the backing store. An existing
// key keeps its queue position; only the value changes.
func (c *s3fifo) Set(key, value string) {
	c.insert(key, value)
	c.backing.Set(key, value)
}

// Delete removes key from memory and the backing store.
func (c *s3fifo) Delete(key string) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if e.inM {
			c.mQueue.Remove(e.elem)
		} else {
			c.sQueue.Remove(e.elem)
		}
		delete(c.entries, key)
	}
	c.mu.Unlock()
	c.backing.Delete(key)
}

func (c *s3fifo) Close() error { return c.backing.Close() }

func (c *s3fifo) insert(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		return
	}

	inM := c.ghostContains(key)
	var elem *list.Element
	if inM {
		elem = c.mQueue.PushBack(key)
	} else {
		elem = c.sQueue.PushBack(key)
	}
	c.entries[key] = &s3fifoEntry{value: value, elem: elem, inM: inM}

	for c.sQueue.Len()+c.mQueue.Len() > c.capacity {
		c.evictOne()
	}
}

// evictOne removes one entry per the S3-FIFO policy. Caller holds c.mu.
func (c *s3fifo) evictOne() {
	if c.sQueue.Len() > 0 {
		c.evictFromS()
		return
	}
	c.evictFromM()
}

func (c *s3fifo) evictFromS() {
	front := c.sQueue.Front()
	if front == nil {
		return
	}
	key := front.Value.(string)
	c.sQueue.Remove(front)

	e, ok := c.entries[key]
	if !ok {
		return
	}

	if e.freq > 0 {
		e.freq = 0
		e.inM = true
		e.elem = c.mQueue.PushBack(key)
		if c.mQueue.Len() > c.capacity-c.sTarget {
			c.evictFromM()
		}
		return
	}

	delete(c.entries, key)
	c.ghostAdd(key)
	go c.backing.Delete(key)
}

func (c *s3fifo) evictFromM() {
	front := c.mQueue.Front()
	if front == nil {
		return
	}
	key := front.Value.(string)
	c.mQueue.Remove(front)
	delete(c.entries, key)
	go c.backing.Delete(key)
}

// ghostContains and ghostAdd manage the bounded ghost ring. Caller holds c.mu.
func (c *s3fifo) ghostContains(key string) bool {
	_, ok := c.ghostSet[key]
	return ok
}

func (c *s3fifo) ghostAdd(key string) {
	if _, exists := c.ghostSet[key]; exists {
		return
	}
	if c.ghostCount == c.ghostCap {
		oldest := c.ghostBuf[c.ghostHead]
		delete(c.ghostSet, oldest)
		c.ghostHead = (c.ghostHead + 1) % c.ghostCap
		c.ghostCount--
	}
	writeIdx := (c.ghostHead + c.ghostCount) % c.ghostCap
	c.ghostBuf[writeIdx] = key
	c.ghostSet[key] = struct{}{}
	c.ghostCount++
}
