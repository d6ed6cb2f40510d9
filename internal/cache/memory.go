package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/readalong/tts"
)

// stamp identifies one version of a record file.
type stamp struct {
	modTime time.Time
	size    int64
}

// memoryCache is an LRU of decoded records keyed by file path. An entry is
// only valid while the file still has the stamp it was read with.
type memoryCache struct {
	capacity int

	mu       sync.Mutex
	items    map[string]*list.Element
	eviction *list.List
	evicted  int64
}

type memoryEntry struct {
	path   string
	result *tts.AlignmentResult
	stamp  stamp
}

func newMemoryCache(capacity int) *memoryCache {
	return &memoryCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
	}
}

// get returns the result cached for path if it was read with st.
func (c *memoryCache) get(path string, st stamp) (*tts.AlignmentResult, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[path]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*memoryEntry)
	if entry.stamp.size != st.size || !entry.stamp.modTime.Equal(st.modTime) {
		c.removeElement(elem)
		return nil, false
	}
	c.eviction.MoveToFront(elem)
	return entry.result, true
}

func (c *memoryCache) put(path string, result *tts.AlignmentResult, st stamp) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[path]; ok {
		c.eviction.MoveToFront(elem)
		entry := elem.Value.(*memoryEntry)
		entry.result, entry.stamp = result, st
		return
	}
	for c.eviction.Len() >= c.capacity && c.eviction.Len() > 0 {
		c.removeElement(c.eviction.Back())
		c.evicted++
	}
	c.items[path] = c.eviction.PushFront(&memoryEntry{path: path, result: result, stamp: st})
}

func (c *memoryCache) delete(path string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[path]; ok {
		c.removeElement(elem)
	}
}

// deletePrefix drops every entry whose path starts with prefix.
func (c *memoryCache) deletePrefix(prefix string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for path, elem := range c.items {
		if strings.HasPrefix(path, prefix) {
			c.removeElement(elem)
		}
	}
}

func (c *memoryCache) clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.eviction.Init()
}

func (c *memoryCache) len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// removeElement must be called with the lock held.
func (c *memoryCache) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	delete(c.items, elem.Value.(*memoryEntry).path)
}
