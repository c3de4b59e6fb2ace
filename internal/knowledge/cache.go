package knowledge

import "sync/atomic"

// Cache is the read-replica snapshot of lessons used by the in-memory
// search tier and for resolving hits when the remote store is down.
//
// The snapshot is replaced wholesale, never mutated in place: readers
// hold the slice they loaded and can never observe a half-refreshed
// view. When a durable backend is configured the cache is not the
// source of truth; without one, it is the only store.
type Cache struct {
	lessons atomic.Pointer[[]Lesson]
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	c := &Cache{}
	empty := make([]Lesson, 0)
	c.lessons.Store(&empty)
	return c
}

// All returns the current snapshot. Callers must treat it as read-only.
func (c *Cache) All() []Lesson {
	return *c.lessons.Load()
}

// Len returns the number of cached lessons.
func (c *Cache) Len() int {
	return len(*c.lessons.Load())
}

// Get returns the cached lesson with the given id, if present.
func (c *Cache) Get(id string) (*Lesson, bool) {
	for _, lesson := range *c.lessons.Load() {
		if lesson.ID == id {
			return &lesson, true
		}
	}
	return nil, false
}

// Replace atomically swaps in a new snapshot.
func (c *Cache) Replace(lessons []Lesson) {
	if lessons == nil {
		lessons = make([]Lesson, 0)
	}
	c.lessons.Store(&lessons)
}

// Update derives a new snapshot from the current one and swaps it in.
// The swap is a compare-and-swap: when a concurrent update wins the
// race, fn runs again against the fresh snapshot, so no update is
// lost. fn must return a new slice and must not mutate its argument;
// it may be called more than once.
func (c *Cache) Update(fn func(lessons []Lesson) []Lesson) {
	for {
		current := c.lessons.Load()
		updated := fn(*current)
		if updated == nil {
			updated = make([]Lesson, 0)
		}
		if c.lessons.CompareAndSwap(current, &updated) {
			return
		}
	}
}
