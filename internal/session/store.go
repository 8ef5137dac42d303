// ABOUTME: Thread-safe session store mapping opaque ids to lightweight metadata.
// ABOUTME: Entries expire after a TTL of inactivity and the oldest are evicted at capacity.

package session

import (
	"container/list"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Metadata keys set by the store itself.
const (
	MetaCreatedAt = "created_at"
	MetaTemporary = "temporary"
)

// Session is a snapshot of one stored entry.
type Session struct {
	ID       string
	Metadata map[string]any
	LastSeen time.Time
}

// entry stores the metadata, last access time and list element for a session.
type entry struct {
	metadata map[string]any
	lastSeen time.Time
	element  *list.Element
}

// Store provides a thread-safe, TTL-based, size-limited table of sessions.
// A doubly-linked list keeps entries in access order so eviction is O(1).
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // session ids, least recently used at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a session store with the given inactivity TTL and maximum size.
// A background goroutine periodically removes expired entries.
func New(ttl time.Duration, maxSize int) *Store {
	return newStore(ttl, maxSize, time.Now)
}

func newStore(ttl time.Duration, maxSize int, now func() time.Time) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
		done:    make(chan struct{}),
	}
	go s.cleanup()
	return s
}

// Create generates a fresh session id, stores it with creation metadata merged
// over meta, and returns the id.
func (s *Store) Create(meta map[string]any) string {
	id := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(id, meta)
	return id
}

// Resolve returns candidate unchanged when it is non-empty, without checking
// whether the store knows it. Otherwise it creates a temporary session.
// created reports whether a new id was minted.
func (s *Store) Resolve(candidate string) (id string, created bool) {
	if candidate != "" {
		s.Touch(candidate)
		return candidate, false
	}
	return s.Create(map[string]any{MetaTemporary: true}), true
}

// Touch refreshes the last access time of a known session. Unknown ids are ignored.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		e.lastSeen = s.now()
		s.order.MoveToBack(e.element)
	}
}

// Get returns a snapshot of the session if it exists and has not expired.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || s.expired(e) {
		return Session{}, false
	}
	return Session{
		ID:       id,
		Metadata: maps.Clone(e.metadata),
		LastSeen: e.lastSeen,
	}, true
}

// Len returns the number of stored sessions, including any not yet cleaned up.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// insertLocked adds a new entry. Must be called with mu held.
func (s *Store) insertLocked(id string, meta map[string]any) {
	now := s.now()

	metadata := make(map[string]any, len(meta)+1)
	maps.Copy(metadata, meta)
	metadata[MetaCreatedAt] = now.UTC().Format(time.RFC3339)

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	s.entries[id] = &entry{
		metadata: metadata,
		lastSeen: now,
		element:  s.order.PushBack(id),
	}
}

func (s *Store) expired(e *entry) bool {
	return s.ttl > 0 && s.now().Sub(e.lastSeen) > s.ttl
}

// evictOldest removes the least recently used entry. Must be called with mu held.
func (s *Store) evictOldest() {
	front := s.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(string)
	s.order.Remove(front)
	delete(s.entries, id)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (s *Store) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.done:
			return
		}
	}
}

// removeExpired drops expired entries from the front of the access list.
func (s *Store) removeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for front := s.order.Front(); front != nil; front = s.order.Front() {
		id, _ := front.Value.(string)
		if !s.expired(s.entries[id]) {
			break
		}
		s.order.Remove(front)
		delete(s.entries, id)
		removed++
	}
	return removed
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.done)
		s.closed = true
	}
}
