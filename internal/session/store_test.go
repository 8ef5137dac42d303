// ABOUTME: Tests for the session store covering creation, resolution, TTL and eviction.
// ABOUTME: Uses an injected clock so expiry is deterministic.

package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, ttl time.Duration, maxSize int) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := newStore(ttl, maxSize, clock.Now)
	t.Cleanup(s.Close)
	return s, clock
}

func TestStore_Create(t *testing.T) {
	s, _ := newTestStore(t, time.Hour, 10)

	id := s.Create(map[string]any{"client": "cli"})
	require.NotEmpty(t, id)

	sess, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, "cli", sess.Metadata["client"])
	assert.Equal(t, "2024-01-01T00:00:00Z", sess.Metadata[MetaCreatedAt])
	_, temporary := sess.Metadata[MetaTemporary]
	assert.False(t, temporary)
}

func TestStore_Create_UniqueIDs(t *testing.T) {
	s, _ := newTestStore(t, time.Hour, 1000)

	seen := make(map[string]bool)
	for range 100 {
		id := s.Create(nil)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Equal(t, 100, s.Len())
}

func TestStore_Resolve_ReturnsCandidate(t *testing.T) {
	s, _ := newTestStore(t, time.Hour, 10)

	id, created := s.Resolve("caller-chosen")
	assert.Equal(t, "caller-chosen", id)
	assert.False(t, created)
	// Unknown ids are accepted without being stored.
	assert.Equal(t, 0, s.Len())
}

func TestStore_Resolve_MintsTemporary(t *testing.T) {
	s, _ := newTestStore(t, time.Hour, 10)

	id, created := s.Resolve("")
	require.True(t, created)
	require.NotEmpty(t, id)

	sess, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, true, sess.Metadata[MetaTemporary])
}

func TestStore_Get_Expired(t *testing.T) {
	s, clock := newTestStore(t, 10*time.Minute, 10)

	id := s.Create(nil)
	clock.Advance(11 * time.Minute)

	_, ok := s.Get(id)
	assert.False(t, ok)
}

func TestStore_Touch_ExtendsLifetime(t *testing.T) {
	s, clock := newTestStore(t, 10*time.Minute, 10)

	id := s.Create(nil)
	clock.Advance(8 * time.Minute)
	_, _ = s.Resolve(id)
	clock.Advance(8 * time.Minute)

	_, ok := s.Get(id)
	assert.True(t, ok)
}

func TestStore_EvictsOldestAtCapacity(t *testing.T) {
	s, clock := newTestStore(t, time.Hour, 3)

	first := s.Create(nil)
	clock.Advance(time.Second)
	second := s.Create(nil)
	clock.Advance(time.Second)
	third := s.Create(nil)
	clock.Advance(time.Second)

	// Touching the first makes the second the least recently used.
	s.Touch(first)
	fourth := s.Create(nil)

	assert.Equal(t, 3, s.Len())
	_, ok := s.Get(second)
	assert.False(t, ok, "least recently used session should be evicted")
	for _, id := range []string{first, third, fourth} {
		_, ok := s.Get(id)
		assert.True(t, ok, "session %s should remain", id)
	}
}

func TestStore_RemoveExpired(t *testing.T) {
	s, clock := newTestStore(t, 10*time.Minute, 10)

	old := s.Create(nil)
	clock.Advance(9 * time.Minute)
	fresh := s.Create(nil)
	clock.Advance(2 * time.Minute)

	assert.Equal(t, 1, s.removeExpired())
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get(old)
	assert.False(t, ok)
	_, ok = s.Get(fresh)
	assert.True(t, ok)
}

func TestStore_Get_ReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t, time.Hour, 10)

	id := s.Create(map[string]any{"k": "v"})
	sess, _ := s.Get(id)
	sess.Metadata["k"] = "changed"

	again, _ := s.Get(id)
	assert.Equal(t, "v", again.Metadata["k"])
}

func TestStore_Close_Idempotent(t *testing.T) {
	s := New(time.Hour, 10)
	s.Close()
	assert.NotPanics(t, s.Close)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s, _ := newTestStore(t, time.Hour, 50)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				id, _ := s.Resolve("")
				s.Touch(id)
				s.Get(id)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, s.Len(), 50)
}
