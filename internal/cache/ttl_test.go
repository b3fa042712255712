package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newClock(start time.Time) (func() time.Time, func(time.Duration)) {
	current := start
	now := func() time.Time { return current }
	advance := func(d time.Duration) { current = current.Add(d) }
	return now, advance
}

func TestTTLStoreGetSet(t *testing.T) {
	s := NewTTLStore[int](time.Minute)
	s.Set("a", 1)

	v, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestTTLStoreExpiry(t *testing.T) {
	now, advance := newClock(time.Unix(1_700_000_000, 0))
	s := NewTTLStore[string](time.Minute)
	s.now = now

	s.Set("sig", "payload")

	// One tick before the deadline the entry is still live.
	advance(time.Minute - time.Nanosecond)
	v, ok := s.Get("sig")
	assert.True(t, ok)
	assert.Equal(t, "payload", v)

	// Exactly at the deadline it is gone and removed.
	advance(time.Nanosecond)
	_, ok = s.Get("sig")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestTTLStoreSetResetsTTL(t *testing.T) {
	now, advance := newClock(time.Unix(1_700_000_000, 0))
	s := NewTTLStore[int](time.Minute)
	s.now = now

	s.Set("k", 1)
	advance(45 * time.Second)
	s.Set("k", 2)
	advance(45 * time.Second)

	v, ok := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestTTLStorePrune(t *testing.T) {
	now, advance := newClock(time.Unix(1_700_000_000, 0))
	s := NewTTLStore[int](time.Minute)
	s.now = now

	s.Set("old1", 1)
	s.Set("old2", 2)
	advance(30 * time.Second)
	s.Set("fresh", 3)
	// Exactly at the old entries' deadline.
	advance(30 * time.Second)

	dropped := s.Prune()
	assert.Equal(t, 2, dropped)
	assert.Equal(t, 1, s.Len())

	_, ok := s.Get("fresh")
	assert.True(t, ok)
}

func TestCell(t *testing.T) {
	var c Cell[NetworkState]

	_, ok := c.Load()
	assert.False(t, ok)

	c.Store(NetworkState{RPCHealthy: true, LastSlotSeen: 42})
	state, ok := c.Load()
	assert.True(t, ok)
	assert.True(t, state.RPCHealthy)
	assert.Equal(t, int64(42), state.LastSlotSeen)
}
