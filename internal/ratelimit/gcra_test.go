package ratelimit

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store whose Update runs under a mutex, mirroring
// the atomicity contract of the shared datastore.
type memStore struct {
	mu   sync.Mutex
	data map[string]json.RawMessage
	err  error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]json.RawMessage)}
}

func (m *memStore) Update(key string, ttl time.Duration, fn func(cur json.RawMessage, exists bool) (next any, write bool)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	cur, exists := m.data[key]
	next, write := fn(cur, exists)
	if write {
		raw, err := json.Marshal(next)
		if err != nil {
			return err
		}
		m.data[key] = raw
	}
	return nil
}

func newTestLimiter(store Store, leak time.Duration, burst int, now *time.Time) *Limiter {
	l := New(store, leak, burst)
	l.now = func() time.Time { return *now }
	return l
}

func TestAllow_BurstThenDeny(t *testing.T) {
	now := time.Unix(1000, 0)
	l := newTestLimiter(newMemStore(), time.Second, 3, &now)

	for i := 0; i < 3; i++ {
		ok, _, err := l.Allow("u1")
		require.NoError(t, err)
		assert.True(t, ok, "burst call %d should be admitted", i+1)
	}

	ok, _, err := l.Allow("u1")
	require.NoError(t, err)
	assert.False(t, ok, "call beyond capacity should be denied")
}

func TestAllow_SpacingScenario(t *testing.T) {
	// capacity=1, leakInterval=30s: allowed at t=0, denied at t=10s,
	// allowed again at t=31s.
	now := time.Unix(0, 0)
	l := newTestLimiter(newMemStore(), 30*time.Second, 1, &now)

	ok, _, err := l.Allow("u1")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(10 * time.Second)
	ok, _, err = l.Allow("u1")
	require.NoError(t, err)
	assert.False(t, ok)

	now = time.Unix(31, 0)
	ok, _, err = l.Allow("u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllow_DeniedCallLeavesStateUnchanged(t *testing.T) {
	now := time.Unix(0, 0)
	l := newTestLimiter(newMemStore(), 30*time.Second, 1, &now)

	ok, _, _ := l.Allow("u1")
	require.True(t, ok)

	// Hammering while denied must not push the admission time further out.
	for i := 0; i < 10; i++ {
		now = now.Add(time.Second)
		ok, _, err := l.Allow("u1")
		require.NoError(t, err)
		assert.False(t, ok)
	}

	now = time.Unix(30, 0)
	ok, _, err := l.Allow("u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllow_RetryAfterReflectsStoredState(t *testing.T) {
	now := time.Unix(0, 0)
	l := newTestLimiter(newMemStore(), 30*time.Second, 1, &now)

	ok, retryAfter, err := l.Allow("u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Zero(t, retryAfter, "admitted calls carry no wait")

	// Stored TAT is 30s; at t=10s admission opens again at t=30s.
	now = now.Add(10 * time.Second)
	ok, retryAfter, err = l.Allow("u1")
	require.NoError(t, err)
	require.False(t, ok)
	assert.Equal(t, 20*time.Second, retryAfter)

	// Waiting out the advised duration is exactly enough.
	now = now.Add(retryAfter)
	ok, _, err = l.Allow("u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllow_IndependentKeys(t *testing.T) {
	now := time.Unix(0, 0)
	l := newTestLimiter(newMemStore(), 30*time.Second, 1, &now)

	ok, _, _ := l.Allow("u1")
	assert.True(t, ok)
	ok, _, _ = l.Allow("u2")
	assert.True(t, ok, "another user's budget is separate")
}

func TestAllow_NoDoubleAdmissionUnderConcurrency(t *testing.T) {
	now := time.Unix(0, 0)
	l := newTestLimiter(newMemStore(), 30*time.Second, 2, &now)

	const attempts = 50
	var admitted int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			ok, _, err := l.Allow("u1")
			if err == nil && ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 2, admitted, "concurrent calls must not exceed capacity")
}

func TestAllow_StoreFailureDenies(t *testing.T) {
	now := time.Unix(0, 0)
	store := newMemStore()
	store.err = errors.New("store down")
	l := newTestLimiter(store, time.Second, 3, &now)

	ok, _, err := l.Allow("u1")
	assert.Error(t, err)
	assert.False(t, ok, "admission control fails closed")
}
