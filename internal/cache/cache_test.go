package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignatureStableAcrossParamOrder(t *testing.T) {
	a := Signature("location", map[string]string{"search": "kebayoran", "limit": "10"})
	b := Signature("location", map[string]string{"limit": "10", "search": "kebayoran"})
	assert.Equal(t, a, b)
}

func TestSignatureDistinguishesSourceAndParams(t *testing.T) {
	base := Signature("location", map[string]string{"search": "kebayoran"})
	assert.NotEqual(t, base, Signature("warehouse", map[string]string{"search": "kebayoran"}))
	assert.NotEqual(t, base, Signature("location", map[string]string{"search": "kebayoran lama"}))
	assert.NotEqual(t, base, Signature("location", map[string]string{"searc": "hkebayoran"}))
}

func TestGetOrFetchCachesSuccess(t *testing.T) {
	store := NewMemoryStore()
	var calls int32

	fetch := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "payload", nil
	}

	for i := 0; i < 3; i++ {
		payload, err := store.GetOrFetch(context.Background(), "k", time.Minute, fetch)
		assert.NoError(t, err)
		assert.Equal(t, "payload", payload)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrFetchNeverCachesErrors(t *testing.T) {
	store := NewMemoryStore()
	var calls int32

	fetch := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("upstream down")
	}

	_, err := store.GetOrFetch(context.Background(), "k", time.Minute, fetch)
	assert.Error(t, err)
	_, err = store.GetOrFetch(context.Background(), "k", time.Minute, fetch)
	assert.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	_, ok := store.Get("k")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	store := NewMemoryStore()
	current := time.Now()
	store.now = func() time.Time { return current }

	store.Set("k", 42, 10*time.Minute)
	payload, ok := store.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 42, payload)

	current = current.Add(11 * time.Minute)
	_, ok = store.Get("k")
	assert.False(t, ok)
}

func TestPurge(t *testing.T) {
	store := NewMemoryStore()
	current := time.Now()
	store.now = func() time.Time { return current }

	store.Set("fresh", 1, time.Hour)
	store.Set("stale", 2, time.Minute)
	current = current.Add(2 * time.Minute)

	assert.Equal(t, 1, store.Purge())
	assert.Equal(t, 1, store.Len())
}

func TestGetOrFetchSingleFlight(t *testing.T) {
	store := NewMemoryStore()
	var calls int32
	release := make(chan struct{})

	fetch := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "shared", nil
	}

	var wg sync.WaitGroup
	results := make([]interface{}, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = store.GetOrFetch(context.Background(), "k", time.Minute, fetch)
		}(i)
	}

	// Give the goroutines time to pile up on the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}
