package cache

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// L1 is an in-process cache backed by ristretto.
type L1 struct {
	rc *ristretto.Cache[string, []byte]

	mu    sync.Mutex
	loads map[string]*call
}

// NewL1 creates a new L1 cache holding at most maxEntries values.
func NewL1(maxEntries int64) (*L1, error) {
	rc, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &L1{
		rc:    rc,
		loads: make(map[string]*call),
	}, nil
}

// Get retrieves a copy of the value stored under key.
func (l *L1) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := l.rc.Get(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// Set stores a copy of val under key. The write is visible to subsequent
// Gets once Set returns.
func (l *L1) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	l.rc.SetWithTTL(key, bytes.Clone(val), 1, ttl)
	l.rc.Wait()
	return nil
}

// Delete removes key from the cache.
func (l *L1) Delete(_ context.Context, key string) error {
	l.rc.Del(key)
	return nil
}

// GetOrSet returns the cached value for key. On a miss it calls loader once,
// deduplicating concurrent callers for the same key.
func (l *L1) GetOrSet(ctx context.Context, key string, ttl time.Duration, loader func(context.Context) ([]byte, error)) ([]byte, error) {
	if v, ok, _ := l.Get(ctx, key); ok {
		return v, nil
	}
	return singleflight(&l.mu, l.loads, key, func() ([]byte, error) {
		v, err := loader(ctx)
		if err == nil {
			_ = l.Set(ctx, key, v, ttl)
		}
		return v, err
	})
}

// Close releases the ristretto goroutines.
func (l *L1) Close() {
	l.rc.Close()
}

// singleflight runs load once per key among concurrent callers. If load
// panics, waiting callers get an error and the panic continues in the
// calling goroutine.
func singleflight(mu *sync.Mutex, loads map[string]*call, key string, load func() ([]byte, error)) ([]byte, error) {
	mu.Lock()
	if c, ok := loads[key]; ok {
		mu.Unlock()
		<-c.done
		if c.err != nil {
			return nil, c.err
		}
		return bytes.Clone(c.val), nil
	}

	c := &call{done: make(chan struct{})}
	loads[key] = c
	mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			c.val, c.err = nil, fmt.Errorf("cache: loader for %q panicked: %v", key, p)
			finish(mu, loads, key, c)
			panic(p)
		}
		finish(mu, loads, key, c)
	}()

	c.val, c.err = load()
	if c.err != nil {
		return nil, c.err
	}
	return bytes.Clone(c.val), nil
}

func finish(mu *sync.Mutex, loads map[string]*call, key string, c *call) {
	mu.Lock()
	delete(loads, key)
	mu.Unlock()
	close(c.done)
}
