package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Keksclan/goRawrListener/breaker"
	"github.com/Keksclan/goRawrListener/retry"
	"github.com/rs/zerolog"
)

// Tiered combines an L1 (in-process) and L2 (Redis) cache. Reads check L1
// first, then L2. Writes populate both layers.
//
// L2 calls go through a circuit breaker and writes are retried with
// backoff. When Redis fails, Tiered keeps working from L1 and logs the
// degradation instead of returning the error.
type Tiered struct {
	l1 *L1
	l2 *L2

	br    *breaker.Breaker
	retry retry.Config
	log   zerolog.Logger

	mu    sync.Mutex
	loads map[string]*call
}

// TieredOption configures a Tiered cache.
type TieredOption func(*Tiered)

// WithBreaker replaces the default L2 circuit breaker.
func WithBreaker(b *breaker.Breaker) TieredOption {
	return func(t *Tiered) { t.br = b }
}

// WithRetry replaces the default L2 write retry policy.
func WithRetry(cfg retry.Config) TieredOption {
	return func(t *Tiered) { t.retry = cfg }
}

// WithLogger sets the logger used to report L2 degradation.
func WithLogger(log zerolog.Logger) TieredOption {
	return func(t *Tiered) { t.log = log }
}

// NewTiered creates a two-level cache.
func NewTiered(l1 *L1, l2 *L2, opts ...TieredOption) *Tiered {
	t := &Tiered{
		l1: l1,
		l2: l2,
		br: breaker.New(breaker.Config{FailureThreshold: 5, OpenTimeout: 10 * time.Second}),
		retry: retry.Config{
			MaxAttempts: 3,
			BaseDelay:   10 * time.Millisecond,
			MaxDelay:    100 * time.Millisecond,
			Jitter:      0.2,
			Retryable:   retryable,
		},
		log:   zerolog.Nop(),
		loads: make(map[string]*call),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// retryable rejects errors that another attempt cannot fix.
func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, breaker.ErrOpen)
}

// Get checks L1, then L2. On an L2 hit the value is promoted into L1 with
// zero TTL since the original TTL is unknown.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := t.l1.Get(ctx, key); err != nil || ok {
		return v, ok, err
	}
	v, ok := t.getL2(ctx, key)
	if !ok {
		return nil, false, nil
	}
	_ = t.l1.Set(ctx, key, v, 0)
	return v, true, nil
}

// Set writes the value to L2, then L1. An L2 failure is logged, not returned.
func (t *Tiered) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	t.setL2(ctx, key, val, ttl)
	return t.l1.Set(ctx, key, val, ttl)
}

// Delete removes key from both layers.
func (t *Tiered) Delete(ctx context.Context, key string) error {
	if err := t.br.Do(func() error { return t.l2.Delete(ctx, key) }); err != nil {
		t.degraded(err, "delete", key)
	}
	return t.l1.Delete(ctx, key)
}

// GetOrSet tries L1, then L2, then the loader, deduplicating concurrent
// loads for the same key.
func (t *Tiered) GetOrSet(ctx context.Context, key string, ttl time.Duration, loader func(context.Context) ([]byte, error)) ([]byte, error) {
	if v, ok, _ := t.l1.Get(ctx, key); ok {
		return v, nil
	}
	if v, ok := t.getL2(ctx, key); ok {
		_ = t.l1.Set(ctx, key, v, ttl)
		return v, nil
	}

	return singleflight(&t.mu, t.loads, key, func() ([]byte, error) {
		v, err := loader(ctx)
		if err == nil {
			_ = t.Set(ctx, key, v, ttl)
		}
		return v, err
	})
}

// BreakerState exposes the L2 circuit state.
func (t *Tiered) BreakerState() breaker.State {
	return t.br.State()
}

func (t *Tiered) getL2(ctx context.Context, key string) ([]byte, bool) {
	var (
		v  []byte
		ok bool
	)
	err := t.br.Do(func() error {
		var err error
		v, ok, err = t.l2.Get(ctx, key)
		return err
	})
	if err != nil {
		t.degraded(err, "get", key)
		return nil, false
	}
	return v, ok
}

func (t *Tiered) setL2(ctx context.Context, key string, val []byte, ttl time.Duration) {
	err := retry.Run(ctx, t.retry, func(ctx context.Context) error {
		return t.br.Do(func() error { return t.l2.Set(ctx, key, val, ttl) })
	})
	if err != nil {
		t.degraded(err, "set", key)
	}
}

func (t *Tiered) degraded(err error, op, key string) {
	ev := t.log.Warn()
	if errors.Is(err, breaker.ErrOpen) {
		ev = t.log.Debug()
	}
	ev.Err(err).Str("op", op).Str("key", key).Msg("redis cache layer unavailable, using in-process cache only")
}
