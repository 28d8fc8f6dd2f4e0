// Package ratelimit implements the process-wide, per-direction token
// bucket shared by every transfer in an EngineContext, per spec.md
// section 5. It is modeled on original_source's ratelimiter.h, which
// carries a per-direction "token debt" forward across ticks instead of
// discarding unused capacity, so a server that stalls for a while can
// briefly exceed its nominal rate to catch back up.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Direction distinguishes upload and download buckets, which are rate
// limited independently.
type Direction int

const (
	Download Direction = iota
	Upload
)

const tickInterval = 250 * time.Millisecond

// bucket holds one direction's token state.
type bucket struct {
	mu         sync.Mutex
	limit      int64 // bytes/sec, 0 = unlimited
	burstBytes int64
	tokens     int64 // available bytes, can go negative (debt)
	waiters    []chan struct{}
}

// Limiter is a process-wide fair-share token bucket for one direction
// pair (download/upload), ticked on a fixed schedule.
type Limiter struct {
	buckets [2]*bucket
	stop    chan struct{}
	once    sync.Once
}

// New creates a Limiter with the given per-direction byte/sec limits (0
// disables limiting for that direction) and burst tolerance in bytes.
func New(downloadLimit, uploadLimit, burst int64) *Limiter {
	l := &Limiter{stop: make(chan struct{})}
	l.buckets[Download] = &bucket{limit: downloadLimit, burstBytes: burst}
	l.buckets[Upload] = &bucket{limit: uploadLimit, burstBytes: burst}
	go l.run()
	return l
}

func (l *Limiter) run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			for _, b := range l.buckets {
				b.refill()
			}
		}
	}
}

func (b *bucket) refill() {
	b.mu.Lock()
	if b.limit > 0 {
		grant := b.limit * int64(tickInterval) / int64(time.Second)
		b.tokens += grant
		if cap := b.burstBytes; cap > 0 && b.tokens > cap {
			b.tokens = cap // excess debt credit is not hoarded past the burst cap
		}
	}
	waiters := b.waiters
	b.waiters = nil
	b.mu.Unlock()
	for _, w := range waiters {
		close(w)
	}
}

// SetLimits updates the byte/sec caps at runtime (spec.md section 5:
// changing speed limits must apply to already-open transfers).
func (l *Limiter) SetLimits(downloadLimit, uploadLimit int64) {
	l.buckets[Download].mu.Lock()
	l.buckets[Download].limit = downloadLimit
	l.buckets[Download].mu.Unlock()
	l.buckets[Upload].mu.Lock()
	l.buckets[Upload].limit = uploadLimit
	l.buckets[Upload].mu.Unlock()
}

// Acquire blocks until n bytes' worth of tokens are available in the
// given direction, or ctx is canceled. An unlimited direction (limit==0)
// returns immediately.
func (l *Limiter) Acquire(ctx context.Context, dir Direction, n int64) error {
	b := l.buckets[dir]
	for {
		b.mu.Lock()
		if b.limit == 0 {
			b.mu.Unlock()
			return nil
		}
		if b.tokens > 0 {
			b.tokens -= n
			b.mu.Unlock()
			return nil
		}
		wait := make(chan struct{})
		b.waiters = append(b.waiters, wait)
		b.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops the limiter's background ticker.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}
