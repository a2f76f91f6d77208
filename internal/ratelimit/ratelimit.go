// Package ratelimit implements the per-connection draw/cursor token
// buckets. Buckets are created lazily per connection and simply
// garbage-collected with it; there is no explicit destructor.
package ratelimit

import (
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Class identifies which bucket a message is charged against.
type Class string

const (
	ClassDraw   Class = "draw"
	ClassCursor Class = "cursor"
)

// Config carries the capacity/refill pair for both classes.
type Config struct {
	DrawBucketSize   int
	DrawRefillRate   float64
	CursorBucketSize int
	CursorRefillRate float64
}

// Limiter holds one connection's two token buckets plus throttled
// over-limit logging so a noisy client cannot flood the server log.
type Limiter struct {
	draw   *rate.Limiter
	cursor *rate.Limiter

	mu         sync.Mutex
	lastLogged map[Class]time.Time
}

// New builds a Limiter for one connection from cfg.
func New(cfg Config) *Limiter {
	return &Limiter{
		draw:       rate.NewLimiter(rate.Limit(cfg.DrawRefillRate), cfg.DrawBucketSize),
		cursor:     rate.NewLimiter(rate.Limit(cfg.CursorRefillRate), cfg.CursorBucketSize),
		lastLogged: make(map[Class]time.Time),
	}
}

// Allow reports whether a message of the given class may proceed, consuming
// one token if so. Over-limit drops are silent to the client; a server-side
// log line is emitted at most once per second per class.
func (l *Limiter) Allow(class Class) bool {
	var bucket *rate.Limiter
	switch class {
	case ClassDraw:
		bucket = l.draw
	case ClassCursor:
		bucket = l.cursor
	default:
		return true
	}

	if bucket.Allow() {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.lastLogged[class]; !ok || time.Since(last) >= time.Second {
		log.Printf("[RateLimit] dropping %s message: bucket exhausted", class)
		l.lastLogged[class] = time.Now()
	}
	return false
}
