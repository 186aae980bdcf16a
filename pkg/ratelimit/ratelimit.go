package ratelimit

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Limiter is a sliding-window limiter keyed by client address. Every key owns a
// fixed-size ring of attempt timestamps and at most maxKeys keys are tracked;
// the least recently seen key is evicted first.
type Limiter struct {
	mu      sync.Mutex
	windows *lru.Cache[string, *window]
	max     int           // attempts per window
	per     time.Duration // window size
	now     func() time.Time
}

type window struct {
	stamps []time.Time // ring buffer, len == max
	head   int         // index of the oldest stamp
	n      int         // stamps in use
}

func New(max int, per time.Duration, maxKeys int) *Limiter {
	if max < 1 {
		max = 1
	}
	if maxKeys < 1 {
		maxKeys = 1
	}
	windows, err := lru.New[string, *window](maxKeys)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &Limiter{windows: windows, max: max, per: per, now: time.Now}
}

// Allow records an attempt for key and reports whether it fits in the window.
// Rejected attempts are not recorded.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows.Get(key)
	if !ok {
		w = &window{stamps: make([]time.Time, l.max)}
		l.windows.Add(key, w)
	}

	cutoff := now.Add(-l.per)
	for w.n > 0 && !w.stamps[w.head].After(cutoff) {
		w.head = (w.head + 1) % l.max
		w.n--
	}
	if w.n >= l.max {
		return false
	}
	w.stamps[(w.head+w.n)%l.max] = now
	w.n++
	return true
}

// Len returns the number of tracked keys
func (l *Limiter) Len() int {
	return l.windows.Len()
}
