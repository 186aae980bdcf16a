package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(max int, per time.Duration, keys int) (*Limiter, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := New(max, per, keys)
	l.now = c.now
	return l, c
}

func TestAllowWithinWindow(t *testing.T) {
	l, _ := newTestLimiter(10, time.Minute, 16)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("1.2.3.4"), "attempt %d", i)
	}
	assert.False(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("5.6.7.8"))
}

func TestWindowSlides(t *testing.T) {
	l, c := newTestLimiter(3, time.Minute, 16)
	assert.True(t, l.Allow("ip"))
	c.t = c.t.Add(20 * time.Second)
	assert.True(t, l.Allow("ip"))
	assert.True(t, l.Allow("ip"))
	assert.False(t, l.Allow("ip"))

	// the first attempt leaves the window, the other two are still inside
	c.t = c.t.Add(41 * time.Second)
	assert.True(t, l.Allow("ip"))
	assert.False(t, l.Allow("ip"))

	c.t = c.t.Add(time.Minute)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("ip"))
	}
}

func TestRejectedAttemptsAreNotRecorded(t *testing.T) {
	l, c := newTestLimiter(1, time.Minute, 16)
	assert.True(t, l.Allow("ip"))
	for i := 0; i < 5; i++ {
		c.t = c.t.Add(10 * time.Second)
		assert.False(t, l.Allow("ip"))
	}
	c.t = c.t.Add(11 * time.Second)
	assert.True(t, l.Allow("ip"))
}

func TestKeysAreBounded(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute, 4)
	for i := 0; i < 100; i++ {
		l.Allow(fmt.Sprintf("10.0.0.%d", i))
	}
	assert.Equal(t, 4, l.Len())

	// an evicted key starts over
	assert.True(t, l.Allow("10.0.0.0"))
	assert.False(t, l.Allow("10.0.0.99"))
}
