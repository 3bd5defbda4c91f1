package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdentityLimiterPerKey(t *testing.T) {
	l := NewIdentityLimiter(1, 2)

	assert.True(t, l.Allow("id:a"))
	assert.True(t, l.Allow("id:a"))
	assert.False(t, l.Allow("id:a"))

	assert.True(t, l.Allow("id:b"), "buckets are independent")
	assert.Same(t, l.Get("id:a"), l.Get("id:a"))
}

func TestIdentityLimiterUnlimited(t *testing.T) {
	l := NewIdentityLimiter(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("ip:127.0.0.1"))
	}
}

func TestIdentityLimiterSweep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewIdentityLimiter(10, 10)
	l.now = func() time.Time { return now }

	l.Get("id:old")
	now = now.Add(5 * time.Minute)
	l.Get("id:fresh")
	assert.Equal(t, 2, l.Sweep())

	now = now.Add(6 * time.Minute)
	assert.Equal(t, 1, l.Sweep())
	_, ok := l.limiters["id:fresh"]
	assert.True(t, ok)
}
