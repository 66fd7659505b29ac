package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_PerKey(t *testing.T) {
	l := New(0.001, 2)

	assert.True(t, l.Allow("+5511999998888"))
	assert.True(t, l.Allow("+5511999998888"))
	assert.False(t, l.Allow("+5511999998888"))
	assert.True(t, l.Allow("+5511988887777"), "другой ключ не затронут")
}

func TestLimiter_Every(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	l := Every(time.Minute, 1)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))

	now = now.Add(61 * time.Second)
	assert.True(t, l.Allow("k"), "токен восстанавливается через интервал")
}
