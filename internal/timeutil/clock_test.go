package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	before := time.Now()
	now := c.Now()
	assert.False(t, now.Before(before))
	assert.GreaterOrEqual(t, c.Since(before), time.Duration(0))
}

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, start.Add(1500*time.Millisecond), c.Now())
	assert.Equal(t, 1500*time.Millisecond, c.Since(start))

	later := start.Add(time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}
