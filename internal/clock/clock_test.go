package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMockClock(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	require.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	require.Equal(t, start.Add(90*time.Second), c.Now())

	require.Equal(t, 90*time.Second, c.Since(start))

	later := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	c.Set(later)
	require.Equal(t, later, c.Now())
}

func TestRealClock(t *testing.T) {
	c := &RealClock{}
	before := time.Now()
	now := c.Now()
	require.False(t, now.Before(before))
	require.GreaterOrEqual(t, c.Since(before), time.Duration(0))
}
