package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/green-wellness-tracker/internal/sensor"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func dataset(district string) sensor.Dataset {
	return sensor.Dataset{Readings: []sensor.Reading{{District: district}}}
}

func TestDatasetCache_EmptyUntilSet(t *testing.T) {
	c := NewDatasetCache(time.Hour)

	_, err := c.Get()
	assert.ErrorIs(t, err, ErrEmpty)

	_, ok := c.Age()
	assert.False(t, ok)
}

func TestDatasetCache_ExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c := NewDatasetCache(time.Hour).WithClock(clock.Now)

	c.Set(dataset("Jongno-gu"))

	clock.Advance(59 * time.Minute)
	got, err := c.Get()
	require.NoError(t, err)
	assert.Equal(t, "Jongno-gu", got.Readings[0].District)

	age, ok := c.Age()
	require.True(t, ok)
	assert.Equal(t, 59*time.Minute, age)

	clock.Advance(time.Minute)
	_, err = c.Get()
	assert.ErrorIs(t, err, ErrExpired)
}

func TestDatasetCache_SetReplacesWholesale(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c := NewDatasetCache(time.Hour).WithClock(clock.Now)

	c.Set(dataset("Jongno-gu"))
	clock.Advance(50 * time.Minute)
	c.Set(dataset("Mapo-gu"))
	clock.Advance(50 * time.Minute)

	got, err := c.Get()
	require.NoError(t, err)
	require.Len(t, got.Readings, 1)
	assert.Equal(t, "Mapo-gu", got.Readings[0].District)
}

func TestDatasetCache_Invalidate(t *testing.T) {
	c := NewDatasetCache(time.Hour)
	c.Set(dataset("Jongno-gu"))
	c.Invalidate()

	_, err := c.Get()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestDatasetCache_ZeroTTLNeverExpires(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c := NewDatasetCache(0).WithClock(clock.Now)
	c.Set(dataset("Jongno-gu"))

	clock.Advance(24 * 365 * time.Hour)
	_, err := c.Get()
	assert.NoError(t, err)
}
