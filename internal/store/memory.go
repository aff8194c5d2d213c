package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/green-wellness-tracker/internal/sensor"
)

var (
	// ErrEmpty is returned when nothing has been cached yet.
	ErrEmpty = errors.New("no cached sensor data")
	// ErrExpired is returned when the cached dataset is older than the TTL.
	ErrExpired = errors.New("cached sensor data expired")
)

// DatasetCache holds the last fetched dataset together with the time it was stored.
// The whole dataset is replaced on every Set; there are no partial updates.
type DatasetCache struct {
	mu sync.RWMutex

	data     sensor.Dataset
	storedAt time.Time
	has      bool

	ttl time.Duration
	now func() time.Time
}

// NewDatasetCache creates a cache whose entries live for ttl. A ttl <= 0 disables
// expiry.
func NewDatasetCache(ttl time.Duration) *DatasetCache {
	return &DatasetCache{
		ttl: ttl,
		now: time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (c *DatasetCache) WithClock(now func() time.Time) *DatasetCache {
	c.now = now
	return c
}

// Get returns the cached dataset if it is still fresh.
func (c *DatasetCache) Get() (sensor.Dataset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.has {
		return sensor.Dataset{}, ErrEmpty
	}
	if c.ttl > 0 && c.now().Sub(c.storedAt) >= c.ttl {
		return sensor.Dataset{}, ErrExpired
	}
	return c.data, nil
}

// Set replaces the cached dataset and restarts its lifetime.
func (c *DatasetCache) Set(ds sensor.Dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = ds
	c.storedAt = c.now()
	c.has = true
}

// Invalidate drops the cached dataset.
func (c *DatasetCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = sensor.Dataset{}
	c.storedAt = time.Time{}
	c.has = false
}

// Age reports how long ago the dataset was stored, and false when empty.
func (c *DatasetCache) Age() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.has {
		return 0, false
	}
	return c.now().Sub(c.storedAt), true
}
