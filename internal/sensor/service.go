package sensor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/i474232898/green-wellness-tracker/internal/logger"
)

// ErrNoReadings means the upstream answered but the dataset had no rows.
var ErrNoReadings = errors.New("no sensor readings available")

const (
	refreshKey = "dataset"

	// publishTimeout bounds one background relay of a refreshed dataset.
	publishTimeout = time.Minute
)

// Service serves the cached dataset and refreshes it from the source on a miss.
type Service struct {
	source    Source
	cache     Cache
	publisher Publisher
	l         *logger.Logger
	now       func() time.Time

	group      singleflight.Group
	publishing sync.WaitGroup
}

// Option customizes a Service.
type Option func(*Service)

// WithPublisher relays every successfully fetched dataset. Relaying runs in the
// background and never delays the caller that triggered the fetch.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new Service.
func NewService(source Source, cache Cache, l *logger.Logger, opts ...Option) *Service {
	s := &Service{
		source: source,
		cache:  cache,
		l:      l,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the cached dataset, fetching it first when the cache is cold.
// It never fails: an upstream problem yields an empty snapshot carrying the diagnostic.
func (s *Service) Snapshot(ctx context.Context) Snapshot {
	if ds, err := s.cache.Get(); err == nil {
		return snapshotOf(ds)
	}

	ds, err := s.load(ctx)
	if err != nil {
		return Snapshot{
			FetchedAt: s.now(),
			Error:     fmt.Sprintf("Failed to load sensor data: %v", err),
		}
	}
	return snapshotOf(ds)
}

// Refresh fetches the dataset regardless of cache state. A failed refresh keeps
// the previous dataset.
func (s *Service) Refresh(ctx context.Context) error {
	_, err := s.load(ctx)
	return err
}

func (s *Service) load(ctx context.Context) (Dataset, error) {
	v, err, shared := s.group.Do(refreshKey, func() (any, error) {
		start := s.now()
		ds, err := s.source.Fetch(ctx)
		if err != nil {
			s.l.Warning("sensor fetch failed", map[string]any{"source": s.source.Name(), "err": err})
			return Dataset{}, err
		}
		if len(ds.Readings) == 0 {
			s.l.Warning("sensor fetch returned no rows", map[string]any{"source": s.source.Name()})
			return Dataset{}, ErrNoReadings
		}
		if ds.FetchedAt.IsZero() {
			ds.FetchedAt = s.now()
		}
		for _, w := range ds.Warnings {
			s.l.Warning("sensor data warning", map[string]any{"source": s.source.Name(), "warning": w})
		}

		s.cache.Set(ds)
		s.l.Info("sensor dataset refreshed", map[string]any{
			"source":      s.source.Name(),
			"rows":        len(ds.Readings),
			"warnings":    len(ds.Warnings),
			"duration_ms": s.now().Sub(start).Milliseconds(),
		})

		s.publishAsync(ctx, ds)
		return ds, nil
	})
	if err != nil {
		return Dataset{}, err
	}
	if shared {
		s.l.Debug("sensor fetch shared between callers")
	}
	return v.(Dataset), nil
}

// publishAsync hands the dataset to the publisher on its own goroutine. The
// context is detached from the triggering request so a finished request does
// not cancel the relay.
func (s *Service) publishAsync(ctx context.Context, ds Dataset) {
	if s.publisher == nil {
		return
	}
	readings := LatestByDistrict(ds.Readings)
	s.publishing.Add(1)
	go func() {
		defer s.publishing.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(pctx, readings); err != nil {
			s.l.Warning("publishing readings failed", map[string]any{"err": err})
		}
	}()
}

// Wait blocks until in-flight relays have finished.
func (s *Service) Wait() {
	s.publishing.Wait()
}

func snapshotOf(ds Dataset) Snapshot {
	return Snapshot{
		Readings:  ds.Readings,
		Warnings:  ds.Warnings,
		FetchedAt: ds.FetchedAt,
	}
}
