package sensor

import (
	"context"
)

// Source abstracts the upstream sensor dataset (the Seoul open data API in production).
type Source interface {
	Name() string
	Fetch(ctx context.Context) (Dataset, error)
}

// Cache is the contract the dataset cache must satisfy.
type Cache interface {
	Get() (Dataset, error)
	Set(ds Dataset)
	Invalidate()
}

// Publisher relays freshly fetched readings to an external consumer.
type Publisher interface {
	Publish(ctx context.Context, readings []Reading) error
}
