package storage

import (
	"context"

	"sfincsrun/pkg/metrics"
	"sfincsrun/pkg/resilience"
)

// GuardedStore routes every upload through a circuit breaker, so a dead
// endpoint costs one timeout per few artifacts instead of one per artifact.
type GuardedStore struct {
	inner   ArtifactStore
	breaker *resilience.CircuitBreaker
}

// NewGuardedStore wraps inner with breaker.
func NewGuardedStore(inner ArtifactStore, breaker *resilience.CircuitBreaker) *GuardedStore {
	return &GuardedStore{inner: inner, breaker: breaker}
}

func (g *GuardedStore) Store(ctx context.Context, runID string, logs []byte) (string, error) {
	var ref string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		ref, err = g.inner.Store(ctx, runID, logs)
		return err
	})
	metrics.RecordPublish("log", err)
	return ref, err
}

func (g *GuardedStore) Retrieve(ctx context.Context, reference string) ([]byte, error) {
	return g.inner.Retrieve(ctx, reference)
}

func (g *GuardedStore) StoreArchive(ctx context.Context, key string, path string) (string, error) {
	var ref string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		ref, err = g.inner.StoreArchive(ctx, key, path)
		return err
	})
	metrics.RecordPublish("archive", err)
	return ref, err
}
