package storage

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ensure Multi implements Backend
var _ Backend = (*Multi)(nil)

// Multi fans every Save out to several backends concurrently. Query is served
// by the first backend, which is treated as the primary.
type Multi struct {
	backends []Backend
}

// NewMulti combines backends. It needs at least one.
func NewMulti(backends ...Backend) (*Multi, error) {
	if len(backends) == 0 {
		return nil, errors.New("storage: multi backend needs at least one backend")
	}
	return &Multi{backends: backends}, nil
}

// Save writes e to every backend and returns the first error.
func (m *Multi) Save(ctx context.Context, e *Extraction) error {
	g, gCtx := errgroup.WithContext(ctx)
	for i, b := range m.backends {
		g.Go(func() error {
			if err := b.Save(gCtx, e); err != nil {
				return fmt.Errorf("backend %d: %w", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (m *Multi) Query(ctx context.Context, filter Filter) ([]*Extraction, error) {
	return m.backends[0].Query(ctx, filter)
}

// Close closes every backend and joins their errors.
func (m *Multi) Close() error {
	var errs []error
	for _, b := range m.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
