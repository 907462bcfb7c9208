package processor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-sftprep/internal/domain"
)

// batchPerWorker bounds how many records are in flight per worker.
const batchPerWorker = 64

// RecordFunc transforms one record. Returning a nil record drops it.
type RecordFunc func(ctx context.Context, rec *domain.Record) (*domain.Record, error)

// Map applies fn to every record of in. With more than one worker, records
// are processed concurrently in bounded batches and emitted in input order,
// so the output is identical to a sequential run.
func Map(ctx context.Context, in domain.Stream, workers int, fn RecordFunc) domain.Stream {
	if workers <= 1 {
		return mapSequential(ctx, in, fn)
	}
	return func(yield func(*domain.Record, error) bool) {
		batch := make([]*domain.Record, 0, workers*batchPerWorker)

		flush := func() bool {
			out, err := mapBatch(ctx, batch, workers, fn)
			batch = batch[:0]
			if err != nil {
				yield(nil, err)
				return false
			}
			for _, rec := range out {
				if rec == nil {
					continue
				}
				if !yield(rec, nil) {
					return false
				}
			}
			return true
		}

		for rec, err := range in {
			if err != nil {
				if flush() {
					yield(nil, err)
				}
				return
			}
			batch = append(batch, rec)
			if len(batch) == cap(batch) && !flush() {
				return
			}
		}
		if len(batch) > 0 {
			flush()
		}
	}
}

func mapSequential(ctx context.Context, in domain.Stream, fn RecordFunc) domain.Stream {
	return func(yield func(*domain.Record, error) bool) {
		for rec, err := range in {
			if err != nil {
				yield(nil, err)
				return
			}
			out, err := fn(ctx, rec)
			if err != nil {
				yield(nil, err)
				return
			}
			if out == nil {
				continue
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}

func mapBatch(ctx context.Context, batch []*domain.Record, workers int, fn RecordFunc) ([]*domain.Record, error) {
	out := make([]*domain.Record, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rec := range batch {
		g.Go(func() error {
			res, err := fn(gctx, rec)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
