// Package worker wires the manifest activities and workflow into a Temporal
// worker, along with the collaborators they need.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-sftprep/internal/dataset"
	"github.com/ahrav/go-sftprep/internal/retry"
	"github.com/ahrav/go-sftprep/internal/store"
)

// Options selects the optional collaborators of a worker or local run.
type Options struct {
	// DatasetRoot serves named datasets from <root>/<name>/<split>.jsonl.
	DatasetRoot string
	// RedisAddr serves named datasets from a Redis registry. It takes
	// precedence over DatasetRoot, which then resolves relative paths.
	RedisAddr string
	// LedgerPath records run history in a SQLite file.
	LedgerPath string
}

// InitializeDatasetRegistry returns the registry selected by opts, or nil
// when named datasets are not configured. The returned close function is
// never nil.
func InitializeDatasetRegistry(ctx context.Context, opts Options) (dataset.Registry, func() error, error) {
	noop := func() error { return nil }
	switch {
	case opts.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
		if err := retry.Do(ctx, retry.DefaultConfig(), ping); err != nil {
			client.Close()
			return nil, noop, fmt.Errorf("connecting to dataset registry at %s: %w", opts.RedisAddr, err)
		}
		var regOpts []dataset.RedisOption
		if opts.DatasetRoot != "" {
			regOpts = append(regOpts, dataset.WithBaseDir(opts.DatasetRoot))
		}
		return dataset.NewRedisRegistry(client, regOpts...), client.Close, nil
	case opts.DatasetRoot != "":
		return dataset.DirRegistry{Root: opts.DatasetRoot}, noop, nil
	default:
		return nil, noop, nil
	}
}

// InitializeLedger opens the run ledger, or returns nil when no path is set.
func InitializeLedger(opts Options) (*store.Ledger, error) {
	if opts.LedgerPath == "" {
		return nil, nil
	}
	l, err := store.Open(opts.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize run ledger: %w", err)
	}
	return l, nil
}

// closeAll closes every non-nil closer and joins their errors.
func closeAll(fns ...func() error) error {
	var errs []error
	for _, fn := range fns {
		if fn != nil {
			errs = append(errs, fn())
		}
	}
	return errors.Join(errs...)
}
