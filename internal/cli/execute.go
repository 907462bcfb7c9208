package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-sftprep/internal/dataset"
	"github.com/ahrav/go-sftprep/internal/domain"
	"github.com/ahrav/go-sftprep/internal/retry"
	"github.com/ahrav/go-sftprep/internal/store"
	"github.com/ahrav/go-sftprep/internal/worker"
	"github.com/ahrav/go-sftprep/internal/workflow"
)

// Execute runs inv, writing results to stdout, and returns the exit code.
func Execute(ctx context.Context, inv Invocation, stdout io.Writer) (int, error) {
	var err error
	switch inv.Command {
	case CommandRun:
		err = runPipeline(ctx, inv, stdout)
	case CommandValidate:
		err = validatePipeline(ctx, inv, stdout)
	case CommandMergeChunks:
		err = mergeChunks(ctx, inv, stdout)
	case CommandRegisterDataset:
		err = registerDataset(ctx, inv, stdout)
	case CommandRuns:
		err = listRuns(ctx, inv, stdout)
	case CommandWorker:
		err = serveWorker(ctx, inv)
	case CommandSubmit:
		err = submitWorkflow(ctx, inv, stdout)
	default:
		err = invalidInvocationf("unknown command %q", inv.Command)
	}
	return ExitCode(err), err
}

// ExitCode maps a command failure onto a process exit code.
func ExitCode(err error) int {
	var invErr *InvocationError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &invErr):
		return invErr.ExitCode
	case errors.Is(err, domain.ErrSelfTest):
		return ExitSelfTestFailure
	case errors.Is(err, domain.ErrConfig):
		return ExitConfigError
	default:
		return ExitRunFailure
	}
}

func runPipeline(ctx context.Context, inv Invocation, stdout io.Writer) error {
	deps, err := worker.Initialize(ctx, inv.Worker)
	if err != nil {
		return err
	}
	defer deps.Close() //nolint:errcheck

	res, err := deps.Activities.PrepareManifest(ctx, domain.ManifestRequest{
		ConfigPath: inv.ConfigPath,
		Overrides:  inv.Overrides,
	})
	if err != nil {
		return unwrapApplication(err)
	}
	return writeJSON(stdout, res)
}

func validatePipeline(ctx context.Context, inv Invocation, stdout io.Writer) error {
	deps, err := worker.Initialize(ctx, inv.Worker)
	if err != nil {
		return err
	}
	defer deps.Close() //nolint:errcheck

	out, err := deps.Activities.ValidateManifestConfig(ctx, domain.ManifestRequest{
		ConfigPath: inv.ConfigPath,
		Overrides:  inv.Overrides,
	})
	if err != nil {
		return unwrapApplication(err)
	}
	return writeJSON(stdout, out)
}

func mergeChunks(ctx context.Context, inv Invocation, stdout io.Writer) error {
	chunks := inv.ChunkFiles
	if inv.NumChunks > 0 {
		chunks = dataset.ChunkFilenames(inv.ChunkDir, inv.ChunkPrefix, inv.ChunkSeed, inv.NumChunks)
	}
	lines, err := dataset.MergeChunks(ctx, inv.MergeOutput, chunks)
	if err != nil {
		return err
	}
	slog.Info("chunks merged", "output", inv.MergeOutput, "chunks", len(chunks), "records", lines)
	return writeJSON(stdout, map[string]any{"output": inv.MergeOutput, "chunks": len(chunks), "records": lines})
}

func registerDataset(ctx context.Context, inv Invocation, stdout io.Writer) error {
	files, err := dataset.ExpandPatterns(inv.DatasetFiles)
	if err != nil {
		return err
	}
	rdb := redis.NewClient(&redis.Options{Addr: inv.Worker.RedisAddr})
	defer rdb.Close()

	reg := dataset.NewRedisRegistry(rdb)
	register := func(ctx context.Context) error {
		return reg.Register(ctx, inv.DatasetName, inv.DatasetSplit, files)
	}
	if err := retry.Do(ctx, retry.DefaultConfig(), register); err != nil {
		return err
	}
	slog.Info("dataset registered", "key", reg.Key(inv.DatasetName, inv.DatasetSplit), "files", len(files))
	return writeJSON(stdout, map[string]any{"dataset": inv.DatasetName, "split": inv.DatasetSplit, "files": files})
}

func listRuns(ctx context.Context, inv Invocation, stdout io.Writer) error {
	ledger, err := store.Open(inv.Worker.LedgerPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	if inv.RunID != "" {
		run, err := ledger.GetRun(ctx, inv.RunID)
		if err != nil {
			return err
		}
		return writeJSON(stdout, run)
	}
	runs, err := ledger.Runs(ctx, inv.Limit)
	if err != nil {
		return err
	}
	return writeJSON(stdout, runs)
}

func dialTemporal(inv Invocation) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  inv.TemporalHost,
		Namespace: inv.Namespace,
		Logger:    temporallog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to temporal at %s: %w", inv.TemporalHost, err)
	}
	return c, nil
}

func serveWorker(ctx context.Context, inv Invocation) error {
	deps, err := worker.Initialize(ctx, inv.Worker)
	if err != nil {
		return err
	}
	defer deps.Close() //nolint:errcheck

	c, err := dialTemporal(inv)
	if err != nil {
		return err
	}
	defer c.Close()

	w := sdkworker.New(c, inv.TaskQueue, sdkworker.Options{})
	worker.RegisterAll(w, deps.Activities)

	stop := make(chan any)
	go func() {
		<-ctx.Done()
		close(stop)
	}()
	slog.Info("worker started", "task_queue", inv.TaskQueue, "namespace", inv.Namespace)
	return w.Run(stop)
}

func submitWorkflow(ctx context.Context, inv Invocation, stdout io.Writer) error {
	c, err := dialTemporal(inv)
	if err != nil {
		return err
	}
	defer c.Close()

	req := domain.ManifestRequest{ConfigPath: inv.ConfigPath, Overrides: inv.Overrides}
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "sft-manifest-" + uuid.NewString(),
		TaskQueue: inv.TaskQueue,
	}, workflow.ManifestWorkflow, req)
	if err != nil {
		return fmt.Errorf("starting manifest workflow: %w", err)
	}
	slog.Info("manifest workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

	var res domain.ManifestResult
	if err := run.Get(ctx, &res); err != nil {
		return err
	}
	return writeJSON(stdout, res)
}

// unwrapApplication returns the pipeline failure behind an activity error
// so exit codes see the original error kinds.
func unwrapApplication(err error) error {
	if inner := errors.Unwrap(err); inner != nil {
		return inner
	}
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// NewLogger builds the process logger.
func NewLogger(w io.Writer, opts LogOptions) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: opts.Level}
	if opts.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}
