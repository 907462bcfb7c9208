package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-sftprep/internal/config"
	"github.com/ahrav/go-sftprep/internal/processor"
)

// DefaultProgressInterval is how often a run logs its record count.
const DefaultProgressInterval = 10 * time.Second

// Run statuses reported to a Recorder.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunInfo identifies a run when it starts.
type RunInfo struct {
	ID           string
	ConfigDigest string
	StartedAt    time.Time
}

// Recorder persists run history. Recording failures are logged and never
// fail the run.
type Recorder interface {
	StartRun(ctx context.Context, info RunInfo) error
	FinishRun(ctx context.Context, runID, status string, stats []StageStats, runErr error) error
}

// Result summarizes a completed run.
type Result struct {
	RunID        string
	ConfigDigest string
	Records      int
	Stages       []StageStats
	Duration     time.Duration
}

// Runner resolves configuration documents into pipelines and executes them.
type Runner struct {
	registry         *processor.Registry
	recorder         Recorder
	progressInterval time.Duration
	onStage          func(StageStats)
	onProgress       func(read int)
	logger           *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithRecorder records every run.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithProgressInterval sets how often progress is logged.
func WithProgressInterval(d time.Duration) Option {
	return func(r *Runner) { r.progressInterval = d }
}

// WithStageHook calls fn with each stage's counts once a run has drained.
func WithStageHook(fn func(StageStats)) Option {
	return func(r *Runner) { r.onStage = fn }
}

// WithProgressHook calls fn with the number of records read by the first
// stage, at most once per progress interval.
func WithProgressHook(fn func(read int)) Option {
	return func(r *Runner) { r.onProgress = fn }
}

// NewRunner returns a runner that builds processors from reg.
func NewRunner(reg *processor.Registry, opts ...Option) *Runner {
	r := &Runner{
		registry:         reg,
		progressInterval: DefaultProgressInterval,
		logger:           slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prepared is a validated pipeline ready to run.
type Prepared struct {
	Pipeline *Pipeline
	Settings *config.Settings
	Resolved config.Document
	Digest   string
}

// Prepare resolves doc, builds every processor and runs their self-tests.
// No record is read. Configuration problems wrap domain.ErrConfig and
// failing vectors wrap domain.ErrSelfTest.
func (r *Runner) Prepare(ctx context.Context, doc config.Document) (*Prepared, error) {
	resolved, err := config.Resolve(doc, config.WithRequired("processors"))
	if err != nil {
		return nil, err
	}
	settings, err := config.DecodeSettings(resolved)
	if err != nil {
		return nil, err
	}
	digest, err := Digest(resolved)
	if err != nil {
		return nil, err
	}

	p, err := Build(settings, r.registry)
	if err != nil {
		return nil, err
	}
	if err := p.SelfTest(ctx); err != nil {
		return nil, err
	}
	r.logger.Info("pipeline validated", "stages", len(p.Stages()), "config_digest", digest)
	return &Prepared{Pipeline: p, Settings: settings, Resolved: resolved, Digest: digest}, nil
}

// Run prepares doc and streams records through the chain. Any failure
// aborts the whole run.
func (r *Runner) Run(ctx context.Context, doc config.Document) (*Result, error) {
	prep, err := r.Prepare(ctx, doc)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, prep)
}

// Execute runs an already prepared pipeline.
func (r *Runner) Execute(ctx context.Context, prep *Prepared) (*Result, error) {
	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)
	start := time.Now()

	r.startRun(ctx, logger, RunInfo{ID: runID, ConfigDigest: prep.Digest, StartedAt: start})

	// Progress follows the head of the chain; the tail stays silent while a
	// buffering stage such as Downsample collects its input.
	progress := rate.Sometimes{Interval: r.progressInterval}
	stream, counters := prep.Pipeline.Stream(ctx, func(read int) {
		progress.Do(func() {
			logger.Info("pipeline progress", "records_read", read)
			if r.onProgress != nil {
				r.onProgress(read)
			}
		})
	})
	records := 0
	var runErr error
	for _, err := range stream {
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			runErr = err
			break
		}
		records++
	}

	stats := make([]StageStats, len(counters))
	for i, c := range counters {
		stats[i] = *c
		if r.onStage != nil {
			r.onStage(stats[i])
		}
	}

	status := StatusCompleted
	if runErr != nil {
		status = StatusFailed
	}
	r.finishRun(ctx, logger, runID, status, stats, runErr)

	if runErr != nil {
		logger.Error("pipeline failed", "error", runErr)
		return nil, runErr
	}

	res := &Result{
		RunID:        runID,
		ConfigDigest: prep.Digest,
		Records:      records,
		Stages:       stats,
		Duration:     time.Since(start),
	}
	logger.Info("pipeline completed", "records", records, "duration", res.Duration)
	return res, nil
}

func (r *Runner) startRun(ctx context.Context, logger *slog.Logger, info RunInfo) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.StartRun(ctx, info); err != nil {
		logger.Warn("failed to record run start", "error", err)
	}
}

func (r *Runner) finishRun(ctx context.Context, logger *slog.Logger, runID, status string, stats []StageStats, runErr error) {
	if r.recorder == nil {
		return
	}
	// The run context may already be cancelled; history is still written.
	if err := r.recorder.FinishRun(context.WithoutCancel(ctx), runID, status, stats, runErr); err != nil {
		logger.Warn("failed to record run result", "error", err)
	}
}

// Digest fingerprints a resolved document. Map keys are encoded in sorted
// order, so equal documents share a digest.
func Digest(doc config.Document) (string, error) {
	data, err := config.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding config for digest: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
