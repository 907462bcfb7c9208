package activity

import (
	"context"

	"github.com/ahrav/go-sftprep/internal/config"
	"github.com/ahrav/go-sftprep/internal/domain"
	"github.com/ahrav/go-sftprep/internal/pipeline"
	"github.com/ahrav/go-sftprep/internal/processor"
)

// Activities runs manifest pipelines on a worker.
type Activities struct {
	registry *processor.Registry
	recorder pipeline.Recorder
}

// NewActivities returns activities that build processors from reg. The
// recorder may be nil.
func NewActivities(reg *processor.Registry, rec pipeline.Recorder) *Activities {
	return &Activities{registry: reg, recorder: rec}
}

// ValidateManifestConfig resolves the requested configuration, builds the
// chain and runs every self-test without reading data.
func (a *Activities) ValidateManifestConfig(
	ctx context.Context,
	req domain.ManifestRequest,
) (*domain.ManifestValidation, error) {
	if err := req.Validate(); err != nil {
		return nil, classify("ValidateManifestConfig", err)
	}
	doc, err := config.Compose(req.ConfigPath, req.Overrides)
	if err != nil {
		return nil, classify("ValidateManifestConfig", err)
	}
	prep, err := pipeline.NewRunner(a.registry).Prepare(ctx, doc)
	if err != nil {
		return nil, classify("ValidateManifestConfig", err)
	}

	out := &domain.ManifestValidation{ConfigDigest: prep.Digest, OutputPath: prep.Settings.OutputPath}
	for _, s := range prep.Pipeline.Stages() {
		out.Stages = append(out.Stages, s.Target)
	}
	return out, nil
}

// PrepareManifest runs the configured pipeline to completion, heartbeating
// the running record count.
func (a *Activities) PrepareManifest(
	ctx context.Context,
	req domain.ManifestRequest,
) (*domain.ManifestResult, error) {
	if err := req.Validate(); err != nil {
		return nil, classify("PrepareManifest", err)
	}
	doc, err := config.Compose(req.ConfigPath, req.Overrides)
	if err != nil {
		return nil, classify("PrepareManifest", err)
	}

	wf := GetWorkflowContext(ctx)
	opts := []pipeline.Option{
		pipeline.WithProgressHook(func(records int) { RecordHeartbeat(ctx, records) }),
	}
	if a.recorder != nil {
		opts = append(opts, pipeline.WithRecorder(a.recorder))
	}
	runner := pipeline.NewRunner(a.registry, opts...)

	prep, err := runner.Prepare(ctx, doc)
	if err != nil {
		SafeLogError(ctx, "manifest configuration rejected", "workflow_id", wf.WorkflowID, "error", err)
		return nil, classify("PrepareManifest", err)
	}
	res, err := runner.Execute(ctx, prep)
	if err != nil {
		SafeLogError(ctx, "manifest run failed", "workflow_id", wf.WorkflowID, "error", err)
		return nil, classify("PrepareManifest", err)
	}

	out := &domain.ManifestResult{
		RunID:        res.RunID,
		ConfigDigest: res.ConfigDigest,
		OutputPath:   prep.Settings.OutputPath,
		Records:      res.Records,
		Stages:       make([]domain.StageSummary, len(res.Stages)),
	}
	for i, s := range res.Stages {
		out.Stages[i] = domain.StageSummary{Index: s.Index, Target: s.Target, In: s.In, Out: s.Out}
	}
	SafeLog(ctx, "manifest written",
		"workflow_id", wf.WorkflowID, "run_id", out.RunID, "records", out.Records, "output_path", out.OutputPath)
	return out, nil
}
