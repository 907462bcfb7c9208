package worker

import (
	"context"

	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-sftprep/internal/activity"
	"github.com/ahrav/go-sftprep/internal/pipeline"
	"github.com/ahrav/go-sftprep/internal/stages"
	"github.com/ahrav/go-sftprep/internal/workflow"
)

// TaskQueue is the default Temporal task queue for manifest work.
const TaskQueue = "sft-manifest"

// Registrar is the subset of a Temporal worker used for registration.
type Registrar interface {
	RegisterWorkflow(w any)
	RegisterActivity(a any)
}

var _ Registrar = sdkworker.Worker(nil)

// RegisterAll registers the manifest workflow and its activities. Call it
// once, before the worker starts.
func RegisterAll(w Registrar, acts *activity.Activities) {
	w.RegisterWorkflow(workflow.ManifestWorkflow)
	w.RegisterActivity(acts.ValidateManifestConfig)
	w.RegisterActivity(acts.PrepareManifest)
}

// Dependencies are the activities built from Options and the function that
// releases what they hold.
type Dependencies struct {
	Activities *activity.Activities
	Close      func() error
}

// Initialize builds the stage registry and activities for opts.
func Initialize(ctx context.Context, opts Options) (*Dependencies, error) {
	datasets, closeDatasets, err := InitializeDatasetRegistry(ctx, opts)
	if err != nil {
		return nil, err
	}
	ledger, err := InitializeLedger(opts)
	if err != nil {
		_ = closeDatasets()
		return nil, err
	}

	var rec pipeline.Recorder
	closeLedger := func() error { return nil }
	if ledger != nil {
		rec = ledger
		closeLedger = ledger.Close
	}

	acts := activity.NewActivities(stages.NewRegistry(stages.Deps{Datasets: datasets}), rec)
	return &Dependencies{
		Activities: acts,
		Close:      func() error { return closeAll(closeLedger, closeDatasets) },
	}, nil
}
