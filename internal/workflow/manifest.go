package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-sftprep/internal/activity"
	"github.com/ahrav/go-sftprep/internal/domain"
)

// Activity timeouts.
const (
	ValidateTimeout  = 5 * time.Minute
	PrepareTimeout   = 12 * time.Hour
	HeartbeatTimeout = time.Minute
)

// ManifestWorkflow validates the requested configuration and then runs the
// pipeline that writes the manifest.
func ManifestWorkflow(ctx workflow.Context, req domain.ManifestRequest) (*domain.ManifestResult, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "manifest.v", workflow.DefaultVersion, currentVersion)

	if err := req.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError("invalid manifest request", "Validation", err)
	}

	retry := &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Minute,
		MaximumAttempts:    3,
	}
	var acts *activity.Activities

	validateCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: ValidateTimeout,
		RetryPolicy:         retry,
	})
	var validation domain.ManifestValidation
	if err := workflow.ExecuteActivity(validateCtx, acts.ValidateManifestConfig, req).Get(ctx, &validation); err != nil {
		return nil, err
	}
	workflow.GetLogger(ctx).Info("manifest config validated",
		"config_digest", validation.ConfigDigest, "stages", len(validation.Stages))

	prepareCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: PrepareTimeout,
		HeartbeatTimeout:    HeartbeatTimeout,
		RetryPolicy:         retry,
	})
	var result domain.ManifestResult
	if err := workflow.ExecuteActivity(prepareCtx, acts.PrepareManifest, req).Get(ctx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
