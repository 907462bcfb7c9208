// Package activity exposes manifest preparation as Temporal activities. The
// helpers here work both inside a Temporal activity context and in plain
// tests, where the activity APIs would panic.
package activity

import (
	"context"

	"go.temporal.io/sdk/activity"
)

// WorkflowContext carries the workflow execution an activity runs under.
type WorkflowContext struct {
	WorkflowID string
	RunID      string
	ActivityID string
}

// GetWorkflowContext extracts the execution details from ctx. Outside an
// activity context it returns a zero value.
func GetWorkflowContext(ctx context.Context) WorkflowContext {
	var wfCtx WorkflowContext
	func() {
		defer func() { _ = recover() }()
		info := activity.GetInfo(ctx)
		wfCtx = WorkflowContext{
			WorkflowID: info.WorkflowExecution.ID,
			RunID:      info.WorkflowExecution.RunID,
			ActivityID: info.ActivityID,
		}
	}()
	return wfCtx
}

// SafeLog logs at INFO through the activity logger, or not at all outside
// an activity context.
func SafeLog(ctx context.Context, msg string, keyvals ...any) {
	defer func() { _ = recover() }()
	activity.GetLogger(ctx).Info(msg, keyvals...)
}

// SafeLogError is SafeLog at ERROR level.
func SafeLogError(ctx context.Context, msg string, keyvals ...any) {
	defer func() { _ = recover() }()
	activity.GetLogger(ctx).Error(msg, keyvals...)
}

// RecordHeartbeat records progress details; a no-op outside an activity.
func RecordHeartbeat(ctx context.Context, details ...any) {
	defer func() { _ = recover() }()
	activity.RecordHeartbeat(ctx, details...)
}
