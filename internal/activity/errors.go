package activity

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-sftprep/internal/domain"
)

// Application error types reported to the workflow.
const (
	ErrorTypeConfig      = "Config"
	ErrorTypeSelfTest    = "SelfTest"
	ErrorTypeRecordShape = "RecordShape"
	ErrorTypeIO          = "IO"
)

// classify maps a pipeline failure onto a Temporal application error.
// Configuration, self-test and record-shape failures repeat on every
// attempt, so they are non-retryable. Anything else (typically I/O) may be
// retried.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrConfig):
		return nonRetryable(ErrorTypeConfig, err, op+": invalid configuration")
	case errors.Is(err, domain.ErrSelfTest):
		return nonRetryable(ErrorTypeSelfTest, err, op+": processor self-test failed")
	case errors.Is(err, domain.ErrRecordShape):
		return nonRetryable(ErrorTypeRecordShape, err, op+": malformed input record")
	default:
		return retryable(ErrorTypeIO, err, op+" failed")
	}
}

func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}

func retryable(tag string, cause error, msg string) error {
	return temporal.NewApplicationError(msg, tag, cause)
}
