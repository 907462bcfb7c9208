package pipeline

import (
	"fmt"

	"github.com/ahrav/go-sftprep/internal/domain"
)

// ErrInvalidRange is returned for a malformed processors_to_run value.
var ErrInvalidRange = fmt.Errorf("%w: invalid processors_to_run", domain.ErrConfig)

// StageError attributes a failure to one configured processor.
type StageError struct {
	// Index is the processor's position in the configured chain.
	Index  int
	Target string
	Err    error
}

// Error names the processor and the underlying failure.
func (e *StageError) Error() string {
	return fmt.Sprintf("processor #%d (%s): %v", e.Index, e.Target, e.Err)
}

// Unwrap returns the underlying failure.
func (e *StageError) Unwrap() error { return e.Err }
