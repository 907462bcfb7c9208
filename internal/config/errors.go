package config

import (
	"fmt"
	"strings"

	"github.com/ahrav/go-sftprep/internal/domain"
)

// Resolution failures. All wrap domain.ErrConfig.
var (
	// ErrCycle is wrapped by CycleError.
	ErrCycle = fmt.Errorf("%w: circular reference", domain.ErrConfig)

	// ErrMissingRequired is wrapped by MissingRequiredError.
	ErrMissingRequired = fmt.Errorf("%w: missing required setting", domain.ErrConfig)

	// ErrUnresolvedReference indicates a reference to an unset path with no default.
	ErrUnresolvedReference = fmt.Errorf("%w: unresolved reference", domain.ErrConfig)

	// ErrInvalidReference indicates malformed reference syntax or an
	// embedded reference to a non-scalar value.
	ErrInvalidReference = fmt.Errorf("%w: invalid reference", domain.ErrConfig)

	// ErrInvalidPath indicates a malformed or unaddressable dotted path.
	ErrInvalidPath = fmt.Errorf("%w: invalid path", domain.ErrConfig)

	// ErrInvalidOverride indicates a command-line override that is not key=value.
	ErrInvalidOverride = fmt.Errorf("%w: invalid override", domain.ErrConfig)

	// ErrInvalidDocument indicates YAML that cannot be parsed or decoded.
	ErrInvalidDocument = fmt.Errorf("%w: invalid document", domain.ErrConfig)
)

// CycleError reports a circular chain of references. Path lists the
// settings in the cycle, starting and ending with the same path.
type CycleError struct {
	Path []string
}

// Error formats the cycle as "a -> b -> a".
func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(e.Path, " -> "))
}

// Unwrap returns ErrCycle.
func (e *CycleError) Unwrap() error { return ErrCycle }

// MissingRequiredError lists mandatory settings left unset after resolution.
type MissingRequiredError struct {
	Paths []string
}

// Error names every missing setting.
func (e *MissingRequiredError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingRequired, strings.Join(e.Paths, ", "))
}

// Unwrap returns ErrMissingRequired.
func (e *MissingRequiredError) Unwrap() error { return ErrMissingRequired }
