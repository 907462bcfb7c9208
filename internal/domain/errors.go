package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy. Every fatal pipeline failure wraps exactly one of these
// three kinds so callers can classify it with errors.Is.
var (
	// ErrConfig indicates an invalid or incomplete configuration: a missing
	// mandatory setting, an ambiguous or absent source, a circular reference.
	// Raised before any data is read.
	ErrConfig = errors.New("configuration error")

	// ErrSelfTest indicates a processor's declared test vector did not match.
	// Raised before the real-data run starts.
	ErrSelfTest = errors.New("self-test failure")

	// ErrRecordShape indicates a record reaching a processor lacks a field
	// that processor depends on, or a field operation would corrupt it.
	ErrRecordShape = errors.New("record shape error")
)

// Specific failures, each wrapping its taxonomy kind.
var (
	// ErrAmbiguousSource is returned when more than one dataset source is set.
	ErrAmbiguousSource = fmt.Errorf("%w: more than one dataset source given", ErrConfig)

	// ErrNoSource is returned when no dataset source is set.
	ErrNoSource = fmt.Errorf("%w: no dataset source given", ErrConfig)

	// ErrOutputPathRequired is returned when the manifest writer has no output path.
	ErrOutputPathRequired = fmt.Errorf("%w: output_path is required", ErrConfig)

	// ErrUnknownProcessor is returned for a processor target missing from the registry.
	ErrUnknownProcessor = fmt.Errorf("%w: unknown processor", ErrConfig)

	// ErrDuplicateKey is returned when a rename target collides with an existing key.
	ErrDuplicateKey = fmt.Errorf("%w: duplicate key", ErrRecordShape)
)

// RecordShapeError describes a record missing a field a processor needs.
type RecordShapeError struct {
	// Field is the missing or malformed field name.
	Field string
	// Reason explains what was wrong, e.g. "missing" or "not a string".
	Reason string
	// Present lists the keys the record did carry, for diagnosis.
	Present []string
}

// Error formats the error as "record shape error: field "x" missing (present: a, b)".
func (e *RecordShapeError) Error() string {
	return fmt.Sprintf("%s: field %q %s (present: %s)",
		ErrRecordShape, e.Field, e.Reason, strings.Join(e.Present, ", "))
}

// Unwrap returns ErrRecordShape.
func (e *RecordShapeError) Unwrap() error { return ErrRecordShape }

// RequireString returns the string stored under field or a RecordShapeError.
func RequireString(rec *Record, field string) (string, error) {
	v, ok := rec.Get(field)
	if !ok {
		return "", &RecordShapeError{Field: field, Reason: "missing", Present: rec.Keys()}
	}
	s, ok := v.(string)
	if !ok {
		return "", &RecordShapeError{Field: field, Reason: fmt.Sprintf("is %T, not string", v), Present: rec.Keys()}
	}
	return s, nil
}

// RequireField returns the value stored under field or a RecordShapeError.
func RequireField(rec *Record, field string) (any, error) {
	v, ok := rec.Get(field)
	if !ok {
		return nil, &RecordShapeError{Field: field, Reason: "missing", Present: rec.Keys()}
	}
	return v, nil
}
