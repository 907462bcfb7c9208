// Package processor defines the contract every pipeline stage implements,
// the self-test harness that checks a stage's declared test vectors, and
// the registry that builds stages from configuration.
package processor

import (
	"context"

	"github.com/ahrav/go-sftprep/internal/domain"
)

// Processor is one stage of the pipeline. Process returns a stream that
// lazily transforms in; nothing is read from in until the returned stream
// is ranged over. Processors must not mutate records they receive.
type Processor interface {
	Name() string
	Process(ctx context.Context, in domain.Stream) domain.Stream
}

// TestCase is a single self-test vector. A nil Want means the input must be
// dropped.
type TestCase struct {
	Name  string
	Input *domain.Record
	Want  *domain.Record
}

// SelfTester is implemented by processors that carry test vectors.
type SelfTester interface {
	TestCases() []TestCase
}

// TestModer is implemented by processors whose configured instance may
// skip work (for example a filter switched off). TestMode returns an
// instance that applies the full behavior, used to run self-tests.
type TestModer interface {
	TestMode() Processor
}
