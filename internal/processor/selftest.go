package processor

import (
	"context"
	"fmt"

	"github.com/ahrav/go-sftprep/internal/domain"
)

// SelfTestError reports a test vector that did not hold.
type SelfTestError struct {
	Processor string
	Case      string
	Input     *domain.Record
	Want      *domain.Record
	Got       *domain.Record
	// Err is set when the processor failed instead of producing output.
	Err error
}

// Error names the processor and the case, and shows expected and actual output.
func (e *SelfTestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s case %q: input %#v: %v", domain.ErrSelfTest, e.Processor, e.Case, e.Input, e.Err)
	}
	return fmt.Sprintf("%s: %s case %q: input %#v: want %#v, got %#v",
		domain.ErrSelfTest, e.Processor, e.Case, e.Input, e.Want, e.Got)
}

// Unwrap exposes ErrSelfTest and the underlying failure, if any.
func (e *SelfTestError) Unwrap() []error {
	if e.Err != nil {
		return []error{domain.ErrSelfTest, e.Err}
	}
	return []error{domain.ErrSelfTest}
}

// RunSelfTests runs p's test vectors, one record at a time. Processors
// without vectors pass trivially. The first failing vector is returned.
func RunSelfTests(ctx context.Context, p Processor) error {
	st, ok := p.(SelfTester)
	if !ok {
		return nil
	}
	target := p
	if tm, ok := p.(TestModer); ok {
		target = tm.TestMode()
	}

	for i, tc := range st.TestCases() {
		name := tc.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		if err := runCase(ctx, target, p.Name(), name, tc); err != nil {
			return err
		}
	}
	return nil
}

func runCase(ctx context.Context, p Processor, procName, caseName string, tc TestCase) error {
	out, err := domain.Collect(p.Process(ctx, domain.FromSlice([]*domain.Record{tc.Input.Clone()})))
	if err != nil {
		return &SelfTestError{Processor: procName, Case: caseName, Input: tc.Input, Want: tc.Want, Err: err}
	}
	if len(out) > 1 {
		return &SelfTestError{
			Processor: procName, Case: caseName, Input: tc.Input, Want: tc.Want,
			Err: fmt.Errorf("emitted %d records for one input", len(out)),
		}
	}

	var got *domain.Record
	if len(out) == 1 {
		got = out[0]
	}
	if !got.Equal(tc.Want) {
		return &SelfTestError{Processor: procName, Case: caseName, Input: tc.Input, Want: tc.Want, Got: got}
	}
	return nil
}
