package processor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-sftprep/internal/domain"
)

// upperFilter upper-cases "text" and drops records whose text is empty.
type upperFilter struct {
	cases   []TestCase
	enabled bool
	fail    error
}

func (u *upperFilter) Name() string { return "UpperFilter" }

func (u *upperFilter) Process(ctx context.Context, in domain.Stream) domain.Stream {
	return Map(ctx, in, 1, func(_ context.Context, rec *domain.Record) (*domain.Record, error) {
		if u.fail != nil {
			return nil, u.fail
		}
		if !u.enabled {
			return rec, nil
		}
		s, err := domain.RequireString(rec, "text")
		if err != nil {
			return nil, err
		}
		if s == "" {
			return nil, nil
		}
		out := rec.Clone()
		out.Set("text", strings.ToUpper(s))
		return out, nil
	})
}

func (u *upperFilter) TestCases() []TestCase { return u.cases }

func (u *upperFilter) TestMode() Processor {
	cp := *u
	cp.enabled = true
	return &cp
}

// passthrough carries no test vectors.
type passthrough struct{}

func (passthrough) Name() string { return "Passthrough" }
func (passthrough) Process(_ context.Context, in domain.Stream) domain.Stream {
	return in
}

func TestRunSelfTests(t *testing.T) {
	good := []TestCase{
		{Name: "upper", Input: domain.RecordOf("text", "abc"), Want: domain.RecordOf("text", "ABC")},
		{Name: "drop", Input: domain.RecordOf("text", ""), Want: nil},
	}

	tests := []struct {
		name     string
		proc     Processor
		wantErr  bool
		wantCase string
		wantIs   error
	}{
		{name: "passing vectors", proc: &upperFilter{cases: good, enabled: true}},
		{name: "disabled instance uses test mode", proc: &upperFilter{cases: good, enabled: false}},
		{name: "no vectors", proc: passthrough{}},
		{
			name: "expected drop but kept",
			proc: &upperFilter{enabled: true, cases: []TestCase{
				{Name: "should drop", Input: domain.RecordOf("text", "x"), Want: nil},
			}},
			wantErr:  true,
			wantCase: "should drop",
		},
		{
			name: "unnamed mismatch",
			proc: &upperFilter{enabled: true, cases: []TestCase{
				{Input: domain.RecordOf("text", "x"), Want: domain.RecordOf("text", "x")},
			}},
			wantErr:  true,
			wantCase: "#0",
		},
		{
			name: "processor error",
			proc: &upperFilter{enabled: true, cases: []TestCase{
				{Name: "missing field", Input: domain.RecordOf("other", "x"), Want: nil},
			}},
			wantErr:  true,
			wantCase: "missing field",
			wantIs:   domain.ErrRecordShape,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RunSelfTests(context.Background(), tt.proc)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrSelfTest)

			var ste *SelfTestError
			require.ErrorAs(t, err, &ste)
			assert.Equal(t, "UpperFilter", ste.Processor)
			assert.Equal(t, tt.wantCase, ste.Case)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestRunSelfTests_DoesNotMutateVectors(t *testing.T) {
	in := domain.RecordOf("text", "abc")
	p := &upperFilter{enabled: true, cases: []TestCase{{Input: in, Want: domain.RecordOf("text", "ABC")}}}

	require.NoError(t, RunSelfTests(context.Background(), p))
	s, _ := in.GetString("text")
	assert.Equal(t, "abc", s)
}

func TestSelfTestError_Message(t *testing.T) {
	err := &SelfTestError{
		Processor: "DropIncorrectCodeBlocks",
		Case:      "unmatched fence",
		Input:     domain.RecordOf("output", "x"),
		Want:      nil,
		Got:       domain.RecordOf("output", "x"),
	}
	msg := err.Error()
	assert.Contains(t, msg, "DropIncorrectCodeBlocks")
	assert.Contains(t, msg, "unmatched fence")
	assert.Contains(t, msg, "<dropped>")
	assert.False(t, errors.Is(err, domain.ErrConfig))
}
