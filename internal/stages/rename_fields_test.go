package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-sftprep/internal/domain"
	"github.com/ahrav/go-sftprep/internal/processor"
)

func renames(pairs ...string) processor.Args {
	var list []any
	for i := 0; i < len(pairs); i += 2 {
		list = append(list, map[string]any{"from": pairs[i], "to": pairs[i+1]})
	}
	return processor.Args{"renames": list}
}

func TestRenameFields_Process(t *testing.T) {
	in := []*domain.Record{
		domain.RecordOf("input", "q1", "output", "a1", "expected_answer", "1"),
		domain.RecordOf("output", "a2", "input", "q2"),
	}

	got, err := run(t, TargetRenameFields, renames("input", "question"), in...)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, []string{"question", "output", "expected_answer"}, got[0].Keys())
	assert.Equal(t, []string{"output", "question"}, got[1].Keys())
	assert.Equal(t, []any{"q1", "q2"}, values(t, got, "question"))
	assert.True(t, in[0].Has("input"), "input records are not modified")
}

func TestRenameFields_AbsentKeyIsNoop(t *testing.T) {
	in := []*domain.Record{
		domain.RecordOf("input", "q1", "output", "a1"),
		domain.RecordOf("input", "q2", "output", "a2"),
	}

	got, err := run(t, TargetRenameFields, renames("not_there", "anything"), in...)
	require.NoError(t, err)
	require.Len(t, got, len(in))
	for i := range in {
		assert.True(t, in[i].Equal(got[i]))
	}
}

func TestRenameFields_Collision(t *testing.T) {
	_, err := run(t, TargetRenameFields, renames("input", "question"),
		domain.RecordOf("input", "q", "question", "already here"))
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
	assert.ErrorIs(t, err, domain.ErrRecordShape)
}

func TestNewRenameFields_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		args processor.Args
	}{
		{name: "no renames", args: processor.Args{}},
		{name: "empty target", args: renames("input", "")},
		{name: "same source twice", args: renames("input", "a", "input", "b")},
		{name: "same target twice", args: renames("input", "a", "output", "a")},
		{name: "chained", args: renames("input", "output", "output", "answer")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRenameFields(tt.args)
			assert.ErrorIs(t, err, domain.ErrConfig)
		})
	}
}

func TestRenameFields_SelfTests(t *testing.T) {
	tests := []struct {
		name string
		args processor.Args
	}{
		{name: "default renames", args: renames("input", "question", "output", "solution")},
		{name: "rename into placeholder name", args: renames("input", "__untouched__")},
		{name: "rename from placeholder name", args: renames("__untouched__", "question")},
		{name: "placeholder and first fallback taken", args: renames("__untouched__", "a", "b", "__untouched_1__")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewRenameFields(tt.args)
			require.NoError(t, err)
			assert.NoError(t, processor.RunSelfTests(context.Background(), p))
		})
	}
}
