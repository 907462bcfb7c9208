package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-sftprep/internal/domain"
)

func TestReadJSONL_PreservesOrderAndKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeLines(t, dir, "a.jsonl",
		`{"input": "q1", "output": "a1", "id": 1}`,
		``,
		`{"output": "a2", "input": "q2"}`,
	)

	recs, err := domain.Collect(ReadJSONL(context.Background(), path))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, []string{"input", "output", "id"}, recs[0].Keys())
	assert.Equal(t, []string{"output", "input"}, recs[1].Keys())
	v, _ := recs[0].GetString("input")
	assert.Equal(t, "q1", v)
}

func TestReadJSONL_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := domain.Collect(ReadJSONL(context.Background(), filepath.Join(dir, "nope.jsonl")))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed line names position", func(t *testing.T) {
		path := writeLines(t, dir, "bad.jsonl", `{"input": "ok"}`, `{"input": `)
		_, err := domain.Collect(ReadJSONL(context.Background(), path))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad.jsonl:2")
	})

	t.Run("non-object line", func(t *testing.T) {
		path := writeLines(t, dir, "arr.jsonl", `[1, 2]`)
		_, err := domain.Collect(ReadJSONL(context.Background(), path))
		assert.ErrorIs(t, err, domain.ErrRecordShape)
	})

	t.Run("cancelled context", func(t *testing.T) {
		path := writeLines(t, dir, "ok.jsonl", `{"input": "q"}`)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := domain.Collect(ReadJSONL(ctx, path))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestConcatAndSkip(t *testing.T) {
	dir := t.TempDir()
	a := writeLines(t, dir, "a.jsonl", `{"n": "a1"}`, `{"n": "a2"}`)
	b := writeLines(t, dir, "b.jsonl", `{"n": "b1"}`)

	tests := []struct {
		name string
		skip int
		want []string
	}{
		{name: "no skip", skip: 0, want: []string{"a1", "a2", "b1"}},
		{name: "skip crosses file boundary", skip: 2, want: []string{"b1"}},
		{name: "skip everything", skip: 10, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := domain.Collect(Skip(Concat(context.Background(), []string{a, b}), tt.skip))
			require.NoError(t, err)
			var got []string
			for _, r := range recs {
				v, _ := r.GetString("n")
				got = append(got, v)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteJSONL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "manifest.jsonl")

	n, err := WriteJSONL(path, domain.FromSlice([]*domain.Record{
		domain.RecordOf("question", "<b>q</b>", "output", "a"),
		domain.RecordOf("question", "q2", "output", "b"),
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"question\":\"<b>q</b>\",\"output\":\"a\"}\n{\"question\":\"q2\",\"output\":\"b\"}\n", string(data))
}

func TestWriteJSONL_FailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.jsonl")
	boom := errors.New("boom")

	stream := func(yield func(*domain.Record, error) bool) {
		if !yield(domain.RecordOf("question", "q"), nil) {
			return
		}
		yield(nil, boom)
	}

	_, err := WriteJSONL(path, stream)
	require.ErrorIs(t, err, boom)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "neither the manifest nor a temporary file may remain")
}
