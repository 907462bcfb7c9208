package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkedFilename(t *testing.T) {
	tests := []struct {
		name  string
		seed  int
		chunk int
		want  string
	}{
		{name: "plain", seed: NoSeed, chunk: NoChunk, want: "out/output.jsonl"},
		{name: "seeded", seed: 3, chunk: NoChunk, want: "out/output-rs3.jsonl"},
		{name: "chunked", seed: NoSeed, chunk: 0, want: "out/output-chunk0.jsonl"},
		{name: "seeded chunk", seed: 2, chunk: 5, want: "out/output-rs2-chunk5.jsonl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChunkedFilename("out", "output", tt.seed, tt.chunk))
		})
	}
}

func TestMergeChunks(t *testing.T) {
	dir := t.TempDir()
	chunks := ChunkFilenames(dir, "output", 0, 3)
	writeLines(t, dir, filepath.Base(chunks[0]), `{"n": 0}`, `{"n": 1}`)
	writeLines(t, dir, filepath.Base(chunks[1]), ``)
	require.NoError(t, os.WriteFile(chunks[2], []byte(`{"n": 2}`), 0o600))
	dst := ChunkedFilename(dir, "output", 0, NoChunk)

	require.NoError(t, MarkDone(chunks[0]))
	require.NoError(t, MarkDone(chunks[1]))

	_, err := MergeChunks(context.Background(), dst, chunks)
	require.ErrorIs(t, err, ErrIncomplete)
	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr), "nothing is written while a chunk is pending")

	require.NoError(t, MarkDone(chunks[2]))
	n, err := MergeChunks(context.Background(), dst, chunks)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "{\"n\": 0}\n{\"n\": 1}\n{\"n\": 2}\n", string(data))
	assert.True(t, IsDone(dst))
	assert.FileExists(t, chunks[0], "chunks are kept")
}

func TestMergeChunks_NoChunks(t *testing.T) {
	_, err := MergeChunks(context.Background(), filepath.Join(t.TempDir(), "x.jsonl"), nil)
	assert.Error(t, err)
}
