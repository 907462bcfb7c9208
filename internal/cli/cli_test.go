package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-sftprep/internal/dataset"
	"github.com/ahrav/go-sftprep/internal/domain"
)

func TestParseInvocation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		check   func(t *testing.T, inv Invocation)
		wantErr bool
	}{
		{
			name: "run with config and overrides",
			args: []string{"run", "--config", "c.yaml", "--log-format", "json", "++output_path=/o.jsonl", "++random_seed=3"},
			check: func(t *testing.T, inv Invocation) {
				assert.Equal(t, "c.yaml", inv.ConfigPath)
				assert.Equal(t, []string{"++output_path=/o.jsonl", "++random_seed=3"}, inv.Overrides)
				assert.Equal(t, "json", inv.Log.Format)
				assert.Equal(t, slog.LevelInfo, inv.Log.Level)
			},
		},
		{
			name: "validate with ledger and debug logs",
			args: []string{"validate", "--ledger", "runs.db", "--log-level", "debug"},
			check: func(t *testing.T, inv Invocation) {
				assert.Equal(t, "runs.db", inv.Worker.LedgerPath)
				assert.Equal(t, slog.LevelDebug, inv.Log.Level)
			},
		},
		{
			name: "merge by chunk count",
			args: []string{"merge-chunks", "--output", "o.jsonl", "--dir", "d", "--seed", "2", "--chunks", "3"},
			check: func(t *testing.T, inv Invocation) {
				assert.Equal(t, 3, inv.NumChunks)
				assert.Equal(t, 2, inv.ChunkSeed)
			},
		},
		{
			name: "runs with id",
			args: []string{"runs", "--ledger", "runs.db", "abc"},
			check: func(t *testing.T, inv Invocation) {
				assert.Equal(t, "abc", inv.RunID)
			},
		},
		{name: "no command", args: nil, wantErr: true},
		{name: "unknown command", args: []string{"frobnicate"}, wantErr: true},
		{name: "override without equals", args: []string{"run", "++output_path"}, wantErr: true},
		{name: "bad log level", args: []string{"run", "--log-level", "loud"}, wantErr: true},
		{name: "bad log format", args: []string{"run", "--log-format", "xml"}, wantErr: true},
		{name: "merge needs output", args: []string{"merge-chunks", "a.jsonl"}, wantErr: true},
		{name: "merge needs one chunk source", args: []string{"merge-chunks", "--output", "o", "--chunks", "2", "a.jsonl"}, wantErr: true},
		{name: "register needs redis", args: []string{"register-dataset", "--name", "n", "--split", "s", "a.jsonl"}, wantErr: true},
		{name: "runs needs ledger", args: []string{"runs"}, wantErr: true},
		{name: "worker rejects positionals", args: []string{"worker", "extra"}, wantErr: true},
		{name: "submit needs input", args: []string{"submit"}, wantErr: true},
		{name: "unknown flag", args: []string{"run", "--nope"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := ParseInvocation(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsInvocationError(err))
				assert.Equal(t, ExitInvalidInvocation, ExitCode(err))
				return
			}
			require.NoError(t, err)
			tt.check(t, inv)
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitConfigError, ExitCode(fmt.Errorf("x: %w", domain.ErrOutputPathRequired)))
	assert.Equal(t, ExitSelfTestFailure, ExitCode(fmt.Errorf("x: %w", domain.ErrSelfTest)))
	assert.Equal(t, ExitRunFailure, ExitCode(fmt.Errorf("x: %w", domain.ErrRecordShape)))
	assert.Equal(t, ExitRunFailure, ExitCode(errors.New("disk full")))
}

func execute(t *testing.T, args ...string) (int, string, error) {
	t.Helper()
	inv, err := ParseInvocation(args)
	require.NoError(t, err)
	var out bytes.Buffer
	code, err := Execute(context.Background(), inv, &out)
	return code, out.String(), err
}

func TestExecute_RunAndRuns(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(
		`{"input": "q1", "output": "`+"```a```"+`"}`+"\n"+
			`{"input": "q2", "output": "`+"```b"+`"}`+"\n"), 0o600))
	output := filepath.Join(dir, "manifest.jsonl")
	ledger := filepath.Join(dir, "runs.db")

	code, stdout, err := execute(t, "run", "--ledger", ledger, "++input_files="+input, "++output_path="+output)
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, code)

	var res domain.ManifestResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, 1, res.Records)
	assert.FileExists(t, output)

	code, stdout, err = execute(t, "runs", "--ledger", ledger, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, `"Status": "completed"`)
	assert.Contains(t, stdout, res.RunID)
}

func TestExecute_RunWithoutOutputPath(t *testing.T) {
	code, _, err := execute(t, "run", "++input_files=x.jsonl")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, code)
}

func TestExecute_Validate(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "manifest.jsonl")

	code, stdout, err := execute(t, "validate", "++input_files=never-read.jsonl", "++output_path="+output)
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "WriteFinalSftManifest")
	assert.NoFileExists(t, output)
}

func TestExecute_MergeChunks(t *testing.T) {
	dir := t.TempDir()
	for i, line := range []string{`{"a": 1}`, `{"a": 2}`} {
		path := dataset.ChunkedFilename(dir, "output", 0, i)
		require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0o600))
		require.NoError(t, dataset.MarkDone(path))
	}
	merged := filepath.Join(dir, "output-rs0.jsonl")

	code, stdout, err := execute(t, "merge-chunks", "--output", merged, "--dir", dir, "--seed", "0", "--chunks", "2")
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, `"records": 2`)
	assert.True(t, dataset.IsDone(merged))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, LogOptions{Format: "json", Level: slog.LevelWarn}).Info("hidden")
	assert.Empty(t, buf.String())

	NewLogger(&buf, LogOptions{Format: "json", Level: slog.LevelWarn}).Warn("shown", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
