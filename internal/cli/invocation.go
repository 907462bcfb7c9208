// Package cli parses sftprep command lines and executes them.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.temporal.io/sdk/client"

	"github.com/ahrav/go-sftprep/internal/dataset"
	"github.com/ahrav/go-sftprep/internal/worker"
)

// Process exit codes.
const (
	ExitSuccess           = 0
	ExitRunFailure        = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitSelfTestFailure   = 4
)

// Commands.
const (
	CommandRun             = "run"
	CommandValidate        = "validate"
	CommandMergeChunks     = "merge-chunks"
	CommandRegisterDataset = "register-dataset"
	CommandRuns            = "runs"
	CommandWorker          = "worker"
	CommandSubmit          = "submit"
)

// Usage is printed for a missing or unknown command.
const Usage = `usage: sftprep <command> [flags] [++key=value ...]

commands:
  run               resolve the config, self-test every processor and write the manifest
  validate          resolve the config and run self-tests without reading data
  merge-chunks      concatenate completed chunk files into one output
  register-dataset  record the files of a named dataset split in Redis
  runs              list recorded runs, or show one run by id
  worker            serve manifest workflows from a Temporal task queue
  submit            start a manifest workflow and wait for its result`

// LogOptions select the process logger.
type LogOptions struct {
	Format string
	Level  slog.Level
}

// Invocation is a parsed command line.
type Invocation struct {
	Command string
	Log     LogOptions

	// run, validate, submit
	ConfigPath string
	Overrides  []string

	Worker worker.Options

	// merge-chunks
	MergeOutput string
	ChunkDir    string
	ChunkPrefix string
	ChunkSeed   int
	NumChunks   int
	ChunkFiles  []string

	// register-dataset
	DatasetName  string
	DatasetSplit string
	DatasetFiles []string

	// runs
	RunID string
	Limit int

	// worker, submit
	TemporalHost string
	Namespace    string
	TaskQueue    string
}

// InvocationError is a malformed command line.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string { return e.Message }

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// ParseInvocation parses args, the command line without the program name.
func ParseInvocation(args []string) (Invocation, error) {
	if len(args) == 0 {
		return Invocation{}, invalidInvocationf("%s", Usage)
	}
	inv := Invocation{Command: args[0]}

	fs := flag.NewFlagSet("sftprep "+inv.Command, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var logFormat, logLevel string
	fs.StringVar(&logFormat, "log-format", "text", "Log format: text|json")
	fs.StringVar(&logLevel, "log-level", "info", "Log level: debug|info|warn|error")

	addWorkerFlags := func() {
		fs.StringVar(&inv.Worker.LedgerPath, "ledger", "", "SQLite run ledger path (optional)")
		fs.StringVar(&inv.Worker.DatasetRoot, "dataset-root", "", "Directory of named datasets (optional)")
		fs.StringVar(&inv.Worker.RedisAddr, "redis-addr", "", "Redis address of the dataset registry (optional)")
	}
	addTemporalFlags := func() {
		fs.StringVar(&inv.TemporalHost, "temporal-host", client.DefaultHostPort, "Temporal frontend host:port")
		fs.StringVar(&inv.Namespace, "namespace", client.DefaultNamespace, "Temporal namespace")
		fs.StringVar(&inv.TaskQueue, "task-queue", worker.TaskQueue, "Temporal task queue")
	}

	switch inv.Command {
	case CommandRun, CommandValidate:
		fs.StringVar(&inv.ConfigPath, "config", "", "Pipeline config YAML (optional)")
		addWorkerFlags()
	case CommandSubmit:
		fs.StringVar(&inv.ConfigPath, "config", "", "Pipeline config YAML, as seen by the worker")
		addTemporalFlags()
	case CommandWorker:
		addWorkerFlags()
		addTemporalFlags()
	case CommandMergeChunks:
		fs.StringVar(&inv.MergeOutput, "output", "", "Merged output file. Required.")
		fs.StringVar(&inv.ChunkDir, "dir", "", "Directory holding chunk files")
		fs.StringVar(&inv.ChunkPrefix, "prefix", "output", "Chunk file prefix")
		fs.IntVar(&inv.ChunkSeed, "seed", dataset.NoSeed, "Random seed in chunk names, -1 for none")
		fs.IntVar(&inv.NumChunks, "chunks", 0, "Number of chunks to derive names for")
	case CommandRegisterDataset:
		fs.StringVar(&inv.Worker.RedisAddr, "redis-addr", "", "Redis address. Required.")
		fs.StringVar(&inv.DatasetName, "name", "", "Dataset name. Required.")
		fs.StringVar(&inv.DatasetSplit, "split", "", "Dataset split. Required.")
	case CommandRuns:
		fs.StringVar(&inv.Worker.LedgerPath, "ledger", "", "SQLite run ledger path. Required.")
		fs.IntVar(&inv.Limit, "limit", 20, "Maximum runs to list, 0 for all")
	default:
		return Invocation{}, invalidInvocationf("unknown command %q\n%s", inv.Command, Usage)
	}

	if err := fs.Parse(args[1:]); err != nil {
		return Invocation{}, invalidInvocationf("%v", err)
	}
	level, err := parseLevel(logLevel)
	if err != nil {
		return Invocation{}, err
	}
	if logFormat != "text" && logFormat != "json" {
		return Invocation{}, invalidInvocationf("--log-format must be text or json (got %q)", logFormat)
	}
	inv.Log = LogOptions{Format: logFormat, Level: level}

	if err := inv.bindPositional(fs.Args()); err != nil {
		return Invocation{}, err
	}
	return inv, nil
}

func (inv *Invocation) bindPositional(rest []string) error {
	switch inv.Command {
	case CommandRun, CommandValidate, CommandSubmit:
		for _, arg := range rest {
			if !strings.Contains(arg, "=") {
				return invalidInvocationf("override %q must be key=value", arg)
			}
		}
		inv.Overrides = rest
		if inv.Command == CommandSubmit && inv.ConfigPath == "" && len(rest) == 0 {
			return invalidInvocationf("submit needs --config or overrides")
		}
	case CommandMergeChunks:
		if inv.MergeOutput == "" {
			return invalidInvocationf("--output is required")
		}
		inv.ChunkFiles = rest
		if (inv.NumChunks > 0) == (len(rest) > 0) {
			return invalidInvocationf("give either --chunks with --dir or explicit chunk files")
		}
	case CommandRegisterDataset:
		if inv.Worker.RedisAddr == "" || inv.DatasetName == "" || inv.DatasetSplit == "" {
			return invalidInvocationf("--redis-addr, --name and --split are required")
		}
		if len(rest) == 0 {
			return invalidInvocationf("no dataset files given")
		}
		inv.DatasetFiles = rest
	case CommandRuns:
		if inv.Worker.LedgerPath == "" {
			return invalidInvocationf("--ledger is required")
		}
		if len(rest) > 1 {
			return invalidInvocationf("runs takes at most one run id")
		}
		if len(rest) == 1 {
			inv.RunID = rest[0]
		}
	default:
		if len(rest) > 0 {
			return invalidInvocationf("unexpected positional arguments: %q", strings.Join(rest, " "))
		}
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, invalidInvocationf("--log-level: %v", err)
	}
	return level, nil
}

// IsInvocationError reports whether err is a command line problem.
func IsInvocationError(err error) bool {
	var invErr *InvocationError
	return errors.As(err, &invErr)
}
