package stages

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/ahrav/go-sftprep/internal/config"
	"github.com/ahrav/go-sftprep/internal/dataset"
	"github.com/ahrav/go-sftprep/internal/domain"
	"github.com/ahrav/go-sftprep/internal/processor"
	"github.com/ahrav/go-sftprep/internal/prompt"
)

// ExpectedAnswerKey is always retained in manifests when present.
const ExpectedAnswerKey = "expected_answer"

// errStopped aborts the manifest write when the consumer stops early.
var errStopped = errors.New("manifest consumer stopped early")

type writeFinalSftManifestConfig struct {
	OutputPath          string         `yaml:"output_path"`
	InputKey            string         `yaml:"input_key" validate:"required"`
	OutputKey           string         `yaml:"output_key" validate:"required"`
	PromptConfig        string         `yaml:"prompt_config"`
	PromptTemplate      string         `yaml:"prompt_template"`
	CodeTags            string         `yaml:"code_tags"`
	ChatFormat          string         `yaml:"chat_format"`
	ExcludeOptionalKeys bool           `yaml:"exclude_optional_keys"`
	Metadata            map[string]any `yaml:"metadata"`
}

// WriteFinalSftManifest formats each record, trims it to the retained keys,
// merges in static metadata and writes the result as JSONL. Records are
// passed downstream as they are written. The manifest appears at
// output_path only once the whole stream has been written; on any failure
// nothing is left behind.
type WriteFinalSftManifest struct {
	cfg       writeFinalSftManifestConfig
	formatter prompt.Formatter
	retained  map[string]struct{}
	metaKeys  []string
	logger    *slog.Logger
}

// NewWriteFinalSftManifest builds the writer from its arguments.
func NewWriteFinalSftManifest(args processor.Args) (processor.Processor, error) {
	cfg := writeFinalSftManifestConfig{
		InputKey:            DefaultInputKey,
		OutputKey:           DefaultOutputKey,
		ExcludeOptionalKeys: true,
	}
	if err := args.Decode(&cfg); err != nil {
		return nil, err
	}
	if cfg.OutputPath == "" || cfg.OutputPath == config.MandatoryMarker {
		return nil, domain.ErrOutputPathRequired
	}

	formatter, err := prompt.New(prompt.Options{
		PromptConfig:   cfg.PromptConfig,
		PromptTemplate: cfg.PromptTemplate,
		CodeTags:       cfg.CodeTags,
		ChatFormat:     cfg.ChatFormat,
		InputKey:       cfg.InputKey,
		OutputKey:      cfg.OutputKey,
	})
	if err != nil {
		return nil, err
	}

	retained := map[string]struct{}{
		cfg.InputKey:      {},
		cfg.OutputKey:     {},
		ExpectedAnswerKey: {},
	}
	if cfg.ChatFormat != "" {
		retained[prompt.MessagesKey] = struct{}{}
	}

	return &WriteFinalSftManifest{
		cfg:       cfg,
		formatter: formatter,
		retained:  retained,
		metaKeys:  slices.Sorted(maps.Keys(cfg.Metadata)),
		logger:    slog.Default().With("component", "stage", "stage", TargetWriteFinalSftManifest),
	}, nil
}

// Name implements processor.Processor.
func (w *WriteFinalSftManifest) Name() string { return TargetWriteFinalSftManifest }

// OutputPath returns the manifest destination.
func (w *WriteFinalSftManifest) OutputPath() string { return w.cfg.OutputPath }

// Process implements processor.Processor.
func (w *WriteFinalSftManifest) Process(_ context.Context, in domain.Stream) domain.Stream {
	return func(yield func(*domain.Record, error) bool) {
		written := 0
		err := dataset.WriteFileAtomic(w.cfg.OutputPath, func(out io.Writer) error {
			for rec, err := range in {
				if err != nil {
					return err
				}
				final, err := w.finalize(rec)
				if err != nil {
					return err
				}
				data, err := final.MarshalJSON()
				if err != nil {
					return fmt.Errorf("encoding record %d: %w", written, err)
				}
				if _, err := out.Write(data); err != nil {
					return err
				}
				if _, err := io.WriteString(out, "\n"); err != nil {
					return err
				}
				written++
				if !yield(final, nil) {
					return errStopped
				}
			}
			return nil
		})
		if errors.Is(err, errStopped) {
			return
		}
		if err != nil {
			yield(nil, err)
			return
		}
		w.logger.Info("manifest written", "path", w.cfg.OutputPath, "records", written)
	}
}

// finalize produces the manifest form of rec.
func (w *WriteFinalSftManifest) finalize(rec *domain.Record) (*domain.Record, error) {
	if _, err := domain.RequireField(rec, w.cfg.InputKey); err != nil {
		return nil, err
	}
	if _, err := domain.RequireField(rec, w.cfg.OutputKey); err != nil {
		return nil, err
	}

	formatted, err := w.formatter.Format(rec)
	if err != nil {
		return nil, err
	}

	out := formatted
	if w.cfg.ExcludeOptionalKeys {
		out = domain.NewRecord()
		for _, k := range formatted.Keys() {
			if _, keep := w.retained[k]; keep {
				v, _ := formatted.Get(k)
				out.Set(k, v)
			}
		}
	} else if len(w.metaKeys) > 0 && out == rec {
		out = rec.Clone()
	}

	for _, k := range w.metaKeys {
		out.Set(k, w.cfg.Metadata[k])
	}
	return out, nil
}
