package dataset

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ahrav/go-sftprep/internal/domain"
)

// Source names where a run reads its records from. Exactly one of
// PreprocessedFiles, InputFiles or Dataset must be set.
type Source struct {
	PreprocessedFiles []string
	InputFiles        []string
	Dataset           string
	Split             string

	// SkipFirst drops that many records after all files are merged.
	SkipFirst int
	// RequireDone rejects files without a done marker.
	RequireDone bool
}

// Validate checks that exactly one source kind is set.
func (s Source) Validate() error {
	set := 0
	if len(s.PreprocessedFiles) > 0 {
		set++
	}
	if len(s.InputFiles) > 0 {
		set++
	}
	if s.Dataset != "" {
		set++
	}
	switch {
	case set > 1:
		return fmt.Errorf("%w: set only one of preprocessed_dataset_files, input_files, dataset", domain.ErrAmbiguousSource)
	case set == 0:
		return fmt.Errorf("%w: set one of preprocessed_dataset_files, input_files, dataset", domain.ErrNoSource)
	case s.Dataset != "" && s.Split == "":
		return fmt.Errorf("%w: dataset %q needs a split", domain.ErrConfig, s.Dataset)
	case s.SkipFirst < 0:
		return fmt.Errorf("%w: skip_first must not be negative, got %d", domain.ErrConfig, s.SkipFirst)
	}
	return nil
}

// Loader resolves sources to record streams.
type Loader struct {
	registry Registry
	logger   *slog.Logger
}

// NewLoader returns a loader. registry may be nil when no named datasets
// are used.
func NewLoader(registry Registry) *Loader {
	return &Loader{
		registry: registry,
		logger:   slog.Default().With("component", "dataset_loader"),
	}
}

// Files resolves src to its ordered file list without reading any record.
func (l *Loader) Files(ctx context.Context, src Source) ([]string, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	var (
		files []string
		err   error
	)
	switch {
	case len(src.PreprocessedFiles) > 0:
		files, err = ExpandPatterns(src.PreprocessedFiles)
	case len(src.InputFiles) > 0:
		files, err = ExpandPatterns(src.InputFiles)
	default:
		if l.registry == nil {
			return nil, fmt.Errorf("%w: dataset %q given but no registry configured", domain.ErrConfig, src.Dataset)
		}
		files, err = l.registry.Files(ctx, src.Dataset, src.Split)
	}
	if err != nil {
		return nil, err
	}

	if src.RequireDone {
		if err := RequireDone(files); err != nil {
			return nil, err
		}
	}
	return files, nil
}

// Load resolves src and returns the merged stream. Files are read lazily as
// the stream is consumed.
func (l *Loader) Load(ctx context.Context, src Source) (domain.Stream, error) {
	files, err := l.Files(ctx, src)
	if err != nil {
		return nil, err
	}
	l.logger.Info("loading records", "files", len(files), "skip_first", src.SkipFirst)
	return Skip(Concat(ctx, files), src.SkipFirst), nil
}
