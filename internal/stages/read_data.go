package stages

import (
	"context"

	"github.com/ahrav/go-sftprep/internal/config"
	"github.com/ahrav/go-sftprep/internal/dataset"
	"github.com/ahrav/go-sftprep/internal/domain"
	"github.com/ahrav/go-sftprep/internal/processor"
)

type readDataConfig struct {
	PreprocessedDatasetFiles config.StringList `yaml:"preprocessed_dataset_files"`
	InputFiles               config.StringList `yaml:"input_files"`
	Dataset                  string            `yaml:"dataset"`
	Split                    string            `yaml:"split"`
	RequireDone              bool              `yaml:"require_done"`
	SkipFirst                int               `yaml:"skip_first" validate:"gte=0"`
	InputKey                 string            `yaml:"input_key" validate:"required"`
	OutputKey                string            `yaml:"output_key" validate:"required"`
}

// ReadData is the source stage. It emits any upstream records first, then
// the records of its configured source in file order. Every record it reads
// must carry the input and output fields.
type ReadData struct {
	cfg    readDataConfig
	source dataset.Source
	loader *dataset.Loader
}

func newReadData(deps Deps) processor.Factory {
	return func(args processor.Args) (processor.Processor, error) {
		cfg := readDataConfig{InputKey: DefaultInputKey, OutputKey: DefaultOutputKey}
		if err := args.Decode(&cfg); err != nil {
			return nil, err
		}
		src := dataset.Source{
			PreprocessedFiles: cfg.PreprocessedDatasetFiles,
			InputFiles:        cfg.InputFiles,
			Dataset:           cfg.Dataset,
			Split:             cfg.Split,
			SkipFirst:         cfg.SkipFirst,
			RequireDone:       cfg.RequireDone,
		}
		if err := src.Validate(); err != nil {
			return nil, err
		}
		return &ReadData{cfg: cfg, source: src, loader: dataset.NewLoader(deps.Datasets)}, nil
	}
}

// Name implements processor.Processor.
func (r *ReadData) Name() string { return TargetReadData }

// Process implements processor.Processor.
func (r *ReadData) Process(ctx context.Context, in domain.Stream) domain.Stream {
	return func(yield func(*domain.Record, error) bool) {
		for rec, err := range in {
			if !yield(rec, err) || err != nil {
				return
			}
		}

		loaded, err := r.loader.Load(ctx, r.source)
		if err != nil {
			yield(nil, err)
			return
		}
		for rec, err := range loaded {
			if err == nil {
				err = r.checkShape(rec)
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (r *ReadData) checkShape(rec *domain.Record) error {
	if _, err := domain.RequireField(rec, r.cfg.InputKey); err != nil {
		return err
	}
	_, err := domain.RequireField(rec, r.cfg.OutputKey)
	return err
}
