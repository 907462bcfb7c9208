package stages

import (
	"context"
	"crypto/sha256"

	"github.com/ahrav/go-sftprep/internal/domain"
	"github.com/ahrav/go-sftprep/internal/processor"
)

type deduplicateOutputsConfig struct {
	GroupKey  string `yaml:"group_key" validate:"required"`
	OutputKey string `yaml:"output_key" validate:"required"`
}

// DeduplicateOutputs drops a record when an earlier record of the same
// group carried the same output text. Records of different groups are
// never compared.
type DeduplicateOutputs struct {
	cfg deduplicateOutputsConfig
}

// NewDeduplicateOutputs builds the stage from its arguments.
func NewDeduplicateOutputs(args processor.Args) (processor.Processor, error) {
	cfg := deduplicateOutputsConfig{GroupKey: DefaultInputKey, OutputKey: DefaultOutputKey}
	if err := args.Decode(&cfg); err != nil {
		return nil, err
	}
	return &DeduplicateOutputs{cfg: cfg}, nil
}

// Name implements processor.Processor.
func (d *DeduplicateOutputs) Name() string { return TargetDeduplicateOutputs }

// Process implements processor.Processor. Only a digest of each
// (group, output) pair is kept in memory.
func (d *DeduplicateOutputs) Process(_ context.Context, in domain.Stream) domain.Stream {
	return func(yield func(*domain.Record, error) bool) {
		seen := make(map[[sha256.Size]byte]struct{})
		for rec, err := range in {
			if err != nil {
				yield(nil, err)
				return
			}
			group, err := domain.GroupKey(rec, d.cfg.GroupKey)
			if err != nil {
				yield(nil, err)
				return
			}
			output, err := domain.RequireString(rec, d.cfg.OutputKey)
			if err != nil {
				yield(nil, err)
				return
			}

			sum := sha256.Sum256([]byte(group + "\x00" + output))
			if _, dup := seen[sum]; dup {
				continue
			}
			seen[sum] = struct{}{}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
