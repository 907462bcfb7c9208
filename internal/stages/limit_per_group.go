package stages

import (
	"context"
	"iter"
	"math/rand/v2"
	"slices"

	"github.com/ahrav/go-sftprep/internal/domain"
	"github.com/ahrav/go-sftprep/internal/processor"
)

type limitPerGroupConfig struct {
	MaxPerGroup int    `yaml:"max_per_group" validate:"gt=0"`
	GroupKey    string `yaml:"group_key" validate:"required"`
	RandomSeed  uint64 `yaml:"random_seed"`
}

// LimitPerGroup keeps at most max_per_group records of each group, chosen
// with a seeded generator. Groups are emitted in order of first appearance
// and kept records retain their relative order. Grouping is global, so the
// stage buffers the whole stream before emitting its first record.
type LimitPerGroup struct {
	cfg limitPerGroupConfig
}

// NewLimitPerGroup builds the stage from its arguments.
func NewLimitPerGroup(args processor.Args) (processor.Processor, error) {
	cfg := limitPerGroupConfig{GroupKey: DefaultInputKey, RandomSeed: DefaultRandomSeed}
	if err := args.Decode(&cfg); err != nil {
		return nil, err
	}
	return &LimitPerGroup{cfg: cfg}, nil
}

// Name implements processor.Processor.
func (l *LimitPerGroup) Name() string { return TargetLimitPerGroup }

// Process implements processor.Processor.
func (l *LimitPerGroup) Process(_ context.Context, in domain.Stream) domain.Stream {
	return domain.Ungroup(l.limit(domain.GroupBy(in, l.cfg.GroupKey)))
}

func (l *LimitPerGroup) limit(groups iter.Seq2[domain.Group, error]) iter.Seq2[domain.Group, error] {
	return func(yield func(domain.Group, error) bool) {
		rng := rand.New(rand.NewPCG(l.cfg.RandomSeed, l.cfg.RandomSeed))
		for g, err := range groups {
			if err != nil {
				yield(domain.Group{}, err)
				return
			}
			if len(g.Records) > l.cfg.MaxPerGroup {
				idx := rng.Perm(len(g.Records))[:l.cfg.MaxPerGroup]
				slices.Sort(idx)
				keep := make([]*domain.Record, len(idx))
				for i, j := range idx {
					keep[i] = g.Records[j]
				}
				g.Records = keep
			}
			if !yield(g, nil) {
				return
			}
		}
	}
}
