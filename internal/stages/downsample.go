package stages

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/ahrav/go-sftprep/internal/domain"
	"github.com/ahrav/go-sftprep/internal/processor"
)

// Downsampling methods.
const (
	MethodFair   = "fair"
	MethodRandom = "random"
)

type downsampleConfig struct {
	Method           string `yaml:"method" validate:"omitempty,oneof=fair random"`
	RandomSeed       uint64 `yaml:"random_seed"`
	DoShuffle        bool   `yaml:"do_shuffle"`
	NumOutputSamples *int   `yaml:"num_output_samples" validate:"omitempty,gte=0"`
	GroupKey         string `yaml:"group_key" validate:"required"`
}

// Downsample caps the stream at num_output_samples records and optionally
// shuffles it. All randomness comes from a generator seeded with
// random_seed, so identical input and seed give identical output.
//
//   - fair: groups are visited round-robin in seeded order, taking one
//     seeded pick from each group per round, so prolific groups cannot
//     crowd out the rest.
//   - random: a uniform seeded sample.
//   - unset: the first num_output_samples records.
//
// Unless do_shuffle is set, selected records keep their input order.
type Downsample struct {
	cfg    downsampleConfig
	logger *slog.Logger
}

// NewDownsample builds the stage from its arguments.
func NewDownsample(args processor.Args) (processor.Processor, error) {
	cfg := downsampleConfig{RandomSeed: DefaultRandomSeed, GroupKey: DefaultInputKey}
	if err := args.Decode(&cfg); err != nil {
		return nil, err
	}
	return &Downsample{
		cfg:    cfg,
		logger: slog.Default().With("component", "stage", "stage", TargetDownsample),
	}, nil
}

// Name implements processor.Processor.
func (d *Downsample) Name() string { return TargetDownsample }

// Process implements processor.Processor. Sampling and shuffling need the
// whole stream, which is buffered; with neither configured records stream
// through.
func (d *Downsample) Process(_ context.Context, in domain.Stream) domain.Stream {
	if d.cfg.NumOutputSamples == nil && !d.cfg.DoShuffle {
		return in
	}
	return func(yield func(*domain.Record, error) bool) {
		recs, err := domain.Collect(in)
		if err != nil {
			yield(nil, err)
			return
		}
		out, err := d.sample(recs)
		if err != nil {
			yield(nil, err)
			return
		}
		d.logger.Info("downsampled records",
			"method", d.cfg.Method, "input", len(recs), "output", len(out), "shuffled", d.cfg.DoShuffle)
		for _, rec := range out {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (d *Downsample) sample(recs []*domain.Record) ([]*domain.Record, error) {
	rng := rand.New(rand.NewPCG(d.cfg.RandomSeed, d.cfg.RandomSeed))

	idx := make([]int, len(recs))
	for i := range idx {
		idx[i] = i
	}
	if n := d.cfg.NumOutputSamples; n != nil && *n < len(recs) {
		var err error
		switch d.cfg.Method {
		case MethodFair:
			idx, err = fairSample(recs, d.cfg.GroupKey, *n, rng)
		case MethodRandom:
			idx = randomSample(len(recs), *n, rng)
		default:
			idx = idx[:*n]
		}
		if err != nil {
			return nil, err
		}
		slices.Sort(idx)
	}

	if d.cfg.DoShuffle {
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	}

	out := make([]*domain.Record, len(idx))
	for i, j := range idx {
		out[i] = recs[j]
	}
	return out, nil
}

// randomSample picks n distinct indices out of total uniformly.
func randomSample(total, n int, rng *rand.Rand) []int {
	return rng.Perm(total)[:n]
}

// fairSample picks n indices spread across groups: group order and the
// order inside each group are shuffled, then groups are drained
// round-robin.
func fairSample(recs []*domain.Record, groupKey string, n int, rng *rand.Rand) ([]int, error) {
	var (
		order  []string
		groups = make(map[string][]int)
	)
	for i, rec := range recs {
		key, err := domain.GroupKey(rec, groupKey)
		if err != nil {
			return nil, err
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	for _, key := range order {
		g := groups[key]
		rng.Shuffle(len(g), func(i, j int) { g[i], g[j] = g[j], g[i] })
	}

	picked := make([]int, 0, n)
	for round := 0; len(picked) < n; round++ {
		progressed := false
		for _, key := range order {
			g := groups[key]
			if round >= len(g) {
				continue
			}
			progressed = true
			picked = append(picked, g[round])
			if len(picked) == n {
				break
			}
		}
		if !progressed {
			break
		}
	}
	return picked, nil
}
