package stages

import (
	"context"
	"strings"

	"github.com/ahrav/go-sftprep/internal/domain"
	"github.com/ahrav/go-sftprep/internal/processor"
)

// codeFence delimits a fenced code block.
const codeFence = "```"

type dropIncorrectCodeBlocksConfig struct {
	ShouldRun  bool   `yaml:"should_run"`
	OutputKey  string `yaml:"output_key" validate:"required"`
	NumWorkers int    `yaml:"num_workers" validate:"gte=0"`
}

// DropIncorrectCodeBlocks drops records whose output is not exactly one
// well-paired fenced code block. With should_run off it passes every
// record through unchanged.
type DropIncorrectCodeBlocks struct {
	cfg dropIncorrectCodeBlocksConfig
}

// NewDropIncorrectCodeBlocks builds the filter from its arguments.
func NewDropIncorrectCodeBlocks(args processor.Args) (processor.Processor, error) {
	cfg := dropIncorrectCodeBlocksConfig{ShouldRun: true, OutputKey: DefaultOutputKey, NumWorkers: 1}
	if err := args.Decode(&cfg); err != nil {
		return nil, err
	}
	return &DropIncorrectCodeBlocks{cfg: cfg}, nil
}

// Name implements processor.Processor.
func (d *DropIncorrectCodeBlocks) Name() string { return TargetDropIncorrectCodeBlocks }

// Process implements processor.Processor.
func (d *DropIncorrectCodeBlocks) Process(ctx context.Context, in domain.Stream) domain.Stream {
	if !d.cfg.ShouldRun {
		return in
	}
	return processor.Map(ctx, in, d.cfg.NumWorkers, d.filter)
}

func (d *DropIncorrectCodeBlocks) filter(_ context.Context, rec *domain.Record) (*domain.Record, error) {
	out, err := domain.RequireString(rec, d.cfg.OutputKey)
	if err != nil {
		return nil, err
	}
	if !HasSingleCodeBlock(out) {
		return nil, nil
	}
	return rec, nil
}

// TestMode returns an instance with should_run forced on.
func (d *DropIncorrectCodeBlocks) TestMode() processor.Processor {
	cfg := d.cfg
	cfg.ShouldRun = true
	return &DropIncorrectCodeBlocks{cfg: cfg}
}

// TestCases implements processor.SelfTester.
func (d *DropIncorrectCodeBlocks) TestCases() []processor.TestCase {
	key := d.cfg.OutputKey
	kept := "Solution ```python\ndef hello()```"
	return []processor.TestCase{
		{
			Name:  "second unmatched fence",
			Input: domain.RecordOf(key, "Solution ```python\ndef hello()``` Second code ```python\n"),
			Want:  nil,
		},
		{
			Name:  "single paired fence",
			Input: domain.RecordOf(key, kept),
			Want:  domain.RecordOf(key, kept),
		},
		{
			Name:  "no opening fence",
			Input: domain.RecordOf(key, "She had python\ndef hello()```"),
			Want:  nil,
		},
	}
}

// HasSingleCodeBlock reports whether text holds exactly one opening and one
// closing fence.
func HasSingleCodeBlock(text string) bool {
	return strings.Count(text, codeFence) == 2
}
