package stages

import (
	"context"
	"fmt"

	"github.com/ahrav/go-sftprep/internal/domain"
	"github.com/ahrav/go-sftprep/internal/processor"
)

// Rename moves one field.
type Rename struct {
	From string `yaml:"from" validate:"required"`
	To   string `yaml:"to" validate:"required"`
}

type renameFieldsConfig struct {
	Renames    []Rename `yaml:"renames" validate:"required,min=1,dive"`
	NumWorkers int      `yaml:"num_workers" validate:"gte=0"`
}

// RenameFields renames fields in every record, keeping each field's
// position and value. Records lacking a source field are left as they are.
// A rename onto a field the record already carries fails the run.
type RenameFields struct {
	cfg renameFieldsConfig
}

// NewRenameFields builds the stage from its arguments.
func NewRenameFields(args processor.Args) (processor.Processor, error) {
	cfg := renameFieldsConfig{NumWorkers: 1}
	if err := args.Decode(&cfg); err != nil {
		return nil, err
	}

	from := make(map[string]struct{}, len(cfg.Renames))
	to := make(map[string]struct{}, len(cfg.Renames))
	for _, r := range cfg.Renames {
		if _, dup := from[r.From]; dup {
			return nil, fmt.Errorf("%w: field %q renamed twice", domain.ErrConfig, r.From)
		}
		if _, dup := to[r.To]; dup {
			return nil, fmt.Errorf("%w: two fields renamed to %q", domain.ErrConfig, r.To)
		}
		from[r.From] = struct{}{}
		to[r.To] = struct{}{}
	}
	for _, r := range cfg.Renames {
		if _, chained := from[r.To]; chained && r.From != r.To {
			return nil, fmt.Errorf("%w: rename target %q is also renamed", domain.ErrConfig, r.To)
		}
	}
	return &RenameFields{cfg: cfg}, nil
}

// Name implements processor.Processor.
func (r *RenameFields) Name() string { return TargetRenameFields }

// Process implements processor.Processor.
func (r *RenameFields) Process(ctx context.Context, in domain.Stream) domain.Stream {
	return processor.Map(ctx, in, r.cfg.NumWorkers, r.rename)
}

func (r *RenameFields) rename(_ context.Context, rec *domain.Record) (*domain.Record, error) {
	out := rec.Clone()
	for _, rn := range r.cfg.Renames {
		if _, err := out.Rename(rn.From, rn.To); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// TestCases derives one vector from the configured renames: every source
// field present, plus a field no rename touches.
func (r *RenameFields) TestCases() []processor.TestCase {
	untouched := r.untouchedField()
	in := domain.NewRecord()
	want := domain.NewRecord()
	for i, rn := range r.cfg.Renames {
		v := fmt.Sprintf("value-%d", i)
		in.Set(rn.From, v)
		want.Set(rn.To, v)
	}
	in.Set(untouched, "kept")
	want.Set(untouched, "kept")
	return []processor.TestCase{{Name: "configured renames", Input: in, Want: want}}
}

// untouchedField returns a field name that no configured rename reads or
// writes.
func (r *RenameFields) untouchedField() string {
	used := make(map[string]bool, 2*len(r.cfg.Renames))
	for _, rn := range r.cfg.Renames {
		used[rn.From] = true
		used[rn.To] = true
	}
	name := "__untouched__"
	for i := 1; used[name]; i++ {
		name = fmt.Sprintf("__untouched_%d__", i)
	}
	return name
}
