// Package pipeline assembles configured processors into a chain and runs
// it: resolve the configuration, build each processor in order, run every
// processor's self-tests, then stream records through the chain.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ahrav/go-sftprep/internal/config"
	"github.com/ahrav/go-sftprep/internal/domain"
	"github.com/ahrav/go-sftprep/internal/processor"
)

// Stage is one built processor and its position in the configuration.
type Stage struct {
	Index     int
	Target    string
	Processor processor.Processor
}

// Pipeline is an ordered chain of built processors.
type Pipeline struct {
	stages []Stage
}

// Build instantiates the processors selected by settings.ProcessorsToRun,
// in configured order. The first construction failure is returned as a
// *StageError.
func Build(settings *config.Settings, reg *processor.Registry) (*Pipeline, error) {
	if len(settings.Processors) == 0 {
		return nil, fmt.Errorf("%w: no processors configured", domain.ErrConfig)
	}
	start, end, err := ParseRange(settings.ProcessorsToRun, len(settings.Processors))
	if err != nil {
		return nil, err
	}

	p := &Pipeline{stages: make([]Stage, 0, end-start)}
	for i := start; i < end; i++ {
		target, args, err := processor.SplitEntry(settings.Processors[i])
		if err != nil {
			return nil, &StageError{Index: i, Target: "?", Err: err}
		}
		proc, err := reg.Build(target, args)
		if err != nil {
			return nil, &StageError{Index: i, Target: target, Err: err}
		}
		p.stages = append(p.stages, Stage{Index: i, Target: target, Processor: proc})
	}
	return p, nil
}

// Stages returns the built stages in order.
func (p *Pipeline) Stages() []Stage { return p.stages }

// SelfTest runs every processor's test vectors in order and returns the
// first failure as a *StageError.
func (p *Pipeline) SelfTest(ctx context.Context) error {
	for _, s := range p.stages {
		if err := processor.RunSelfTests(ctx, s.Processor); err != nil {
			return &StageError{Index: s.Index, Target: s.Target, Err: err}
		}
	}
	return nil
}

// StageStats counts the records a stage consumed and emitted.
type StageStats struct {
	Index  int
	Target string
	In     int
	Out    int
}

// Stream chains the stages over an empty source and returns the final
// stream with per-stage counters. Records flow one at a time; a stage sees
// a record only after every earlier stage has passed it on. Errors carry
// the *StageError of the stage that raised them. Counters are complete once
// the returned stream has been drained.
//
// onRead, when non-nil, is called with the running total each time the head
// of the chain emits a record. It fires while buffering stages further down
// are still consuming input, so it can drive liveness reporting.
func (p *Pipeline) Stream(ctx context.Context, onRead func(read int)) (domain.Stream, []*StageStats) {
	stats := make([]*StageStats, len(p.stages))
	stream := domain.Empty()
	for i, s := range p.stages {
		st := &StageStats{Index: s.Index, Target: s.Target}
		stats[i] = st
		var notify func(int)
		if i == 0 {
			notify = onRead
		}
		in := count(stream, &st.In, nil)
		stream = annotate(count(s.Processor.Process(ctx, in), &st.Out, notify), s)
	}
	return stream, stats
}

func count(s domain.Stream, n *int, notify func(int)) domain.Stream {
	return func(yield func(*domain.Record, error) bool) {
		for rec, err := range s {
			if err == nil {
				*n++
				if notify != nil {
					notify(*n)
				}
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

func annotate(s domain.Stream, stage Stage) domain.Stream {
	return func(yield func(*domain.Record, error) bool) {
		for rec, err := range s {
			if err != nil {
				var se *StageError
				if !errors.As(err, &se) {
					err = &StageError{Index: stage.Index, Target: stage.Target, Err: err}
				}
				yield(nil, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// ParseRange interprets processors_to_run against a chain of n processors.
// Accepted forms: "all" or empty, a single index "i", or a half-open slice
// "start:end" where either bound may be omitted. Negative bounds count from
// the end.
func ParseRange(sel string, n int) (int, int, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" || sel == config.DefaultProcessorsToRun {
		return 0, n, nil
	}

	bound := func(s string, def int) (int, error) {
		s = strings.TrimSpace(s)
		if s == "" {
			return def, nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidRange, sel)
		}
		if v < 0 {
			v += n
		}
		return v, nil
	}

	var start, end int
	lo, hi, isSlice := strings.Cut(sel, ":")
	var err error
	if start, err = bound(lo, 0); err != nil {
		return 0, 0, err
	}
	if isSlice {
		if end, err = bound(hi, n); err != nil {
			return 0, 0, err
		}
	} else {
		end = start + 1
	}

	if start < 0 || end > n || start >= end {
		return 0, 0, fmt.Errorf("%w: %q selects nothing from %d processors", ErrInvalidRange, sel, n)
	}
	return start, end, nil
}
