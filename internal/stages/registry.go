// Package stages is the library of pipeline processors: the ReadData
// source, record filters and transforms, downsampling, and the final
// manifest writer.
package stages

import (
	"github.com/ahrav/go-sftprep/internal/dataset"
	"github.com/ahrav/go-sftprep/internal/processor"
)

// Target identifiers used in processor configuration entries.
const (
	TargetReadData                = "ReadData"
	TargetDropIncorrectCodeBlocks = "DropIncorrectCodeBlocks"
	TargetRenameFields            = "RenameFields"
	TargetDeduplicateOutputs      = "DeduplicateOutputs"
	TargetLimitPerGroup           = "LimitPerGroup"
	TargetDownsample              = "Downsample"
	TargetWriteFinalSftManifest   = "WriteFinalSftManifest"
)

// Defaults shared by stage arguments.
const (
	DefaultInputKey   = "input"
	DefaultOutputKey  = "output"
	DefaultRandomSeed = 42
)

// Deps are the external collaborators stages may need.
type Deps struct {
	// Datasets resolves named datasets for ReadData. Optional.
	Datasets dataset.Registry
}

// Register adds every stage of the library to r.
func Register(r *processor.Registry, deps Deps) error {
	factories := map[string]processor.Factory{
		TargetReadData:                newReadData(deps),
		TargetDropIncorrectCodeBlocks: NewDropIncorrectCodeBlocks,
		TargetRenameFields:            NewRenameFields,
		TargetDeduplicateOutputs:      NewDeduplicateOutputs,
		TargetLimitPerGroup:           NewLimitPerGroup,
		TargetDownsample:              NewDownsample,
		TargetWriteFinalSftManifest:   NewWriteFinalSftManifest,
	}
	for target, f := range factories {
		if err := r.Register(target, f); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the whole stage library.
func NewRegistry(deps Deps) *processor.Registry {
	r := processor.NewRegistry()
	if err := Register(r, deps); err != nil {
		panic(err)
	}
	return r
}
