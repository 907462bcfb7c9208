package domain

import "fmt"

// ManifestRequest asks a worker to prepare one SFT manifest. ConfigPath is
// optional; without it the built-in defaults are used and Overrides must at
// least supply the source and output_path.
type ManifestRequest struct {
	ConfigPath string   `json:"config_path,omitempty"`
	Overrides  []string `json:"overrides,omitempty" validate:"dive,required"`
}

// Validate checks the request before any configuration is read.
func (r ManifestRequest) Validate() error {
	if err := ValidateStruct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if r.ConfigPath == "" && len(r.Overrides) == 0 {
		return fmt.Errorf("%w: neither a config path nor overrides given", ErrConfig)
	}
	return nil
}

// StageSummary is the record count of one processor in a finished run.
type StageSummary struct {
	Index  int    `json:"index"`
	Target string `json:"target"`
	In     int    `json:"in"`
	Out    int    `json:"out"`
}

// ManifestValidation describes a configuration that resolved, built and
// passed every self-test.
type ManifestValidation struct {
	ConfigDigest string   `json:"config_digest"`
	OutputPath   string   `json:"output_path"`
	Stages       []string `json:"stages"`
}

// ManifestResult summarizes a written manifest.
type ManifestResult struct {
	RunID        string         `json:"run_id"`
	ConfigDigest string         `json:"config_digest"`
	OutputPath   string         `json:"output_path"`
	Records      int            `json:"records"`
	Stages       []StageSummary `json:"stages"`
}
