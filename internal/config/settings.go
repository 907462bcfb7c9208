package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/sft_code.yaml
var defaultSFTCode []byte

// DefaultProcessorsToRun selects the whole chain.
const DefaultProcessorsToRun = "all"

// Defaults returns a fresh copy of the built-in SFT code pipeline document.
func Defaults() (Document, error) {
	doc, err := Parse(defaultSFTCode)
	if err != nil {
		return nil, fmt.Errorf("built-in defaults: %w", err)
	}
	return doc, nil
}

// StringList accepts either a single YAML string or a sequence of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list of strings", node.Line)
	}
}

// Settings is the typed view of the top-level keys the runner itself reads.
// Every other key (input_key, random_seed, filters and the rest) reaches the
// stages through ${...} references in the processor chain, and each stage
// decodes and validates its own arguments.
type Settings struct {
	ProcessorsToRun string `yaml:"processors_to_run"`
	OutputPath      string `yaml:"output_path"`

	// Processors is the ordered chain. Each entry names its factory under
	// "_target_"; the remaining keys are construction arguments.
	Processors []map[string]any `yaml:"processors"`
}

// DefaultSettings returns the settings used when a document leaves a key
// unset.
func DefaultSettings() *Settings {
	return &Settings{ProcessorsToRun: DefaultProcessorsToRun}
}

// DecodeSettings decodes a resolved document on top of DefaultSettings.
func DecodeSettings(doc Document) (*Settings, error) {
	s := DefaultSettings()
	if err := Decode(map[string]any(doc), s); err != nil {
		return nil, err
	}
	return s, nil
}
