package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-sftprep/internal/domain"
)

// Parse decodes a YAML document. An empty input yields an empty document.
func Parse(data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, nil
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing yaml: %w", ErrInvalidDocument, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return Document(doc), nil
}

// Load reads and parses the YAML file at path.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading config %s: %w", domain.ErrConfig, path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Compose builds the unresolved document for a run: the built-in defaults,
// then the file at path (if any), then command-line overrides.
func Compose(path string, overrides []string) (Document, error) {
	doc, err := Defaults()
	if err != nil {
		return nil, err
	}
	if path != "" {
		file, err := Load(path)
		if err != nil {
			return nil, err
		}
		doc = Merge(doc, file)
	}
	if err := ApplyOverrides(doc, overrides); err != nil {
		return nil, err
	}
	return doc, nil
}

// Override is a single dotted.path=value assignment.
type Override struct {
	Path  string
	Value any
}

// ParseOverride parses "++a.b=v", "+a.b=v" or "a.b=v". The value is read as
// a YAML scalar, so "3" is an int, "true" a bool and "null" a null.
func ParseOverride(arg string) (Override, error) {
	trimmed := strings.TrimLeft(arg, "+")
	path, raw, ok := strings.Cut(trimmed, "=")
	path = strings.TrimSpace(path)
	if !ok || path == "" {
		return Override{}, fmt.Errorf("%w: %q, want key=value", ErrInvalidOverride, arg)
	}
	return Override{Path: path, Value: parseOverrideValue(raw)}, nil
}

func parseOverrideValue(raw string) any {
	if raw == "" {
		return ""
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// ApplyOverrides parses and applies each override to doc in order.
func ApplyOverrides(doc Document, args []string) error {
	for _, arg := range args {
		o, err := ParseOverride(arg)
		if err != nil {
			return err
		}
		if err := doc.Set(o.Path, o.Value); err != nil {
			return fmt.Errorf("applying override %q: %w", arg, err)
		}
	}
	return nil
}

// Decode converts a document subtree into a typed value through a YAML
// node round trip, so yaml struct tags apply.
func Decode(in, out any) error {
	var node yaml.Node
	if err := node.Encode(in); err != nil {
		return fmt.Errorf("%w: encoding: %w", ErrInvalidDocument, err)
	}
	if err := node.Decode(out); err != nil {
		return fmt.Errorf("%w: decoding: %w", ErrInvalidDocument, err)
	}
	return nil
}

// Marshal renders a document as YAML.
func Marshal(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any(doc)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
