package processor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-sftprep/internal/domain"
)

// TargetKey names the factory in a processor's configuration entry.
const TargetKey = "_target_"

// Args are the construction arguments of one processor entry, with the
// target key removed.
type Args map[string]any

// Decode fills out from the arguments and validates it with its validate
// struct tags. Unknown argument names are rejected so typos surface at
// build time.
func (a Args) Decode(out any) error {
	data, err := yaml.Marshal(map[string]any(a))
	if err != nil {
		return fmt.Errorf("%w: encoding arguments: %w", domain.ErrConfig, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: decoding arguments: %w", domain.ErrConfig, err)
	}
	if err := domain.ValidateStruct(out); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}
	return nil
}

// Factory builds a processor from its arguments.
type Factory func(args Args) (Processor, error)

// Registry maps target identifiers to factories. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering a target twice is an error.
func (r *Registry) Register(target string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if target == "" || f == nil {
		return errors.New("processor registry: empty target or nil factory")
	}
	if _, dup := r.factories[target]; dup {
		return fmt.Errorf("processor registry: %q already registered", target)
	}
	r.factories[target] = f
	return nil
}

// MustRegister is Register that panics on error, for use during setup.
func (r *Registry) MustRegister(target string, f Factory) {
	if err := r.Register(target, f); err != nil {
		panic(err)
	}
}

// Targets returns the registered identifiers in sorted order.
func (r *Registry) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// Lookup returns the factory for target. Fully qualified identifiers such
// as "pkg.module.ReadData" match on their last segment when the full name
// is not registered.
func (r *Registry) Lookup(target string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.factories[target]; ok {
		return f, true
	}
	if i := strings.LastIndexByte(target, '.'); i >= 0 {
		f, ok := r.factories[target[i+1:]]
		return f, ok
	}
	return nil, false
}

// Build constructs the processor named by target.
func (r *Registry) Build(target string, args Args) (Processor, error) {
	f, ok := r.Lookup(target)
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", domain.ErrUnknownProcessor, target, strings.Join(r.Targets(), ", "))
	}
	if args == nil {
		args = Args{}
	}
	return f(args)
}

// SplitEntry separates a configuration entry into its target and arguments.
func SplitEntry(entry map[string]any) (string, Args, error) {
	raw, ok := entry[TargetKey]
	if !ok {
		return "", nil, fmt.Errorf("%w: processor entry has no %s", domain.ErrConfig, TargetKey)
	}
	target, ok := raw.(string)
	if !ok || target == "" {
		return "", nil, fmt.Errorf("%w: %s must be a non-empty string, got %v", domain.ErrConfig, TargetKey, raw)
	}
	args := make(Args, len(entry)-1)
	for k, v := range entry {
		if k != TargetKey {
			args[k] = v
		}
	}
	return target, args, nil
}
