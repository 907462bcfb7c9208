package config

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// refPattern matches ${path} and ${path:default}.
var refPattern = regexp.MustCompile(`\$\{([^{}]*)\}`)

// reference is one ${...} occurrence inside a string leaf.
type reference struct {
	target     string
	def        string
	hasDefault bool
}

func parseReference(body string) (reference, error) {
	target, def, hasDefault := strings.Cut(body, ":")
	target = strings.TrimSpace(target)
	if target == "" {
		return reference{}, fmt.Errorf("%w: empty reference ${%s}", ErrInvalidReference, body)
	}
	return reference{target: target, def: def, hasDefault: hasDefault}, nil
}

// ResolveOption configures Resolve.
type ResolveOption func(*resolveOptions)

type resolveOptions struct {
	required []string
}

// WithRequired marks additional paths as mandatory. A required path that is
// unset or null after resolution is reported alongside "???" leaves.
func WithRequired(paths ...string) ResolveOption {
	return func(o *resolveOptions) { o.required = append(o.required, paths...) }
}

// Resolve returns a new document with every reference substituted. The
// input is not modified.
//
// Resolution builds a dependency graph between string leaves that carry
// references, orders it topologically and substitutes in that order, so a
// reference always sees a fully resolved value. A reference whose target is
// a whole subtree depends on every leaf inside it. Circular chains fail with
// a *CycleError; leftover "???" markers fail with a *MissingRequiredError.
func Resolve(doc Document, opts ...ResolveOption) (Document, error) {
	var o resolveOptions
	for _, opt := range opts {
		opt(&o)
	}

	out := doc.Clone()

	refs := make(map[string][]reference)
	var parseErr error
	out.Leaves(func(path string, value any) {
		s, ok := value.(string)
		if !ok || parseErr != nil {
			return
		}
		for _, m := range refPattern.FindAllStringSubmatch(s, -1) {
			ref, err := parseReference(m[1])
			if err != nil {
				parseErr = fmt.Errorf("%s: %w", path, err)
				return
			}
			refs[path] = append(refs[path], ref)
		}
	})
	if parseErr != nil {
		return nil, parseErr
	}

	order, err := resolutionOrder(refs)
	if err != nil {
		return nil, err
	}

	for _, path := range order {
		raw, _ := out.Lookup(path).(string)
		v, err := substitute(out, path, raw)
		if err != nil {
			return nil, err
		}
		if err := out.Set(path, v); err != nil {
			return nil, err
		}
	}

	if missing := missingPaths(out, o.required); len(missing) > 0 {
		return nil, &MissingRequiredError{Paths: missing}
	}
	return out, nil
}

// resolutionOrder sorts reference-bearing leaves so that every leaf comes
// after the leaves it depends on. Ties break lexicographically.
func resolutionOrder(refs map[string][]reference) ([]string, error) {
	nodes := make([]string, 0, len(refs))
	for p := range refs {
		nodes = append(nodes, p)
	}
	slices.Sort(nodes)

	deps := make(map[string][]string, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	inDegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		for _, m := range nodes {
			if dependsOn(refs[n], m) {
				deps[n] = append(deps[n], m)
				dependents[m] = append(dependents[m], n)
				inDegree[n]++
			}
		}
	}

	var ready []string
	for _, n := range nodes {
		if inDegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		slices.Sort(ready)
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, d := range dependents[n] {
			inDegree[d]--
			if inDegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(order) < len(nodes) {
		return nil, &CycleError{Path: findCycle(nodes, deps, inDegree)}
	}
	return order, nil
}

func dependsOn(refs []reference, leaf string) bool {
	for _, r := range refs {
		if isUnder(leaf, r.target) || isUnder(r.target, leaf) {
			return true
		}
	}
	return false
}

// findCycle walks unresolved nodes from the smallest one, always following
// the smallest unresolved dependency, until a node repeats.
func findCycle(nodes []string, deps map[string][]string, inDegree map[string]int) []string {
	stuck := func(n string) bool { return inDegree[n] > 0 }

	var start string
	for _, n := range nodes {
		if stuck(n) {
			start = n
			break
		}
	}

	seen := make(map[string]int)
	var path []string
	cur := start
	for {
		if idx, ok := seen[cur]; ok {
			return append(path[idx:], cur)
		}
		seen[cur] = len(path)
		path = append(path, cur)

		next := ""
		for _, d := range deps[cur] {
			if stuck(d) {
				next = d
				break
			}
		}
		if next == "" {
			return path
		}
		cur = next
	}
}

// substitute resolves the references inside raw. A string that is exactly
// one reference takes the referenced value with its type; references
// embedded in longer text are interpolated as strings.
func substitute(doc Document, path, raw string) (any, error) {
	if loc := refPattern.FindStringSubmatchIndex(raw); loc != nil && loc[0] == 0 && loc[1] == len(raw) {
		ref, err := parseReference(raw[loc[2]:loc[3]])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		v, err := lookupReference(doc, ref)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return deepCopy(v), nil
	}

	var firstErr error
	s := refPattern.ReplaceAllStringFunc(raw, func(m string) string {
		if firstErr != nil {
			return m
		}
		ref, err := parseReference(m[2 : len(m)-1])
		if err != nil {
			firstErr = err
			return m
		}
		v, err := lookupReference(doc, ref)
		if err != nil {
			firstErr = err
			return m
		}
		str, err := scalarString(v)
		if err != nil {
			firstErr = fmt.Errorf("%w: ${%s} %w", ErrInvalidReference, ref.target, err)
			return m
		}
		return str
	})
	if firstErr != nil {
		return nil, fmt.Errorf("%s: %w", path, firstErr)
	}
	return s, nil
}

func lookupReference(doc Document, ref reference) (any, error) {
	v := doc.Lookup(ref.target)
	if !IsUnset(v) {
		return v, nil
	}
	if !ref.hasDefault {
		return nil, fmt.Errorf("%w: ${%s}", ErrUnresolvedReference, ref.target)
	}
	return parseScalar(ref.def), nil
}

func scalarString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case map[string]any, []any:
		return "", fmt.Errorf("cannot embed %T in a string", v)
	default:
		return fmt.Sprint(x), nil
	}
}

// parseScalar interprets s as a YAML scalar, falling back to the raw string.
func parseScalar(s string) any {
	if s == "" {
		return ""
	}
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case map[string]any, []any:
		return s
	}
	return v
}

func missingPaths(doc Document, required []string) []string {
	var missing []string
	doc.Leaves(func(path string, value any) {
		if s, ok := value.(string); ok && s == MandatoryMarker {
			missing = append(missing, path)
		}
	})
	for _, p := range required {
		v := doc.Lookup(p)
		if IsUnset(v) || v == nil {
			missing = append(missing, p)
		}
	}
	slices.Sort(missing)
	return slices.Compact(missing)
}
