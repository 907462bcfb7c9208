package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ahrav/go-sftprep/internal/domain"
)

// ErrNoMatch is returned when an input pattern matches no file.
var ErrNoMatch = fmt.Errorf("%w: pattern matched no files", domain.ErrConfig)

// ExpandPatterns expands each glob pattern to the files it matches.
// Patterns keep their given order; matches of one pattern are sorted so the
// result does not depend on directory listing order. A file matched by more
// than one pattern appears once, at its first position. Directories are
// skipped. A pattern without glob characters names a single file.
func ExpandPatterns(patterns []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		matches, err := expandPattern(pattern)
		if err != nil {
			return nil, fmt.Errorf("expanding pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrNoMatch, pattern)
		}
		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out, nil
}

func expandPattern(pattern string) ([]string, error) {
	if !containsGlobChar(pattern) {
		info, err := os.Stat(pattern)
		if err != nil {
			if isNotExist(err) {
				return nil, nil
			}
			return nil, err
		}
		if info.IsDir() {
			return nil, nil
		}
		return []string{filepath.Clean(pattern)}, nil
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}
	slices.Sort(matches)

	files := matches[:0]
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", m, err)
		}
		if info.IsDir() {
			continue
		}
		files = append(files, m)
	}
	return files, nil
}

func containsGlobChar(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}
