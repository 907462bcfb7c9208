// Package dataset reads and writes JSONL record files and resolves the
// sources a pipeline run reads from: glob patterns over local files or a
// named dataset held in a registry.
package dataset

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ahrav/go-sftprep/internal/domain"
)

// Scanner buffer sizes. Generated solutions can be long, so a single line
// may grow well beyond bufio's 64KiB default.
const (
	initialLineBuffer = 1 << 20
	maxLineSize       = 64 << 20
)

// ReadJSONL returns a stream over the records of one JSONL file. The file is
// opened when the stream is first ranged over and closed when it ends.
// Blank lines are skipped.
func ReadJSONL(ctx context.Context, path string) domain.Stream {
	return func(yield func(*domain.Record, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(nil, fmt.Errorf("opening %s: %w", path, err))
			return
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, initialLineBuffer), maxLineSize)
		line := 0
		for sc.Scan() {
			line++
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			data := sc.Bytes()
			if len(bytes.TrimSpace(data)) == 0 {
				continue
			}
			rec := domain.NewRecord()
			if err := rec.UnmarshalJSON(data); err != nil {
				yield(nil, fmt.Errorf("%s:%d: %w", path, line, err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(nil, fmt.Errorf("reading %s: %w", path, err))
		}
	}
}

// Concat streams the records of every file in order: file order first, then
// line order within each file.
func Concat(ctx context.Context, paths []string) domain.Stream {
	return func(yield func(*domain.Record, error) bool) {
		for _, p := range paths {
			for rec, err := range ReadJSONL(ctx, p) {
				if !yield(rec, err) || err != nil {
					return
				}
			}
		}
	}
}

// Skip drops the first n records of s.
func Skip(s domain.Stream, n int) domain.Stream {
	if n <= 0 {
		return s
	}
	return func(yield func(*domain.Record, error) bool) {
		seen := 0
		for rec, err := range s {
			if err != nil {
				yield(nil, err)
				return
			}
			if seen < n {
				seen++
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// WriteJSONL drains s into path, one JSON object per line, and returns the
// number of records written. The file is written under a temporary name in
// the same directory and renamed into place only after the stream ends
// cleanly, so a failed run never leaves a partial file at path.
func WriteJSONL(path string, s domain.Stream) (int, error) {
	n := 0
	err := WriteFileAtomic(path, func(w io.Writer) error {
		for rec, err := range s {
			if err != nil {
				return err
			}
			data, err := rec.MarshalJSON()
			if err != nil {
				return fmt.Errorf("encoding record %d: %w", n, err)
			}
			if _, err := w.Write(append(data, '\n')); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// WriteFileAtomic calls fill with a buffered writer backed by a temporary
// file next to path, then renames the file to path. On any error the
// temporary file is removed and path is left untouched.
func WriteFileAtomic(path string, fill func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := fill(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}

// isNotExist reports whether err means a file is absent.
func isNotExist(err error) bool { return errors.Is(err, os.ErrNotExist) }
