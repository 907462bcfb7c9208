package dataset

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ahrav/go-sftprep/internal/domain"
)

// DoneSuffix is appended to an output file's name to mark it complete.
const DoneSuffix = ".done"

// ErrIncomplete is returned when a file that must be complete lacks its
// done marker.
var ErrIncomplete = fmt.Errorf("%w: output not marked done", domain.ErrConfig)

// NoSeed and NoChunk omit the corresponding part of a generated file name.
const (
	NoSeed  = -1
	NoChunk = -1
)

// ChunkedFilename returns the name generation jobs write to:
// <dir>/<prefix>[-rs<seed>][-chunk<chunk>].jsonl.
func ChunkedFilename(dir, prefix string, seed, chunk int) string {
	var b strings.Builder
	b.WriteString(prefix)
	if seed != NoSeed {
		b.WriteString("-rs")
		b.WriteString(strconv.Itoa(seed))
	}
	if chunk != NoChunk {
		b.WriteString("-chunk")
		b.WriteString(strconv.Itoa(chunk))
	}
	b.WriteString(".jsonl")
	return filepath.Join(dir, b.String())
}

// ChunkFilenames lists the files of a run split into numChunks chunks.
func ChunkFilenames(dir, prefix string, seed, numChunks int) []string {
	names := make([]string, numChunks)
	for i := range numChunks {
		names[i] = ChunkedFilename(dir, prefix, seed, i)
	}
	return names
}

// DoneMarker returns the marker path for path.
func DoneMarker(path string) string { return path + DoneSuffix }

// IsDone reports whether path has a done marker.
func IsDone(path string) bool {
	_, err := os.Stat(DoneMarker(path))
	return err == nil
}

// MarkDone creates the done marker for path.
func MarkDone(path string) error {
	f, err := os.Create(DoneMarker(path))
	if err != nil {
		return fmt.Errorf("marking %s done: %w", path, err)
	}
	return f.Close()
}

// RequireDone fails with ErrIncomplete naming every path without a marker.
func RequireDone(paths []string) error {
	var missing []string
	for _, p := range paths {
		if !IsDone(p) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	return nil
}

// MergeChunks concatenates chunk files into dst, in the order given, then
// marks dst done. Nothing is written unless every chunk is marked done.
// Chunk files are left in place.
func MergeChunks(ctx context.Context, dst string, chunks []string) (int, error) {
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: no chunks to merge into %s", domain.ErrConfig, dst)
	}
	if err := RequireDone(chunks); err != nil {
		return 0, err
	}

	lines := 0
	err := WriteFileAtomic(dst, func(w io.Writer) error {
		for _, chunk := range chunks {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := appendLines(w, chunk)
			if err != nil {
				return err
			}
			lines += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := MarkDone(dst); err != nil {
		return 0, err
	}
	return lines, nil
}

// appendLines copies the non-blank lines of path to w, newline terminated.
func appendLines(w io.Writer, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening chunk: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, initialLineBuffer), maxLineSize)
	n := 0
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if _, err := w.Write(line); err != nil {
			return n, err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return n, err
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("reading chunk %s: %w", path, err)
	}
	return n, nil
}
