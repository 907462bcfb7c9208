package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-sftprep/internal/domain"
)

// ErrDatasetNotFound is returned when a registry has no files for a
// dataset split.
var ErrDatasetNotFound = fmt.Errorf("%w: dataset not found", domain.ErrConfig)

// Registry resolves a named dataset split to its ordered list of files.
type Registry interface {
	Files(ctx context.Context, name, split string) ([]string, error)
}

// DirRegistry serves datasets laid out on disk as <Root>/<name>/<split>.jsonl.
type DirRegistry struct {
	Root string
}

// Files returns the single JSONL file of the split.
func (r DirRegistry) Files(_ context.Context, name, split string) ([]string, error) {
	path := filepath.Join(r.Root, name, split+".jsonl")
	if _, err := os.Stat(path); err != nil {
		if isNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s (no %s)", ErrDatasetNotFound, name, split, path)
		}
		return nil, err
	}
	return []string{path}, nil
}

// DefaultRedisKeyPrefix namespaces dataset keys in Redis.
const DefaultRedisKeyPrefix = "sftprep:dataset"

// RedisRegistry keeps the file list of each dataset split in a Redis list
// under <prefix>:<name>:<split>. Relative paths in the list are resolved
// against BaseDir.
type RedisRegistry struct {
	client  redis.Cmdable
	prefix  string
	baseDir string
}

// RedisOption configures a RedisRegistry.
type RedisOption func(*RedisRegistry)

// WithKeyPrefix overrides DefaultRedisKeyPrefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisRegistry) { r.prefix = prefix }
}

// WithBaseDir sets the directory relative file entries are resolved against.
func WithBaseDir(dir string) RedisOption {
	return func(r *RedisRegistry) { r.baseDir = dir }
}

// NewRedisRegistry returns a registry backed by client.
func NewRedisRegistry(client redis.Cmdable, opts ...RedisOption) *RedisRegistry {
	r := &RedisRegistry{client: client, prefix: DefaultRedisKeyPrefix}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Key returns the Redis key holding the file list of name/split.
func (r *RedisRegistry) Key(name, split string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, name, split)
}

// Files reads the file list of name/split in list order.
func (r *RedisRegistry) Files(ctx context.Context, name, split string) ([]string, error) {
	key := r.Key(name, split)
	files, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading dataset list %s: %w", key, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s/%s (empty or missing key %s)", ErrDatasetNotFound, name, split, key)
	}
	if r.baseDir != "" {
		for i, f := range files {
			if !filepath.IsAbs(f) {
				files[i] = filepath.Join(r.baseDir, f)
			}
		}
	}
	return files, nil
}

// Register replaces the file list of name/split. The new list is built under
// a staging key and renamed over the live key so readers never observe a
// partially written list.
func (r *RedisRegistry) Register(ctx context.Context, name, split string, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: registering %s/%s with no files", domain.ErrConfig, name, split)
	}
	key := r.Key(name, split)
	staging := key + ":staging"

	values := make([]any, len(files))
	for i, f := range files {
		values[i] = f
	}
	if err := r.client.Del(ctx, staging).Err(); err != nil {
		return fmt.Errorf("clearing %s: %w", staging, err)
	}
	if err := r.client.RPush(ctx, staging, values...).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", staging, err)
	}
	if err := r.client.Rename(ctx, staging, key).Err(); err != nil {
		return fmt.Errorf("publishing %s: %w", key, err)
	}
	return nil
}
