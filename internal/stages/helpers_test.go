package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-sftprep/internal/domain"
	"github.com/ahrav/go-sftprep/internal/processor"
)

// run builds target from args and returns everything it emits for in.
func run(t *testing.T, target string, args processor.Args, in ...*domain.Record) ([]*domain.Record, error) {
	t.Helper()
	p, err := NewRegistry(Deps{}).Build(target, args)
	require.NoError(t, err)
	return domain.Collect(p.Process(context.Background(), domain.FromSlice(in)))
}

func values(t *testing.T, recs []*domain.Record, key string) []any {
	t.Helper()
	out := make([]any, len(recs))
	for i, r := range recs {
		v, ok := r.Get(key)
		require.True(t, ok, "record %d lacks %q", i, key)
		out[i] = v
	}
	return out
}
