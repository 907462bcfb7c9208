package stages

import (
	"fmt"
	"slices"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-sftprep/internal/domain"
	"github.com/ahrav/go-sftprep/internal/processor"
)

// groupedRecords returns records for groups of the given sizes, in group
// order, each tagged with a unique "id".
func groupedRecords(sizes ...int) []*domain.Record {
	var out []*domain.Record
	id := 0
	for g, n := range sizes {
		for range n {
			out = append(out, domain.RecordOf("input", fmt.Sprintf("q%d", g), "output", "a", "id", id))
			id++
		}
	}
	return out
}

func ids(t *testing.T, recs []*domain.Record) []int {
	t.Helper()
	out := make([]int, len(recs))
	for i, v := range values(t, recs, "id") {
		out[i] = v.(int)
	}
	return out
}

func TestDownsample_PassThroughWhenUnset(t *testing.T) {
	in := groupedRecords(3, 2)
	got, err := run(t, TargetDownsample, processor.Args{"do_shuffle": false}, in...)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, ids(t, got))
}

func TestDownsample_Methods(t *testing.T) {
	in := groupedRecords(10, 1, 1)

	tests := []struct {
		name  string
		args  processor.Args
		check func(t *testing.T, got []int)
	}{
		{
			name: "unset method truncates",
			args: processor.Args{"num_output_samples": 4, "do_shuffle": false},
			check: func(t *testing.T, got []int) {
				assert.Equal(t, []int{0, 1, 2, 3}, got)
			},
		},
		{
			name: "random keeps input order without shuffle",
			args: processor.Args{"method": "random", "num_output_samples": 5, "do_shuffle": false},
			check: func(t *testing.T, got []int) {
				assert.Len(t, got, 5)
				assert.True(t, slices.IsSorted(got))
				assert.Len(t, slices.Compact(slices.Clone(got)), 5)
			},
		},
		{
			name: "fair takes one per group before a second from any",
			args: processor.Args{"method": "fair", "num_output_samples": 3, "do_shuffle": false},
			check: func(t *testing.T, got []int) {
				require.Len(t, got, 3)
				assert.Less(t, got[0], 10, "one record from the large group")
				assert.Equal(t, []int{10, 11}, got[1:], "both singleton groups")
			},
		},
		{
			name: "fair spreads remaining picks",
			args: processor.Args{"method": "fair", "num_output_samples": 5, "do_shuffle": false},
			check: func(t *testing.T, got []int) {
				assert.Len(t, got, 5)
				assert.Contains(t, got, 10)
				assert.Contains(t, got, 11)
			},
		},
		{
			name: "cap above input size keeps all",
			args: processor.Args{"method": "fair", "num_output_samples": 100, "do_shuffle": false},
			check: func(t *testing.T, got []int) {
				assert.Len(t, got, 12)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := run(t, TargetDownsample, tt.args, in...)
			require.NoError(t, err)
			tt.check(t, ids(t, got))
		})
	}
}

func TestDownsample_ShuffleKeepsSelection(t *testing.T) {
	in := groupedRecords(20)
	got, err := run(t, TargetDownsample, processor.Args{"do_shuffle": true, "random_seed": 7}, in...)
	require.NoError(t, err)

	order := ids(t, got)
	assert.False(t, slices.IsSorted(order), "twenty records are practically never shuffled into order")
	sorted := slices.Clone(order)
	slices.Sort(sorted)
	assert.Equal(t, ids(t, in), sorted)
}

func TestDownsample_Property_Deterministic(t *testing.T) {
	f := func(seed uint64, sizes []uint8, n uint8, fair bool) bool {
		var ints []int
		for _, s := range sizes {
			ints = append(ints, int(s%8))
		}
		in := groupedRecords(ints...)
		method := "random"
		if fair {
			method = "fair"
		}
		args := processor.Args{
			"method":             method,
			"random_seed":        seed,
			"num_output_samples": int(n),
			"do_shuffle":         true,
		}
		a, err1 := run(t, TargetDownsample, args, in...)
		b, err2 := run(t, TargetDownsample, args, in...)
		if err1 != nil || err2 != nil {
			return false
		}
		return slices.Equal(ids(t, a), ids(t, b))
	}
	require.NoError(t, quick.Check(f, nil))
}

func TestDownsample_SeedChangesSelection(t *testing.T) {
	in := groupedRecords(50)
	args := func(seed int) processor.Args {
		return processor.Args{"method": "random", "num_output_samples": 10, "random_seed": seed, "do_shuffle": false}
	}
	a, err := run(t, TargetDownsample, args(1), in...)
	require.NoError(t, err)
	b, err := run(t, TargetDownsample, args(2), in...)
	require.NoError(t, err)
	assert.NotEqual(t, ids(t, a), ids(t, b))
}

func TestNewDownsample_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		args processor.Args
	}{
		{name: "unknown method", args: processor.Args{"method": "stratified"}},
		{name: "negative cap", args: processor.Args{"num_output_samples": -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDownsample(tt.args)
			assert.ErrorIs(t, err, domain.ErrConfig)
		})
	}
}

func TestDownsample_FairNeedsGroupKey(t *testing.T) {
	_, err := run(t, TargetDownsample,
		processor.Args{"method": "fair", "num_output_samples": 1, "group_key": "problem"},
		groupedRecords(2)...)
	assert.ErrorIs(t, err, domain.ErrRecordShape)
}
