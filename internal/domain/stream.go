package domain

import "iter"

// Stream is a lazy, ordered sequence of records. Ranging over it pulls
// records on demand, so arbitrarily large inputs are processed without
// being materialized. A non-nil error ends the stream; consumers must stop
// at the first error.
type Stream = iter.Seq2[*Record, error]

// FromSlice returns a stream over recs in order.
func FromSlice(recs []*Record) Stream {
	return func(yield func(*Record, error) bool) {
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// Empty returns a stream with no records.
func Empty() Stream {
	return func(func(*Record, error) bool) {}
}

// Failed returns a stream that yields err and ends.
func Failed(err error) Stream {
	return func(yield func(*Record, error) bool) {
		yield(nil, err)
	}
}

// Collect drains s into a slice, stopping at the first error.
func Collect(s Stream) ([]*Record, error) {
	var out []*Record
	for rec, err := range s {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Count drains s and returns the number of records, stopping at the first error.
func Count(s Stream) (int, error) {
	n := 0
	for _, err := range s {
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
