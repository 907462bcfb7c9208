package domain

import (
	"encoding/json"
	"fmt"
	"iter"
)

// Group holds the records sharing one grouping-key value, in stream order.
// Groups cluster multiple sampled solutions of the same source problem.
type Group struct {
	Key     string
	Records []*Record
}

// GroupKey returns the canonical string form of rec[field].
// Strings are used verbatim; other values use their JSON encoding so that
// distinct values never collapse to the same key.
func GroupKey(rec *Record, field string) (string, error) {
	v, err := RequireField(rec, field)
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: field %q is not groupable: %w", ErrRecordShape, field, err)
	}
	return string(b), nil
}

// GroupBy clusters the records of s by field. Nothing is read from s until
// the returned sequence is ranged over; the whole input is then consumed and
// groups are emitted in order of first appearance. Records keep their
// relative order inside each group.
func GroupBy(s Stream, field string) iter.Seq2[Group, error] {
	return func(yield func(Group, error) bool) {
		var order []string
		groups := make(map[string][]*Record)
		for rec, err := range s {
			if err != nil {
				yield(Group{}, err)
				return
			}
			key, err := GroupKey(rec, field)
			if err != nil {
				yield(Group{}, err)
				return
			}
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], rec)
		}
		for _, key := range order {
			if !yield(Group{Key: key, Records: groups[key]}, nil) {
				return
			}
		}
	}
}

// Ungroup flattens groups back into a record stream.
func Ungroup(groups iter.Seq2[Group, error]) Stream {
	return func(yield func(*Record, error) bool) {
		for g, err := range groups {
			if err != nil {
				yield(nil, err)
				return
			}
			for _, rec := range g.Records {
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}
