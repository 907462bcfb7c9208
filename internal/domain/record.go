// Package domain provides the core types shared by every stage of the SFT
// manifest pipeline: the ordered Record, the lazy record Stream, grouping
// helpers, and the error taxonomy used to classify pipeline failures.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Record is an ordered mapping of field name to value.
// Values are strings, json.Number, bools, nil, nested maps or slices as
// produced by JSON decoding. Field order follows first insertion and survives
// JSON round trips, so manifests keep the key order of their inputs.
//
// A Record must not be mutated after a stage has emitted it downstream.
// Stages that change fields work on a Clone.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]any)}
}

// RecordOf builds a record from alternating key/value arguments, in the style
// of slog attributes. It panics on an odd argument count or a non-string key,
// which are programming errors.
func RecordOf(keyvals ...any) *Record {
	if len(keyvals)%2 != 0 {
		panic("domain.RecordOf: odd number of arguments")
	}
	r := NewRecord()
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			panic(fmt.Sprintf("domain.RecordOf: key at position %d is %T, not string", i, keyvals[i]))
		}
		r.Set(key, keyvals[i+1])
	}
	return r
}

// Len returns the number of fields.
func (r *Record) Len() int { return len(r.keys) }

// Keys returns the field names in order. The slice is a copy.
func (r *Record) Keys() []string { return slices.Clone(r.keys) }

// Get returns the value stored under key.
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether key is present.
func (r *Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// GetString returns the value under key when it is a string.
func (r *Record) GetString(key string) (string, bool) {
	v, ok := r.values[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set stores value under key. Existing keys keep their position.
func (r *Record) Set(key string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Delete removes key and reports whether it was present.
func (r *Record) Delete(key string) bool {
	if _, ok := r.values[key]; !ok {
		return false
	}
	delete(r.values, key)
	r.keys = slices.DeleteFunc(r.keys, func(k string) bool { return k == key })
	return true
}

// Rename moves the value under from to to, keeping the field position.
// Renaming an absent key is a no-op that returns false. Renaming onto a
// different key that already exists fails with ErrDuplicateKey.
func (r *Record) Rename(from, to string) (bool, error) {
	v, ok := r.values[from]
	if !ok {
		return false, nil
	}
	if from == to {
		return true, nil
	}
	if _, exists := r.values[to]; exists {
		return false, fmt.Errorf("%w: cannot rename %q to %q, target already present", ErrDuplicateKey, from, to)
	}
	idx := slices.Index(r.keys, from)
	r.keys[idx] = to
	delete(r.values, from)
	r.values[to] = v
	return true, nil
}

// Project returns a new record holding only the listed keys that are
// present, in the listed order.
func (r *Record) Project(keys ...string) *Record {
	out := NewRecord()
	for _, k := range keys {
		if v, ok := r.values[k]; ok {
			out.Set(k, v)
		}
	}
	return out
}

// Clone returns a shallow copy. Nested values are shared; stages treat
// them as read-only.
func (r *Record) Clone() *Record {
	out := &Record{
		keys:   slices.Clone(r.keys),
		values: make(map[string]any, len(r.values)),
	}
	for k, v := range r.values {
		out.values[k] = v
	}
	return out
}

// Equal reports whether both records hold the same keys in the same order
// with deeply equal values.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if !slices.Equal(r.keys, other.keys) {
		return false
	}
	for k, v := range r.values {
		if !reflect.DeepEqual(v, other.values[k]) {
			return false
		}
	}
	return true
}

// GoString renders the record for test failure messages.
func (r *Record) GoString() string {
	if r == nil {
		return "<dropped>"
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: %#v", k, r.values[k])
	}
	b.WriteByte('}')
	return b.String()
}

// MarshalJSON encodes the record as a JSON object in field order.
// HTML characters are left unescaped since manifests carry source code.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalRaw(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := marshalRaw(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("encoding field %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving top-level key order.
// Numbers decode as json.Number so integers survive unchanged.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: expected JSON object, got %v", ErrRecordShape, tok)
	}

	r.keys = nil
	r.values = make(map[string]any)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: unexpected object key %v", ErrRecordShape, tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("decoding field %q: %w", key, err)
		}
		r.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

func marshalRaw(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
