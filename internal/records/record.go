// Package records holds vault entries as nested key/value trees and provides
// the ordered, deduplicated Collection the query language operates on.
package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strconv"

	"github.com/mitchellh/copystructure"
)

// Record is one vault entry as decoded from JSON: values are strings,
// json.Number, bools, nil, nested Records/map[string]any and []any.
type Record = map[string]any

// Fingerprint returns a canonical encoding of v. Two values have the same
// fingerprint iff they are structurally equal.
func Fingerprint(v any) string {
	var buf bytes.Buffer
	writeCanonical(&buf, v)
	return buf.String()
}

func writeCanonical(buf *bytes.Buffer, v any) {
	switch t := v.(type) {
	case map[string]any:
		keys := sortedKeys(t)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Quote(k))
			buf.WriteByte(':')
			writeCanonical(buf, t[k])
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, e)
		}
		buf.WriteByte(']')
	case string:
		buf.WriteString(strconv.Quote(t))
	case nil:
		buf.WriteString("null")
	default:
		if n, ok := canonicalNumber(t); ok {
			buf.WriteString(n)
			return
		}
		if s, ok := Stringify(t); ok {
			buf.WriteString(s)
			return
		}
		// Fall back to the JSON encoding for types Decode never produces.
		data, err := json.Marshal(t)
		if err != nil {
			fmt.Fprintf(buf, "%#v", t)
			return
		}
		buf.Write(data)
	}
}

// canonicalNumber writes numbers by exact value, so 1, 1.0 and 1e0 share a
// fingerprint while their text is kept for matching.
func canonicalNumber(v any) (string, bool) {
	var r *big.Rat
	switch t := v.(type) {
	case json.Number:
		var ok bool
		if r, ok = new(big.Rat).SetString(t.String()); !ok {
			return "", false
		}
	case float64:
		if r = new(big.Rat).SetFloat64(t); r == nil {
			return "", false
		}
	case float32:
		if r = new(big.Rat).SetFloat64(float64(t)); r == nil {
			return "", false
		}
	case int:
		r = new(big.Rat).SetInt64(int64(t))
	case int64:
		r = new(big.Rat).SetInt64(t)
	case int32:
		r = new(big.Rat).SetInt64(int64(t))
	case uint64:
		r = new(big.Rat).SetUint64(t)
	case uint32:
		r = new(big.Rat).SetUint64(uint64(t))
	default:
		return "", false
	}
	return r.RatString(), true
}

// Stringify renders a scalar leaf the way queries compare against it.
// It reports false for nil, mappings and lists.
func Stringify(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case uint32:
		return strconv.FormatUint(uint64(t), 10), true
	}
	return "", false
}

// Lookup walks path through nested mappings. It reports false when any key is
// absent or an intermediate value is not a mapping.
func Lookup(r Record, path []string) (any, bool) {
	var cur any = r
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// anyLeaf reports whether pred holds for any scalar leaf reachable from v.
func anyLeaf(v any, pred func(string) bool) bool {
	switch t := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(t) {
			if anyLeaf(t[k], pred) {
				return true
			}
		}
	case []any:
		for _, e := range t {
			if anyLeaf(e, pred) {
				return true
			}
		}
	default:
		if s, ok := Stringify(t); ok {
			return pred(s)
		}
	}
	return false
}

// Clone returns a deep copy of r.
func Clone(r Record) Record {
	c, err := copystructure.Copy(r)
	if err != nil {
		// copystructure only fails on types JSON decoding never yields.
		panic(fmt.Sprintf("records: copying record: %v", err))
	}
	if c == nil {
		return nil
	}
	return c.(Record)
}

// Decode reads a JSON array of objects, as printed by `op list items`.
func Decode(r io.Reader) (*Collection, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return New(), nil
		}
		return nil, fmt.Errorf("decoding item listing: %w", err)
	}
	c := New()
	for i, v := range raw {
		rec, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("decoding item listing: element %d is %T, want object", i, v)
		}
		c.Add(rec)
	}
	return c, nil
}

// DecodeRecord reads a single JSON object.
func DecodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding item: %w", err)
	}
	return rec, nil
}
