package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Kind tags the shape of a Value
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindText
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	}
	return "unknown"
}

// Value is one loosely typed JSON value. Exactly one payload field is meaningful,
// selected by Kind. Numbers keep their literal text so they are never rounded.
type Value struct {
	Kind   Kind
	Bool   bool
	Number json.Number
	Text   string
	Object Record
	Array  []Value
}

// Record is a structurally parsed, not yet validated transaction record
type Record map[string]Value

// Lookup returns the first name present in the record. Names are tried in
// order; for each one an exact key wins over a case-insensitive match, and
// case-insensitive ties go to the first key in sorted order.
func (r Record) Lookup(names ...string) (string, Value, bool) {
	var keys []string
	for _, name := range names {
		if v, ok := r[name]; ok {
			return name, v, true
		}

		if keys == nil {
			keys = make([]string, 0, len(r))
			for k := range r {
				keys = append(keys, k)
			}
			sort.Strings(keys)
		}
		for _, k := range keys {
			if strings.EqualFold(strings.TrimSpace(k), name) {
				return k, r[k], true
			}
		}
	}
	return "", Value{}, false
}

// Raw renders the value back to compact JSON for diagnostics
func (v Value) Raw() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNumber:
		return v.Number.String()
	case KindText:
		return v.Text
	}
	data, err := json.Marshal(v.plain())
	if err != nil {
		return fmt.Sprintf("<%s>", v.Kind)
	}
	return string(data)
}

// plain converts back to the encoding/json generic shapes
func (v Value) plain() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number
	case KindText:
		return v.Text
	case KindObject:
		m := make(map[string]any, len(v.Object))
		for k, e := range v.Object {
			m[k] = e.plain()
		}
		return m
	case KindArray:
		a := make([]any, len(v.Array))
		for i, e := range v.Array {
			a[i] = e.plain()
		}
		return a
	}
	return nil
}

var errTrailingData = errors.New("unexpected data after JSON value")

// decode parses text as exactly one JSON value
func decode(text string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return Value{}, fmt.Errorf("decoding candidate: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, errTrailingData
	}
	return valueOf(generic), nil
}

func valueOf(generic any) Value {
	switch t := generic.(type) {
	case bool:
		return Value{Kind: KindBool, Bool: t}
	case json.Number:
		return Value{Kind: KindNumber, Number: t}
	case string:
		return Value{Kind: KindText, Text: t}
	case map[string]any:
		rec := make(Record, len(t))
		for k, e := range t {
			rec[k] = valueOf(e)
		}
		return Value{Kind: KindObject, Object: rec}
	case []any:
		arr := make([]Value, len(t))
		for i, e := range t {
			arr[i] = valueOf(e)
		}
		return Value{Kind: KindArray, Array: arr}
	}
	return Value{Kind: KindNull}
}

// looksLikeJSON reports whether text starts with an object or array opener
func looksLikeJSON(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}
