package odm

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/goccy/go-json"
)

// Document is a schemaless record. Values are normalized to string, bool,
// int64, float64, nil, []any and map[string]any.
type Document map[string]any

// ID returns the identifier of the document, or "" when it has none.
func (d Document) ID() string {
	switch v := d[IDField].(type) {
	case string:
		return v
	case interface{ Hex() string }:
		return v.Hex()
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// ResolveID returns the identifier of the document, or "" when it has none.
// Identifiers must be strings or ObjectIDs; anything else is rejected.
func (d Document) ResolveID() (string, error) {
	switch v := d[IDField].(type) {
	case nil:
		return "", nil
	case string, interface{ Hex() string }, fmt.Stringer:
		return d.ID(), nil
	default:
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidDocument, IDField, v)
	}
}

// Lookup resolves a dotted path through embedded documents.
func (d Document) Lookup(path string) (any, bool) {
	var current any = map[string]any(d)
	for _, segment := range strings.Split(path, ".") {
		asMap, ok := asObject(current)
		if !ok {
			return nil, false
		}
		next, ok := asMap[segment]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

// MarshalDocument encodes d as JSON.
func MarshalDocument(d Document) ([]byte, error) {
	data, err := json.Marshal(map[string]any(d))
	if err != nil {
		return nil, fmt.Errorf("%w: encode JSON: %v", ErrInvalidDocument, err)
	}
	return data, nil
}

// UnmarshalDocument decodes a JSON object into a normalized Document.
// Integral numbers become int64 and the rest float64.
func UnmarshalDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode JSON: %v", ErrInvalidDocument, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: document is null", ErrInvalidDocument)
	}
	return Document(Normalize(raw).(map[string]any)), nil
}

// NormalizeDocument converts arbitrary Go values held by d into the
// normalized value set by a JSON round trip.
func NormalizeDocument(d Document) (Document, error) {
	data, err := MarshalDocument(d)
	if err != nil {
		return nil, err
	}
	return UnmarshalDocument(data)
}

// Normalize rewrites json.Number values and nested containers in place.
func Normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	case map[string]any:
		for k, item := range x {
			x[k] = Normalize(item)
		}
		return x
	case Document:
		return Normalize(map[string]any(x))
	case []any:
		for i, item := range x {
			x[i] = Normalize(item)
		}
		return x
	default:
		return v
	}
}

// ToFloat64 returns v as float64 when it holds a Go number.
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ToInt64 returns v as int64 when it holds an integral Go number.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n), true
		}
		return 0, false
	case float32:
		f := float64(n)
		if f == math.Trunc(f) && math.Abs(f) < 1<<24 {
			return int64(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func asObject(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case Document:
		return x, true
	default:
		return nil, false
	}
}

// AsArray returns v as []any when it holds a slice.
func AsArray(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case nil, string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = cloneValue(item)
		}
		return out
	case Document:
		return cloneValue(map[string]any(x))
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
