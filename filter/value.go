package filter

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/tsanga/musty/id"
)

// Kind is the variant tag of a Value. Backends encode values by kind only.
type Kind string

const (
	KindIdentifier Kind = "identifier"
	KindText       Kind = "text"
	KindInt32      Kind = "int32"
	KindInt64      Kind = "int64"
	KindFloat32    Kind = "float32"
	KindFloat64    Kind = "float64"
	KindBool       Kind = "bool"
	KindNested     Kind = "nested"
	KindList       Kind = "list"
)

// Value is an operand of a condition.
type Value interface {
	Kind() Kind
	isValue()
}

// Identifier is a record identifier in string form. A nil ID is an absent identifier.
type Identifier struct {
	ID *string
}

type (
	Text    string
	Int32   int32
	Int64   int64
	Float32 float32
	Float64 float64
	Bool    bool
)

// Nested is a predicate tree used as an operand. Compared with Eq against an
// array field it matches when some element satisfies the tree.
type Nested struct {
	Filter Filter
}

// List is an ordered sequence of values.
type List []Value

func (Identifier) Kind() Kind { return KindIdentifier }
func (Text) Kind() Kind       { return KindText }
func (Int32) Kind() Kind      { return KindInt32 }
func (Int64) Kind() Kind      { return KindInt64 }
func (Float32) Kind() Kind    { return KindFloat32 }
func (Float64) Kind() Kind    { return KindFloat64 }
func (Bool) Kind() Kind       { return KindBool }
func (Nested) Kind() Kind     { return KindNested }
func (List) Kind() Kind       { return KindList }

func (Identifier) isValue() {}
func (Text) isValue()       {}
func (Int32) isValue()      {}
func (Int64) isValue()      {}
func (Float32) isValue()    {}
func (Float64) isValue()    {}
func (Bool) isValue()       {}
func (Nested) isValue()     {}
func (List) isValue()       {}

// IdentifierOf converts an optional identifier into a Value.
func IdentifierOf(i id.ID) Identifier {
	return Identifier{ID: i.Ptr()}
}

// Referencer is a value standing for the identifier of another record.
// Schema fields of such types are identifier fields.
type Referencer interface {
	RefID() id.ID
}

// IdentifierString builds a present identifier value.
func IdentifierString(s string) Identifier {
	return Identifier{ID: &s}
}

// Scalar is the set of Go types a typed field cursor accepts.
// Plain int is excluded so that the width is always chosen by the caller.
type Scalar interface {
	~string | ~bool | ~int32 | ~int64 | ~float32 | ~float64 | id.ID
}

// Ordered is the subset of Scalar that supports Gt, Lt, Ge and Le.
type Ordered interface {
	~string | ~int32 | ~int64 | ~float32 | ~float64
}

// ValueOf maps a Go value to exactly one Value variant.
func ValueOf[T Scalar](v T) Value {
	switch x := any(v).(type) {
	case id.ID:
		return IdentifierOf(x)
	case string:
		return Text(x)
	case bool:
		return Bool(x)
	case int32:
		return Int32(x)
	case int64:
		return Int64(x)
	case float32:
		return Float32(x)
	case float64:
		return Float64(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return Text(rv.String())
	case reflect.Bool:
		return Bool(rv.Bool())
	case reflect.Int32:
		return Int32(rv.Int())
	case reflect.Int64:
		return Int64(rv.Int())
	case reflect.Float32:
		return Float32(rv.Float())
	case reflect.Float64:
		return Float64(rv.Float())
	default:
		panic(fmt.Sprintf("filter: unsupported scalar type %T", v))
	}
}

// ListOf builds a List from typed values.
func ListOf[T Scalar](values ...T) List {
	out := make(List, 0, len(values))
	for _, v := range values {
		out = append(out, ValueOf(v))
	}
	return out
}

// Orderable reports whether ordering comparisons are meaningful for v.
func Orderable(v Value) bool {
	switch x := v.(type) {
	case Identifier:
		return x.ID != nil
	case Text, Int32, Int64, Float32, Float64:
		return true
	default:
		return false
	}
}

// Numeric returns the value as float64 when it is one of the numeric variants.
func Numeric(v Value) (float64, bool) {
	switch x := v.(type) {
	case Int32:
		return float64(x), true
	case Int64:
		return float64(x), true
	case Float32:
		return float64(x), true
	case Float64:
		return float64(x), true
	default:
		return 0, false
	}
}

// Native returns the plain Go form of a scalar value: string, bool, int32,
// int64, float32, float64, or nil for an absent identifier. Lists become
// []any. Nested values have no native form and yield nil.
func Native(v Value) any {
	switch x := v.(type) {
	case Identifier:
		if x.ID == nil {
			return nil
		}
		return *x.ID
	case Text:
		return string(x)
	case Int32:
		return int32(x)
	case Int64:
		return int64(x)
	case Float32:
		return float32(x)
	case Float64:
		return float64(x)
	case Bool:
		return bool(x)
	case List:
		out := make([]any, 0, len(x))
		for _, item := range x {
			out = append(out, Native(item))
		}
		return out
	default:
		return nil
	}
}

// CloneValue deep-copies v so that the copy shares no memory with the original.
func CloneValue(v Value) Value {
	switch x := v.(type) {
	case Identifier:
		if x.ID == nil {
			return Identifier{}
		}
		s := *x.ID
		return Identifier{ID: &s}
	case Nested:
		return Nested{Filter: x.Filter.Clone()}
	case List:
		if x == nil {
			return List(nil)
		}
		out := make(List, len(x))
		for i, item := range x {
			out[i] = CloneValue(item)
		}
		return out
	default:
		return v
	}
}

// EqualValues reports structural equality, including the variant tag.
func EqualValues(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Identifier:
		y := b.(Identifier)
		if x.ID == nil || y.ID == nil {
			return x.ID == nil && y.ID == nil
		}
		return *x.ID == *y.ID
	case Nested:
		return x.Filter.Equal(b.(Nested).Filter)
	case List:
		y := b.(List)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !EqualValues(x[i], y[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// FormatValue renders v for diagnostics.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case Identifier:
		if x.ID == nil {
			return "id(none)"
		}
		return "id(" + strconv.Quote(*x.ID) + ")"
	case Text:
		return strconv.Quote(string(x))
	case Int32:
		return strconv.FormatInt(int64(x), 10) + "i32"
	case Int64:
		return strconv.FormatInt(int64(x), 10)
	case Float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32) + "f32"
	case Float64:
		return strconv.FormatFloat(float64(x), 'g', -1, 64)
	case Bool:
		return strconv.FormatBool(bool(x))
	case Nested:
		return "match" + x.Filter.String()
	case List:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, FormatValue(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}
