package filter

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/tsanga/musty/id"
)

// Dynamic builds filters for a Schema from untyped values. Field names and
// value kinds are checked as conditions are added. The first failure is
// kept and every later call becomes a no-op; Result reports it.
type Dynamic struct {
	schema *Schema
	filter Filter
	err    error
}

var _ ModelFilter = (*Dynamic)(nil)

// NewDynamic starts a dynamic builder over schema.
func NewDynamic(schema *Schema) *Dynamic {
	return &Dynamic{schema: schema}
}

func (d *Dynamic) State() *Filter {
	return &d.filter
}

func (d *Dynamic) Build() Filter {
	return d.filter.Clone()
}

// Err returns the first error recorded by the builder.
func (d *Dynamic) Err() error {
	return d.err
}

// Result returns the built filter, or the first recorded error.
func (d *Dynamic) Result() (Filter, error) {
	if d.err != nil {
		return Filter{}, d.err
	}
	return d.Build(), nil
}

// Where adds the condition field op value. A dotted field walks into child
// scopes. On a list field, a slice value compares the whole array and a
// scalar value matches arrays holding it.
func (d *Dynamic) Where(field string, op CmpOp, value any) *Dynamic {
	if d.err != nil {
		return d
	}
	scope, spec, ok := d.resolve(field)
	if !ok {
		return d
	}
	if err := op.Validate(); err != nil {
		return d.fail(fmt.Errorf("%w (field %q)", err, field))
	}

	var v Value
	var err error
	if spec.List && isSequence(value) {
		v, err = coerceList(spec.Kind, value)
	} else {
		v, err = coerce(spec.Kind, value)
	}
	if err != nil {
		return d.fail(fmt.Errorf("%w (field %q)", err, field))
	}
	c := NewCondition(leaf(field), op, v)
	if err := c.Validate(); err != nil {
		return d.fail(err)
	}
	scope(func(f *Filter) { f.AddCondition(c) })
	return d
}

// In matches when the field equals one of values. It is encoded like
// FieldFilter.Any.
func (d *Dynamic) In(field string, values ...any) *Dynamic {
	return d.membership(LogicAny, field, values)
}

// AllOf matches when the array field holds every one of values.
func (d *Dynamic) AllOf(field string, values ...any) *Dynamic {
	return d.membership(LogicAll, field, values)
}

// Any merges the filter built by configure into the LogicAny group.
func (d *Dynamic) Any(configure func(*Dynamic) *Dynamic) *Dynamic {
	return d.group(LogicAny, configure)
}

// All merges the filter built by configure into the LogicAll group.
func (d *Dynamic) All(configure func(*Dynamic) *Dynamic) *Dynamic {
	return d.group(LogicAll, configure)
}

// Child scopes the filter built by configure to the embedded record name.
func (d *Dynamic) Child(name string, configure func(*Dynamic) *Dynamic) *Dynamic {
	if d.err != nil {
		return d
	}
	spec, ok := d.schema.Field(name)
	if !ok || spec.Child == nil || spec.List {
		return d.fail(fmt.Errorf("%w: %q is not a child record of %s", ErrUnknownField, name, d.schema.Name))
	}
	sub, err := d.sub(spec.Child, configure)
	if err != nil {
		return d.fail(err)
	}
	d.filter.AddChild(name, sub)
	return d
}

// ElemMatch matches documents whose array field name has an element
// satisfying the filter built by configure.
func (d *Dynamic) ElemMatch(name string, configure func(*Dynamic) *Dynamic) *Dynamic {
	if d.err != nil {
		return d
	}
	spec, ok := d.schema.Field(name)
	if !ok || spec.Child == nil || !spec.List {
		return d.fail(fmt.Errorf("%w: %q is not a list of records in %s", ErrUnknownField, name, d.schema.Name))
	}
	sub, err := d.sub(spec.Child, configure)
	if err != nil {
		return d.fail(err)
	}
	d.filter.AddCondition(NewCondition(name, Eq, Nested{Filter: sub}))
	return d
}

func (d *Dynamic) membership(op LogicOp, field string, values []any) *Dynamic {
	if d.err != nil {
		return d
	}
	scope, spec, ok := d.resolve(field)
	if !ok {
		return d
	}
	list, err := coerceList(spec.Kind, values)
	if err != nil {
		return d.fail(fmt.Errorf("%w (field %q)", err, field))
	}
	c := NewCondition(leaf(field), Eq, list)
	scope(func(f *Filter) { f.AddOpCondition(op, c) })
	return d
}

func (d *Dynamic) group(op LogicOp, configure func(*Dynamic) *Dynamic) *Dynamic {
	if d.err != nil {
		return d
	}
	sub, err := d.sub(d.schema, configure)
	if err != nil {
		return d.fail(err)
	}
	d.filter.AddOpFilter(op, sub)
	return d
}

func (d *Dynamic) sub(schema *Schema, configure func(*Dynamic) *Dynamic) (Filter, error) {
	fresh := NewDynamic(schema)
	if configure != nil {
		if out := configure(fresh); out != nil {
			fresh = out
		}
	}
	return fresh.Result()
}

// resolve finds the field spec for a possibly dotted name and returns a
// function that applies a mutation inside the right child scope.
func (d *Dynamic) resolve(field string) (func(func(*Filter)), FieldSpec, bool) {
	if strings.TrimSpace(field) == "" {
		d.fail(fmt.Errorf("%w: empty field name", ErrInvalidFilterOperation))
		return nil, FieldSpec{}, false
	}
	spec, ok := d.schema.Field(field)
	if !ok {
		if list, crosses := d.crossesList(field); crosses {
			d.fail(fmt.Errorf("%w: %q walks through list %q; use ElemMatch", ErrUnknownField, field, list))
		} else {
			d.fail(fmt.Errorf("%w: %q in %s", ErrUnknownField, field, d.schema.Name))
		}
		return nil, FieldSpec{}, false
	}
	if spec.Kind == KindNested {
		d.fail(fmt.Errorf("%w: %q is a child record; use Child or ElemMatch", ErrInvalidFilterOperation, field))
		return nil, FieldSpec{}, false
	}
	path := strings.Split(field, ".")
	scope := func(mutate func(*Filter)) {
		applyScoped(&d.filter, path[:len(path)-1], mutate)
	}
	return scope, spec, true
}

// crossesList reports the first list-of-records segment of a dotted field.
func (d *Dynamic) crossesList(field string) (string, bool) {
	segments := strings.Split(field, ".")
	schema := d.schema
	for i, segment := range segments[:len(segments)-1] {
		spec, ok := schema.Field(segment)
		if !ok || spec.Child == nil {
			return "", false
		}
		if spec.List {
			return strings.Join(segments[:i+1], "."), true
		}
		schema = spec.Child
	}
	return "", false
}

func applyScoped(f *Filter, parents []string, mutate func(*Filter)) {
	if len(parents) == 0 {
		mutate(f)
		return
	}
	var child Filter
	applyScoped(&child, parents[1:], mutate)
	f.AddChild(parents[0], child)
}

func (d *Dynamic) fail(err error) *Dynamic {
	if d.err == nil {
		d.err = err
	}
	return d
}

func leaf(field string) string {
	if i := strings.LastIndexByte(field, '.'); i >= 0 {
		return field[i+1:]
	}
	return field
}

func isSequence(v any) bool {
	if _, ok := v.(List); ok {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array)
}

func coerceList(kind Kind, v any) (List, error) {
	if l, ok := v.(List); ok {
		for _, item := range l {
			if item == nil || item.Kind() != kind {
				return nil, fmt.Errorf("%w: list entry is not %s", ErrInvalidFilterOperation, kind)
			}
		}
		return CloneValue(l).(List), nil
	}
	rv := reflect.ValueOf(v)
	out := make(List, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item, err := coerce(kind, rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("list entry %d: %w", i, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// coerce converts v into a Value of the given kind. Integers convert to any
// numeric kind that holds them exactly; nothing converts across text, bool
// and numbers.
func coerce(kind Kind, v any) (Value, error) {
	if val, ok := v.(Value); ok {
		if val.Kind() != kind {
			return nil, fmt.Errorf("%w: %s value for %s field", ErrInvalidFilterOperation, val.Kind(), kind)
		}
		return CloneValue(val), nil
	}
	mismatch := fmt.Errorf("%w: cannot use %T as %s", ErrInvalidFilterOperation, v, kind)

	switch kind {
	case KindIdentifier:
		switch x := v.(type) {
		case id.ID:
			return IdentifierOf(x), nil
		case Referencer:
			return IdentifierOf(x.RefID()), nil
		case nil:
			return Identifier{}, nil
		case string:
			return IdentifierString(x), nil
		case *string:
			return Identifier{ID: id.From(deref(x)).Ptr()}, nil
		}
		return nil, mismatch
	case KindText:
		rv := reflect.ValueOf(v)
		if rv.IsValid() && rv.Kind() == reflect.String {
			return Text(rv.String()), nil
		}
		return nil, mismatch
	case KindBool:
		rv := reflect.ValueOf(v)
		if rv.IsValid() && rv.Kind() == reflect.Bool {
			return Bool(rv.Bool()), nil
		}
		return nil, mismatch
	case KindInt32, KindInt64:
		n, ok := asInt(v)
		if !ok {
			return nil, mismatch
		}
		if kind == KindInt32 {
			if n < math.MinInt32 || n > math.MaxInt32 {
				return nil, fmt.Errorf("%w: %d overflows int32", ErrInvalidFilterOperation, n)
			}
			return Int32(n), nil
		}
		return Int64(n), nil
	case KindFloat32, KindFloat64:
		var f float64
		if n, ok := asInt(v); ok {
			f = float64(n)
		} else {
			rv := reflect.ValueOf(v)
			if !rv.IsValid() || (rv.Kind() != reflect.Float32 && rv.Kind() != reflect.Float64) {
				return nil, mismatch
			}
			f = rv.Float()
		}
		if kind == KindFloat32 {
			return Float32(f), nil
		}
		return Float64(f), nil
	default:
		return nil, mismatch
	}
}

func asInt(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return 0, false
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	default:
		return 0, false
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
