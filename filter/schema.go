package filter

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/tsanga/musty/id"
)

// FieldSpec describes one filterable field of a record type.
type FieldSpec struct {
	// Name is the stored field name.
	Name string
	// Kind is the value kind of the field, or of its elements when List is set.
	Kind Kind
	List bool
	// Child is the schema of an embedded record, set when Kind is KindNested.
	Child *Schema
}

// Schema is a descriptor table of the filterable fields of a record type.
// It backs the Dynamic builder, which checks field names and value kinds at
// run time instead of compile time.
type Schema struct {
	Name   string
	fields map[string]FieldSpec
	order  []string
}

var schemaCache sync.Map // reflect.Type -> *Schema

// SchemaOf reflects the schema of the struct type T.
//
// Stored names come from the musty tag, then the bson tag, then the json
// tag, then the Go field name. A field tagged `musty:",child"` or holding a
// struct is a child scope. Slices become list fields.
func SchemaOf[T any]() (*Schema, error) {
	return SchemaFor(reflect.TypeFor[T]())
}

// SchemaFor is SchemaOf for a reflect.Type.
func SchemaFor(t reflect.Type) (*Schema, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := schemaCache.Load(t); ok {
		return cached.(*Schema), nil
	}
	s, err := buildSchema(t, map[reflect.Type]*Schema{})
	if err != nil {
		return nil, err
	}
	actual, _ := schemaCache.LoadOrStore(t, s)
	return actual.(*Schema), nil
}

// MustSchemaOf is SchemaOf that panics on error, for package-level variables.
func MustSchemaOf[T any]() *Schema {
	s, err := SchemaOf[T]()
	if err != nil {
		panic(err)
	}
	return s
}

// Field looks up a field by stored name. Dotted names walk into child
// scopes; they never cross a list of records, which needs ElemMatch.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	head, rest, dotted := strings.Cut(name, ".")
	spec, ok := s.fields[head]
	if !ok {
		return FieldSpec{}, false
	}
	if !dotted {
		return spec, true
	}
	if spec.Child == nil || spec.List {
		return FieldSpec{}, false
	}
	return spec.Child.Field(rest)
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []FieldSpec {
	out := make([]FieldSpec, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.fields[name])
	}
	return out
}

var (
	idType         = reflect.TypeFor[id.ID]()
	filterType     = reflect.TypeFor[Filter]()
	referencerType = reflect.TypeFor[Referencer]()
)

func buildSchema(t reflect.Type, seen map[reflect.Type]*Schema) (*Schema, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: schema source %s is not a struct", ErrInvalidFilterOperation, t)
	}
	if s, ok := seen[t]; ok {
		return s, nil
	}
	s := &Schema{Name: t.Name(), fields: map[string]FieldSpec{}}
	seen[t] = s

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, child, skip := fieldName(sf)
		if skip {
			continue
		}
		ft := sf.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if sf.Anonymous && ft.Kind() == reflect.Struct && ft != idType && !child {
			embedded, err := buildSchema(ft, seen)
			if err != nil {
				return nil, err
			}
			for _, fname := range embedded.order {
				s.add(embedded.fields[fname])
			}
			continue
		}
		spec, ok, err := specFor(name, ft, child, seen)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name(), sf.Name, err)
		}
		if ok {
			s.add(spec)
		}
	}
	return s, nil
}

func (s *Schema) add(spec FieldSpec) {
	if _, exists := s.fields[spec.Name]; !exists {
		s.order = append(s.order, spec.Name)
	}
	s.fields[spec.Name] = spec
}

func specFor(name string, t reflect.Type, child bool, seen map[reflect.Type]*Schema) (FieldSpec, bool, error) {
	if kind, ok := scalarKind(t); ok {
		return FieldSpec{Name: name, Kind: kind}, true, nil
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return FieldSpec{}, false, nil
		}
		elem := t.Elem()
		for elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		if kind, ok := scalarKind(elem); ok {
			return FieldSpec{Name: name, Kind: kind, List: true}, true, nil
		}
		if elem.Kind() == reflect.Struct {
			sub, err := buildSchema(elem, seen)
			if err != nil {
				return FieldSpec{}, false, err
			}
			return FieldSpec{Name: name, Kind: KindNested, List: true, Child: sub}, true, nil
		}
		return FieldSpec{}, false, nil
	case reflect.Struct:
		if t == filterType || (!child && t.PkgPath() == "time") {
			return FieldSpec{}, false, nil
		}
		sub, err := buildSchema(t, seen)
		if err != nil {
			return FieldSpec{}, false, err
		}
		return FieldSpec{Name: name, Kind: KindNested, Child: sub}, true, nil
	default:
		return FieldSpec{}, false, nil
	}
}

func scalarKind(t reflect.Type) (Kind, bool) {
	if t == idType || t.Implements(referencerType) {
		return KindIdentifier, true
	}
	switch t.Kind() {
	case reflect.String:
		return KindText, true
	case reflect.Bool:
		return KindBool, true
	case reflect.Int32:
		return KindInt32, true
	case reflect.Int, reflect.Int64:
		return KindInt64, true
	case reflect.Float32:
		return KindFloat32, true
	case reflect.Float64:
		return KindFloat64, true
	default:
		return "", false
	}
}

func fieldName(sf reflect.StructField) (name string, child bool, skip bool) {
	if tag, ok := sf.Tag.Lookup("musty"); ok {
		n, opts, _ := strings.Cut(tag, ",")
		if n == "-" {
			return "", false, true
		}
		child = strings.Contains(","+opts+",", ",child,")
		if n != "" {
			return n, child, false
		}
	}
	for _, key := range []string{"bson", "json"} {
		tag, ok := sf.Tag.Lookup(key)
		if !ok {
			continue
		}
		n, _, _ := strings.Cut(tag, ",")
		if n == "-" {
			return "", false, true
		}
		if n != "" {
			return n, child, false
		}
	}
	return sf.Name, child, false
}
