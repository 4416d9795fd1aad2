package filter

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
)

// Filters travel between processes in a tagged form where every value
// carries its kind, so decoding never has to guess numeric widths.
//
//	{"conditions":[{"key":"age","op":"gt","value":{"kind":"int32","int":30}}],
//	 "groups":{"any":{...}},"children":{"address":{...}}}

type wireFilter struct {
	Groups     map[LogicOp]*wireFilter `json:"groups,omitempty" msgpack:"groups,omitempty"`
	Conditions []wireCondition         `json:"conditions,omitempty" msgpack:"conditions,omitempty"`
	Children   map[string]*wireFilter  `json:"children,omitempty" msgpack:"children,omitempty"`
}

type wireCondition struct {
	Key   string    `json:"key" msgpack:"key"`
	Op    CmpOp     `json:"op" msgpack:"op"`
	Value wireValue `json:"value" msgpack:"value"`
}

type wireValue struct {
	Kind   Kind        `json:"kind" msgpack:"kind"`
	String *string     `json:"string,omitempty" msgpack:"string,omitempty"`
	Int    *int64      `json:"int,omitempty" msgpack:"int,omitempty"`
	Float  *float64    `json:"float,omitempty" msgpack:"float,omitempty"`
	Bool   *bool       `json:"bool,omitempty" msgpack:"bool,omitempty"`
	Filter *wireFilter `json:"filter,omitempty" msgpack:"filter,omitempty"`
	List   []wireValue `json:"list,omitempty" msgpack:"list,omitempty"`
}

func (f Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWire(f))
}

func (f *Filter) UnmarshalJSON(data []byte) error {
	var w wireFilter
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}
	out, err := fromWire(&w)
	if err != nil {
		return err
	}
	*f = out
	return nil
}

var (
	_ msgpack.CustomEncoder = Filter{}
	_ msgpack.CustomDecoder = (*Filter)(nil)
)

func (f Filter) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(toWire(f))
}

func (f *Filter) DecodeMsgpack(dec *msgpack.Decoder) error {
	var w wireFilter
	if err := dec.Decode(&w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}
	out, err := fromWire(&w)
	if err != nil {
		return err
	}
	*f = out
	return nil
}

// EncodeMsgpack serializes f to MessagePack.
func EncodeMsgpack(f Filter) ([]byte, error) {
	data, err := msgpack.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("filter: encode MessagePack: %w", err)
	}
	return data, nil
}

// DecodeMsgpack deserializes a filter produced by EncodeMsgpack.
func DecodeMsgpack(data []byte) (Filter, error) {
	if len(data) == 0 {
		return Filter{}, fmt.Errorf("%w: empty MessagePack data", ErrMalformedEncoding)
	}
	var f Filter
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return Filter{}, malformed(err)
	}
	return f, nil
}

// ParseJSON decodes a filter from its JSON form.
func ParseJSON(data []byte) (Filter, error) {
	var f Filter
	if err := json.Unmarshal(data, &f); err != nil {
		return Filter{}, malformed(err)
	}
	return f, nil
}

// malformed tags decoder errors that did not come from the wire checks.
func malformed(err error) error {
	if errors.Is(err, ErrMalformedEncoding) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
}

func toWire(f Filter) *wireFilter {
	w := &wireFilter{}
	if len(f.Groups) > 0 {
		w.Groups = make(map[LogicOp]*wireFilter, len(f.Groups))
		for op, g := range f.Groups {
			w.Groups[op] = toWire(g)
		}
	}
	for _, c := range f.Conditions {
		w.Conditions = append(w.Conditions, wireCondition{Key: c.Key, Op: c.Op, Value: valueToWire(c.Value)})
	}
	if len(f.Children) > 0 {
		w.Children = make(map[string]*wireFilter, len(f.Children))
		for name, child := range f.Children {
			w.Children[name] = toWire(child)
		}
	}
	return w
}

func valueToWire(v Value) wireValue {
	w := wireValue{}
	if v == nil {
		return w
	}
	w.Kind = v.Kind()
	switch x := v.(type) {
	case Identifier:
		w.String = x.ID
	case Text:
		s := string(x)
		w.String = &s
	case Int32:
		n := int64(x)
		w.Int = &n
	case Int64:
		n := int64(x)
		w.Int = &n
	case Float32:
		n := float64(x)
		w.Float = &n
	case Float64:
		n := float64(x)
		w.Float = &n
	case Bool:
		b := bool(x)
		w.Bool = &b
	case Nested:
		w.Filter = toWire(x.Filter)
	case List:
		w.List = make([]wireValue, 0, len(x))
		for _, item := range x {
			w.List = append(w.List, valueToWire(item))
		}
	}
	return w
}

func fromWire(w *wireFilter) (Filter, error) {
	var f Filter
	if w == nil {
		return f, nil
	}
	for op, g := range w.Groups {
		if err := op.Validate(); err != nil {
			return Filter{}, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
		}
		sub, err := fromWire(g)
		if err != nil {
			return Filter{}, err
		}
		f.AddOpFilter(op, sub)
	}
	for _, c := range w.Conditions {
		if err := c.Op.Validate(); err != nil {
			return Filter{}, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
		}
		v, err := valueFromWire(c.Value)
		if err != nil {
			return Filter{}, fmt.Errorf("%w (field %q)", err, c.Key)
		}
		f.Conditions = append(f.Conditions, Condition{Key: c.Key, Op: c.Op, Value: v})
	}
	for name, child := range w.Children {
		sub, err := fromWire(child)
		if err != nil {
			return Filter{}, err
		}
		f.AddChild(name, sub)
	}
	return f, nil
}

func valueFromWire(w wireValue) (Value, error) {
	missing := func() (Value, error) {
		return nil, fmt.Errorf("%w: %s value without payload", ErrMalformedEncoding, w.Kind)
	}
	switch w.Kind {
	case KindIdentifier:
		if w.String == nil {
			return Identifier{}, nil
		}
		return IdentifierString(*w.String), nil
	case KindText:
		if w.String == nil {
			return missing()
		}
		return Text(*w.String), nil
	case KindInt32:
		if w.Int == nil {
			return missing()
		}
		if *w.Int < -1<<31 || *w.Int > 1<<31-1 {
			return nil, fmt.Errorf("%w: int32 value %d out of range", ErrMalformedEncoding, *w.Int)
		}
		return Int32(*w.Int), nil
	case KindInt64:
		if w.Int == nil {
			return missing()
		}
		return Int64(*w.Int), nil
	case KindFloat32:
		if w.Float == nil {
			return missing()
		}
		return Float32(*w.Float), nil
	case KindFloat64:
		if w.Float == nil {
			return missing()
		}
		return Float64(*w.Float), nil
	case KindBool:
		if w.Bool == nil {
			return missing()
		}
		return Bool(*w.Bool), nil
	case KindNested:
		nested, err := fromWire(w.Filter)
		if err != nil {
			return nil, err
		}
		return Nested{Filter: nested}, nil
	case KindList:
		out := make(List, 0, len(w.List))
		for _, item := range w.List {
			v, err := valueFromWire(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown value kind %q", ErrMalformedEncoding, w.Kind)
	}
}
