package filter

import (
	"iter"
	"maps"
	"slices"
	"strings"
)

// Condition is a single leaf test: the field at Key satisfies Op against Value.
type Condition struct {
	Key   string
	Op    CmpOp
	Value Value
}

// NewCondition builds a condition. The key is not validated.
func NewCondition(key string, op CmpOp, value Value) Condition {
	return Condition{Key: key, Op: op, Value: value}
}

func (c Condition) Clone() Condition {
	return Condition{Key: c.Key, Op: c.Op, Value: CloneValue(c.Value)}
}

func (c Condition) Equal(other Condition) bool {
	return c.Key == other.Key && c.Op == other.Op && EqualValues(c.Value, other.Value)
}

func (c Condition) String() string {
	return c.Key + " " + c.Op.Symbol() + " " + FormatValue(c.Value)
}

// Filter is a node of the predicate tree. The zero value is the empty filter,
// which matches every document.
type Filter struct {
	// Groups holds at most one subtree per logical operator.
	Groups map[LogicOp]Filter
	// Conditions are combined with AND, in order.
	Conditions []Condition
	// Children holds predicates scoped to embedded records, keyed by field name.
	Children map[string]Filter
}

// New returns an empty filter.
func New() Filter {
	return Filter{}
}

// AddCondition appends c to the node's conditions.
func (f *Filter) AddCondition(c Condition) {
	f.Conditions = append(f.Conditions, c.Clone())
}

// AddOpFilter merges other into the subtree for op, creating it when absent.
func (f *Filter) AddOpFilter(op LogicOp, other Filter) {
	if f.Groups == nil {
		f.Groups = make(map[LogicOp]Filter, 1)
	}
	existing, ok := f.Groups[op]
	if !ok {
		f.Groups[op] = other.Clone()
		return
	}
	existing.Extend(other)
	f.Groups[op] = existing
}

// AddOpCondition files a single condition under the subtree for op.
func (f *Filter) AddOpCondition(op LogicOp, c Condition) {
	f.AddOpFilter(op, Filter{Conditions: []Condition{c}})
}

// AddChild merges other into the child scope called name, creating it when absent.
func (f *Filter) AddChild(name string, other Filter) {
	if f.Children == nil {
		f.Children = make(map[string]Filter, 1)
	}
	existing, ok := f.Children[name]
	if !ok {
		f.Children[name] = other.Clone()
		return
	}
	existing.Extend(other)
	f.Children[name] = existing
}

// Extend unions other into f. Groups and children with the same key are
// merged recursively and conditions are appended after the existing ones.
// Nothing is ever replaced. Extend returns f to allow chaining.
func (f *Filter) Extend(other Filter) *Filter {
	for _, op := range LogicOps {
		if g, ok := other.Groups[op]; ok {
			f.AddOpFilter(op, g)
		}
	}
	for op, g := range other.Groups {
		if !slices.Contains(LogicOps, op) {
			f.AddOpFilter(op, g)
		}
	}
	for _, c := range other.Conditions {
		f.AddCondition(c)
	}
	for _, name := range slices.Sorted(maps.Keys(other.Children)) {
		f.AddChild(name, other.Children[name])
	}
	return f
}

// Clone returns a deep copy of f.
func (f Filter) Clone() Filter {
	var out Filter
	if f.Groups != nil {
		out.Groups = make(map[LogicOp]Filter, len(f.Groups))
		for op, g := range f.Groups {
			out.Groups[op] = g.Clone()
		}
	}
	if f.Conditions != nil {
		out.Conditions = make([]Condition, len(f.Conditions))
		for i, c := range f.Conditions {
			out.Conditions[i] = c.Clone()
		}
	}
	if f.Children != nil {
		out.Children = make(map[string]Filter, len(f.Children))
		for name, child := range f.Children {
			out.Children[name] = child.Clone()
		}
	}
	return out
}

// Equal reports structural equality. Nil and empty collections are equal.
func (f Filter) Equal(other Filter) bool {
	if len(f.Conditions) != len(other.Conditions) ||
		len(f.Groups) != len(other.Groups) ||
		len(f.Children) != len(other.Children) {
		return false
	}
	for i := range f.Conditions {
		if !f.Conditions[i].Equal(other.Conditions[i]) {
			return false
		}
	}
	for op, g := range f.Groups {
		og, ok := other.Groups[op]
		if !ok || !g.Equal(og) {
			return false
		}
	}
	for name, child := range f.Children {
		oc, ok := other.Children[name]
		if !ok || !child.Equal(oc) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether f has no conditions, groups or children.
func (f Filter) IsEmpty() bool {
	return len(f.Conditions) == 0 && len(f.Groups) == 0 && len(f.Children) == 0
}

// Vacuous reports whether f constrains nothing, treating empty groups and
// empty child scopes as absent.
func (f Filter) Vacuous() bool {
	if len(f.Conditions) > 0 {
		return false
	}
	for _, g := range f.Groups {
		if !g.Vacuous() {
			return false
		}
	}
	for _, child := range f.Children {
		if !child.Vacuous() {
			return false
		}
	}
	return true
}

// OrderedGroups yields the groups in lowering order: LogicAll then LogicAny.
func (f Filter) OrderedGroups() iter.Seq2[LogicOp, Filter] {
	return func(yield func(LogicOp, Filter) bool) {
		for _, op := range LogicOps {
			g, ok := f.Groups[op]
			if !ok {
				continue
			}
			if !yield(op, g) {
				return
			}
		}
	}
}

// OrderedChildren yields the child scopes sorted by name.
func (f Filter) OrderedChildren() iter.Seq2[string, Filter] {
	return func(yield func(string, Filter) bool) {
		for _, name := range slices.Sorted(maps.Keys(f.Children)) {
			if !yield(name, f.Children[name]) {
				return
			}
		}
	}
}

// String renders f in a compact deterministic form, for logs and test output.
func (f Filter) String() string {
	var b strings.Builder
	f.write(&b)
	return b.String()
}

func (f Filter) write(b *strings.Builder) {
	b.WriteString("{")
	first := true
	sep := func() {
		if !first {
			b.WriteString("; ")
		}
		first = false
	}
	for _, c := range f.Conditions {
		sep()
		b.WriteString(c.String())
	}
	for op, g := range f.OrderedGroups() {
		sep()
		b.WriteString(string(op))
		g.write(b)
	}
	for name, child := range f.OrderedChildren() {
		sep()
		b.WriteString(name)
		b.WriteString(":")
		child.write(b)
	}
	b.WriteString("}")
}
