package filter

// ModelFilter is a builder session for one record type. It owns exactly one
// Filter, exposed through State for the generic helpers in this package.
type ModelFilter interface {
	State() *Filter
	Build() Filter
}

// Base implements ModelFilter. Record builders embed it.
type Base struct {
	filter Filter
}

// State returns the accumulating filter. Callers outside builder code should
// use Build instead.
func (b *Base) State() *Filter {
	return &b.filter
}

// Build returns a snapshot of the accumulated filter. The builder stays usable
// and later calls do not change the returned value.
func (b *Base) Build() Filter {
	return b.filter.Clone()
}

// builder constrains a pointer to a builder struct so that fresh sessions can
// be allocated generically.
type builder[T any] interface {
	*T
	ModelFilter
}

// For returns a fresh builder session with an empty filter.
func For[T any, B builder[T]]() B {
	return B(new(T))
}

// Any runs configure on a fresh builder of the same type and merges the
// result into the LogicAny group of owner.
func Any[T any, B builder[T]](owner B, configure func(B) B) B {
	return group(owner, LogicAny, configure)
}

// All runs configure on a fresh builder of the same type and merges the
// result into the LogicAll group of owner.
func All[T any, B builder[T]](owner B, configure func(B) B) B {
	return group(owner, LogicAll, configure)
}

func group[T any, B builder[T]](owner B, op LogicOp, configure func(B) B) B {
	owner.State().AddOpFilter(op, run[T, B](configure).Build())
	return owner
}

// Child runs configure on a fresh builder for the embedded record stored
// under name and merges the result into that child scope of owner.
func Child[C any, PC builder[C], B ModelFilter](owner B, name string, configure func(PC) PC) B {
	owner.State().AddChild(name, run[C, PC](configure).Build())
	return owner
}

// ElemMatch adds a condition matching documents whose array field name holds
// at least one element satisfying the predicate built by configure.
func ElemMatch[C any, PC builder[C], B ModelFilter](owner B, name string, configure func(PC) PC) B {
	nested := run[C, PC](configure).Build()
	owner.State().AddCondition(NewCondition(name, Eq, Nested{Filter: nested}))
	return owner
}

func run[T any, B builder[T]](configure func(B) B) B {
	fresh := For[T, B]()
	if configure == nil {
		return fresh
	}
	// A configure func returning nil has still configured the fresh builder.
	if out := configure(fresh); (*T)(out) != nil {
		return out
	}
	return fresh
}
