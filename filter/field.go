package filter

// FieldFilter is a typed cursor over one scalar field of the builder B.
// Each terminal method adds one condition to the owner and returns it.
type FieldFilter[B ModelFilter, T Scalar] struct {
	owner B
	name  string
}

// Field returns a cursor over the field stored under name.
func Field[T Scalar, B ModelFilter](owner B, name string) FieldFilter[B, T] {
	return FieldFilter[B, T]{owner: owner, name: name}
}

func (f FieldFilter[B, T]) Name() string {
	return f.name
}

func (f FieldFilter[B, T]) Eq(v T) B { return f.compare(Eq, v) }
func (f FieldFilter[B, T]) Ne(v T) B { return f.compare(Ne, v) }

// Any matches when the field equals one of the configured entries.
// The entries are encoded as a single Eq condition with a List operand
// filed under the LogicAny group of the owner.
func (f FieldFilter[B, T]) Any(configure func(*VecFilter[T]) *VecFilter[T]) B {
	return f.membership(LogicAny, configure)
}

// All files the configured entries under the LogicAll group of the owner.
func (f FieldFilter[B, T]) All(configure func(*VecFilter[T]) *VecFilter[T]) B {
	return f.membership(LogicAll, configure)
}

func (f FieldFilter[B, T]) compare(op CmpOp, v T) B {
	f.owner.State().AddCondition(NewCondition(f.name, op, ValueOf(v)))
	return f.owner
}

func (f FieldFilter[B, T]) membership(op LogicOp, configure func(*VecFilter[T]) *VecFilter[T]) B {
	f.owner.State().AddOpCondition(op, NewCondition(f.name, Eq, collect(configure)))
	return f.owner
}

// OrderedFieldFilter adds ordering comparisons for orderable field types.
type OrderedFieldFilter[B ModelFilter, T Ordered] struct {
	FieldFilter[B, T]
}

// OrderedField returns a cursor over an orderable field.
func OrderedField[T Ordered, B ModelFilter](owner B, name string) OrderedFieldFilter[B, T] {
	return OrderedFieldFilter[B, T]{FieldFilter: Field[T](owner, name)}
}

func (f OrderedFieldFilter[B, T]) Gt(v T) B { return f.compare(Gt, v) }
func (f OrderedFieldFilter[B, T]) Lt(v T) B { return f.compare(Lt, v) }
func (f OrderedFieldFilter[B, T]) Ge(v T) B { return f.compare(Ge, v) }
func (f OrderedFieldFilter[B, T]) Le(v T) B { return f.compare(Le, v) }

// ListFieldFilter is a cursor over an array field whose elements have type T.
type ListFieldFilter[B ModelFilter, T Scalar] struct {
	owner B
	name  string
}

// ListField returns a cursor over the array field stored under name.
func ListField[T Scalar, B ModelFilter](owner B, name string) ListFieldFilter[B, T] {
	return ListFieldFilter[B, T]{owner: owner, name: name}
}

func (f ListFieldFilter[B, T]) Name() string {
	return f.name
}

// Contains matches when the array holds at least one of the configured
// entries. It is encoded exactly like Any.
func (f ListFieldFilter[B, T]) Contains(configure func(*VecFilter[T]) *VecFilter[T]) B {
	return f.membership(LogicAny, configure)
}

func (f ListFieldFilter[B, T]) Any(configure func(*VecFilter[T]) *VecFilter[T]) B {
	return f.membership(LogicAny, configure)
}

// All matches when the array holds every configured entry.
func (f ListFieldFilter[B, T]) All(configure func(*VecFilter[T]) *VecFilter[T]) B {
	return f.membership(LogicAll, configure)
}

// Eq matches when the array equals values element by element.
func (f ListFieldFilter[B, T]) Eq(values []T) B {
	f.owner.State().AddCondition(NewCondition(f.name, Eq, ListOf(values...)))
	return f.owner
}

func (f ListFieldFilter[B, T]) Ne(values []T) B {
	f.owner.State().AddCondition(NewCondition(f.name, Ne, ListOf(values...)))
	return f.owner
}

func (f ListFieldFilter[B, T]) membership(op LogicOp, configure func(*VecFilter[T]) *VecFilter[T]) B {
	f.owner.State().AddOpCondition(op, NewCondition(f.name, Eq, collect(configure)))
	return f.owner
}
