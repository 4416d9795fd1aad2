package filter

// VecFilter accumulates the candidate values of a membership test.
type VecFilter[T Scalar] struct {
	entries []T
}

func NewVec[T Scalar]() *VecFilter[T] {
	return &VecFilter[T]{}
}

// Entry appends v and returns the receiver for chaining.
func (v *VecFilter[T]) Entry(value T) *VecFilter[T] {
	v.entries = append(v.entries, value)
	return v
}

// Entries appends every value in order.
func (v *VecFilter[T]) Entries(values ...T) *VecFilter[T] {
	v.entries = append(v.entries, values...)
	return v
}

func (v *VecFilter[T]) Len() int {
	return len(v.entries)
}

// List converts the accumulated entries into a List value.
func (v *VecFilter[T]) List() List {
	return ListOf(v.entries...)
}

func collect[T Scalar](configure func(*VecFilter[T]) *VecFilter[T]) List {
	vec := NewVec[T]()
	if configure == nil {
		return vec.List()
	}
	if out := configure(vec); out != nil {
		return out.List()
	}
	return vec.List()
}
