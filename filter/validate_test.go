package filter

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	f := sampleA()
	f.Extend(sampleB())
	f.AddCondition(NewCondition("age", Ge, Int32(18)))
	f.AddCondition(NewCondition("_id", Gt, IdentifierString("a")))

	assert.NoError(t, f.Validate())
	assert.NoError(t, New().Validate())
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	var f Filter
	f.AddCondition(NewCondition("", Eq, Text("x")))
	f.AddCondition(NewCondition("active", Gt, Bool(true)))
	f.AddOpCondition(LogicAny, NewCondition("tags", Lt, List{Text("a")}))
	f.AddChild("addr", Filter{Conditions: []Condition{NewCondition("_id", Le, Identifier{})}})
	f.AddCondition(NewCondition("labels", Gt, Nested{}))
	f.AddCondition(NewCondition("deep", Eq, List{List{Int32(1)}}))

	err := f.Validate()

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFilterOperation))
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 6)
	for _, e := range merr.Errors {
		assert.ErrorIs(t, e, ErrInvalidFilterOperation)
	}
}

func TestValidate_NestedFilterIsChecked(t *testing.T) {
	inner := Filter{Conditions: []Condition{NewCondition("", Eq, Text("x"))}}
	f := Filter{Conditions: []Condition{NewCondition("labels", Eq, Nested{Filter: inner})}}

	err := f.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "labels[]")
}

func TestValidate_NestedRejectsOrdering(t *testing.T) {
	c := NewCondition("labels", Ge, Nested{})
	assert.ErrorIs(t, c.Validate(), ErrInvalidFilterOperation)
}

func TestValidate_NestedAcceptsNe(t *testing.T) {
	inner := Filter{Conditions: []Condition{NewCondition("name", Eq, Text("vip"))}}
	assert.NoError(t, NewCondition("labels", Ne, Nested{Filter: inner}).Validate())
}

func TestValidate_UnknownOperators(t *testing.T) {
	f := Filter{
		Conditions: []Condition{{Key: "a", Op: CmpOp("like"), Value: Text("x")}},
		Groups:     map[LogicOp]Filter{LogicOp("none"): {}},
	}
	var merr *multierror.Error
	require.True(t, errors.As(f.Validate(), &merr))
	assert.Len(t, merr.Errors, 2)
}
