package filter_test

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/id"
)

func TestBuilder_EndToEndScenario(t *testing.T) {
	// Arrange
	f := User{}.Filter()

	// Act
	got := f.Any(func(u *UserFilter) *UserFilter {
		return u.Name().Any(func(v *filter.VecFilter[string]) *filter.VecFilter[string] {
			return v.Entry("jonah").Entry("alex")
		}).ID().Eq(id.From("1"))
	}).Address(func(a *AddressFilter) *AddressFilter {
		return a.Country().Any(func(v *filter.VecFilter[string]) *filter.VecFilter[string] {
			return v.Entry("US").Entry("CA")
		})
	}).Build()

	// Assert
	want := filter.Filter{
		Groups: map[filter.LogicOp]filter.Filter{
			filter.LogicAny: {
				Conditions: []filter.Condition{
					filter.NewCondition("_id", filter.Eq, filter.IdentifierString("1")),
				},
				Groups: map[filter.LogicOp]filter.Filter{
					filter.LogicAny: {Conditions: []filter.Condition{
						filter.NewCondition("name", filter.Eq, filter.List{filter.Text("jonah"), filter.Text("alex")}),
					}},
				},
			},
		},
		Children: map[string]filter.Filter{
			"address": {
				Groups: map[filter.LogicOp]filter.Filter{
					filter.LogicAny: {Conditions: []filter.Condition{
						filter.NewCondition("country", filter.Eq, filter.List{filter.Text("US"), filter.Text("CA")}),
					}},
				},
			},
		},
	}
	assert.True(t, want.Equal(got), "want %s\n got %s\n%s", want, got, spew.Sdump(got))
	assert.Empty(t, got.Conditions)
	require.Contains(t, got.Groups, filter.LogicAny)
	anyGroup := got.Groups[filter.LogicAny]
	assert.Len(t, anyGroup.Conditions, 1)
	assert.Len(t, anyGroup.Groups[filter.LogicAny].Conditions, 1)
	assert.Len(t, got.Children["address"].Groups[filter.LogicAny].Conditions, 1)
}

func TestBuilder_RepeatedAnyMergesIntoOneGroup(t *testing.T) {
	f := User{}.Filter()
	f.Any(func(u *UserFilter) *UserFilter { return u.Name().Eq("a") })
	f.Any(func(u *UserFilter) *UserFilter { return u.Age().Eq(2) })

	got := f.Build()

	require.Len(t, got.Groups, 1)
	conds := got.Groups[filter.LogicAny].Conditions
	require.Len(t, conds, 2)
	assert.Equal(t, "name", conds[0].Key)
	assert.Equal(t, filter.Value(filter.Text("a")), conds[0].Value)
	assert.Equal(t, "age", conds[1].Key)
	assert.Equal(t, filter.Value(filter.Int32(2)), conds[1].Value)
}

func TestBuilder_RepeatedChildMerges(t *testing.T) {
	f := User{}.Filter().
		Address(func(a *AddressFilter) *AddressFilter { return a.Country().Eq("US") }).
		Address(func(a *AddressFilter) *AddressFilter { return a.City().Eq("Boston") })

	got := f.Build()

	require.Len(t, got.Children, 1)
	conds := got.Children["address"].Conditions
	require.Len(t, conds, 2)
	assert.Equal(t, "country", conds[0].Key)
	assert.Equal(t, "city", conds[1].Key)
}

func TestBuilder_ChildStateIsIndependent(t *testing.T) {
	f := User{}.Filter().Name().Eq("outer")
	var seen filter.Filter
	f.Address(func(a *AddressFilter) *AddressFilter {
		seen = a.Build()
		return a.Country().Eq("US")
	})

	assert.True(t, seen.IsEmpty())
	assert.Len(t, f.Build().Conditions, 1)
}

func TestBuilder_TerminalOpsReturnOwner(t *testing.T) {
	f := User{}.Filter()
	vec := func(v *filter.VecFilter[string]) *filter.VecFilter[string] { return v.Entry("x") }

	owners := []*UserFilter{
		f.Name().Eq("a"),
		f.Name().Ne("b"),
		f.Name().Gt("c"),
		f.Name().Lt("d"),
		f.Name().Ge("e"),
		f.Name().Le("f"),
		f.Name().Any(vec),
		f.Name().All(vec),
		f.Aliases().Contains(vec),
		f.Aliases().Any(vec),
		f.Aliases().All(vec),
		f.Aliases().Eq([]string{"x"}),
		f.Aliases().Ne([]string{"y"}),
		f.Active().Eq(true),
	}
	for i, owner := range owners {
		assert.Same(t, f, owner, "op %d", i)
	}

	got := f.Build()
	assert.Len(t, got.Conditions, 9)
	assert.Len(t, got.Groups[filter.LogicAny].Conditions, 3)
	assert.Len(t, got.Groups[filter.LogicAll].Conditions, 2)
}

func TestBuilder_SnapshotIndependence(t *testing.T) {
	f := User{}.Filter().Name().Eq("a")
	first := f.Build()

	f.Age().Gt(3).Address(func(a *AddressFilter) *AddressFilter { return a.Country().Eq("US") })
	second := f.Build()

	assert.Len(t, first.Conditions, 1)
	assert.Empty(t, first.Children)
	assert.Len(t, second.Conditions, 2)
	assert.Len(t, second.Children, 1)
	assert.False(t, first.Equal(second))
}

func TestBuilder_ListMembershipEncoding(t *testing.T) {
	got := User{}.Filter().Age().Any(func(v *filter.VecFilter[int32]) *filter.VecFilter[int32] {
		return v.Entry(1).Entry(2)
	}).Build()

	want := filter.Filter{Groups: map[filter.LogicOp]filter.Filter{
		filter.LogicAny: {Conditions: []filter.Condition{{
			Key:   "age",
			Op:    filter.Eq,
			Value: filter.List{filter.Int32(1), filter.Int32(2)},
		}}},
	}}
	assert.True(t, want.Equal(got), "got %s", got)
	assert.Empty(t, got.Conditions)
	assert.Empty(t, got.Children)
}

func TestBuilder_ContainsEncodesLikeAny(t *testing.T) {
	vec := func(v *filter.VecFilter[string]) *filter.VecFilter[string] { return v.Entries("a", "b") }

	contains := User{}.Filter().Aliases().Contains(vec).Build()
	anyOf := User{}.Filter().Aliases().Any(vec).Build()

	assert.True(t, contains.Equal(anyOf))
}

func TestBuilder_ElemMatch(t *testing.T) {
	got := User{}.Filter().Labels(func(l *LabelFilter) *LabelFilter {
		return l.Name().Eq("vip").Score().Ge(10)
	}).Build()

	require.Len(t, got.Conditions, 1)
	c := got.Conditions[0]
	assert.Equal(t, "labels", c.Key)
	assert.Equal(t, filter.Eq, c.Op)
	nested, ok := c.Value.(filter.Nested)
	require.True(t, ok)
	assert.Len(t, nested.Filter.Conditions, 2)
	assert.NoError(t, got.Validate())
}

func TestBuilder_NilConfigureStillApplies(t *testing.T) {
	got := User{}.Filter().Any(func(u *UserFilter) *UserFilter {
		u.Name().Eq("a")
		return nil
	}).Build()

	assert.Len(t, got.Groups[filter.LogicAny].Conditions, 1)
}

func TestValueOf_NamedTypes(t *testing.T) {
	assert.Equal(t, filter.Value(filter.Text("active")), filter.ValueOf(Status("active")))
	assert.Equal(t, filter.Value(filter.Int64(5)), filter.ValueOf(int64(5)))
	assert.Equal(t, filter.Value(filter.Float32(1.5)), filter.ValueOf(float32(1.5)))
	assert.Equal(t, filter.Value(filter.Identifier{}), filter.ValueOf(id.None()))
}
