package mongo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tsanga/musty/filter"
)

func where(conds ...filter.Condition) filter.Filter {
	var f filter.Filter
	for _, c := range conds {
		f.AddCondition(c)
	}
	return f
}

func TestLower_EmptyFilter(t *testing.T) {
	query, err := Lower(filter.New())
	require.NoError(t, err)
	assert.Equal(t, bson.D{}, query)

	vacuous := filter.Filter{Groups: map[filter.LogicOp]filter.Filter{filter.LogicAny: {}}}
	query, err = Lower(vacuous)
	require.NoError(t, err)
	assert.Equal(t, bson.D{}, query)
}

func TestLower_SingleCondition(t *testing.T) {
	query, err := Lower(where(filter.NewCondition("name", filter.Eq, filter.Text("alex"))))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "name", Value: "alex"}}, query)
}

func TestLower_Operators(t *testing.T) {
	cases := []struct {
		op   filter.CmpOp
		want string
	}{
		{filter.Ne, "$ne"},
		{filter.Gt, "$gt"},
		{filter.Lt, "$lt"},
		{filter.Ge, "$gte"},
		{filter.Le, "$lte"},
	}
	for _, tc := range cases {
		t.Run(string(tc.op), func(t *testing.T) {
			query, err := Lower(where(filter.NewCondition("age", tc.op, filter.Int32(30))))
			require.NoError(t, err)
			assert.Equal(t, bson.D{{Key: "age", Value: bson.D{{Key: tc.want, Value: int32(30)}}}}, query)
		})
	}
}

func TestLower_GroupsAndChildren(t *testing.T) {
	f := where(filter.NewCondition("name", filter.Eq, filter.Text("alex")))
	var either filter.Filter
	either.AddCondition(filter.NewCondition("age", filter.Gt, filter.Int32(30)))
	either.AddCondition(filter.NewCondition("age", filter.Lt, filter.Int32(20)))
	f.AddOpFilter(filter.LogicAny, either)
	f.AddChild("address", where(filter.NewCondition("country", filter.Eq, filter.Text("US"))))

	query, err := Lower(f)
	require.NoError(t, err)

	want := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "name", Value: "alex"}},
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: int32(30)}}}},
			bson.D{{Key: "age", Value: bson.D{{Key: "$lt", Value: int32(20)}}}},
		}}},
		bson.D{{Key: "address.country", Value: "US"}},
	}}}
	assert.Equal(t, want, query)
}

func TestLower_NestedChildren(t *testing.T) {
	var f filter.Filter
	var address filter.Filter
	address.AddChild("geo", where(filter.NewCondition("zone", filter.Eq, filter.Int64(7))))
	f.AddChild("address", address)

	query, err := Lower(f)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "address.geo.zone", Value: int64(7)}}, query)
}

func TestLower_ListMembership(t *testing.T) {
	names := filter.List{filter.Text("a"), filter.Text("b")}

	var f filter.Filter
	f.AddOpCondition(filter.LogicAny, filter.NewCondition("name", filter.Eq, names))
	query, err := Lower(f)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "name", Value: bson.D{{Key: "$in", Value: bson.A{"a", "b"}}}}}, query)

	f = filter.Filter{}
	f.AddOpCondition(filter.LogicAll, filter.NewCondition("aliases", filter.Eq, names))
	query, err = Lower(f)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "aliases", Value: bson.D{{Key: "$all", Value: bson.A{"a", "b"}}}}}, query)

	f = filter.Filter{}
	f.AddOpCondition(filter.LogicAny, filter.NewCondition("name", filter.Ne, names))
	query, err = Lower(f)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "name", Value: bson.D{{Key: "$nin", Value: bson.A{"a", "b"}}}}}, query)

	query, err = Lower(where(filter.NewCondition("aliases", filter.Eq, names)))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "aliases", Value: bson.A{"a", "b"}}}, query)
}

func TestLower_AbsentIdentifierMembership(t *testing.T) {
	entries := filter.List{filter.Identifier{}, filter.IdentifierString("u9")}

	var anyOf filter.Filter
	anyOf.AddOpCondition(filter.LogicAny, filter.NewCondition("owner", filter.Eq, entries))
	query, err := Lower(anyOf)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "owner", Value: bson.D{{Key: "$in", Value: bson.A{nil, "u9"}}}}}, query)

	var allOf filter.Filter
	allOf.AddOpCondition(filter.LogicAll, filter.NewCondition("owner", filter.Eq, entries))
	query, err = Lower(allOf)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "owner", Value: bson.D{
		{Key: "$all", Value: bson.A{nil, "u9"}},
		{Key: "$exists", Value: true},
	}}}, query)
}

func TestLower_ElemMatch(t *testing.T) {
	inner := where(
		filter.NewCondition("name", filter.Eq, filter.Text("vip")),
		filter.NewCondition("score", filter.Ge, filter.Int64(5)),
	)
	query, err := Lower(where(filter.NewCondition("labels", filter.Eq, filter.Nested{Filter: inner})))
	require.NoError(t, err)

	want := bson.D{{Key: "labels", Value: bson.D{{Key: "$elemMatch", Value: bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "name", Value: "vip"}},
		bson.D{{Key: "score", Value: bson.D{{Key: "$gte", Value: int64(5)}}}},
	}}}}}}}
	assert.Equal(t, want, query)

	query, err = Lower(where(filter.NewCondition("labels", filter.Ne, filter.Nested{Filter: inner})))
	require.NoError(t, err)
	assert.Equal(t, "$not", query[0].Value.(bson.D)[0].Key)
}

func TestLower_Identifiers(t *testing.T) {
	oid := primitive.NewObjectID()

	query, err := Lower(where(filter.NewCondition("_id", filter.Eq, filter.IdentifierString(oid.Hex()))))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "_id", Value: oid}}, query)

	query, err = Lower(where(filter.NewCondition("_id", filter.Eq, filter.IdentifierString("user-1"))))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "_id", Value: "user-1"}}, query)

	query, err = Lower(where(filter.NewCondition("owner", filter.Eq, filter.Identifier{})))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "owner", Value: nil}}, query)

	// Plain text on a non-id key stays a string even when it looks like hex.
	query, err = Lower(where(filter.NewCondition("token", filter.Eq, filter.Text(oid.Hex()))))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "token", Value: oid.Hex()}}, query)
}

func TestLower_Float32Widened(t *testing.T) {
	query, err := Lower(where(filter.NewCondition("score", filter.Gt, filter.Float32(1.5))))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "score", Value: bson.D{{Key: "$gt", Value: float64(1.5)}}}}, query)
}

func TestLower_RejectsInvalidFilter(t *testing.T) {
	_, err := Lower(where(filter.NewCondition("", filter.Eq, filter.Bool(true))))
	require.Error(t, err)
	assert.True(t, errors.Is(err, filter.ErrInvalidFilterOperation))
}

func TestNormalizeBSON(t *testing.T) {
	oid := primitive.NewObjectID()
	doc := fromBSON(bson.M{
		"_id":   oid,
		"age":   int32(34),
		"tags":  bson.A{"a", int32(2)},
		"inner": bson.M{"score": float32(1.5)},
		"pairs": bson.D{{Key: "k", Value: "v"}},
	})

	assert.Equal(t, oid.Hex(), doc.ID())
	assert.Equal(t, int64(34), doc["age"])
	assert.Equal(t, []any{"a", int64(2)}, doc["tags"])
	assert.Equal(t, map[string]any{"score": float64(1.5)}, doc["inner"])
	assert.Equal(t, map[string]any{"k": "v"}, doc["pairs"])
}
