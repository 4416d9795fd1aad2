package mongo

import (
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tsanga/musty/filter"
)

type scope int

const (
	scopePlain scope = iota
	scopeAll
	scopeAny
)

// Lower translates a filter tree into a MongoDB query document.
//
// Sibling entries are joined with $and and LogicAny groups with $or. Child
// scopes prefix their keys with the child name. An Eq condition with a list
// operand becomes $in under LogicAny, $all under LogicAll and a literal
// array match elsewhere. Nested operands become $elemMatch.
func Lower(f filter.Filter) (bson.D, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return combine(lowerNode(f, "", scopePlain), scopePlain), nil
}

func lowerNode(f filter.Filter, prefix string, s scope) []bson.D {
	clauses := make([]bson.D, 0, len(f.Conditions)+len(f.Groups)+len(f.Children))
	for _, c := range f.Conditions {
		clauses = append(clauses, lowerCondition(c, prefix, s))
	}
	for op, g := range f.OrderedGroups() {
		if g.Vacuous() {
			continue
		}
		sub := scopeAll
		if op == filter.LogicAny {
			sub = scopeAny
		}
		clauses = append(clauses, combine(lowerNode(g, prefix, sub), sub))
	}
	for name, child := range f.OrderedChildren() {
		if child.Vacuous() {
			continue
		}
		clauses = append(clauses, combine(lowerNode(child, prefix+name+".", scopePlain), scopePlain))
	}
	return clauses
}

func combine(clauses []bson.D, s scope) bson.D {
	switch len(clauses) {
	case 0:
		return bson.D{}
	case 1:
		return clauses[0]
	}
	items := make(bson.A, 0, len(clauses))
	for _, c := range clauses {
		items = append(items, c)
	}
	if s == scopeAny {
		return bson.D{{Key: "$or", Value: items}}
	}
	return bson.D{{Key: "$and", Value: items}}
}

func lowerCondition(c filter.Condition, prefix string, s scope) bson.D {
	key := prefix + c.Key
	isID := lastSegment(c.Key) == "_id"

	switch v := c.Value.(type) {
	case filter.Nested:
		match := bson.D{{Key: "$elemMatch", Value: combine(lowerNode(v.Filter, "", scopePlain), scopePlain)}}
		if c.Op == filter.Ne {
			return bson.D{{Key: key, Value: bson.D{{Key: "$not", Value: match}}}}
		}
		return bson.D{{Key: key, Value: match}}
	case filter.List:
		arr := toBSONArray(v, isID)
		switch {
		case c.Op == filter.Eq && s == scopeAny:
			return bson.D{{Key: key, Value: bson.D{{Key: "$in", Value: arr}}}}
		case c.Op == filter.Eq && s == scopeAll:
			return bson.D{{Key: key, Value: containsAll(arr)}}
		case c.Op == filter.Ne && s == scopeAny:
			return bson.D{{Key: key, Value: bson.D{{Key: "$nin", Value: arr}}}}
		case c.Op == filter.Ne && s == scopeAll:
			return bson.D{{Key: key, Value: bson.D{{Key: "$not", Value: containsAll(arr)}}}}
		}
	}

	value := toBSONValue(c.Value, isID)
	switch c.Op {
	case filter.Eq:
		return bson.D{{Key: key, Value: value}}
	default:
		return bson.D{{Key: key, Value: bson.D{{Key: operator(c.Op), Value: value}}}}
	}
}

// containsAll builds an $all test. $all with a null entry also matches a
// missing field, so such lists additionally require the field to exist.
func containsAll(arr bson.A) bson.D {
	out := bson.D{{Key: "$all", Value: arr}}
	if slices.ContainsFunc(arr, func(v any) bool { return v == nil }) {
		out = append(out, bson.E{Key: "$exists", Value: true})
	}
	return out
}

func operator(op filter.CmpOp) string {
	switch op {
	case filter.Ne:
		return "$ne"
	case filter.Gt:
		return "$gt"
	case filter.Lt:
		return "$lt"
	case filter.Ge:
		return "$gte"
	case filter.Le:
		return "$lte"
	default:
		return "$eq"
	}
}

func toBSONArray(list filter.List, isID bool) bson.A {
	arr := make(bson.A, 0, len(list))
	for _, item := range list {
		arr = append(arr, toBSONValue(item, isID))
	}
	return arr
}

// toBSONValue converts an operand to its BSON form. Identifiers compared
// against an _id key are re-parsed into ObjectIDs when they have that shape.
func toBSONValue(v filter.Value, isID bool) any {
	switch x := v.(type) {
	case filter.Identifier:
		if x.ID == nil {
			return nil
		}
		return identifier(*x.ID)
	case filter.Text:
		if isID {
			return identifier(string(x))
		}
		return string(x)
	case filter.Float32:
		return float64(x)
	case filter.List:
		return toBSONArray(x, isID)
	default:
		return filter.Native(v)
	}
}

func identifier(s string) any {
	if oid, err := primitive.ObjectIDFromHex(s); err == nil {
		return oid
	}
	return s
}

func lastSegment(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '.' {
			return key[i+1:]
		}
	}
	return key
}
