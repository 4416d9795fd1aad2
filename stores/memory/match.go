package memory

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/odm"
)

// scope is the combinator of the node being evaluated. It also decides what
// an Eq condition with a List operand means.
type scope int

const (
	scopePlain scope = iota // root and child scopes: AND, list equality
	scopeAll                // LogicAll group: AND, array holds every entry
	scopeAny                // LogicAny group: OR, value is one of the entries
)

// Match reports whether doc satisfies f. It is the reference semantics the
// store lowerings follow.
func Match(f filter.Filter, doc odm.Document) (bool, error) {
	if err := f.Validate(); err != nil {
		return false, err
	}
	return matchNode(f, doc, scopePlain), nil
}

func matchNode(f filter.Filter, doc odm.Document, s scope) bool {
	members := 0
	for _, c := range f.Conditions {
		members++
		if done, result := decide(s, matchCondition(c, doc, s)); done {
			return result
		}
	}
	for op, g := range f.OrderedGroups() {
		if g.Vacuous() {
			continue
		}
		members++
		if done, result := decide(s, matchNode(g, doc, scopeOf(op))); done {
			return result
		}
	}
	for name, child := range f.OrderedChildren() {
		if child.Vacuous() {
			continue
		}
		members++
		if done, result := decide(s, matchNode(child, childDocument(doc, name), scopePlain)); done {
			return result
		}
	}
	if s == scopeAny {
		// An OR with no members constrains nothing.
		return members == 0
	}
	return true
}

func decide(s scope, ok bool) (done bool, result bool) {
	if s == scopeAny {
		return ok, true
	}
	return !ok, false
}

func scopeOf(op filter.LogicOp) scope {
	if op == filter.LogicAny {
		return scopeAny
	}
	return scopeAll
}

func childDocument(doc odm.Document, name string) odm.Document {
	v, ok := doc.Lookup(name)
	if !ok {
		return odm.Document{}
	}
	switch x := v.(type) {
	case map[string]any:
		return x
	case odm.Document:
		return x
	default:
		return odm.Document{}
	}
}

func matchCondition(c filter.Condition, doc odm.Document, s scope) bool {
	left, exists := doc.Lookup(c.Key)
	switch c.Op {
	case filter.Eq:
		return equals(left, exists, c.Value, s)
	case filter.Ne:
		return !equals(left, exists, c.Value, s)
	default:
		if !exists || left == nil {
			return false
		}
		if _, isArray := odm.AsArray(left); isArray {
			return false
		}
		cmp, ok := compareValues(left, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case filter.Gt:
			return cmp > 0
		case filter.Lt:
			return cmp < 0
		case filter.Ge:
			return cmp >= 0
		case filter.Le:
			return cmp <= 0
		}
		return false
	}
}

func equals(left any, exists bool, right filter.Value, s scope) bool {
	switch v := right.(type) {
	case filter.Identifier:
		if v.ID == nil {
			return !exists || left == nil
		}
	case filter.Nested:
		items, ok := odm.AsArray(left)
		if !exists || !ok {
			return false
		}
		for _, item := range items {
			if sub, ok := item.(map[string]any); ok && matchNode(v.Filter, sub, scopePlain) {
				return true
			}
		}
		return false
	case filter.List:
		if !exists {
			// Only membership of an absent identifier matches a missing field.
			return s == scopeAny && slices.ContainsFunc(v, isAbsentIdentifier)
		}
		switch s {
		case scopeAny:
			for _, entry := range v {
				if holds(left, entry) {
					return true
				}
			}
			return false
		case scopeAll:
			if len(v) == 0 {
				return false
			}
			for _, entry := range v {
				if !holds(left, entry) {
					return false
				}
			}
			return true
		default:
			items, ok := odm.AsArray(left)
			if !ok || len(items) != len(v) {
				return false
			}
			for i := range items {
				if !scalarEqual(items[i], v[i]) {
					return false
				}
			}
			return true
		}
	}
	return exists && holds(left, right)
}

// holds reports whether left equals right, or is an array with an element
// equal to right.
func holds(left any, right filter.Value) bool {
	if scalarEqual(left, right) {
		return true
	}
	items, ok := odm.AsArray(left)
	if !ok {
		return false
	}
	for _, item := range items {
		if scalarEqual(item, right) {
			return true
		}
	}
	return false
}

func scalarEqual(left any, right filter.Value) bool {
	switch v := right.(type) {
	case filter.Identifier:
		if v.ID == nil {
			return left == nil
		}
		return stringOf(left) == *v.ID && left != nil
	case filter.Text:
		s, ok := left.(string)
		return ok && s == string(v)
	case filter.Bool:
		b, ok := left.(bool)
		return ok && b == bool(v)
	case filter.Int32, filter.Int64, filter.Float32, filter.Float64:
		cmp, ok := compareNumbers(left, right)
		return ok && cmp == 0
	default:
		return false
	}
}

// compareValues orders left against right within one type class. Numbers
// compare with numbers and strings with strings.
func compareValues(left any, right filter.Value) (int, bool) {
	switch v := right.(type) {
	case filter.Text:
		s, ok := left.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(s, string(v)), true
	case filter.Identifier:
		if v.ID == nil || left == nil {
			return 0, false
		}
		return strings.Compare(stringOf(left), *v.ID), true
	default:
		return compareNumbers(left, right)
	}
}

func compareNumbers(left any, right filter.Value) (int, bool) {
	if li, ok := odm.ToInt64(left); ok {
		switch r := right.(type) {
		case filter.Int32:
			return compareOrdered(li, int64(r)), true
		case filter.Int64:
			return compareOrdered(li, int64(r)), true
		}
	}
	if _, isBool := left.(bool); isBool {
		return 0, false
	}
	lf, ok := odm.ToFloat64(left)
	if !ok {
		return 0, false
	}
	rf, ok := filter.Numeric(right)
	if !ok {
		return 0, false
	}
	return compareOrdered(lf, rf), true
}

func compareOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func isAbsentIdentifier(v filter.Value) bool {
	i, ok := v.(filter.Identifier)
	return ok && i.ID == nil
}

func stringOf(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}
