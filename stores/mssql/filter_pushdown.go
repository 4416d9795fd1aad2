package mssql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/odm"
)

var errFilterPushdownUnsupported = errors.New("mssql filter pushdown unsupported")

// binaryCollation compares strings by code point, like Go does.
const binaryCollation = "Latin1_General_100_BIN2"

type scope int

const (
	scopePlain scope = iota
	scopeAll
	scopeAny
)

// OPENJSON [type] codes.
const (
	jsonTypeNull   = 0
	jsonTypeString = 1
	jsonTypeNumber = 2
	jsonTypeBool   = 3
	jsonTypeArray  = 4
)

// compileMSSQLFilterSQL compiles a filter tree into a WHERE fragment over the
// doc column. Fields are resolved with OPENJSON on the parent object so that
// JSON types stay distinguishable. Filters it cannot express return
// errFilterPushdownUnsupported and are evaluated in process by the caller.
func compileMSSQLFilterSQL(f filter.Filter, startArg int) (sql string, args []any, nextArg int, err error) {
	if startArg < 1 {
		startArg = 1
	}
	if err := f.Validate(); err != nil {
		return "", nil, startArg, err
	}

	c := &mssqlFilterCompiler{
		nextArg: startArg,
	}
	clauses, err := c.compileScoped(f, nil, scopePlain)
	if err != nil {
		return "", nil, startArg, err
	}
	return combine(clauses, scopePlain), c.args, c.nextArg, nil
}

// ExplainFilter returns the WHERE fragment and arguments Find sends for f.
// pushed is false when f is evaluated in process instead.
func ExplainFilter(f filter.Filter) (sql string, args []any, pushed bool, err error) {
	sql, args, _, err = compileMSSQLFilterSQL(f, 1)
	if errors.Is(err, errFilterPushdownUnsupported) {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, err
	}
	return sql, args, true, nil
}

type mssqlFilterCompiler struct {
	args    []any
	nextArg int
	aliases int
}

func (c *mssqlFilterCompiler) compileScoped(f filter.Filter, path []string, s scope) ([]string, error) {
	clauses := make([]string, 0, len(f.Conditions)+len(f.Groups)+len(f.Children))
	for _, cond := range f.Conditions {
		clause, err := c.compileCondition(cond, path, s)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	for op, g := range f.OrderedGroups() {
		if g.Vacuous() {
			continue
		}
		sub := scopeAll
		if op == filter.LogicAny {
			sub = scopeAny
		}
		groupClauses, err := c.compileScoped(g, path, sub)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, combine(groupClauses, sub))
	}
	for name, child := range f.OrderedChildren() {
		if child.Vacuous() {
			continue
		}
		childClauses, err := c.compileScoped(child, appendPath(path, name), scopePlain)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, combine(childClauses, scopePlain))
	}
	return clauses, nil
}

func combine(clauses []string, s scope) string {
	switch len(clauses) {
	case 0:
		return ""
	case 1:
		return clauses[0]
	}
	op := " AND "
	if s == scopeAny {
		op = " OR "
	}
	return "(" + strings.Join(clauses, op) + ")"
}

func (c *mssqlFilterCompiler) compileCondition(cond filter.Condition, path []string, s scope) (string, error) {
	full := appendPath(path, cond.Key)
	if len(full) == 1 && full[0] == odm.IDField {
		return c.compileID(cond, s)
	}

	if cond.Op.Ordering() {
		return c.field(full, func(alias string) string {
			return c.compare(alias, cond.Op, cond.Value)
		}), nil
	}

	var eq string
	switch v := cond.Value.(type) {
	case filter.Nested:
		return "", unsupportedPushdown("nested match on field %q", cond.Key)
	case filter.List:
		if s == scopePlain {
			return "", unsupportedPushdown("literal array equality on field %q", cond.Key)
		}
		if len(v) == 0 {
			eq = "(1 = 0)"
			break
		}
		parts := make([]string, 0, len(v))
		for _, entry := range v {
			if absent, ok := entry.(filter.Identifier); ok && absent.ID == nil && s == scopeAny {
				// An absent identifier in a membership list also matches a missing field.
				missing := "(NOT " + c.field(full, func(string) string { return "1 = 1" }) + ")"
				parts = append(parts, "("+missing+" OR "+c.field(full, func(alias string) string {
					return c.holds(alias, entry)
				})+")")
				continue
			}
			parts = append(parts, c.field(full, func(alias string) string {
				return c.holds(alias, entry)
			}))
		}
		eq = combine(parts, s)
	case filter.Identifier:
		if v.ID == nil {
			eq = "(NOT " + c.field(full, func(alias string) string {
				return fmt.Sprintf("%s.[type] <> %d", alias, jsonTypeNull)
			}) + ")"
			break
		}
		eq = c.field(full, func(alias string) string { return c.holds(alias, v) })
	default:
		eq = c.field(full, func(alias string) string { return c.holds(alias, v) })
	}

	if cond.Op == filter.Ne {
		return "(NOT " + eq + ")", nil
	}
	return eq, nil
}

// compileID compares the id column. Only text operands are pushed down.
func (c *mssqlFilterCompiler) compileID(cond filter.Condition, s scope) (string, error) {
	idExpr := quoteIdent(idColumn) + " COLLATE " + binaryCollation

	switch v := cond.Value.(type) {
	case filter.Identifier:
		if v.ID == nil {
			if cond.Op == filter.Ne {
				return "(1 = 1)", nil
			}
			return "(1 = 0)", nil
		}
		return c.compareID(idExpr, cond.Op, *v.ID), nil
	case filter.Text:
		return c.compareID(idExpr, cond.Op, string(v)), nil
	case filter.List:
		if s != scopeAny || len(v) == 0 {
			break
		}
		placeholders := make([]string, 0, len(v))
		for _, entry := range v {
			text, ok := identifierText(entry)
			if !ok {
				return "", unsupportedPushdown("identifier membership with %s entry", entry.Kind())
			}
			placeholders = append(placeholders, c.bind(text))
		}
		in := fmt.Sprintf("(%s IN (%s))", idExpr, strings.Join(placeholders, ", "))
		if cond.Op == filter.Ne {
			return "(NOT " + in + ")", nil
		}
		return in, nil
	}
	return "", unsupportedPushdown("identifier comparison with %s value", cond.Value.Kind())
}

func (c *mssqlFilterCompiler) compareID(idExpr string, op filter.CmpOp, value string) string {
	sqlOp := op.Symbol()
	switch op {
	case filter.Eq:
		sqlOp = "="
	case filter.Ne:
		sqlOp = "<>"
	}
	return fmt.Sprintf("(%s %s %s)", idExpr, sqlOp, c.bind(value))
}

// field wraps pred, evaluated against the OPENJSON row of the addressed
// member, in an EXISTS over its parent object. A missing member never matches.
func (c *mssqlFilterCompiler) field(path []string, pred func(alias string) string) string {
	alias := c.alias("f")
	parent := c.bind(jsonPathLiteral(path[:len(path)-1]))
	leaf := c.bind(path[len(path)-1])
	return fmt.Sprintf("EXISTS (SELECT 1 FROM OPENJSON(%s, %s) AS %s WHERE %s.[key] = %s AND %s)",
		quoteIdent(docColumn), parent, alias, alias, leaf, pred(alias))
}

// holds matches a member equal to v, or an array member with an element
// equal to v.
func (c *mssqlFilterCompiler) holds(alias string, v filter.Value) string {
	direct := c.scalarEq(alias, v)
	element := c.alias("e")
	return fmt.Sprintf("(%s OR (%s.[type] = %d AND EXISTS (SELECT 1 FROM OPENJSON(%s.[value]) AS %s WHERE %s)))",
		direct, alias, jsonTypeArray, alias, element, c.scalarEq(element, v))
}

func (c *mssqlFilterCompiler) scalarEq(alias string, v filter.Value) string {
	switch x := v.(type) {
	case filter.Identifier:
		if x.ID == nil {
			return fmt.Sprintf("%s.[type] = %d", alias, jsonTypeNull)
		}
		return c.compareText(alias, "=", *x.ID)
	case filter.Text:
		return c.compareText(alias, "=", string(x))
	case filter.Bool:
		text := "false"
		if x {
			text = "true"
		}
		return fmt.Sprintf("(%s.[type] = %d AND %s.[value] = %s)", alias, jsonTypeBool, alias, c.bind(text))
	default:
		return c.compareNumber(alias, "=", v)
	}
}

func (c *mssqlFilterCompiler) compare(alias string, op filter.CmpOp, v filter.Value) string {
	switch x := v.(type) {
	case filter.Identifier:
		return c.compareText(alias, op.Symbol(), *x.ID)
	case filter.Text:
		return c.compareText(alias, op.Symbol(), string(x))
	default:
		return c.compareNumber(alias, op.Symbol(), v)
	}
}

func (c *mssqlFilterCompiler) compareText(alias, sqlOp, value string) string {
	return fmt.Sprintf("(%s.[type] = %d AND %s.[value] COLLATE %s %s %s)",
		alias, jsonTypeString, alias, binaryCollation, sqlOp, c.bind(value))
}

// compareNumber compares integer operands exactly against integral members
// and as float otherwise.
func (c *mssqlFilterCompiler) compareNumber(alias, sqlOp string, v filter.Value) string {
	var integer int64
	switch x := v.(type) {
	case filter.Int32:
		integer = int64(x)
	case filter.Int64:
		integer = int64(x)
	default:
		number, _ := filter.Numeric(v)
		return fmt.Sprintf("(%s.[type] = %d AND TRY_CONVERT(float, %s.[value]) %s %s)",
			alias, jsonTypeNumber, alias, sqlOp, c.bind(number))
	}
	asBigint := fmt.Sprintf("TRY_CONVERT(bigint, %s.[value])", alias)
	ph := c.bind(integer)
	return fmt.Sprintf("(%s.[type] = %d AND ((%s IS NOT NULL AND %s %s %s) OR (%s IS NULL AND TRY_CONVERT(float, %s.[value]) %s %s)))",
		alias, jsonTypeNumber, asBigint, asBigint, sqlOp, ph, asBigint, alias, sqlOp, ph)
}

func (c *mssqlFilterCompiler) alias(prefix string) string {
	c.aliases++
	return fmt.Sprintf("%s%d", prefix, c.aliases)
}

func (c *mssqlFilterCompiler) bind(value any) string {
	placeholder := fmt.Sprintf("@p%d", c.nextArg)
	c.nextArg++
	c.args = append(c.args, value)
	return placeholder
}

func identifierText(v filter.Value) (string, bool) {
	switch x := v.(type) {
	case filter.Identifier:
		if x.ID == nil {
			return "", false
		}
		return *x.ID, true
	case filter.Text:
		return string(x), true
	default:
		return "", false
	}
}

func appendPath(path []string, key string) []string {
	out := make([]string, 0, len(path)+1)
	out = append(out, path...)
	return append(out, strings.Split(key, ".")...)
}

func unsupportedPushdown(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errFilterPushdownUnsupported, fmt.Sprintf(format, args...))
}
