package postgres

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/odm"
)

// FilterSQLConfig configures filter compilation into SQL expressions.
type FilterSQLConfig struct {
	// IDExpr is the pre-quoted text column holding document identifiers.
	IDExpr string
	// DocExpr is the pre-quoted JSONB column holding document bodies.
	DocExpr string
}

type scope int

const (
	scopePlain scope = iota
	scopeAll
	scopeAny
)

// CompileFilterSQL compiles a filter tree into a SQL WHERE fragment and args.
// Returned SQL does not include the WHERE keyword and is empty when the
// filter constrains nothing.
//
// Every fragment evaluates to true or false, never NULL, so negation keeps
// the semantics of memory.Match: Ne also matches documents missing the field.
func CompileFilterSQL(f filter.Filter, cfg FilterSQLConfig, startArg int) (sql string, args []any, nextArg int, err error) {
	if startArg < 1 {
		startArg = 1
	}
	if cfg.IDExpr == "" || cfg.DocExpr == "" {
		return "", nil, startArg, fmt.Errorf("%w: column expressions not configured", filter.ErrInvalidFilterOperation)
	}
	if err := f.Validate(); err != nil {
		return "", nil, startArg, err
	}

	c := filterCompiler{
		cfg:     cfg,
		nextArg: startArg,
	}
	clauses, err := c.compileNode(f, cfg.DocExpr, nil, true)
	if err != nil {
		return "", nil, startArg, err
	}
	return combine(clauses, scopePlain), c.args, c.nextArg, nil
}

type filterCompiler struct {
	cfg     FilterSQLConfig
	args    []any
	nextArg int
	aliases int
}

func (c *filterCompiler) compileNode(f filter.Filter, base string, path []string, root bool) ([]string, error) {
	return c.compileScoped(f, base, path, root, scopePlain)
}

func (c *filterCompiler) compileScoped(f filter.Filter, base string, path []string, root bool, s scope) ([]string, error) {
	clauses := make([]string, 0, len(f.Conditions)+len(f.Groups)+len(f.Children))
	for _, cond := range f.Conditions {
		clause, err := c.compileCondition(cond, base, path, root, s)
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
		groupClauses, err := c.compileScoped(g, base, path, root, sub)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, combine(groupClauses, sub))
	}
	for name, child := range f.OrderedChildren() {
		if child.Vacuous() {
			continue
		}
		childClauses, err := c.compileNode(child, base, appendPath(path, name), root)
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

func (c *filterCompiler) compileCondition(cond filter.Condition, base string, path []string, root bool, s scope) (string, error) {
	fullPath := appendPath(path, cond.Key)

	var expr string
	if root && len(fullPath) == 1 && fullPath[0] == odm.IDField {
		if clause, ok := c.compileIDFastPath(cond); ok {
			return clause, nil
		}
		expr = fmt.Sprintf("to_jsonb(%s)", c.cfg.IDExpr)
	} else {
		expr = fmt.Sprintf("(%s #> %s)", base, pathArraySQL(fullPath))
	}

	if cond.Op.Ordering() {
		return c.compileOrdering(expr, cond.Op, cond.Value)
	}

	var eq string
	var err error
	switch v := cond.Value.(type) {
	case filter.Nested:
		eq, err = c.compileElemMatch(expr, v.Filter)
	case filter.List:
		eq, err = c.compileList(expr, v, s)
	case filter.Identifier:
		if v.ID == nil {
			eq = fmt.Sprintf("(%s IS NULL OR %s = 'null'::jsonb)", expr, expr)
			break
		}
		eq, err = c.compileContains(expr, v)
	default:
		eq, err = c.compileContains(expr, v)
	}
	if err != nil {
		return "", err
	}
	if cond.Op == filter.Ne {
		return fmt.Sprintf("(NOT %s)", eq), nil
	}
	return eq, nil
}

// compileIDFastPath compares the id column directly when the operand is text.
func (c *filterCompiler) compileIDFastPath(cond filter.Condition) (string, bool) {
	var value string
	switch v := cond.Value.(type) {
	case filter.Identifier:
		if v.ID == nil {
			return "", false
		}
		value = *v.ID
	case filter.Text:
		value = string(v)
	default:
		return "", false
	}
	switch cond.Op {
	case filter.Eq:
		return fmt.Sprintf("(%s = %s)", c.cfg.IDExpr, c.bind(value)), true
	case filter.Ne:
		return fmt.Sprintf("(%s <> %s)", c.cfg.IDExpr, c.bind(value)), true
	default:
		return fmt.Sprintf(`(%s COLLATE "C" %s %s)`, c.cfg.IDExpr, cond.Op.Symbol(), c.bind(value)), true
	}
}

// compileContains matches a field equal to v, or an array holding v.
func (c *filterCompiler) compileContains(expr string, v filter.Value) (string, error) {
	ph, err := c.bindJSONB(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("COALESCE(%s @> %s::jsonb, false)", expr, ph), nil
}

func (c *filterCompiler) compileList(expr string, list filter.List, s scope) (string, error) {
	if s == scopePlain {
		ph, err := c.bindJSONB(list)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("COALESCE(%s = %s::jsonb, false)", expr, ph), nil
	}
	if len(list) == 0 {
		return "FALSE", nil
	}
	parts := make([]string, 0, len(list))
	for _, entry := range list {
		if absent, ok := entry.(filter.Identifier); ok && absent.ID == nil && s == scopeAny {
			// An absent identifier in a membership list also matches a missing field.
			parts = append(parts, fmt.Sprintf("(%s IS NULL OR COALESCE(%s @> 'null'::jsonb, false))", expr, expr))
			continue
		}
		part, err := c.compileContains(expr, entry)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return combine(parts, s), nil
}

// compileOrdering compares scalars within one JSON type. Arrays, objects and
// values of the other type never match.
func (c *filterCompiler) compileOrdering(expr string, op filter.CmpOp, v filter.Value) (string, error) {
	switch x := v.(type) {
	case filter.Text:
		return c.compareText(expr, op, string(x)), nil
	case filter.Identifier:
		return c.compareText(expr, op, *x.ID), nil
	case filter.Int32:
		return c.compareNumber(expr, op, int64(x)), nil
	case filter.Int64:
		return c.compareNumber(expr, op, int64(x)), nil
	case filter.Float32:
		return c.compareNumber(expr, op, float64(x)), nil
	case filter.Float64:
		return c.compareNumber(expr, op, float64(x)), nil
	default:
		return "", fmt.Errorf("%w: %s on %s value", filter.ErrInvalidFilterOperation, op, v.Kind())
	}
}

func (c *filterCompiler) compareText(expr string, op filter.CmpOp, value string) string {
	return fmt.Sprintf(`(CASE WHEN jsonb_typeof(%s) = 'string' THEN (%s #>> '{}') COLLATE "C" %s %s ELSE false END)`,
		expr, expr, op.Symbol(), c.bind(value))
}

func (c *filterCompiler) compareNumber(expr string, op filter.CmpOp, value any) string {
	return fmt.Sprintf(`(CASE WHEN jsonb_typeof(%s) = 'number' THEN (%s #>> '{}')::numeric %s %s::numeric ELSE false END)`,
		expr, expr, op.Symbol(), c.bind(value))
}

// compileElemMatch matches arrays holding an object that satisfies inner.
func (c *filterCompiler) compileElemMatch(expr string, inner filter.Filter) (string, error) {
	c.aliases++
	alias := fmt.Sprintf("elem%d", c.aliases)
	element := alias + ".value"

	clauses, err := c.compileNode(inner, element, nil, false)
	if err != nil {
		return "", err
	}
	predicate := combine(clauses, scopePlain)
	if predicate == "" {
		predicate = "TRUE"
	}
	return fmt.Sprintf(
		"(CASE WHEN jsonb_typeof(%s) = 'array' THEN EXISTS (SELECT 1 FROM jsonb_array_elements(%s) AS %s(value) WHERE jsonb_typeof(%s) = 'object' AND %s) ELSE false END)",
		expr, expr, alias, element, predicate,
	), nil
}

func (c *filterCompiler) bind(v any) string {
	ph := fmt.Sprintf("$%d", c.nextArg)
	c.nextArg++
	c.args = append(c.args, v)
	return ph
}

func (c *filterCompiler) bindJSONB(v filter.Value) (string, error) {
	encoded, err := json.Marshal(jsonValue(v))
	if err != nil {
		return "", fmt.Errorf("%w: JSON encode value: %v", filter.ErrInvalidFilterOperation, err)
	}
	return c.bind(encoded), nil
}

// jsonValue widens float32 so the encoded number equals the compared value.
func jsonValue(v filter.Value) any {
	switch x := v.(type) {
	case filter.Float32:
		return float64(x)
	case filter.List:
		out := make([]any, 0, len(x))
		for _, item := range x {
			out = append(out, jsonValue(item))
		}
		return out
	default:
		return filter.Native(v)
	}
}

func appendPath(path []string, key string) []string {
	out := make([]string, 0, len(path)+1)
	out = append(out, path...)
	return append(out, strings.Split(key, ".")...)
}
