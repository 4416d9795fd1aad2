package postgres

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/odm"
)

func testFilterConfig() FilterSQLConfig {
	return FilterSQLConfig{
		IDExpr:  `"id"`,
		DocExpr: `"doc"`,
	}
}

func where(conds ...filter.Condition) filter.Filter {
	var f filter.Filter
	for _, c := range conds {
		f.AddCondition(c)
	}
	return f
}

func TestCompileFilterSQL_Empty(t *testing.T) {
	sql, args, next, err := CompileFilterSQL(filter.New(), testFilterConfig(), 3)
	if err != nil {
		t.Fatalf("CompileFilterSQL error: %v", err)
	}
	if sql != "" || len(args) != 0 || next != 3 {
		t.Fatalf("expected empty fragment, got %q %#v %d", sql, args, next)
	}
}

func TestCompileFilterSQL_Complex(t *testing.T) {
	f := where(filter.NewCondition("name", filter.Eq, filter.Text("alex")))
	var either filter.Filter
	either.AddCondition(filter.NewCondition("age", filter.Gt, filter.Int32(30)))
	either.AddCondition(filter.NewCondition("age", filter.Lt, filter.Int32(20)))
	f.AddOpFilter(filter.LogicAny, either)
	f.AddChild("address", where(filter.NewCondition("country", filter.Eq, filter.Text("US"))))

	sql, args, next, err := CompileFilterSQL(f, testFilterConfig(), 1)
	if err != nil {
		t.Fatalf("CompileFilterSQL error: %v", err)
	}

	age := `("doc" #> ARRAY['age']::text[])`
	expectedSQL := `(COALESCE(("doc" #> ARRAY['name']::text[]) @> $1::jsonb, false)` +
		` AND ((CASE WHEN jsonb_typeof(` + age + `) = 'number' THEN (` + age + ` #>> '{}')::numeric > $2::numeric ELSE false END)` +
		` OR (CASE WHEN jsonb_typeof(` + age + `) = 'number' THEN (` + age + ` #>> '{}')::numeric < $3::numeric ELSE false END))` +
		` AND COALESCE(("doc" #> ARRAY['address', 'country']::text[]) @> $4::jsonb, false))`
	if sql != expectedSQL {
		t.Fatalf("unexpected SQL\nwant: %s\n got: %s", expectedSQL, sql)
	}

	expectedArgs := []any{[]byte(`"alex"`), int64(30), int64(20), []byte(`"US"`)}
	if !reflect.DeepEqual(args, expectedArgs) {
		t.Fatalf("unexpected args\nwant: %#v\n got: %#v", expectedArgs, args)
	}
	if next != 5 {
		t.Fatalf("unexpected next arg index: want 5 got %d", next)
	}
}

func TestCompileFilterSQL_StartArgOffset(t *testing.T) {
	sql, args, next, err := CompileFilterSQL(where(filter.NewCondition("active", filter.Ne, filter.Bool(true))), testFilterConfig(), 5)
	if err != nil {
		t.Fatalf("CompileFilterSQL error: %v", err)
	}
	if sql != `(NOT COALESCE(("doc" #> ARRAY['active']::text[]) @> $5::jsonb, false))` {
		t.Fatalf("unexpected SQL: %s", sql)
	}
	if !reflect.DeepEqual(args, []any{[]byte(`true`)}) {
		t.Fatalf("unexpected args: %#v", args)
	}
	if next != 6 {
		t.Fatalf("unexpected next arg index: %d", next)
	}
}

func TestCompileFilterSQL_IdentifierColumn(t *testing.T) {
	sql, args, _, err := CompileFilterSQL(where(filter.NewCondition(odm.IDField, filter.Eq, filter.IdentifierString("u1"))), testFilterConfig(), 1)
	if err != nil {
		t.Fatalf("CompileFilterSQL error: %v", err)
	}
	if sql != `("id" = $1)` || !reflect.DeepEqual(args, []any{"u1"}) {
		t.Fatalf("unexpected id comparison: %s %#v", sql, args)
	}

	var in filter.Filter
	in.AddOpCondition(filter.LogicAny, filter.NewCondition(odm.IDField, filter.Eq, filter.List{filter.IdentifierString("a")}))
	sql, _, _, err = CompileFilterSQL(in, testFilterConfig(), 1)
	if err != nil {
		t.Fatalf("CompileFilterSQL error: %v", err)
	}
	if sql != `COALESCE(to_jsonb("id") @> $1::jsonb, false)` {
		t.Fatalf("unexpected id membership: %s", sql)
	}
}

func TestCompileFilterSQL_NullIdentifier(t *testing.T) {
	sql, args, _, err := CompileFilterSQL(where(filter.NewCondition("owner", filter.Eq, filter.Identifier{})), testFilterConfig(), 1)
	if err != nil {
		t.Fatalf("CompileFilterSQL error: %v", err)
	}
	expected := `(("doc" #> ARRAY['owner']::text[]) IS NULL OR ("doc" #> ARRAY['owner']::text[]) = 'null'::jsonb)`
	if sql != expected {
		t.Fatalf("unexpected SQL\nwant: %s\n got: %s", expected, sql)
	}
	if len(args) != 0 {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestCompileFilterSQL_ListScopes(t *testing.T) {
	names := filter.List{filter.Text("a"), filter.Text("b")}
	expr := `("doc" #> ARRAY['tags']::text[])`

	cases := []struct {
		name string
		f    func() filter.Filter
		want string
	}{
		{
			name: "any",
			f: func() filter.Filter {
				var f filter.Filter
				f.AddOpCondition(filter.LogicAny, filter.NewCondition("tags", filter.Eq, names))
				return f
			},
			want: `(COALESCE(` + expr + ` @> $1::jsonb, false) OR COALESCE(` + expr + ` @> $2::jsonb, false))`,
		},
		{
			name: "all",
			f: func() filter.Filter {
				var f filter.Filter
				f.AddOpCondition(filter.LogicAll, filter.NewCondition("tags", filter.Eq, names))
				return f
			},
			want: `(COALESCE(` + expr + ` @> $1::jsonb, false) AND COALESCE(` + expr + ` @> $2::jsonb, false))`,
		},
		{
			name: "literal",
			f: func() filter.Filter {
				return where(filter.NewCondition("tags", filter.Eq, names))
			},
			want: `COALESCE(` + expr + ` = $1::jsonb, false)`,
		},
		{
			name: "any with absent identifier",
			f: func() filter.Filter {
				var f filter.Filter
				f.AddOpCondition(filter.LogicAny, filter.NewCondition("tags", filter.Eq, filter.List{filter.Identifier{}, filter.Text("a")}))
				return f
			},
			want: `((` + expr + ` IS NULL OR COALESCE(` + expr + ` @> 'null'::jsonb, false)) OR COALESCE(` + expr + ` @> $1::jsonb, false))`,
		},
		{
			name: "empty any",
			f: func() filter.Filter {
				var f filter.Filter
				f.AddOpCondition(filter.LogicAny, filter.NewCondition("tags", filter.Eq, filter.List{}))
				return f
			},
			want: `FALSE`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sql, _, _, err := CompileFilterSQL(tc.f(), testFilterConfig(), 1)
			if err != nil {
				t.Fatalf("CompileFilterSQL error: %v", err)
			}
			if sql != tc.want {
				t.Fatalf("unexpected SQL\nwant: %s\n got: %s", tc.want, sql)
			}
		})
	}
}

func TestCompileFilterSQL_ElemMatch(t *testing.T) {
	inner := where(filter.NewCondition("name", filter.Eq, filter.Text("vip")))
	sql, args, _, err := CompileFilterSQL(where(filter.NewCondition("labels", filter.Eq, filter.Nested{Filter: inner})), testFilterConfig(), 1)
	if err != nil {
		t.Fatalf("CompileFilterSQL error: %v", err)
	}

	expr := `("doc" #> ARRAY['labels']::text[])`
	expected := `(CASE WHEN jsonb_typeof(` + expr + `) = 'array' THEN EXISTS (SELECT 1 FROM jsonb_array_elements(` + expr +
		`) AS elem1(value) WHERE jsonb_typeof(elem1.value) = 'object' AND COALESCE((elem1.value #> ARRAY['name']::text[]) @> $1::jsonb, false)) ELSE false END)`
	if sql != expected {
		t.Fatalf("unexpected SQL\nwant: %s\n got: %s", expected, sql)
	}
	if !reflect.DeepEqual(args, []any{[]byte(`"vip"`)}) {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestCompileFilterSQL_TextOrderingUsesBinaryCollation(t *testing.T) {
	sql, _, _, err := CompileFilterSQL(where(filter.NewCondition("name", filter.Ge, filter.Text("m"))), testFilterConfig(), 1)
	if err != nil {
		t.Fatalf("CompileFilterSQL error: %v", err)
	}
	if !strings.Contains(sql, `= 'string'`) || !strings.Contains(sql, `COLLATE "C" >= $1`) {
		t.Fatalf("unexpected SQL: %s", sql)
	}
}

func TestCompileFilterSQL_Invalid(t *testing.T) {
	_, _, _, err := CompileFilterSQL(where(filter.NewCondition("tags", filter.Gt, filter.List{})), testFilterConfig(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, filter.ErrInvalidFilterOperation) {
		t.Fatalf("expected ErrInvalidFilterOperation, got %v", err)
	}

	_, _, _, err = CompileFilterSQL(filter.New(), FilterSQLConfig{}, 1)
	if !errors.Is(err, filter.ErrInvalidFilterOperation) {
		t.Fatalf("expected ErrInvalidFilterOperation for missing config, got %v", err)
	}
}
