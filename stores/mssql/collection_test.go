package mssql

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/tsanga/musty/filter"
)

func newTestCollection() *MSSQLCollection {
	store := &MSSQLStore{opts: StoreOptions{Schema: "dbo"}.withDefaults()}
	return store.newCollectionHandle("users")
}

func TestBuildUpsertQueryUsesLockingPattern(t *testing.T) {
	query := buildUpsertQuery("[dbo].[docs]")

	if !strings.Contains(query, "WITH (UPDLOCK, SERIALIZABLE)") {
		t.Fatalf("expected upsert query to use locking hint, got: %s", query)
	}
	if !strings.Contains(query, "IF @@ROWCOUNT = 0") {
		t.Fatalf("expected upsert query to insert on miss, got: %s", query)
	}
	if !strings.Contains(query, "INSERT INTO [dbo].[docs] ([id], [doc]) VALUES (@p1, @p2)") {
		t.Fatalf("expected upsert query to target provided table, got: %s", query)
	}
}

func TestBuildSelectPlan(t *testing.T) {
	collection := newTestCollection()

	plan, err := collection.buildSelectPlan(filter.New())
	if err != nil {
		t.Fatalf("buildSelectPlan: %v", err)
	}
	if plan.query != "SELECT [id], [doc] FROM [dbo].[users]" {
		t.Fatalf("unexpected query: %s", plan.query)
	}
	if len(plan.args) != 0 {
		t.Fatalf("unexpected args: %#v", plan.args)
	}

	plan, err = collection.buildSelectPlan(where(filter.NewCondition("name", filter.Eq, filter.Text("alex"))))
	if err != nil {
		t.Fatalf("buildSelectPlan: %v", err)
	}
	if !strings.HasPrefix(plan.query, "SELECT [id], [doc] FROM [dbo].[users] WHERE EXISTS (") {
		t.Fatalf("unexpected query: %s", plan.query)
	}
	if !reflect.DeepEqual(plan.args, []any{"$", "name", "alex", "alex"}) {
		t.Fatalf("unexpected args: %#v", plan.args)
	}
}

func TestBuildCountPlan(t *testing.T) {
	collection := newTestCollection()

	plan, err := collection.buildCountPlan(where(filter.NewCondition("age", filter.Le, filter.Int32(40))))
	if err != nil {
		t.Fatalf("buildCountPlan: %v", err)
	}
	if !strings.HasPrefix(plan.query, "SELECT COUNT_BIG(*) FROM [dbo].[users] WHERE EXISTS (") {
		t.Fatalf("unexpected query: %s", plan.query)
	}
	if !reflect.DeepEqual(plan.args, []any{"$", "age", int64(40)}) {
		t.Fatalf("unexpected args: %#v", plan.args)
	}
}

func TestBuildSelectPlanRejectsUnsupportedFilterPushdown(t *testing.T) {
	collection := newTestCollection()

	_, err := collection.buildSelectPlan(where(filter.NewCondition("tags", filter.Eq, filter.List{filter.Text("a")})))
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, errFilterPushdownUnsupported) {
		t.Fatalf("expected errFilterPushdownUnsupported, got %v", err)
	}
}

func TestBuildDeletePlan(t *testing.T) {
	plan := newTestCollection().buildDeletePlan([]string{"a", "b", "c"})

	if plan.query != "DELETE FROM [dbo].[users] WHERE [id] IN (@p1, @p2, @p3)" {
		t.Fatalf("unexpected query: %s", plan.query)
	}
	if !reflect.DeepEqual(plan.args, []any{"a", "b", "c"}) {
		t.Fatalf("unexpected args: %#v", plan.args)
	}
}

func TestJSONPathLiteralQuotesSegments(t *testing.T) {
	if got := jsonPathLiteral(nil); got != "$" {
		t.Fatalf("unexpected root path: %s", got)
	}
	if got := jsonPathLiteral([]string{"address", `we"ird`}); got != `$."address"."we\"ird"` {
		t.Fatalf("unexpected path: %s", got)
	}
}
