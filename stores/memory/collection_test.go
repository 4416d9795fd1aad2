package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/odm"
)

func TestCollection_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore(StoreOptions{})
	col, err := store.EnsureCollection(ctx, "users")
	if err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	docID, err := col.Save(ctx, odm.Document{"name": "alex", "tags": []string{"a"}})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if docID == "" {
		t.Fatal("expected generated id")
	}

	got, err := col.Get(ctx, docID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got["name"] != "alex" || got.ID() != docID {
		t.Fatalf("unexpected document: %#v", got)
	}
	if _, ok := got["tags"].([]any); !ok {
		t.Fatalf("expected normalized array, got %T", got["tags"])
	}

	got["name"] = "mutated"
	again, _ := col.Get(ctx, docID)
	if again["name"] != "alex" {
		t.Fatal("Get must return a copy")
	}

	deleted, err := col.Delete(ctx, []string{docID, "missing"})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}
	if _, err := col.Get(ctx, docID); !errors.Is(err, odm.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCollection_FindSortPage(t *testing.T) {
	ctx := context.Background()
	col := NewStore(StoreOptions{}).Collection("users")
	for _, doc := range []odm.Document{
		{"_id": "a", "age": 30, "name": "x"},
		{"_id": "b", "age": 20, "name": "y"},
		{"_id": "c", "age": 40, "name": "z"},
		{"_id": "d", "name": "w"},
	} {
		if _, err := col.Save(ctx, doc); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	adults := filter.Filter{Conditions: []filter.Condition{filter.NewCondition("age", filter.Ge, filter.Int32(25))}}
	docs, err := col.Find(ctx, adults, odm.FindOptions{Sort: []odm.SortField{odm.Desc("age")}})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(docs) != 2 || docs[0].ID() != "c" || docs[1].ID() != "a" {
		t.Fatalf("unexpected order: %v", docs)
	}

	docs, err = col.Find(ctx, filter.New(), odm.FindOptions{Skip: 1, Limit: 2})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(docs) != 2 || docs[0].ID() != "b" || docs[1].ID() != "c" {
		t.Fatalf("unexpected page: %v", docs)
	}

	count, err := col.Count(ctx, adults)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}

	if _, err := col.FindOne(ctx, filter.Filter{Conditions: []filter.Condition{filter.NewCondition("age", filter.Gt, filter.Int32(99))}}); !errors.Is(err, odm.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCollection_FindRejectsBadOptions(t *testing.T) {
	_, err := NewStore(StoreOptions{}).Collection("x").Find(context.Background(), filter.New(), odm.FindOptions{Limit: -1})
	if !errors.Is(err, odm.ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}
}

func TestCollection_SaveRejectsNonStringID(t *testing.T) {
	ctx := context.Background()
	col := NewStore(StoreOptions{}).Collection("users")

	_, err := col.Save(ctx, odm.Document{"_id": 42, "name": "alex"})
	if !errors.Is(err, odm.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
	count, err := col.Count(ctx, filter.New())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected document was stored: %d", count)
	}

	docID, err := col.Save(ctx, odm.Document{"_id": "42", "name": "alex"})
	if err != nil || docID != "42" {
		t.Fatalf("Save: %q %v", docID, err)
	}
}
