// Package odm maps application records onto document collections and runs
// filter trees against them through pluggable stores.
package odm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tsanga/musty/filter"
)

// IDField is the document key holding the record identifier.
const IDField = "_id"

// SortField orders query results by a possibly dotted field path.
type SortField struct {
	Field string
	Desc  bool
}

// Asc sorts by field in ascending order.
func Asc(field string) SortField { return SortField{Field: field} }

// Desc sorts by field in descending order.
func Desc(field string) SortField { return SortField{Field: field, Desc: true} }

// FindOptions configures Find. Without Sort, results are ordered by IDField.
type FindOptions struct {
	Limit int64
	Skip  int64
	Sort  []SortField
}

func (o FindOptions) Validate() error {
	if o.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidOptions, o.Limit)
	}
	if o.Skip < 0 {
		return fmt.Errorf("%w: negative skip %d", ErrInvalidOptions, o.Skip)
	}
	for _, s := range o.Sort {
		if strings.TrimSpace(s.Field) == "" {
			return fmt.Errorf("%w: empty sort field", ErrInvalidOptions)
		}
	}
	return nil
}

// SortOrDefault returns the configured sort followed by ascending IDField,
// unless IDField is already part of it, so that paging is deterministic.
func (o FindOptions) SortOrDefault() []SortField {
	out := make([]SortField, 0, len(o.Sort)+1)
	for _, s := range o.Sort {
		out = append(out, s)
		if s.Field == IDField {
			return out
		}
	}
	return append(out, Asc(IDField))
}

// Store creates and resolves document collections.
type Store interface {
	// EnsureCollection creates the backing storage when missing and checks
	// its shape when present.
	EnsureCollection(ctx context.Context, name string) (Collection, error)
	Collection(name string) Collection
}

// Collection is an operational document collection.
type Collection interface {
	Name() string

	// Save inserts or replaces doc by IDField and returns its identifier.
	// A document without an identifier is assigned a new one.
	Save(ctx context.Context, doc Document) (string, error)
	// SaveMany saves docs in order and returns their identifiers.
	SaveMany(ctx context.Context, docs []Document) ([]string, error)
	Get(ctx context.Context, id string) (Document, error)
	Delete(ctx context.Context, ids []string) (int64, error)

	Find(ctx context.Context, f filter.Filter, opts FindOptions) ([]Document, error)
	// FindOne returns the first match in IDField order, or ErrNotFound.
	FindOne(ctx context.Context, f filter.Filter) (Document, error)
	Count(ctx context.Context, f filter.Filter) (int64, error)
}
