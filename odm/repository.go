package odm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/id"
)

// RepositoryOptions configures NewRepository.
type RepositoryOptions[M Model] struct {
	// Collection overrides the derived collection name.
	Collection string
	// Codec defaults to JSONCodec.
	Codec Codec[M]
}

// Repository adds type-safe helpers over a Document collection.
type Repository[M Model] struct {
	base   Collection
	codec  Codec[M]
	schema *filter.Schema
}

// NewRepository resolves the collection of M in store and wraps it.
func NewRepository[M Model](store Store, opts RepositoryOptions[M]) (*Repository[M], error) {
	name := opts.Collection
	if name == "" {
		name = CollectionName[M]()
	}
	return NewRepositoryFor(store.Collection(name), opts.Codec)
}

// NewRepositoryFor wraps an existing collection. A nil codec selects JSONCodec.
func NewRepositoryFor[M Model](base Collection, codec Codec[M]) (*Repository[M], error) {
	if codec == nil {
		codec = JSONCodec[M]{}
	}
	schema, err := filter.SchemaOf[M]()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return &Repository[M]{base: base, codec: codec, schema: schema}, nil
}

func (r *Repository[M]) Collection() Collection {
	return r.base
}

// Schema returns the filter schema reflected from M.
func (r *Repository[M]) Schema() *filter.Schema {
	return r.schema
}

// Save stores value and assigns the identifier chosen by the store.
func (r *Repository[M]) Save(ctx context.Context, value M) error {
	doc, err := r.codec.Encode(value)
	if err != nil {
		return err
	}
	saved, err := r.base.Save(ctx, doc)
	if err != nil {
		return err
	}
	value.SetID(id.From(saved))
	return nil
}

// SaveAll stores values in one batch and assigns their identifiers.
func (r *Repository[M]) SaveAll(ctx context.Context, values ...M) error {
	if len(values) == 0 {
		return nil
	}
	docs := make([]Document, 0, len(values))
	for _, value := range values {
		doc, err := r.codec.Encode(value)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	saved, err := r.base.SaveMany(ctx, docs)
	if err != nil {
		return err
	}
	if len(saved) != len(values) {
		return fmt.Errorf("%w: saved %d of %d documents", ErrInvalidDocument, len(saved), len(values))
	}
	for i, value := range values {
		value.SetID(id.From(saved[i]))
	}
	return nil
}

func (r *Repository[M]) Get(ctx context.Context, recordID id.ID) (M, error) {
	var zero M
	s, ok := recordID.Get()
	if !ok {
		return zero, fmt.Errorf("%w: absent identifier", ErrNotFound)
	}
	doc, err := r.base.Get(ctx, s)
	if err != nil {
		return zero, err
	}
	return r.codec.Decode(doc)
}

// GetBy returns the first record whose field equals value. The field name
// and value kind are checked against the schema of M.
func (r *Repository[M]) GetBy(ctx context.Context, field string, value any) (M, error) {
	var zero M
	f, err := filter.NewDynamic(r.schema).Where(field, filter.Eq, value).Result()
	if err != nil {
		return zero, err
	}
	return r.findOne(ctx, f)
}

// Find returns the records matching q. A nil q matches every record.
func (r *Repository[M]) Find(ctx context.Context, q filter.ModelFilter, opts FindOptions) ([]M, error) {
	docs, err := r.base.Find(ctx, build(q), opts)
	if err != nil {
		return nil, err
	}
	out := make([]M, 0, len(docs))
	for _, doc := range docs {
		decoded, err := r.codec.Decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}

// FindOne returns the first record matching q, or ErrNotFound.
func (r *Repository[M]) FindOne(ctx context.Context, q filter.ModelFilter) (M, error) {
	return r.findOne(ctx, build(q))
}

// Exists reports whether any record matches q.
func (r *Repository[M]) Exists(ctx context.Context, q filter.ModelFilter) (bool, error) {
	_, err := r.base.FindOne(ctx, build(q))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *Repository[M]) Count(ctx context.Context, q filter.ModelFilter) (int64, error) {
	return r.base.Count(ctx, build(q))
}

func (r *Repository[M]) Delete(ctx context.Context, ids ...id.ID) (int64, error) {
	raw := make([]string, 0, len(ids))
	for _, i := range ids {
		if s, ok := i.Get(); ok {
			raw = append(raw, s)
		}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	return r.base.Delete(ctx, raw)
}

func (r *Repository[M]) findOne(ctx context.Context, f filter.Filter) (M, error) {
	var zero M
	doc, err := r.base.FindOne(ctx, f)
	if err != nil {
		return zero, err
	}
	return r.codec.Decode(doc)
}

func build(q filter.ModelFilter) filter.Filter {
	if q == nil {
		return filter.New()
	}
	return q.Build()
}
