package memory

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/odm"
)

// MemoryCollection is a handle to an in-memory collection.
type MemoryCollection struct {
	store *MemoryStore
	name  string
}

func (c *MemoryCollection) Name() string {
	return c.name
}

func (c *MemoryCollection) Save(ctx context.Context, doc odm.Document) (string, error) {
	ids, err := c.SaveMany(ctx, []odm.Document{doc})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// SaveMany normalizes every document before storing any of them.
func (c *MemoryCollection) SaveMany(ctx context.Context, docs []odm.Document) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	prepared := make([]odm.Document, 0, len(docs))
	for _, doc := range docs {
		normalized, err := odm.NormalizeDocument(doc)
		if err != nil {
			return nil, err
		}
		docID, err := normalized.ResolveID()
		if err != nil {
			return nil, err
		}
		if docID == "" {
			docID = c.store.opts.NewID()
		}
		normalized[odm.IDField] = docID
		ids = append(ids, docID)
		prepared = append(prepared, normalized)
	}

	data := c.store.data(c.name, true)
	data.mu.Lock()
	defer data.mu.Unlock()
	for i, doc := range prepared {
		data.docs[ids[i]] = doc
	}
	return ids, nil
}

func (c *MemoryCollection) Get(ctx context.Context, docID string) (odm.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := c.store.data(c.name, false)
	if data == nil {
		return nil, odm.ErrNotFound
	}
	data.mu.RLock()
	defer data.mu.RUnlock()
	doc, ok := data.docs[docID]
	if !ok {
		return nil, odm.ErrNotFound
	}
	return doc.Clone(), nil
}

func (c *MemoryCollection) Delete(ctx context.Context, ids []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data := c.store.data(c.name, false)
	if data == nil || len(ids) == 0 {
		return 0, nil
	}
	data.mu.Lock()
	defer data.mu.Unlock()
	var deleted int64
	for _, docID := range ids {
		if _, ok := data.docs[docID]; ok {
			delete(data.docs, docID)
			deleted++
		}
	}
	return deleted, nil
}

func (c *MemoryCollection) Find(ctx context.Context, f filter.Filter, opts odm.FindOptions) ([]odm.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	c.store.opts.Logger.WithFields(logrus.Fields{
		"collection": c.name,
		"filter":     f.String(),
	}).Debug("memory find")

	docs, err := Select(c.snapshot(), f, opts)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *MemoryCollection) FindOne(ctx context.Context, f filter.Filter) (odm.Document, error) {
	docs, err := c.Find(ctx, f, odm.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, odm.ErrNotFound
	}
	return docs[0], nil
}

func (c *MemoryCollection) Count(ctx context.Context, f filter.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := f.Validate(); err != nil {
		return 0, err
	}
	count := int64(0)
	for _, doc := range c.snapshot() {
		if matchNode(f, doc, scopePlain) {
			count++
		}
	}
	return count, nil
}

func (c *MemoryCollection) snapshot() []odm.Document {
	data := c.store.data(c.name, false)
	if data == nil {
		return nil
	}
	data.mu.RLock()
	defer data.mu.RUnlock()
	out := make([]odm.Document, 0, len(data.docs))
	for _, doc := range data.docs {
		out = append(out, doc.Clone())
	}
	return out
}

func (c *MemoryCollection) String() string {
	return fmt.Sprintf("memory:%s", c.name)
}
