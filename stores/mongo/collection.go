package mongo

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tsanga/musty/filter"
	"github.com/tsanga/musty/odm"
)

// MongoCollection is a MongoDB-backed document collection.
type MongoCollection struct {
	store *MongoStore
	name  string
	coll  *mongo.Collection
}

func (c *MongoCollection) Name() string {
	return c.name
}

// Save replaces the document with the same _id, inserting it when absent.
// Documents without an identifier get a new ObjectID.
func (c *MongoCollection) Save(ctx context.Context, doc odm.Document) (string, error) {
	docID, payload, err := prepare(doc)
	if err != nil {
		return "", err
	}
	_, err = c.coll.ReplaceOne(ctx,
		bson.D{{Key: odm.IDField, Value: identifier(docID)}},
		payload,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return "", err
	}
	return docID, nil
}

// SaveMany upserts docs with one ordered bulk write.
func (c *MongoCollection) SaveMany(ctx context.Context, docs []odm.Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(docs))
	models := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		docID, payload, err := prepare(doc)
		if err != nil {
			return nil, err
		}
		ids = append(ids, docID)
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: odm.IDField, Value: identifier(docID)}}).
			SetReplacement(payload).
			SetUpsert(true))
	}
	if _, err := c.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *MongoCollection) Get(ctx context.Context, docID string) (odm.Document, error) {
	var raw bson.M
	err := c.coll.FindOne(ctx, bson.D{{Key: odm.IDField, Value: identifier(docID)}}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, odm.ErrNotFound
		}
		return nil, err
	}
	return fromBSON(raw), nil
}

func (c *MongoCollection) Delete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make(bson.A, 0, len(ids))
	for _, docID := range ids {
		keys = append(keys, identifier(docID))
	}
	result, err := c.coll.DeleteMany(ctx, bson.D{{Key: odm.IDField, Value: bson.D{{Key: "$in", Value: keys}}}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (c *MongoCollection) Find(ctx context.Context, f filter.Filter, opts odm.FindOptions) ([]odm.Document, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	query, err := Lower(f)
	if err != nil {
		return nil, err
	}
	c.logQuery("find", query)

	findOptions := options.Find().SetSort(sortDocument(opts.SortOrDefault()))
	if opts.Skip > 0 {
		findOptions.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOptions.SetLimit(opts.Limit)
	}

	cursor, err := c.coll.Find(ctx, query, findOptions)
	if err != nil {
		return nil, err
	}
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}
	out := make([]odm.Document, 0, len(raw))
	for _, item := range raw {
		out = append(out, fromBSON(item))
	}
	return out, nil
}

func (c *MongoCollection) FindOne(ctx context.Context, f filter.Filter) (odm.Document, error) {
	docs, err := c.Find(ctx, f, odm.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, odm.ErrNotFound
	}
	return docs[0], nil
}

func (c *MongoCollection) Count(ctx context.Context, f filter.Filter) (int64, error) {
	query, err := Lower(f)
	if err != nil {
		return 0, err
	}
	c.logQuery("count", query)
	return c.coll.CountDocuments(ctx, query)
}

func (c *MongoCollection) logQuery(op string, query bson.D) {
	logger := c.store.opts.Logger
	if logger == nil {
		return
	}
	entry := logger.WithFields(logrus.Fields{"collection": c.name, "op": op})
	if raw, err := bson.MarshalExtJSON(query, false, false); err == nil {
		entry = entry.WithField("query", string(raw))
	}
	entry.Debug("mongo query")
}

func prepare(doc odm.Document) (string, bson.M, error) {
	docID, err := doc.ResolveID()
	if err != nil {
		return "", nil, err
	}
	if docID == "" {
		docID = primitive.NewObjectID().Hex()
	}
	payload := make(bson.M, len(doc)+1)
	for k, v := range doc {
		payload[k] = v
	}
	payload[odm.IDField] = identifier(docID)
	return docID, payload, nil
}

func sortDocument(fields []odm.SortField) bson.D {
	out := make(bson.D, 0, len(fields))
	for _, f := range fields {
		dir := 1
		if f.Desc {
			dir = -1
		}
		out = append(out, bson.E{Key: f.Field, Value: dir})
	}
	return out
}
