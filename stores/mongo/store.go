// Package mongo is an odm.Store backed by MongoDB.
package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/tsanga/musty/odm"
)

// StoreOptions configures MongoStore behavior.
type StoreOptions struct {
	Logger logrus.FieldLogger
}

// DefaultStoreOptions returns the defaults used for zero fields.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{Logger: logrus.StandardLogger()}
}

// ClientOptions configures Connect.
type ClientOptions struct {
	URI                    string
	MaxPoolSize            uint64
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
}

// MongoStore implements odm.Store over a database handle.
type MongoStore struct {
	db   *mongo.Database
	opts StoreOptions
}

var _ odm.Store = (*MongoStore)(nil)

// Connect opens a client and verifies it against the primary.
func Connect(ctx context.Context, cfg ClientOptions) (*mongo.Client, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, fmt.Errorf("mongo: empty connection URI")
	}
	clientOptions := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		clientOptions.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.ConnectTimeout > 0 {
		clientOptions.SetConnectTimeout(cfg.ConnectTimeout)
	}
	if cfg.ServerSelectionTimeout > 0 {
		clientOptions.SetServerSelectionTimeout(cfg.ServerSelectionTimeout)
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	return client, nil
}

// NewStore creates a MongoDB-backed document store.
func NewStore(db *mongo.Database, opts StoreOptions) (*MongoStore, error) {
	if db == nil {
		return nil, fmt.Errorf("nil mongo database")
	}
	if opts.Logger == nil {
		opts.Logger = DefaultStoreOptions().Logger
	}
	return &MongoStore{db: db, opts: opts}, nil
}

// Collection returns a handle to a collection without checks.
func (s *MongoStore) Collection(name string) odm.Collection {
	name = strings.TrimSpace(name)
	return &MongoCollection{store: s, name: name, coll: s.db.Collection(name)}
}

// EnsureCollection creates the collection when it does not exist.
func (s *MongoStore) EnsureCollection(ctx context.Context, name string) (odm.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is empty", odm.ErrSchemaMismatch)
	}
	names, err := s.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	if len(names) == 0 {
		if err := s.db.CreateCollection(ctx, name); err != nil {
			return nil, fmt.Errorf("create collection %q: %w", name, err)
		}
		s.opts.Logger.WithField("collection", name).Info("created mongo collection")
	}
	return s.Collection(name), nil
}
