// Package postgres is an odm.Store keeping each collection in a table of
// JSONB documents.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/tsanga/musty/id"
	"github.com/tsanga/musty/odm"
)

// StoreOptions configures PostgresStore behavior.
type StoreOptions struct {
	Schema string
	// AutoMigrate adds a missing doc column to existing tables instead of
	// failing with odm.ErrSchemaMismatch.
	AutoMigrate bool
	// IndexDocuments creates a GIN index on the doc column in EnsureCollection.
	IndexDocuments bool
	Logger         logrus.FieldLogger
	NewID          func() string
}

// DefaultStoreOptions returns production-safe defaults.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{
		Schema: "public",
		Logger: logrus.StandardLogger(),
		NewID:  func() string { return id.New().String() },
	}
}

// PostgresStore implements odm.Store using pgxpool.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts StoreOptions
}

var _ odm.Store = (*PostgresStore)(nil)

// NewStore creates a Postgres-backed document store.
func NewStore(pool *pgxpool.Pool, opts StoreOptions) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("nil pgx pool")
	}
	normalized := opts.withDefaults()
	if err := normalized.validate(); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, opts: normalized}, nil
}

// Collection returns a handle to a collection without schema checks.
func (s *PostgresStore) Collection(name string) odm.Collection {
	return s.newCollectionHandle(strings.TrimSpace(name))
}

// EnsureCollection creates or validates a collection table and returns its handle.
func (s *PostgresStore) EnsureCollection(ctx context.Context, name string) (odm.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is empty", odm.ErrSchemaMismatch)
	}
	if err := s.ensureBaseSchema(ctx); err != nil {
		return nil, err
	}
	if err := s.ensureTableWithValidation(ctx, name); err != nil {
		return nil, err
	}
	coll := s.newCollectionHandle(name)
	if s.opts.IndexDocuments {
		if err := coll.EnsureIndex(ctx, IndexOptions{}); err != nil {
			return nil, err
		}
	}
	return coll, nil
}

func (s *PostgresStore) ensureTableWithValidation(ctx context.Context, tableName string) error {
	exists, err := s.tableExists(ctx, tableName)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.createCollectionTable(ctx, tableName); err != nil {
			return err
		}
		s.opts.Logger.WithFields(logrus.Fields{"schema": s.opts.Schema, "collection": tableName}).
			Info("created postgres collection table")
		return nil
	}
	return s.validateCollectionSchema(ctx, tableName)
}

func (s *PostgresStore) newCollectionHandle(name string) *PostgresCollection {
	return &PostgresCollection{store: s, name: name}
}

func (o StoreOptions) withDefaults() StoreOptions {
	defaults := DefaultStoreOptions()
	if strings.TrimSpace(o.Schema) == "" {
		o.Schema = defaults.Schema
	}
	if o.Logger == nil {
		o.Logger = defaults.Logger
	}
	if o.NewID == nil {
		o.NewID = defaults.NewID
	}
	return o
}

func (o StoreOptions) validate() error {
	if strings.TrimSpace(o.Schema) == "" {
		return fmt.Errorf("%w: schema is empty", odm.ErrSchemaMismatch)
	}
	return nil
}
