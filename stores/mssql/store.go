// Package mssql is an odm.Store keeping each collection in a SQL Server table
// of JSON documents. Filters are pushed down with OPENJSON where possible and
// evaluated in process otherwise.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tsanga/musty/id"
	"github.com/tsanga/musty/odm"
)

// StoreOptions configures MSSQLStore behavior.
type StoreOptions struct {
	Schema string
	// AutoMigrate repairs a missing doc column or registry row instead of
	// failing with odm.ErrSchemaMismatch.
	AutoMigrate bool
	Logger      logrus.FieldLogger
	NewID       func() string
}

// DefaultStoreOptions returns production-safe defaults.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{
		Schema: "dbo",
		Logger: logrus.StandardLogger(),
		NewID:  func() string { return id.New().String() },
	}
}

// MSSQLStore implements odm.Store using database/sql.
type MSSQLStore struct {
	db   *sql.DB
	opts StoreOptions
}

var _ odm.Store = (*MSSQLStore)(nil)

// NewStore creates a SQL Server-backed document store.
func NewStore(db *sql.DB, opts StoreOptions) (*MSSQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("nil sql db")
	}

	normalized := opts.withDefaults()
	if err := normalized.validate(); err != nil {
		return nil, err
	}

	return &MSSQLStore{db: db, opts: normalized}, nil
}

// Collection returns a handle to a collection without schema checks.
func (s *MSSQLStore) Collection(name string) odm.Collection {
	return s.newCollectionHandle(name)
}

// EnsureCollection creates or validates a collection table and returns its handle.
func (s *MSSQLStore) EnsureCollection(ctx context.Context, name string) (odm.Collection, error) {
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

	return s.newCollectionHandle(name), nil
}

func (s *MSSQLStore) newCollectionHandle(name string) *MSSQLCollection {
	return &MSSQLCollection{
		store: s,
		name:  strings.TrimSpace(name),
	}
}

func (s StoreOptions) withDefaults() StoreOptions {
	defaults := DefaultStoreOptions()
	if strings.TrimSpace(s.Schema) == "" {
		s.Schema = defaults.Schema
	}
	if s.Logger == nil {
		s.Logger = defaults.Logger
	}
	if s.NewID == nil {
		s.NewID = defaults.NewID
	}
	return s
}

func (s StoreOptions) validate() error {
	if strings.TrimSpace(s.Schema) == "" {
		return fmt.Errorf("%w: schema is empty", odm.ErrSchemaMismatch)
	}
	return nil
}
