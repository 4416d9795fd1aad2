// Package memory is an in-process odm.Store. Its Match function is the
// reference evaluator for filter trees.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tsanga/musty/id"
	"github.com/tsanga/musty/odm"
)

// StoreOptions configures MemoryStore behavior.
type StoreOptions struct {
	Logger logrus.FieldLogger
	// NewID generates identifiers for documents saved without one.
	NewID func() string
}

// DefaultStoreOptions returns the defaults used for zero fields.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{
		Logger: logrus.StandardLogger(),
		NewID:  func() string { return id.New().String() },
	}
}

// MemoryStore implements odm.Store in memory. It is safe for concurrent use.
type MemoryStore struct {
	opts StoreOptions

	mu          sync.RWMutex
	collections map[string]*collectionData
}

type collectionData struct {
	mu   sync.RWMutex
	docs map[string]odm.Document
}

var _ odm.Store = (*MemoryStore)(nil)

func NewStore(opts StoreOptions) *MemoryStore {
	return &MemoryStore{opts: opts.withDefaults(), collections: map[string]*collectionData{}}
}

// Collection returns a handle to a collection, creating it on first write.
func (s *MemoryStore) Collection(name string) odm.Collection {
	return &MemoryCollection{store: s, name: strings.TrimSpace(name)}
}

func (s *MemoryStore) EnsureCollection(ctx context.Context, name string) (odm.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is empty", odm.ErrSchemaMismatch)
	}
	s.data(name, true)
	return s.Collection(name), nil
}

// Drop removes a collection and its documents.
func (s *MemoryStore) Drop(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
}

func (s *MemoryStore) data(name string, create bool) *collectionData {
	s.mu.RLock()
	data, ok := s.collections[name]
	s.mu.RUnlock()
	if ok || !create {
		return data
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if data, ok := s.collections[name]; ok {
		return data
	}
	data = &collectionData{docs: map[string]odm.Document{}}
	s.collections[name] = data
	return data
}

func (s StoreOptions) withDefaults() StoreOptions {
	defaults := DefaultStoreOptions()
	if s.Logger == nil {
		s.Logger = defaults.Logger
	}
	if s.NewID == nil {
		s.NewID = defaults.NewID
	}
	return s
}
