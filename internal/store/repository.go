package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/zimmed/zimmed-core/internal/datamodel"
)

// ErrModelNotFound is returned when no persisted model matches kind and id.
var ErrModelNotFound = errors.New("model not found")

// ModelNotFoundError names the missing model.
type ModelNotFoundError struct {
	Kind string
	ID   string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %s/%s not found", e.Kind, e.ID)
}

func (e *ModelNotFoundError) Is(target error) bool { return target == ErrModelNotFound }

// ModelRepository persists model documents.
type ModelRepository interface {
	// Save inserts or replaces the document stored under its kind and id.
	Save(ctx context.Context, doc *datamodel.Document) error
	// Find returns ModelNotFoundError when nothing is stored.
	Find(ctx context.Context, kind, id string) (*datamodel.Document, error)
	// Delete returns ModelNotFoundError when nothing is stored.
	Delete(ctx context.Context, kind, id string) error
	// List returns the documents of kind ordered by id, or of every kind
	// ordered by kind then id when kind is empty.
	List(ctx context.Context, kind string) ([]*datamodel.Document, error)
}

// MemoryRepository keeps encoded documents in memory.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte
}

var _ ModelRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string]map[string][]byte)}
}

// Save stores a JSON copy of doc so later changes to it are not visible.
func (r *MemoryRepository) Save(_ context.Context, doc *datamodel.Document) error {
	data, err := datamodel.MarshalDocument(doc)
	if err != nil {
		return fmt.Errorf("failed to encode model %s/%s: %w", doc.Kind, doc.ID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	byID, ok := r.docs[doc.Kind]
	if !ok {
		byID = make(map[string][]byte)
		r.docs[doc.Kind] = byID
	}
	byID[doc.ID] = data
	return nil
}

func (r *MemoryRepository) Find(_ context.Context, kind, id string) (*datamodel.Document, error) {
	r.mu.RLock()
	data, ok := r.docs[kind][id]
	r.mu.RUnlock()
	if !ok {
		return nil, &ModelNotFoundError{Kind: kind, ID: id}
	}
	return datamodel.UnmarshalDocument(data)
}

func (r *MemoryRepository) Delete(_ context.Context, kind, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[kind][id]; !ok {
		return &ModelNotFoundError{Kind: kind, ID: id}
	}
	delete(r.docs[kind], id)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, kind string) ([]*datamodel.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := []string{kind}
	if kind == "" {
		kinds = make([]string, 0, len(r.docs))
		for k := range r.docs {
			kinds = append(kinds, k)
		}
		slices.Sort(kinds)
	}

	var docs []*datamodel.Document
	for _, k := range kinds {
		ids := make([]string, 0, len(r.docs[k]))
		for id := range r.docs[k] {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			doc, err := datamodel.UnmarshalDocument(r.docs[k][id])
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}
