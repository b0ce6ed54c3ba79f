package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zimmed/zimmed-core/internal/datamodel"
	"github.com/zimmed/zimmed-core/internal/store"
)

type seed struct {
	typ   *datamodel.Type
	id    string
	attrs map[string]any
}

// Builder accumulates controllers and persists their models.
type Builder struct {
	t     *testing.T
	repo  store.ModelRepository
	seeds []seed
	docs  []*datamodel.Document
}

// NewBuilder creates a builder writing to repo.
func NewBuilder(t *testing.T, repo store.ModelRepository) *Builder {
	t.Helper()
	return &Builder{t: t, repo: repo}
}

// WithController adds a detached controller of typ with the given id.
func (b *Builder) WithController(typ *datamodel.Type, id string, attrs map[string]any) *Builder {
	b.seeds = append(b.seeds, seed{typ: typ, id: id, attrs: attrs})
	return b
}

// WithDocument adds a raw document, saved as is.
func (b *Builder) WithDocument(doc *datamodel.Document) *Builder {
	b.docs = append(b.docs, doc)
	return b
}

// Build derives every controller and saves the resulting documents in the
// order they were added, raw documents last. It returns the saved documents.
func (b *Builder) Build() []*datamodel.Document {
	b.t.Helper()
	ctx := context.Background()

	saved := make([]*datamodel.Document, 0, len(b.seeds)+len(b.docs))
	for _, s := range b.seeds {
		attrs := make(map[string]any, len(s.attrs)+1)
		for k, v := range s.attrs {
			attrs[k] = v
		}
		attrs[datamodel.FieldUID] = s.id

		ctrl, err := s.typ.New(ctx, nil, attrs)
		require.NoError(b.t, err, "building %s/%s", s.typ.Kind(), s.id)
		doc, err := datamodel.NewDocument(s.typ.Kind(), ctrl.Model())
		require.NoError(b.t, err)
		saved = append(saved, doc)
	}
	saved = append(saved, b.docs...)

	for _, doc := range saved {
		require.NoError(b.t, b.repo.Save(ctx, doc), "saving %s/%s", doc.Kind, doc.ID)
	}
	return saved
}
