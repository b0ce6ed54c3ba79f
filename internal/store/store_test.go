package store_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zimmed/zimmed-core/internal/datamodel"
	"github.com/zimmed/zimmed-core/internal/mocks"
	"github.com/zimmed/zimmed-core/internal/store"
	"github.com/zimmed/zimmed-core/internal/tracing"
)

type contact struct{ *datamodel.Base }

var contactType = datamodel.MustType("contact",
	datamodel.RuleSet{
		"name":  datamodel.NewRule(datamodel.Attr("name"), datamodel.String, datamodel.Identity),
		"tags":  datamodel.NewRule(datamodel.Attr("tags"), datamodel.List(datamodel.String), datamodel.Identity),
		"score": datamodel.NewRule(datamodel.Attr("score"), datamodel.Int, datamodel.Identity),
	},
	func(b *datamodel.Base) datamodel.Controller { return &contact{b} },
	datamodel.WithDefaults(map[string]any{"name": "", "tags": []string{}, "score": 0}),
)

type fixedIDs struct{ ids []string }

func (f *fixedIDs) NewID() string {
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id
}

func newStore(t *testing.T, ids ...string) (*store.Store, *store.MemoryRepository) {
	t.Helper()
	repo := store.NewMemoryRepository()
	opts := store.Options{}
	if len(ids) > 0 {
		opts.IDs = &fixedIDs{ids: ids}
	}
	return store.New(repo, opts), repo
}

func TestStore_NewAllocatesAndCaches(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, "c1")

	c, err := contactType.New(ctx, s, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	require.Equal(t, "c1", c.ID())
	require.Equal(t, []string{"contact:c1"}, s.CachedKeys(ctx))
	require.Equal(t, []string{"contact"}, s.Kinds())

	loaded, err := contactType.Load(ctx, s, "c1")
	require.NoError(t, err)
	require.Same(t, c, loaded, "cached controller is returned as is")
}

func TestStore_SaveAndRestore(t *testing.T) {
	ctx := context.Background()
	s, repo := newStore(t, "c1")

	c, err := contactType.New(ctx, s, map[string]any{"name": "Ada", "tags": []string{"math"}, "score": 7})
	require.NoError(t, err)
	require.NoError(t, datamodel.BaseOf(c).Save(ctx))

	doc, err := repo.Find(ctx, "contact", "c1")
	require.NoError(t, err)
	require.Equal(t, "c1", doc.ID)

	require.NoError(t, contactType.DeleteCacheByID(ctx, s, "c1"))
	require.Empty(t, s.CachedKeys(ctx))

	restored, err := s.Load(ctx, "contact", "c1")
	require.NoError(t, err)
	require.NotSame(t, c, restored)

	m := restored.Model()
	score, _ := m.Get("score")
	require.Equal(t, 7, score, "integral JSON numbers decode as int for int fields")
	tags, _ := m.Get("tags")
	require.Equal(t, []any{"math"}, tags)

	name, ok := restored.Attr("name")
	require.True(t, ok)
	require.Equal(t, "Ada", name, "identity fields hydrate their attribute")

	require.Equal(t, []string{"contact:c1"}, s.CachedKeys(ctx))
}

func TestStore_RestoredControllerStaysReactive(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, "c1")

	c, err := contactType.New(ctx, s, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	require.NoError(t, datamodel.BaseOf(c).Save(ctx))
	require.NoError(t, contactType.DeleteCacheByID(ctx, s, "c1"))

	restored, err := contactType.Load(ctx, s, "c1")
	require.NoError(t, err)

	b := datamodel.BaseOf(restored)
	var got []string
	require.NoError(t, b.OnChange("name", func(m *datamodel.Model, field string, _ *datamodel.Instruction, _ ...any) {
		v, _ := m.Get(field)
		got = append(got, v.(string))
	}))
	require.NoError(t, b.Set("name", "Grace"))
	require.Equal(t, []string{"Grace"}, got)
}

func TestStore_DeleteRemovesCacheAndRepository(t *testing.T) {
	ctx := context.Background()
	s, repo := newStore(t, "c1")

	c, err := contactType.New(ctx, s, nil)
	require.NoError(t, err)
	require.NoError(t, datamodel.BaseOf(c).Save(ctx))

	require.NoError(t, contactType.DeleteByID(ctx, s, "c1"))
	require.Empty(t, s.CachedKeys(ctx))
	_, err = repo.Find(ctx, "contact", "c1")
	require.ErrorIs(t, err, store.ErrModelNotFound)

	_, err = contactType.Load(ctx, s, "c1")
	require.ErrorIs(t, err, store.ErrModelNotFound)
}

func TestStore_LoadUnknownKind(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.Load(context.Background(), "ghost", "g1")
	require.ErrorIs(t, err, store.ErrUnknownKind)
}

func TestStore_RegisterControllerRequiresID(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	c, err := contactType.New(ctx, nil, nil)
	require.NoError(t, err)
	err = s.RegisterController(ctx, contactType, c)
	require.ErrorIs(t, err, datamodel.ErrInvalidOperation)
}

func TestStore_PersistRequiresUID(t *testing.T) {
	s, _ := newStore(t)

	m, err := datamodel.LoadModel(contactType.Rules(), map[string]any{"name": "x"})
	require.NoError(t, err)
	err = s.PersistModel(context.Background(), contactType, m)
	require.ErrorIs(t, err, datamodel.ErrInvalidOperation)
}

func TestStore_PersistPropagatesRepositoryError(t *testing.T) {
	ctx := context.Background()
	repo := mocks.NewMockModelRepository(t)
	boom := errors.New("disk full")
	repo.On("Save", mock.Anything, mock.MatchedBy(func(d *datamodel.Document) bool {
		return d.Kind == "contact" && d.ID == "c1"
	})).Return(boom).Once()

	s := store.New(repo, store.Options{IDs: &fixedIDs{ids: []string{"c1"}}})
	c, err := contactType.New(ctx, s, nil)
	require.NoError(t, err)
	require.ErrorIs(t, datamodel.BaseOf(c).Save(ctx), boom)
}

func TestStore_SkipCacheAlwaysRestores(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	s := store.New(repo, store.Options{SkipCache: true, IDs: &fixedIDs{ids: []string{"c1"}}})

	c, err := contactType.New(ctx, s, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	require.NoError(t, datamodel.BaseOf(c).Save(ctx))

	first, err := contactType.Load(ctx, s, "c1")
	require.NoError(t, err)
	second, err := contactType.Load(ctx, s, "c1")
	require.NoError(t, err)
	require.NotSame(t, first, second)
}

func TestTraced_RecordsSpans(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	provider := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	inner, _ := newStore(t, "c1")
	s := store.NewTraced(inner, provider.Tracer("test"))

	c, err := contactType.New(ctx, s, nil)
	require.NoError(t, err)
	require.NoError(t, datamodel.BaseOf(c).Save(ctx))
	require.NoError(t, contactType.DeleteCacheByID(ctx, s, "c1"))
	_, err = contactType.Load(ctx, s, "c1")
	require.NoError(t, err)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	require.Contains(t, names, tracing.SpanAllocateID)
	require.Contains(t, names, tracing.SpanPersist)
	require.Contains(t, names, tracing.SpanDeleteCached)
	require.Contains(t, names, tracing.SpanGetOrCreate)
	// The restore inside GetOrCreate registers through the decorator.
	registers := 0
	for _, n := range names {
		if n == tracing.SpanRegister {
			registers++
		}
	}
	require.Equal(t, 2, registers)
}

func TestTraced_NilTracerReturnsInner(t *testing.T) {
	inner, _ := newStore(t)
	require.Same(t, inner, store.NewTraced(inner, nil))
}

func TestTraced_RecordsErrors(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	provider := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))

	ms := mocks.NewMockStore(t)
	boom := errors.New("boom")
	ms.On("DeletePersistedModel", mock.Anything, contactType, "c1").Return(boom).Once()

	s := store.NewTraced(ms, provider.Tracer("test"))
	require.ErrorIs(t, s.DeletePersistedModel(ctx, contactType, "c1"), boom)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "Error", spans[0].Status().Code.String())
	require.NotEmpty(t, spans[0].Events(), "error is recorded as an event")
}

func TestStore_MaxDispatchDepthReachesControllers(t *testing.T) {
	ctx := context.Background()
	s := store.New(store.NewMemoryRepository(), store.Options{MaxDispatchDepth: 1})
	traced := store.NewTraced(s, trace.NewTracerProvider().Tracer("test"))
	require.Equal(t, 1, traced.(datamodel.DispatchLimiter).MaxDispatchDepth())

	c, err := contactType.New(ctx, traced, nil)
	require.NoError(t, err)
	b := datamodel.BaseOf(c)

	var nested error
	require.NoError(t, b.OnChange("score", func(*datamodel.Model, string, *datamodel.Instruction, ...any) {
		nested = b.Set("score", 2)
	}))
	require.NoError(t, b.Set("score", 1))
	require.ErrorIs(t, nested, datamodel.ErrRecursionLimit)
}

func TestMemoryRepository_ListOrdering(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	for _, d := range []*datamodel.Document{
		{Kind: "b", ID: "2", Values: map[string]any{"uid": "2"}},
		{Kind: "a", ID: "9", Values: map[string]any{"uid": "9"}},
		{Kind: "b", ID: "1", Values: map[string]any{"uid": "1"}},
	} {
		require.NoError(t, repo.Save(ctx, d))
	}

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	var keys []string
	for _, d := range all {
		keys = append(keys, d.Kind+"/"+d.ID)
	}
	require.Equal(t, []string{"a/9", "b/1", "b/2"}, keys)

	onlyB, err := repo.List(ctx, "b")
	require.NoError(t, err)
	require.Len(t, onlyB, 2)

	none, err := repo.List(ctx, "zzz")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestMemoryRepository_SaveCopies(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	doc := &datamodel.Document{Kind: "k", ID: "1", Values: map[string]any{"name": "before"}}
	require.NoError(t, repo.Save(ctx, doc))
	doc.Values["name"] = "after"

	got, err := repo.Find(ctx, "k", "1")
	require.NoError(t, err)
	require.Equal(t, "before", got.Values["name"])

	var nf *store.ModelNotFoundError
	require.ErrorAs(t, repo.Delete(ctx, "k", "2"), &nf)
	require.Equal(t, "2", nf.ID)
}

func TestIDGenerators(t *testing.T) {
	g, err := store.NewIDGenerator("")
	require.NoError(t, err)
	require.Len(t, g.NewID(), 36)

	g, err = store.NewIDGenerator(store.IDStrategyULID)
	require.NoError(t, err)
	prev := g.NewID()
	for i := 0; i < 100; i++ {
		next := g.NewID()
		require.Len(t, next, 26)
		require.Greater(t, next, prev, "ulids are monotonic")
		prev = next
	}

	_, err = store.NewIDGenerator("snowflake")
	require.Error(t, err)
}

func TestULIDGenerator_DeterministicEntropy(t *testing.T) {
	clock := func() func() time.Time {
		at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		return func() time.Time {
			at = at.Add(time.Millisecond)
			return at
		}
	}
	newGen := func() *store.ULIDGenerator {
		return store.NewULIDGenerator(bytes.NewReader(bytes.Repeat([]byte{0x5a}, 1024))).WithClock(clock())
	}
	a, b := newGen(), newGen()

	prev := ""
	for i := 0; i < 5; i++ {
		id := a.NewID()
		require.Len(t, id, 26)
		require.Greater(t, id, prev)
		require.Equal(t, id, b.NewID(), "same entropy and clock give the same ids")
		prev = id
	}
}

func TestULIDGenerator_SameMillisecondStaysOrdered(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	g := store.NewULIDGenerator(bytes.NewReader(bytes.Repeat([]byte{0x5a}, 1024))).
		WithClock(func() time.Time { return at })

	first := g.NewID()
	second := g.NewID()
	require.Greater(t, second, first)
	require.Equal(t, first[:10], second[:10], "same timestamp prefix")
}
