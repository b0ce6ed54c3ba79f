package changefeed_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zimmed/zimmed-core/internal/changefeed"
	"github.com/zimmed/zimmed-core/internal/datamodel"
	"github.com/zimmed/zimmed-core/internal/mocks"
	"github.com/zimmed/zimmed-core/internal/pubsub"
	"github.com/zimmed/zimmed-core/internal/store"
)

type note struct{ *datamodel.Base }

var noteType = datamodel.MustType("note",
	datamodel.RuleSet{
		"title": datamodel.NewRule(datamodel.Attr("title"), datamodel.String, datamodel.Identity),
		"tags":  datamodel.NewRule(datamodel.Attr("tags"), datamodel.List(datamodel.String), datamodel.Identity),
	},
	func(b *datamodel.Base) datamodel.Controller { return &note{b} },
	datamodel.WithDefaults(map[string]any{"title": "", "tags": []string{}}),
)

var shoutType = datamodel.MustType("shout",
	datamodel.RuleSet{
		"text": datamodel.NewRule(datamodel.Attr("text"), datamodel.String, datamodel.Inline(func(v any) any {
			s, _ := v.(string)
			return strings.ToUpper(s)
		})),
	},
	func(b *datamodel.Base) datamodel.Controller { return &note{b} },
	datamodel.WithDefaults(map[string]any{"text": ""}),
)

func newNote(t *testing.T, s datamodel.Store) *note {
	t.Helper()
	c, err := noteType.New(context.Background(), s, map[string]any{"title": "draft"})
	require.NoError(t, err)
	return c.(*note)
}

func next(t *testing.T, ch <-chan pubsub.Event[changefeed.Change]) pubsub.Event[changefeed.Change] {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok)
		return e
	case <-time.After(2 * time.Second):
		require.Fail(t, "timeout waiting for change")
	}
	return pubsub.Event[changefeed.Change]{}
}

// nextField skips events for other fields. Every write also dispatches the
// root-bound _collection field.
func nextField(t *testing.T, ch <-chan pubsub.Event[changefeed.Change], field string) pubsub.Event[changefeed.Change] {
	t.Helper()
	for {
		e := next(t, ch)
		if e.Payload.Field == field {
			return e
		}
	}
}

func TestAttach_PublishesChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := store.New(store.NewMemoryRepository(), store.Options{})
	n := newNote(t, s)

	broker := pubsub.NewBroker[changefeed.Change]()
	defer broker.Close()
	events := broker.Subscribe(ctx)
	require.NoError(t, changefeed.Attach(n, broker))

	require.NoError(t, n.Set("title", "final"))
	e := next(t, events)
	require.Equal(t, datamodel.FieldCollection, e.Payload.Field)
	require.Equal(t, "final", e.Payload.Values()["title"])

	e = next(t, events)
	require.Equal(t, pubsub.UpdatedEvent, e.Type)
	require.Equal(t, "note", e.Payload.Kind)
	require.Equal(t, n.ID(), e.Payload.ID)
	require.Equal(t, "title", e.Payload.Field)
	require.Nil(t, e.Payload.Instruction)
	require.Equal(t, "final", e.Payload.Values()["title"])

	require.NoError(t, n.Mutate("tags", []string{"go"}, datamodel.Append("go")))
	e = nextField(t, events, "tags")
	require.Equal(t, datamodel.ActionAppend, e.Payload.Instruction.Action)
	require.Equal(t, []any{"go"}, e.Payload.Values()["tags"])
}

func TestAttach_SnapshotIsIsolated(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := newNote(t, nil)
	broker := pubsub.NewBroker[changefeed.Change]()
	defer broker.Close()
	events := broker.Subscribe(ctx)
	require.NoError(t, changefeed.Attach(n, broker))

	require.NoError(t, n.Set("title", "one"))
	require.NoError(t, n.Set("title", "two"))

	require.Equal(t, "one", nextField(t, events, "title").Payload.Values()["title"])
	require.Equal(t, "two", nextField(t, events, "title").Payload.Values()["title"])
}

func TestAttach_InlineTransformHasNoSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := shoutType.New(ctx, nil, map[string]any{"uid": "s1"})
	require.NoError(t, err)

	broker := pubsub.NewBroker[changefeed.Change]()
	defer broker.Close()
	events := broker.Subscribe(ctx)
	require.NoError(t, changefeed.Attach(c, broker))

	require.NoError(t, datamodel.BaseOf(c).Set("text", "hey"))
	e := next(t, events)
	require.Equal(t, "s1", e.Payload.ID)
	require.Nil(t, e.Payload.Document)
	require.Nil(t, e.Payload.Values())
}

func TestAutosaver_SavesLatestSnapshotOfBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := store.NewMemoryRepository()
	s := store.New(repo, store.Options{})
	n := newNote(t, s)

	broker := pubsub.NewBroker[changefeed.Change]()
	defer broker.Close()
	saved := broker.Subscribe(ctx)

	autosaver := changefeed.NewAutosaver(repo,
		changefeed.WithDebounce(20*time.Millisecond),
		changefeed.WithSavedPublisher(broker),
	)
	done := make(chan struct{})
	go func() {
		autosaver.Run(ctx, broker)
		close(done)
	}()
	require.Eventually(t, func() bool { return broker.SubscriberCount() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, changefeed.Attach(n, broker))
	for _, title := range []string{"a", "b", "c"} {
		require.NoError(t, n.Set("title", title))
	}

	var savedEvent pubsub.Event[changefeed.Change]
	for savedEvent.Type != pubsub.SavedEvent {
		savedEvent = next(t, saved)
	}
	require.Equal(t, "c", savedEvent.Payload.Values()["title"])

	doc, err := repo.Find(ctx, "note", n.ID())
	require.NoError(t, err)
	require.Equal(t, "c", doc.Values["title"])

	cancel()
	<-done
}

func TestAutosaver_FlushesOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	repo := store.NewMemoryRepository()
	n := newNote(t, store.New(repo, store.Options{}))
	broker := pubsub.NewBroker[changefeed.Change]()
	defer broker.Close()

	autosaver := changefeed.NewAutosaver(repo, changefeed.WithDebounce(time.Hour))
	done := make(chan struct{})
	go func() {
		autosaver.Run(ctx, broker)
		close(done)
	}()
	require.Eventually(t, func() bool { return broker.SubscriberCount() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, changefeed.Attach(n, broker))
	require.NoError(t, n.Set("title", "pending"))

	// Buffered events are still drained after the subscription closes.
	cancel()
	<-done

	doc, err := repo.Find(context.Background(), "note", n.ID())
	require.NoError(t, err)
	require.Equal(t, "pending", doc.Values["title"])
}

func TestAutosaver_RepositoryErrorKeepsRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Each Set dispatches title and _collection, so each note may be saved
	// more than once.
	repo := mocks.NewMockModelRepository(t)
	repo.On("Save", mock.Anything, mock.MatchedBy(func(d *datamodel.Document) bool { return d.ID == "n1" })).
		Return(errors.New("locked"))
	repo.On("Save", mock.Anything, mock.MatchedBy(func(d *datamodel.Document) bool { return d.ID == "n2" })).
		Return(nil)

	broker := pubsub.NewBroker[changefeed.Change]()
	defer broker.Close()
	saved := broker.Subscribe(ctx)

	autosaver := changefeed.NewAutosaver(repo, changefeed.WithDebounce(0), changefeed.WithSavedPublisher(broker))
	go autosaver.Run(ctx, broker)
	require.Eventually(t, func() bool { return broker.SubscriberCount() == 2 }, time.Second, time.Millisecond)

	for _, id := range []string{"n1", "n2"} {
		c, err := noteType.New(ctx, nil, map[string]any{"uid": id})
		require.NoError(t, err)
		require.NoError(t, changefeed.Attach(c, broker))
		require.NoError(t, datamodel.BaseOf(c).Set("title", id))
	}

	var savedEvent pubsub.Event[changefeed.Change]
	for savedEvent.Type != pubsub.SavedEvent {
		savedEvent = next(t, saved)
	}
	require.Equal(t, "n2", savedEvent.Payload.ID, "only the successful save is announced")
}
