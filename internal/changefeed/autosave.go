package changefeed

import (
	"context"
	"time"

	"github.com/zimmed/zimmed-core/internal/cachemanager"
	"github.com/zimmed/zimmed-core/internal/log"
	"github.com/zimmed/zimmed-core/internal/pubsub"
	"github.com/zimmed/zimmed-core/internal/store"
)

// DefaultDebounce is how long the autosaver waits for a burst to settle.
const DefaultDebounce = 250 * time.Millisecond

// Autosaver persists the latest snapshot of every changed model once a
// burst of changes has settled.
type Autosaver struct {
	repo     store.ModelRepository
	debounce time.Duration
	saved    pubsub.Publisher[Change]
}

// AutosaverOption configures an Autosaver.
type AutosaverOption func(*Autosaver)

// WithDebounce overrides DefaultDebounce. Zero saves after every event.
func WithDebounce(d time.Duration) AutosaverOption {
	return func(a *Autosaver) { a.debounce = d }
}

// WithSavedPublisher publishes a SavedEvent for each persisted snapshot.
func WithSavedPublisher(pub pubsub.Publisher[Change]) AutosaverOption {
	return func(a *Autosaver) { a.saved = pub }
}

func NewAutosaver(repo store.ModelRepository, opts ...AutosaverOption) *Autosaver {
	a := &Autosaver{repo: repo, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run consumes sub until ctx is cancelled or the subscription closes, then
// flushes what is pending. Only UpdatedEvents with a snapshot are saved.
func (a *Autosaver) Run(ctx context.Context, sub pubsub.Subscriber[Change]) {
	events := sub.Subscribe(ctx)
	pending := make(map[string]Change)

	var timer *time.Timer
	timerC := func() <-chan time.Time {
		if timer == nil {
			return nil
		}
		return timer.C
	}

	for {
		select {
		case event, ok := <-events:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				a.flush(context.WithoutCancel(ctx), pending)
				return
			}
			if event.Type != pubsub.UpdatedEvent || event.Payload.Document == nil {
				continue
			}
			change := event.Payload
			pending[cachemanager.Key(change.Kind, change.ID)] = change

			if a.debounce <= 0 {
				a.flush(ctx, pending)
				continue
			}
			if timer == nil {
				timer = time.NewTimer(a.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(a.debounce)
			}

		case <-timerC():
			timer = nil
			a.flush(ctx, pending)
		}
	}
}

func (a *Autosaver) flush(ctx context.Context, pending map[string]Change) {
	for key, change := range pending {
		delete(pending, key)
		if change.ID == "" {
			log.Warn(log.CatFeed, "skipping autosave without id", "kind", change.Kind)
			continue
		}
		if err := a.repo.Save(ctx, change.Document); err != nil {
			log.ErrorErr(log.CatFeed, "autosave failed", err, "kind", change.Kind, "id", change.ID)
			continue
		}
		log.Debug(log.CatFeed, "autosaved", "kind", change.Kind, "id", change.ID, "field", change.Field)
		if a.saved != nil {
			a.saved.Publish(pubsub.SavedEvent, change)
		}
	}
}
