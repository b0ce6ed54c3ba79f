package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/zimmed/zimmed-core/internal/changefeed"
	"github.com/zimmed/zimmed-core/internal/datamodel"
	"github.com/zimmed/zimmed-core/internal/flags"
	"github.com/zimmed/zimmed-core/internal/log"
	"github.com/zimmed/zimmed-core/internal/phonebook"
	"github.com/zimmed/zimmed-core/internal/pubsub"
)

// demoBufferSize keeps a whole demo run in the feed buffers.
const demoBufferSize = 1024

var (
	demoRecords []string
	demoRemove  int
	demoRename  string
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Build a phone book and persist it",
	Long: `Build a phone book from bound controllers and persist it to the database.

Each --record is "Full Name:number". With the autosave flag enabled models are
saved by the change feed, otherwise they are saved once at the end.

Examples:
  zcore demo
  zcore demo --record "Ada Lovelace:555-0100" --rename "Augusta Ada King"
  zcore demo --remove 0`,
	Args: cobra.NoArgs,
	RunE: withEnv(func(ctx context.Context, e *env, cmd *cobra.Command, _ []string) error {
		return runDemo(ctx, e, cmd.OutOrStdout())
	}),
}

func init() {
	demoCmd.Flags().StringArrayVarP(&demoRecords, "record", "r",
		[]string{"Ada Lovelace:555-0100", "Alan Turing:555-0101", "Grace Hopper:555-0102"},
		`record to add as "Full Name:number" (repeatable)`)
	demoCmd.Flags().IntVar(&demoRemove, "remove", -1, "index of a record to remove after adding")
	demoCmd.Flags().StringVar(&demoRename, "rename", "", "new name for the first record")
	rootCmd.AddCommand(demoCmd)
}

// channelSubscriber hands out a subscription taken before any publish.
type channelSubscriber[T any] <-chan pubsub.Event[T]

func (c channelSubscriber[T]) Subscribe(context.Context) <-chan pubsub.Event[T] { return c }

// lockedWriter serializes writes from the change log goroutine.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func runDemo(ctx context.Context, e *env, w io.Writer) error {
	out := &lockedWriter{w: w}
	feed := pubsub.NewBrokerWithBuffer[changefeed.Change](demoBufferSize)
	saved := pubsub.NewBrokerWithBuffer[changefeed.Change](demoBufferSize)
	autosave := e.flags.Enabled(flags.FlagAutosave)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var done chan struct{}
	if autosave {
		events := channelSubscriber[changefeed.Change](feed.Subscribe(runCtx))
		saver := changefeed.NewAutosaver(e.repo,
			changefeed.WithDebounce(e.cfg.Watch.AutosaveDebounce),
			changefeed.WithSavedPublisher(saved),
		)
		done = make(chan struct{})
		go func() {
			defer close(done)
			saver.Run(runCtx, events)
		}()
	}
	var logged chan struct{}
	if e.flags.Enabled(flags.FlagChangeLog) {
		changes := feed.Subscribe(runCtx)
		var saves <-chan pubsub.Event[changefeed.Change]
		if autosave {
			saves = saved.Subscribe(runCtx)
		}
		logged = make(chan struct{})
		go func() {
			defer close(logged)
			printChangeLog(out, changes, saves)
		}()
	}

	book, err := phonebook.NewBook(ctx, e.store)
	if err != nil {
		return err
	}
	if err := track(book, feed); err != nil {
		return err
	}
	for _, spec := range demoRecords {
		name, number, _ := strings.Cut(spec, ":")
		record, err := book.AddRecord(ctx, strings.TrimSpace(name), strings.TrimSpace(number))
		if err != nil {
			return fmt.Errorf("adding %q: %w", spec, err)
		}
		if err := track(record, feed); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s %s\n", addedStyle.Render("+"), record.Name(), mutedStyle.Render(record.Number()))
	}

	// Listens on the records present now.
	if len(book.Records()) > 0 {
		err := book.OnChange("records.firstname", func(m *datamodel.Model, _ string, _ *datamodel.Instruction, args ...any) {
			first, _ := m.Get("firstname")
			fmt.Fprintf(out, "%v%s\n", first, fmt.Sprint(args...))
		}, " has been updated!")
		if err != nil {
			return err
		}
	}

	if demoRename != "" {
		records := book.Records()
		if len(records) == 0 {
			return fmt.Errorf("--rename needs at least one record")
		}
		if err := records[0].SetName(demoRename); err != nil {
			return err
		}
	}
	if demoRemove >= 0 {
		removed, err := book.RemoveRecord(demoRemove)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", removedStyle.Render("-"), removed.Name())
	}

	if autosave {
		feed.Close()
		<-done
		saved.Close()
		log.Info(log.CatFeed, "demo autosave finished", "book", book.ID())
	} else {
		if err := book.SaveAll(ctx); err != nil {
			return err
		}
		feed.Close()
	}
	if logged != nil {
		<-logged
	}

	size, _ := book.Model().Get("size")
	fmt.Fprintf(out, "%s %s with %v records\n", headerStyle.Render("saved"), book.ID(), size)
	fmt.Fprintf(out, "%s\n", mutedStyle.Render("zcore models show phone_book "+book.ID()))
	return nil
}

// printChangeLog writes feed and saved events until both channels close.
// A nil channel counts as closed.
func printChangeLog(w io.Writer, changes, saves <-chan pubsub.Event[changefeed.Change]) {
	for changes != nil || saves != nil {
		var ev pubsub.Event[changefeed.Change]
		var ok bool
		select {
		case ev, ok = <-changes:
			if !ok {
				changes = nil
				continue
			}
		case ev, ok = <-saves:
			if !ok {
				saves = nil
				continue
			}
		}
		c := ev.Payload
		fmt.Fprintf(w, "%s %s/%s %s %s\n", mutedStyle.Render(string(ev.Type)), c.Kind, c.ID, c.Field, mutedStyle.Render(c.Instruction.String()))
	}
}

// track publishes ctrl's changes and dispatches its current state once so
// the feed sees every field.
func track(ctrl datamodel.Controller, feed pubsub.Publisher[changefeed.Change]) error {
	if err := changefeed.Attach(ctrl, feed); err != nil {
		return err
	}
	return datamodel.BaseOf(ctrl).Refresh()
}
