package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/zimmed/zimmed-core/internal/log"
	"github.com/zimmed/zimmed-core/internal/store"
	"github.com/zimmed/zimmed-core/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch <kind> <id>",
	Short: "Print a model's field changes as they are persisted",
	Long: `Watch the database and print a diff of the model's fields each time it
is saved by another zcore process. Stop with Ctrl+C.

Example:
  zcore watch phone_book 0190b6c2-...   # then run zcore demo elsewhere`,
	Args: cobra.ExactArgs(2),
	RunE: withEnv(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return watchModel(ctx, e, args[0], args[1], cmd.OutOrStdout())
	}),
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// watchModel prints the model, then a diff after every database change
// that alters it, until ctx ends.
func watchModel(ctx context.Context, e *env, kind, id string, out io.Writer) error {
	w, err := watcher.New(watcher.Config{DBPath: e.dataPath, Debounce: e.cfg.Watch.Debounce})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()
	changes, err := w.Start()
	if err != nil {
		return err
	}

	prev, err := snapshot(ctx, e, kind, id)
	if err != nil {
		return err
	}
	if prev == "" {
		fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%s/%s not stored yet, waiting", kind, id)))
	} else {
		fmt.Fprint(out, prev)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			next, err := snapshot(ctx, e, kind, id)
			if err != nil {
				log.ErrorErr(log.CatWatcher, "reload failed", err, "kind", kind, "id", id)
				continue
			}
			if diff := diffFields(prev, next); diff != "" {
				fmt.Fprint(out, diff)
			}
			prev = next
		}
	}
}

// snapshot renders the stored model, or "" when it does not exist.
func snapshot(ctx context.Context, e *env, kind, id string) (string, error) {
	doc, err := e.repo.Find(ctx, kind, id)
	if errors.Is(err, store.ErrModelNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return renderPlain(normalize(doc, e.base.Catalog())), nil
}

// diffFields returns the changed lines between two renderings, styled, or
// "" when nothing changed.
func diffFields(prev, next string) string {
	if prev == next {
		return ""
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(prev, next)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			line = strings.TrimSuffix(line, "\n")
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				sb.WriteString(addedStyle.Render("+ "+line) + "\n")
			case diffmatchpatch.DiffDelete:
				sb.WriteString(removedStyle.Render("- "+line) + "\n")
			}
		}
	}
	return sb.String()
}
