package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/zimmed/zimmed-core/internal/datamodel"
	"github.com/zimmed/zimmed-core/internal/log"
	"github.com/zimmed/zimmed-core/internal/store"
)

var (
	listKind   string
	showFormat string
	showDump   bool
	showLive   bool
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect persisted models",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted models",
	Long: `List persisted models with their field count and timestamps.

Examples:
  zcore models list
  zcore models list --kind phone_record`,
	Args: cobra.NoArgs,
	RunE: withEnv(func(ctx context.Context, e *env, cmd *cobra.Command, _ []string) error {
		docs, err := e.repo.List(ctx, listKind)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("no models"))
			return err
		}

		tbl := table.New().
			Border(lipgloss.HiddenBorder()).
			BorderTop(false).BorderBottom(false).BorderLeft(false).BorderRight(false).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle.PaddingRight(1)
				}
				return lipgloss.NewStyle().PaddingRight(1)
			}).
			Headers("KIND", "ID", "FIELDS", "CREATED", "UPDATED")
		for _, doc := range docs {
			created, updated, err := e.repo.Timestamps(ctx, doc.Kind, doc.ID)
			if err != nil {
				return err
			}
			tbl.Row(doc.Kind, doc.ID, strconv.Itoa(len(doc.Values)), formatTime(created), formatTime(updated))
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), tbl.Render())
		return err
	}),
}

var modelsShowCmd = &cobra.Command{
	Use:   "show <kind> <id>",
	Short: "Show one persisted model",
	Long: `Show the fields, values and rules of one persisted model.

Examples:
  zcore models show phone_book 0190b6c2-...
  zcore models show phone_record 0190b6c2-... --format yaml
  zcore models show phone_record 0190b6c2-... --format json --dump
  zcore models show phone_book 0190b6c2-... --live`,
	Args: cobra.ExactArgs(2),
	RunE: withEnv(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
		doc, err := showDocument(ctx, e, args[0], args[1], showLive)
		if err != nil {
			return err
		}
		return writeDocument(cmd.OutOrStdout(), doc, showFormat, showDump)
	}),
}

// showDocument reads the stored document, or with live set restores the
// controller through the store and renders its current model.
func showDocument(ctx context.Context, e *env, kind, id string, live bool) (*datamodel.Document, error) {
	if !live {
		doc, err := e.repo.Find(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		return normalize(doc, e.base.Catalog()), nil
	}
	ctrl, err := e.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return datamodel.NewDocument(kind, ctrl.Model())
}

var modelsDeleteCmd = &cobra.Command{
	Use:   "delete <kind> <id>",
	Short: "Delete one persisted model",
	Args:  cobra.ExactArgs(2),
	RunE: withEnv(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
		kind, id := args[0], args[1]
		if t, ok := e.base.Type(kind); ok {
			if err := t.DeleteByID(ctx, e.store, id); err != nil {
				return err
			}
		} else if err := e.repo.Delete(ctx, kind, id); err != nil {
			return err
		}
		log.Info(log.CatStore, "deleted model", "kind", kind, "id", id)
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted %s/%s\n", kind, id)
		return err
	}),
}

func init() {
	modelsListCmd.Flags().StringVarP(&listKind, "kind", "k", "", "only list models of this kind")
	modelsShowCmd.Flags().StringVarP(&showFormat, "format", "f", formatText, "output format: text, yaml or json")
	modelsShowCmd.Flags().BoolVar(&showDump, "dump", false, "append a go-spew dump of the document")
	modelsShowCmd.Flags().BoolVar(&showLive, "live", false, "restore the controller through the store and show its model")

	modelsCmd.AddCommand(modelsListCmd, modelsShowCmd, modelsDeleteCmd)
	rootCmd.AddCommand(modelsCmd)
}

// normalize resolves stored numbers against the rules when the kind's
// transforms are known. Unknown kinds are shown as stored.
func normalize(doc *datamodel.Document, catalog *datamodel.Catalog) *datamodel.Document {
	m, err := doc.Model(catalog)
	if err != nil {
		log.Debug(log.CatStore, "showing raw document", "kind", doc.Kind, "id", doc.ID, "error", err.Error())
		return doc
	}
	out, err := datamodel.NewDocument(doc.Kind, m)
	if err != nil {
		return doc
	}
	return out
}

// withEnv opens the environment around fn and closes it afterwards.
func withEnv(fn func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		e, err := openEnv(cfg)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, e.Close(context.WithoutCancel(ctx)))
		}()

		err = fn(ctx, e, cmd, args)
		if errors.Is(err, store.ErrModelNotFound) {
			fmt.Fprintln(os.Stderr, mutedStyle.Render("hint: zcore models list shows what is stored"))
		}
		return err
	}
}
