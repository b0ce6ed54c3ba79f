package cmd

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/zimmed/zimmed-core/internal/datamodel"
	"github.com/zimmed/zimmed-core/internal/phonebook"
	"github.com/zimmed/zimmed-core/internal/templates"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Work with YAML rule schemas",
}

var schemaValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check that a schema file resolves against the built-in transforms",
	Long: `Parse a YAML schema and resolve every rule's constraint and transform.

Schema format:
  version: "1"
  kinds:
    phone_record:
      fields:
        firstname: {binding: name, constraint: string, transform: first_name}
        number: {binding: number, constraint: string}

Built-in transforms: identity, kind, first_name, last_name, record_id, count.
Without a file the embedded schemas are validated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			for _, name := range templates.SchemaNames() {
				if err := validateSchema(cmd.OutOrStdout(), templates.SchemaFS(), name, "builtin:"+name); err != nil {
					return err
				}
			}
			return nil
		}
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		return validateSchema(cmd.OutOrStdout(), os.DirFS(filepath.Dir(path)), filepath.Base(path), args[0])
	},
}

// validateSchema resolves the schema at name in fsys and lists its rules.
func validateSchema(out io.Writer, fsys fs.FS, name, label string) error {
	kinds, err := datamodel.LoadSchema(fsys, name, phonebook.Catalog())
	if err != nil {
		return err
	}

	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	slices.Sort(names)
	for _, kind := range names {
		rules := kinds[kind]
		fmt.Fprintln(out, headerStyle.Render(kind))
		for _, field := range rules.Fields() {
			spec, err := datamodel.EncodeRule(rules[field])
			if err != nil {
				return fmt.Errorf("kind %q field %q: %w", kind, field, err)
			}
			fmt.Fprintf(out, "  %s %s\n", fieldStyle.Render(field), ruleStyle.Render(describeRule(spec)))
		}
	}
	_, err = fmt.Fprintf(out, "%s: %d kinds ok\n", label, len(kinds))
	return err
}

func init() {
	schemaCmd.AddCommand(schemaValidateCmd)
	rootCmd.AddCommand(schemaCmd)
}
