package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"
	"gopkg.in/yaml.v3"

	"github.com/zimmed/zimmed-core/internal/datamodel"
)

// Output formats of models show.
const (
	formatText = "text"
	formatYAML = "yaml"
	formatJSON = "json"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#54A0FF"))
	fieldStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#73F59F"))
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#BBBBBB"))
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#73F59F"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8787")).Strikethrough(true)
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

// renderDocument lists every field with its value and rule, one per line,
// sorted by field name.
func renderDocument(doc *datamodel.Document) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(doc.Kind+"/"+doc.ID) + "\n")

	fields := make([]string, 0, len(doc.Values))
	for f := range doc.Values {
		fields = append(fields, f)
	}
	slices.Sort(fields)

	width := 0
	for _, f := range fields {
		width = max(width, lipgloss.Width(f))
	}
	for _, f := range fields {
		name := fieldStyle.Width(width).Render(f)
		fmt.Fprintf(&b, "  %s  %s  %s\n", name, formatValue(doc.Values[f]), ruleStyle.Render(describeRule(doc.Rules[f])))
	}
	return b.String()
}

// renderPlain is renderDocument without styling, used for diffs.
func renderPlain(doc *datamodel.Document) string {
	fields := make([]string, 0, len(doc.Values))
	for f := range doc.Values {
		fields = append(fields, f)
	}
	slices.Sort(fields)

	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "%s = %s\n", f, formatValue(doc.Values[f]))
	}
	return b.String()
}

func describeRule(spec datamodel.RuleSpec) string {
	binding := "root"
	if !spec.Root {
		binding = strings.Join(spec.Binding, ",")
	}
	parts := []string{"<- " + binding}
	if spec.Constraint != "" {
		parts = append(parts, spec.Constraint)
	}
	if spec.Transform != "" {
		parts = append(parts, "via "+spec.Transform)
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func formatValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// writeDocument writes doc in format. With dump, a go-spew dump of the
// decoded document follows.
func writeDocument(w io.Writer, doc *datamodel.Document, format string, dump bool) error {
	switch format {
	case formatText, "":
		if _, err := io.WriteString(w, renderDocument(doc)); err != nil {
			return err
		}
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return err
		}
	case formatJSON:
		data, err := datamodel.MarshalDocument(doc)
		if err != nil {
			return err
		}
		var out bytes.Buffer
		if err := json.Indent(&out, data, "", "  "); err != nil {
			return err
		}
		out.WriteByte('\n')
		if _, err := w.Write(out.Bytes()); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q (expected %s, %s or %s)", format, formatText, formatYAML, formatJSON)
	}

	if dump {
		cfg := spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true}
		_, err := io.WriteString(w, cfg.Sdump(doc))
		return err
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
