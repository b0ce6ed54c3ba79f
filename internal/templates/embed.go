// Package templates embeds the YAML rule schemas shipped with zcore.
package templates

import (
	"embed"
	"io/fs"
	"path"
	"slices"
)

// schemas holds one YAML schema per built-in domain:
//   - schemas/<name>.yaml
//
//go:embed schemas
var schemas embed.FS

// SchemaFS returns the embedded schemas rooted at the schemas directory.
func SchemaFS() fs.FS {
	sub, err := fs.Sub(schemas, "schemas")
	if err != nil {
		panic(err)
	}
	return sub
}

// SchemaNames returns the embedded schema file names, sorted.
func SchemaNames() []string {
	matches, _ := fs.Glob(SchemaFS(), "*.yaml")
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, path.Base(m))
	}
	slices.Sort(names)
	return names
}
