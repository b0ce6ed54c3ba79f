package datamodel

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"

	"gopkg.in/yaml.v3"
)

// SchemaFile is the YAML authoring format for rule sets:
//
//	version: "1"
//	kinds:
//	  phone_record:
//	    fields:
//	      name: {binding: name, constraint: string}
//	      display: {binding: [name, number], transform: display}
//	      kind: {root: true, transform: kind}
type SchemaFile struct {
	Version string                `yaml:"version"`
	Kinds   map[string]KindSchema `yaml:"kinds"`
}

// KindSchema declares the fields of one controller kind.
type KindSchema struct {
	Fields map[string]FieldSchema `yaml:"fields"`
}

// FieldSchema is the YAML form of a RuleSpec. Binding accepts a single
// attribute name or a list.
type FieldSchema struct {
	Root       bool        `yaml:"root,omitempty"`
	Binding    StringArray `yaml:"binding,omitempty"`
	Constraint string      `yaml:"constraint,omitempty"`
	Transform  string      `yaml:"transform,omitempty"`
}

// StringArray unmarshals from either a string or a list of strings.
type StringArray []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringArray) UnmarshalYAML(unmarshal func(any) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*s = []string{single}
		return nil
	}

	var multi []string
	if err := unmarshal(&multi); err == nil {
		*s = multi
		return nil
	}

	return errors.New("expected string or list of strings")
}

// Spec converts the field to its wire form.
func (f FieldSchema) Spec() RuleSpec {
	return RuleSpec{
		Root:       f.Root,
		Binding:    slices.Clone(f.Binding),
		Constraint: f.Constraint,
		Transform:  f.Transform,
	}
}

// ParseSchema parses YAML schema data and resolves every rule against catalog.
func ParseSchema(data []byte, catalog *Catalog) (map[string]RuleSet, error) {
	var sf SchemaFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse schema YAML: %w", err)
	}
	if len(sf.Kinds) == 0 {
		return nil, fmt.Errorf("schema declares no kinds")
	}

	out := make(map[string]RuleSet, len(sf.Kinds))
	for kind, ks := range sf.Kinds {
		specs := make(map[string]RuleSpec, len(ks.Fields))
		for field, fsch := range ks.Fields {
			specs[field] = fsch.Spec()
		}
		rules, err := DecodeRules(specs, catalog)
		if err != nil {
			return nil, fmt.Errorf("kind %q: %w", kind, err)
		}
		if _, err := newModel(rules); err != nil {
			return nil, fmt.Errorf("kind %q: %w", kind, err)
		}
		out[kind] = rules
	}
	return out, nil
}

// LoadSchema reads a schema file from fsys.
func LoadSchema(fsys fs.FS, path string, catalog *Catalog) (map[string]RuleSet, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	return ParseSchema(data, catalog)
}
