package datamodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// RuleSpec is the serialized form of a Rule.
type RuleSpec struct {
	Root       bool     `json:"root,omitempty" yaml:"root,omitempty"`
	Binding    []string `json:"binding,omitempty" yaml:"binding,omitempty"`
	Constraint string   `json:"constraint,omitempty" yaml:"constraint,omitempty"`
	Transform  string   `json:"transform,omitempty" yaml:"transform,omitempty"`
}

// Document is the persisted form of a Model: its rules plus current values.
type Document struct {
	Kind   string              `json:"kind" yaml:"kind"`
	ID     string              `json:"id" yaml:"id"`
	Rules  map[string]RuleSpec `json:"rules" yaml:"rules"`
	Values map[string]any      `json:"values" yaml:"values"`
}

// EncodeRule serializes r. Rules with unnamed transforms cannot be encoded.
func EncodeRule(r *Rule) (RuleSpec, error) {
	if r.transform.Name == "" {
		return RuleSpec{}, fmt.Errorf("rule bound to %s: inline transforms cannot be serialized", r.binding)
	}
	spec := RuleSpec{
		Root:    r.binding.IsRoot(),
		Binding: slices.Clone(r.binding.attrs),
	}
	if r.constraint != nil {
		spec.Constraint = r.constraint.Name()
	}
	if r.transform.Name != IdentityName {
		spec.Transform = r.transform.Name
	}
	return spec, nil
}

// DecodeRule resolves a RuleSpec against catalog.
func DecodeRule(spec RuleSpec, catalog *Catalog) (*Rule, error) {
	if spec.Root && len(spec.Binding) > 0 {
		return nil, fmt.Errorf("rule cannot be both root-bound and bound to %v", spec.Binding)
	}
	if !spec.Root && len(spec.Binding) == 0 {
		return nil, fmt.Errorf("rule needs a binding or root: true")
	}
	constraint, err := catalog.Constraint(spec.Constraint)
	if err != nil {
		return nil, err
	}
	transform, ok := catalog.Transform(spec.Transform)
	if !ok {
		return nil, fmt.Errorf("unknown transform %q", spec.Transform)
	}
	return NewRule(Binding{attrs: slices.Clone(spec.Binding)}, constraint, transform), nil
}

// EncodeRules serializes every rule in rs.
func EncodeRules(rs RuleSet) (map[string]RuleSpec, error) {
	specs := make(map[string]RuleSpec, len(rs))
	for _, field := range rs.Fields() {
		spec, err := EncodeRule(rs[field])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		specs[field] = spec
	}
	return specs, nil
}

// DecodeRules resolves every spec against catalog.
func DecodeRules(specs map[string]RuleSpec, catalog *Catalog) (RuleSet, error) {
	rs := make(RuleSet, len(specs))
	for field, spec := range specs {
		rule, err := DecodeRule(spec, catalog)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		rs[field] = rule
	}
	return rs, nil
}

// NewDocument captures m for persistence under kind. Nested models, alone
// or inside collections, are captured as nested documents.
func NewDocument(kind string, m *Model) (*Document, error) {
	rules, err := EncodeRules(m.rules)
	if err != nil {
		return nil, err
	}
	values := m.Values()
	for field, v := range values {
		if values[field], err = encodeValue(v); err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
	}
	return &Document{
		Kind:   kind,
		ID:     ModelID(m),
		Rules:  rules,
		Values: values,
	}, nil
}

func encodeValue(v any) (any, error) {
	switch val := v.(type) {
	case *Model:
		if val == nil {
			return nil, nil
		}
		kind, _ := val.values[FieldCollection].(string)
		return NewDocument(kind, val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			enc, err := encodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			enc, err := encodeValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = enc
		}
		return out, nil
	default:
		return v, nil
	}
}

// Model rebuilds the stored model without deriving: values are trusted.
// JSON numbers are converted to the numeric type their constraint names and
// nested documents under a "model" constraint become models again.
func (d *Document) Model(catalog *Catalog) (*Model, error) {
	rules, err := DecodeRules(d.Rules, catalog)
	if err != nil {
		return nil, fmt.Errorf("document %s/%s: %w", d.Kind, d.ID, err)
	}
	values := make(map[string]any, len(d.Values))
	for field, v := range d.Values {
		var constraint Constraint
		if rule, ok := rules[field]; ok {
			constraint = rule.constraint
		}
		if values[field], err = coerce(v, constraint, catalog); err != nil {
			return nil, fmt.Errorf("document %s/%s field %q: %w", d.Kind, d.ID, field, err)
		}
	}
	return LoadModel(rules, values)
}

// MarshalDocument encodes d as JSON, the storage encoding.
func MarshalDocument(d *Document) ([]byte, error) {
	return json.Marshal(d)
}

// UnmarshalDocument decodes a JSON document. Numbers are kept as
// json.Number until Model resolves them against their constraints.
func UnmarshalDocument(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	if doc.Values == nil {
		doc.Values = map[string]any{}
	}
	return &doc, nil
}

// DecodeValues decodes a JSON object of field values, keeping numbers as
// json.Number for Document.Model.
func DecodeValues(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	values := map[string]any{}
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("decoding values: %w", err)
	}
	return values, nil
}

// coerce converts json.Number values, including collection elements, to
// the Go type the constraint expects, and nested documents to models.
// Unconstrained integral numbers become int, the rest float64.
func coerce(v any, constraint Constraint, catalog *Catalog) (any, error) {
	var elem Constraint
	if c, ok := constraint.(*Collection); ok {
		elem = c.elem
	}
	wantsModel := constraint != nil && constraint.Name() == ModelRef.Name()

	switch val := v.(type) {
	case json.Number:
		return coerceNumber(val, constraint), nil
	case *Document:
		return val.Model(catalog)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			c, err := coerce(item, elem, catalog)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	case map[string]any:
		if wantsModel {
			doc, err := documentFromMap(val)
			if err != nil {
				return nil, err
			}
			return doc.Model(catalog)
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			c, err := coerce(item, elem, catalog)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = c
		}
		return out, nil
	default:
		return v, nil
	}
}

func coerceNumber(val json.Number, constraint Constraint) any {
	name := ""
	if constraint != nil {
		name = constraint.Name()
	}
	switch name {
	case Int64.Name():
		if n, err := val.Int64(); err == nil {
			return n
		}
	case Float.Name():
		if f, err := val.Float64(); err == nil {
			return f
		}
	default:
		if n, err := val.Int64(); err == nil {
			return int(n)
		}
	}
	f, _ := val.Float64()
	return f
}

// documentFromMap reads a nested document decoded as a plain JSON object.
func documentFromMap(raw map[string]any) (*Document, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding nested document: %w", err)
	}
	return UnmarshalDocument(data)
}
