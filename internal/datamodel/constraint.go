package datamodel

import (
	"fmt"
	"reflect"
	"strings"
)

// Constraint restricts the values a Rule may store.
// Name is the descriptor used when rules are serialized.
type Constraint interface {
	Name() string
	Check(v any) bool
}

type typeConstraint[T any] struct {
	name string
}

// TypeOf returns a Constraint satisfied by values assignable to T.
// If name is empty the Go type name is used as descriptor.
func TypeOf[T any](name string) Constraint {
	if name == "" {
		name = reflect.TypeFor[T]().String()
	}
	return typeConstraint[T]{name: name}
}

func (c typeConstraint[T]) Name() string { return c.name }

func (c typeConstraint[T]) Check(v any) bool {
	_, ok := v.(T)
	return ok
}

type anyConstraint struct{}

func (anyConstraint) Name() string   { return "any" }
func (anyConstraint) Check(any) bool { return true }

// Built-in scalar constraints.
var (
	String   = TypeOf[string]("string")
	Int      = TypeOf[int]("int")
	Int64    = TypeOf[int64]("int64")
	Float    = TypeOf[float64]("float")
	Bool     = TypeOf[bool]("bool")
	ModelRef = TypeOf[*Model]("model")

	// Any accepts every value, including nil.
	Any Constraint = anyConstraint{}
)

// CollectionKind distinguishes ordered sequences from keyed maps.
type CollectionKind int

const (
	// KindList is an ordered sequence stored as []any.
	KindList CollectionKind = iota + 1
	// KindDict is a keyed map stored as map[string]any.
	KindDict
)

func (k CollectionKind) String() string {
	switch k {
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	default:
		return "unknown"
	}
}

// Collection tags a Rule whose stored value is a list or dict.
// It is metadata only and never holds data itself.
type Collection struct {
	kind CollectionKind
	elem Constraint
}

// List returns an ordered-sequence tag. A nil elem imposes no element check.
func List(elem Constraint) *Collection {
	return &Collection{kind: KindList, elem: elem}
}

// Dict returns a keyed-map tag. A nil elem imposes no value check.
func Dict(elem Constraint) *Collection {
	return &Collection{kind: KindDict, elem: elem}
}

// Kind returns the collection kind.
func (c *Collection) Kind() CollectionKind { return c.kind }

// Elem returns the element constraint, or nil.
func (c *Collection) Elem() Constraint { return c.elem }

// Name returns the descriptor, e.g. "list" or "dict<model>".
func (c *Collection) Name() string {
	if c.elem == nil {
		return c.kind.String()
	}
	return c.kind.String() + "<" + c.elem.Name() + ">"
}

// CheckElem reports whether a single element satisfies the element constraint.
func (c *Collection) CheckElem(v any) bool {
	return c.elem == nil || c.elem.Check(v)
}

// Check reports whether v is a stored collection of the right kind whose
// elements all satisfy the element constraint.
func (c *Collection) Check(v any) bool {
	switch c.kind {
	case KindList:
		items, ok := v.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if !c.CheckElem(item) {
				return false
			}
		}
		return true
	case KindDict:
		items, ok := v.(map[string]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if !c.CheckElem(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// parseConstraint resolves a descriptor produced by Constraint.Name.
func parseConstraint(desc string, scalars map[string]Constraint) (Constraint, error) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return nil, nil
	}
	for _, kind := range []CollectionKind{KindList, KindDict} {
		prefix := kind.String()
		if desc == prefix {
			return &Collection{kind: kind}, nil
		}
		if strings.HasPrefix(desc, prefix+"<") && strings.HasSuffix(desc, ">") {
			inner := desc[len(prefix)+1 : len(desc)-1]
			elem, err := parseConstraint(inner, scalars)
			if err != nil {
				return nil, err
			}
			if _, nested := elem.(*Collection); nested {
				return nil, fmt.Errorf("constraint %q: nested collections are not supported", desc)
			}
			return &Collection{kind: kind, elem: elem}, nil
		}
	}
	c, ok := scalars[desc]
	if !ok {
		return nil, fmt.Errorf("unknown constraint %q", desc)
	}
	return c, nil
}
