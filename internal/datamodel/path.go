package datamodel

import (
	"reflect"
	"slices"
	"strings"
)

// PathSeparator splits listener selectors into nested segments.
const PathSeparator = "."

type target struct {
	base  *Base
	field string
}

// resolve expands a selector into concrete (controller, field) pairs
// against the current controller graph. A path whose intermediate segments
// reach no controllers is rejected.
func (b *Base) resolve(selector string) ([]target, error) {
	if selector == "" {
		return nil, &UnknownFieldError{Field: selector}
	}
	segments := strings.Split(selector, PathSeparator)
	scopes := []*Base{b}

	for _, seg := range segments[:len(segments)-1] {
		var next []*Base
		for _, scope := range scopes {
			nested, err := scope.descend(selector, seg)
			if err != nil {
				return nil, err
			}
			next = append(next, nested...)
		}
		scopes = next
	}

	last := segments[len(segments)-1]
	// An empty fan-out leaves nothing to check the leaf against.
	if len(scopes) == 0 {
		return nil, &UnknownPathSegmentError{Path: selector, Segment: last, Reason: "no controllers in scope"}
	}
	var targets []target
	for _, scope := range scopes {
		if last == Wildcard {
			for _, field := range scope.model.fields {
				targets = append(targets, target{base: scope, field: field})
			}
			continue
		}
		if !scope.HasField(last) {
			if len(segments) == 1 {
				return nil, &UnknownFieldError{Field: last}
			}
			return nil, &UnknownPathSegmentError{Path: selector, Segment: last}
		}
		targets = append(targets, target{base: scope, field: last})
	}
	return targets, nil
}

// descend follows one intermediate segment to the controllers it references.
func (b *Base) descend(path, seg string) ([]*Base, error) {
	rule, ok := b.typ.rules[seg]
	if !ok {
		return nil, &UnknownPathSegmentError{Path: path, Segment: seg}
	}
	if rule.binding.IsMulti() {
		return nil, &UnknownPathSegmentError{Path: path, Segment: seg, Reason: "multi-bound fields cannot be traversed"}
	}
	if rule.binding.IsRoot() {
		return nil, &UnknownPathSegmentError{Path: path, Segment: seg, Reason: "root-bound fields cannot be traversed"}
	}
	v, err := b.PropForKey(seg)
	if err != nil {
		return nil, err
	}
	ctrls, ok := controllersIn(v)
	if !ok {
		return nil, &UnknownPathSegmentError{Path: path, Segment: seg, Reason: "value is not a controller or collection of controllers"}
	}
	bases := make([]*Base, 0, len(ctrls))
	for _, c := range ctrls {
		bases = append(bases, c.base())
	}
	return bases, nil
}

// controllersIn returns v as a controller, or the elements of a slice,
// array or string-keyed map of controllers (maps in key order). Nil
// elements are skipped.
func controllersIn(v any) ([]Controller, bool) {
	if c, ok := v.(Controller); ok {
		if isNil(c) {
			return nil, false
		}
		return []Controller{c}, true
	}
	if v == nil {
		return nil, false
	}

	rv := reflect.ValueOf(v)
	var elems []reflect.Value
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := range rv.Len() {
			elems = append(elems, rv.Index(i))
		}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		keys := rv.MapKeys()
		slices.SortFunc(keys, func(a, b reflect.Value) int { return strings.Compare(a.String(), b.String()) })
		for _, k := range keys {
			elems = append(elems, rv.MapIndex(k))
		}
	default:
		return nil, false
	}

	ctrls := make([]Controller, 0, len(elems))
	for _, elem := range elems {
		if !elem.IsValid() || ((elem.Kind() == reflect.Interface || elem.Kind() == reflect.Pointer) && elem.IsNil()) {
			continue
		}
		c, ok := elem.Interface().(Controller)
		if !ok || isNil(c) {
			return nil, false
		}
		ctrls = append(ctrls, c)
	}
	return ctrls, true
}

func isNil(c Controller) bool {
	rv := reflect.ValueOf(c)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
