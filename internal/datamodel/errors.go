package datamodel

import (
	"errors"
	"fmt"
)

// ===========================================================================
// Error Sentinel Values
// ===========================================================================

// ErrUnknownField is returned when a field is not declared in the rule set.
var ErrUnknownField = errors.New("unknown field")

// ErrUnknownPathSegment is returned when dot-path traversal reaches a segment
// that is not a declared field of the controller in scope.
var ErrUnknownPathSegment = errors.New("unknown path segment")

// ErrInvalidInstruction is returned when a collection instruction cannot be
// applied to the field's collection kind.
var ErrInvalidInstruction = errors.New("invalid instruction")

// ErrTypeMismatch is returned when a derived value fails its declared constraint.
var ErrTypeMismatch = errors.New("type mismatch")

// ErrImmutableWrite is returned on any external attempt to mutate a Model.
var ErrImmutableWrite = errors.New("cannot assign to immutable model")

// ErrInvalidOperation is returned for structurally invalid calls, such as a
// persistence call without an id or direct use of the abstract base.
var ErrInvalidOperation = errors.New("invalid operation")

// ErrReservedField is returned when a field name would shadow a Model member.
var ErrReservedField = errors.New("reserved field name")

// ErrRecursionLimit is returned when listener re-entry exceeds the dispatch depth.
var ErrRecursionLimit = errors.New("dispatch recursion limit reached")

// ===========================================================================
// Typed Errors
// ===========================================================================

// UnknownFieldError names the field that is not declared.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("datamodel: unknown field %q", e.Field)
}

func (e *UnknownFieldError) Is(target error) bool { return target == ErrUnknownField }

// UnknownPathSegmentError reports where a dot path stopped resolving.
type UnknownPathSegmentError struct {
	Path    string
	Segment string
	Reason  string
}

func (e *UnknownPathSegmentError) Error() string {
	msg := fmt.Sprintf("datamodel: path %q: segment %q", e.Path, e.Segment)
	if e.Reason != "" {
		return msg + ": " + e.Reason
	}
	return msg + ": not a declared field"
}

func (e *UnknownPathSegmentError) Is(target error) bool { return target == ErrUnknownPathSegment }

// InvalidInstructionError reports an instruction the field cannot apply.
type InvalidInstructionError struct {
	Field  string
	Action Action
	Reason string
}

func (e *InvalidInstructionError) Error() string {
	return fmt.Sprintf("datamodel: field %q cannot handle instruction %q: %s", e.Field, e.Action, e.Reason)
}

func (e *InvalidInstructionError) Is(target error) bool { return target == ErrInvalidInstruction }

// TypeMismatchError reports a value that failed its constraint.
// Element is set when the failing value is a collection element.
type TypeMismatchError struct {
	Field    string
	Expected string
	Got      any
	Element  bool
}

func (e *TypeMismatchError) Error() string {
	if e.Element {
		return fmt.Sprintf("datamodel: item of invalid type in collection %q: expected %s, got %T", e.Field, e.Expected, e.Got)
	}
	return fmt.Sprintf("datamodel: expected value with type %s for field %q, got %T", e.Expected, e.Field, e.Got)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// ImmutableWriteError is returned by every Model mutator.
type ImmutableWriteError struct {
	Field string
}

func (e *ImmutableWriteError) Error() string {
	return fmt.Sprintf("datamodel: cannot change %q from read-only model", e.Field)
}

func (e *ImmutableWriteError) Is(target error) bool { return target == ErrImmutableWrite }

// InvalidOperationError describes a call that is not allowed in context.
type InvalidOperationError struct {
	Op     string
	Reason string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("datamodel: %s: %s", e.Op, e.Reason)
}

func (e *InvalidOperationError) Is(target error) bool { return target == ErrInvalidOperation }

// ReservedFieldError names a field that collides with a Model member.
type ReservedFieldError struct {
	Field string
}

func (e *ReservedFieldError) Error() string {
	return fmt.Sprintf("datamodel: invalid model field name %q: shadows a model member", e.Field)
}

func (e *ReservedFieldError) Is(target error) bool { return target == ErrReservedField }

// RecursionLimitError is returned when a listener keeps writing back into
// the controller that triggered it.
type RecursionLimitError struct {
	Kind  string
	Attr  string
	Depth int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("datamodel: %s: write to %q exceeds dispatch depth %d", e.Kind, e.Attr, e.Depth)
}

func (e *RecursionLimitError) Is(target error) bool { return target == ErrRecursionLimit }
