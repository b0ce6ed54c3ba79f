// Package datamodel implements rule-driven, one-way data binding.
//
// A controller type declares a RuleSet mapping model field names to the
// attribute(s) they read, an optional Constraint and a Transform. Each live
// controller owns a read-only Model derived from its attributes. Writes go
// through Base.Set, which re-derives only the fields bound to the written
// attribute and then calls the listeners registered for those fields.
// Collection fields accept Instructions so single elements can be added or
// removed without re-deriving the whole collection.
//
// Controllers are single-threaded: derivation and dispatch run synchronously
// on the caller's goroutine and nothing in this package locks. Persistence is
// delegated to a Store.
package datamodel
