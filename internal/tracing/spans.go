package tracing

// Span attribute keys.
const (
	AttrKind     = "model.kind"
	AttrID       = "model.id"
	AttrField    = "model.field"
	AttrSelector = "listener.selector"
	AttrAction   = "instruction.action"
	AttrDepth    = "dispatch.depth"
)

// Span names.
const (
	SpanAllocateID       = "store.allocate_id"
	SpanGetOrCreate      = "store.get_or_create"
	SpanRegister         = "store.register"
	SpanPersist          = "store.persist"
	SpanDeleteCached     = "store.delete_cached"
	SpanDeletePersisted  = "store.delete_persisted"
	SpanAutosave         = "changefeed.autosave"
	SpanRepositoryPrefix = "repo."
)
