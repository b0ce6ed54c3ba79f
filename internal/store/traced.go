package store

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zimmed/zimmed-core/internal/datamodel"
	"github.com/zimmed/zimmed-core/internal/tracing"
)

// Traced wraps a datamodel.Store so every call runs in its own span.
type Traced struct {
	inner  datamodel.Store
	tracer trace.Tracer
}

var _ datamodel.Store = (*Traced)(nil)

// NewTraced decorates inner. A nil tracer returns inner unchanged. When inner
// is a *Store, controllers it restores are bound to the decorator.
func NewTraced(inner datamodel.Store, tracer trace.Tracer) datamodel.Store {
	if tracer == nil {
		return inner
	}
	t := &Traced{inner: inner, tracer: tracer}
	if s, ok := inner.(*Store); ok {
		s.Wrap(t)
	}
	return t
}

func (t *Traced) start(ctx context.Context, name string, typ *datamodel.Type, id string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String(tracing.AttrKind, typ.Kind()))
	if id != "" {
		span.SetAttributes(attribute.String(tracing.AttrID, id))
	}
	return ctx, span
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (t *Traced) AllocateID(ctx context.Context, typ *datamodel.Type) (string, error) {
	ctx, span := t.start(ctx, tracing.SpanAllocateID, typ, "")
	id, err := t.inner.AllocateID(ctx, typ)
	if err == nil {
		span.SetAttributes(attribute.String(tracing.AttrID, id))
	}
	finish(span, err)
	return id, err
}

func (t *Traced) GetOrCreateController(ctx context.Context, typ *datamodel.Type, id string) (datamodel.Controller, error) {
	ctx, span := t.start(ctx, tracing.SpanGetOrCreate, typ, id)
	c, err := t.inner.GetOrCreateController(ctx, typ, id)
	finish(span, err)
	return c, err
}

func (t *Traced) RegisterController(ctx context.Context, typ *datamodel.Type, c datamodel.Controller) error {
	ctx, span := t.start(ctx, tracing.SpanRegister, typ, c.ID())
	err := t.inner.RegisterController(ctx, typ, c)
	finish(span, err)
	return err
}

func (t *Traced) PersistModel(ctx context.Context, typ *datamodel.Type, m *datamodel.Model) error {
	ctx, span := t.start(ctx, tracing.SpanPersist, typ, datamodel.ModelID(m))
	err := t.inner.PersistModel(ctx, typ, m)
	finish(span, err)
	return err
}

func (t *Traced) DeleteCachedController(ctx context.Context, typ *datamodel.Type, id string) error {
	ctx, span := t.start(ctx, tracing.SpanDeleteCached, typ, id)
	err := t.inner.DeleteCachedController(ctx, typ, id)
	finish(span, err)
	return err
}

func (t *Traced) DeletePersistedModel(ctx context.Context, typ *datamodel.Type, id string) error {
	ctx, span := t.start(ctx, tracing.SpanDeletePersisted, typ, id)
	err := t.inner.DeletePersistedModel(ctx, typ, id)
	finish(span, err)
	return err
}

// MaxDispatchDepth forwards the inner store's limit, if it has one.
func (t *Traced) MaxDispatchDepth() int {
	if l, ok := t.inner.(datamodel.DispatchLimiter); ok {
		return l.MaxDispatchDepth()
	}
	return 0
}
