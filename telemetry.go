package acorn

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ARTM2000/acorn"

// Span names.
const (
	spanResolve   = "acorn.resolve"
	spanConstruct = "acorn.construct"
)

// Span attribute keys.
const (
	attrToken       = "acorn.token"
	attrContainerID = "acorn.container.id"
	attrStrategy    = "acorn.strategy"
	attrLifetime    = "acorn.lifetime"
	attrAutowired   = "acorn.autowired"
	attrOverridden  = "acorn.overridden"
)

func (c *container) startSpan(ctx context.Context, name string, tok Token, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String(attrToken, tok.String()),
		attribute.String(attrContainerID, c.id),
	)
	return c.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err, if any, and ends span.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
