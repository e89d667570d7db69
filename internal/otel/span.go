// Package otel provides span helpers shared by the ETL stages.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys recorded on extract, load and cycle spans
const (
	AttrStream      = attribute.Key("etl.stream")
	AttrStage       = attribute.Key("etl.stage")
	AttrPageSize    = attribute.Key("etl.page_size")
	AttrResultCount = attribute.Key("etl.result_count")
	AttrIndexName   = attribute.Key("index.name")
	AttrBatchSize   = attribute.Key("index.batch_size")
)

// StartSpan starts a span on tracer. A nil tracer continues the span already
// in ctx, which is a no-op span when tracing is off.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError marks span as failed. The status carries a fixed description;
// the error text, which may hold SQL or cluster responses, only goes to the
// exception event.
func RecordError(span trace.Span, err error) {
	if err == nil || span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "operation failed")
}
