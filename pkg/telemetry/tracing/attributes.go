package tracing

import (
	"time"

	"go.opentelemetry.io/otel/attribute"

	"mercator-hq/erasure/pkg/deletion"
)

// Span attribute keys.
const (
	AttrBatchID     = attribute.Key("erasure.batch.id")
	AttrWindowStart = attribute.Key("erasure.window.start")
	AttrWindowEnd   = attribute.Key("erasure.window.end")
	AttrRunMode     = attribute.Key("erasure.run.mode")
	AttrRunID       = attribute.Key("erasure.run.id")
	AttrRemaining   = attribute.Key("erasure.batch.remaining_in_window")
)

// WindowAttributes describes a deletion window.
func WindowAttributes(start, end time.Time) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrWindowStart.String(start.UTC().Format(time.RFC3339)),
		AttrWindowEnd.String(end.UTC().Format(time.RFC3339)),
	}
}

// BatchAttributes describes a batch. A nil batch yields no attributes.
func BatchAttributes(b *deletion.Batch) []attribute.KeyValue {
	if b == nil {
		return nil
	}
	attrs := append([]attribute.KeyValue{AttrBatchID.Int64(b.ID)}, WindowAttributes(b.WindowStart, b.WindowEnd)...)
	if b.RemainingInWindow != nil {
		attrs = append(attrs, AttrRemaining.Int(*b.RemainingInWindow))
	}
	return attrs
}
