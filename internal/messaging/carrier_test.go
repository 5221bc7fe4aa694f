package messaging

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestHeaderCarrier_GetReturnsLastValue(t *testing.T) {
	headers := []kafka.Header{
		{Key: "traceparent", Value: []byte("a")},
		{Key: "tracestate", Value: []byte("x")},
		{Key: "traceparent", Value: []byte("b")},
	}
	c := NewHeaderCarrier(&headers)

	assert.Equal(t, "b", c.Get("traceparent"))
	assert.Equal(t, "", c.Get("missing"))
	assert.Equal(t, []string{"traceparent", "tracestate"}, c.Keys())
}

func TestHeaderCarrier_SetReplacesDuplicates(t *testing.T) {
	headers := []kafka.Header{
		{Key: "traceparent", Value: []byte("a")},
		{Key: "tracestate", Value: []byte("x")},
		{Key: "traceparent", Value: []byte("b")},
	}
	c := NewHeaderCarrier(&headers)

	c.Set("traceparent", "c")

	require.Len(t, headers, 2)
	assert.Equal(t, "c", c.Get("traceparent"))
	assert.Equal(t, "x", c.Get("tracestate"))
	assert.Equal(t, []string{"tracestate", "traceparent"}, c.Keys())
}

func TestHeaderCarrier_RoundTripsTraceContext(t *testing.T) {
	sc := testSpanContext(t)
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	prop := propagation.TraceContext{}
	msg := kafka.Message{Key: []byte("order-1")}
	prop.Inject(ctx, NewHeaderCarrier(&msg.Headers))

	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "traceparent", msg.Headers[0].Key)

	extracted := trace.SpanContextFromContext(prop.Extract(context.Background(), NewHeaderCarrier(&msg.Headers)))
	assert.Equal(t, sc.TraceID(), extracted.TraceID())
	assert.Equal(t, sc.SpanID(), extracted.SpanID())
	assert.True(t, extracted.IsRemote())
}

func testSpanContext(t *testing.T) trace.SpanContext {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
}
