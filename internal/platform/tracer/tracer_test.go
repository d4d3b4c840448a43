package tracer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"basecamp/internal/platform/tracer"
)

func TestNoopTracer(t *testing.T) {
	tr := tracer.NewNoop()
	ctx := context.Background()

	newCtx, span := tr.Start(ctx, tracer.SpanWorkflowRun, tracer.String(tracer.AttrScreeningID, "scr_1"))
	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)

	span.SetAttributes(tracer.Int(tracer.AttrAttempt, 3))
	span.AddEvent(tracer.EventStatusChanged)
	span.End(errors.New("boom"))
}

func TestOTelTracer_WithInjectedTracer(t *testing.T) {
	tr := tracer.NewOTel(tracer.WithOTelTracer(noop.NewTracerProvider().Tracer("test")))

	_, span := tr.Start(context.Background(), tracer.SpanProviderPoll,
		tracer.String(tracer.AttrProvider, "checkr"),
		tracer.Bool("flag", true),
		tracer.Duration("latency", 150*time.Millisecond),
	)
	require.NotNil(t, span)
	span.AddEvent(tracer.EventTransientFailed, tracer.Int64("n", 1))
	span.End(nil)
}

func TestHashEmail(t *testing.T) {
	assert.Empty(t, tracer.HashEmail(""))
	assert.Len(t, tracer.HashEmail("jane@example.com"), 16)
	assert.Equal(t, tracer.HashEmail("jane@example.com"), tracer.HashEmail("jane@example.com"))
	assert.NotEqual(t, tracer.HashEmail("jane@example.com"), tracer.HashEmail("john@example.com"))
}

func TestDurationAttributeIsMilliseconds(t *testing.T) {
	attr := tracer.Duration("latency", 150*time.Millisecond)
	assert.Equal(t, int64(150), attr.Value)
}
