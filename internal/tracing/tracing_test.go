package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartOperationRecordsSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartOperation(context.Background(), "queue", "6f7031")
	End(span, nil)

	_, span = StartOperation(context.Background(), "execute", "6f7031")
	End(span, errors.New("too early"))

	spans := rec.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "timelock.queue", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("timelock.operation_id", "6f7031"))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, "timelock.execute", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "too early", spans[1].Status().Description)
}
