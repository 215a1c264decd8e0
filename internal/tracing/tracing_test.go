package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestInitWithExporter_RecordsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	shutdown, err := InitWithExporter("prioq-test", "v0", exp)
	require.NoError(t, err)

	ctx, parent := StartSpan(context.Background(), "parent", trace.SpanKindServer)
	_, child := StartSpan(ctx, "child", trace.SpanKindConsumer)
	child.SetAttributes(attribute.String("prioq.request_id", "r1"))
	child.AddEvent("executed")
	EndSpan(child, errors.New("deliver failed"))
	EndSpan(parent, nil)

	spans := exp.GetSpans()
	require.Len(t, spans, 2)

	got := spans[0]
	assert.Equal(t, "child", got.Name)
	assert.Equal(t, trace.SpanKindConsumer, got.SpanKind)
	assert.Equal(t, codes.Error, got.Status.Code)
	assert.Equal(t, spans[1].SpanContext.SpanID(), got.Parent.SpanID())
	assert.Contains(t, got.Attributes, attribute.String("prioq.request_id", "r1"))
	require.NotEmpty(t, got.Events)
	assert.Equal(t, "executed", got.Events[0].Name)

	assert.Equal(t, codes.Ok, spans[1].Status.Code)

	var service string
	for _, kv := range got.Resource.Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, "prioq-test", service)

	require.NoError(t, shutdown(context.Background()))
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.json")
	shutdown, err := Init("prioq-test", "v0", path)
	require.NoError(t, err)

	_, s := StartSpan(context.Background(), "prioq.dispatch", trace.SpanKindConsumer)
	EndSpan(s, nil)
	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "prioq.dispatch")
}

func TestInit_BadPath(t *testing.T) {
	_, err := Init("prioq-test", "v0", filepath.Join(t.TempDir(), "missing", "spans.json"))
	assert.Error(t, err)
}

func TestNilSpan(t *testing.T) {
	var s *Span
	s.SetAttributes(attribute.Int("n", 1))
	s.AddEvent("noop")
	EndSpan(s, nil)
}
