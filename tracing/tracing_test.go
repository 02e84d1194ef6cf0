package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestSetup_Exporter(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider, err := Setup(context.Background(), Settings{ServiceName: "gridagent", Version: "test", Exporter: exporter})
	if !assert.NoError(t, err) {
		return
	}
	ctx, message := Start(context.Background(), StageMessage, MessageID.String("m1"), TaskID.String("t1"))
	_, check := Start(ctx, StagePrecondition)
	check.Skip("requeued")
	check.End(nil)
	_, process := Start(ctx, StageProcess)
	process.Set(DispatchID.String("d1"))
	process.End(errors.New("worker hangup"))
	message.End(nil)

	spans := exporter.GetSpans()
	assert.NoError(t, provider.Shutdown(context.Background()))
	if !assert.Len(t, spans, 3) {
		return
	}
	byName := map[string]tracetest.SpanStub{}
	for _, span := range spans {
		byName[span.Name] = span
	}
	root := byName["gridagent.message"]
	assert.Equal(t, trace.SpanKindConsumer, root.SpanKind)
	assert.Contains(t, root.Attributes, TaskID.String("t1"))

	precondition := byName["gridagent.precondition"]
	assert.Equal(t, root.SpanContext.SpanID(), precondition.Parent.SpanID())
	assert.Contains(t, precondition.Attributes, Outcome.String("requeued"))
	assert.Equal(t, trace.SpanKindInternal, precondition.SpanKind)

	processed := byName["gridagent.process"]
	assert.Equal(t, trace.SpanKindClient, processed.SpanKind)
	assert.Equal(t, codes.Error, processed.Status.Code)
	assert.Contains(t, processed.Attributes, DispatchID.String("d1"))
}

func TestSetup_File(t *testing.T) {
	name := filepath.Join(t.TempDir(), "spans.json")
	provider, err := Setup(context.Background(), Settings{ServiceName: "gridagent", Version: "test", OutputFile: name})
	if !assert.NoError(t, err) {
		return
	}
	_, span := Start(context.Background(), StagePrefetch, TaskID.String("t7"))
	span.End(nil)
	assert.NoError(t, provider.Shutdown(context.Background()))

	data, err := os.ReadFile(name)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "gridagent.prefetch")
	assert.Contains(t, string(data), "t7")
}

func TestNilSpan(t *testing.T) {
	var span *Span
	span.Set(TaskID.String("t1"))
	span.Skip("moot")
	span.End(nil)
	var provider *Provider
	assert.NoError(t, provider.Shutdown(context.Background()))
}
