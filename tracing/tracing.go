package tracing

import (
	"context"
	"errors"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/viant/gridagent"

// Stage names one step of handling a pulled message.
type Stage string

const (
	StageMessage      Stage = "message"
	StagePrecondition Stage = "precondition"
	StagePrefetch     Stage = "prefetch"
	StageProcess      Stage = "process"
)

// Span attribute keys.
const (
	MessageID  = attribute.Key("gridagent.message.id")
	TaskID     = attribute.Key("gridagent.task.id")
	DispatchID = attribute.Key("gridagent.dispatch.id")
	Outcome    = attribute.Key("gridagent.outcome")
)

func (s Stage) kind() trace.SpanKind {
	switch s {
	case StageMessage:
		return trace.SpanKindConsumer
	case StageProcess:
		return trace.SpanKindClient
	}
	return trace.SpanKindInternal
}

func (s Stage) spanName() string {
	return "gridagent." + string(s)
}

// Settings describes the installed provider. Exporter takes precedence over
// OutputFile; with neither set spans go to os.Stdout.
type Settings struct {
	ServiceName string
	Version     string
	OutputFile  string
	Exporter    sdktrace.SpanExporter
}

// Provider is the tracer provider installed globally by Setup.
type Provider struct {
	provider *sdktrace.TracerProvider
	output   io.Closer
}

// Setup installs a global tracer provider exporting every ended span synchronously.
func Setup(ctx context.Context, settings Settings) (*Provider, error) {
	ret := &Provider{}
	exporter := settings.Exporter
	if exporter == nil {
		var w io.Writer = os.Stdout
		if settings.OutputFile != "" {
			f, err := os.Create(settings.OutputFile)
			if err != nil {
				return nil, err
			}
			w, ret.output = f, f
		}
		var err error
		if exporter, err = stdouttrace.New(stdouttrace.WithWriter(w)); err != nil {
			return nil, errors.Join(err, ret.closeOutput())
		}
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", settings.ServiceName),
		attribute.String("service.version", settings.Version),
	))
	if err != nil {
		return nil, errors.Join(err, ret.closeOutput())
	}
	ret.provider = sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(ret.provider)
	return ret, nil
}

// Shutdown flushes pending spans and releases the output file.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.provider == nil {
		return nil
	}
	return errors.Join(p.provider.Shutdown(ctx), p.closeOutput())
}

func (p *Provider) closeOutput() error {
	if p.output == nil {
		return nil
	}
	err := p.output.Close()
	p.output = nil
	return err
}

// Span wraps an OpenTelemetry span; a nil *Span is a valid no-op.
type Span struct {
	span trace.Span
}

// Start opens a span for stage as a child of the span carried by ctx.
func Start(ctx context.Context, stage Stage, attrs ...attribute.KeyValue) (context.Context, *Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, stage.spanName(),
		trace.WithSpanKind(stage.kind()),
		trace.WithAttributes(attrs...),
	)
	return ctx, &Span{span: span}
}

// Set attaches attributes to the span.
func (s *Span) Set(attrs ...attribute.KeyValue) {
	if s == nil || len(attrs) == 0 {
		return
	}
	s.span.SetAttributes(attrs...)
}

// Skip records why no work followed the stage, e.g. "requeued".
func (s *Span) Skip(outcome string) {
	if s == nil {
		return
	}
	s.span.SetAttributes(Outcome.String(outcome))
	s.span.AddEvent("skipped")
}

// End records err (or OK) and closes the span.
func (s *Span) End(err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
