// Package tracing wraps OpenTelemetry so the approval job can record one span
// per run and per request. Until Init is called the global no-op provider is
// used and spans cost nothing.
package tracing

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "course_autoapprove"

var (
	providerOnce sync.Once
	providerErr  error
	provider     *sdktrace.TracerProvider
	output       *os.File
)

// Init installs a stdout exporter writing to outputFile (os.Stdout when empty).
// Only the first call has an effect.
func Init(serviceName, serviceVersion, outputFile string) error {
	providerOnce.Do(func() {
		var w io.Writer = os.Stdout
		if outputFile != "" {
			f, err := os.Create(outputFile)
			if err != nil {
				providerErr = err
				return
			}
			output, w = f, f
		}

		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			providerErr = closeOutput(err)
			return
		}
		res, err := resource.New(context.Background(),
			resource.WithAttributes(
				attribute.String("service.name", serviceName),
				attribute.String("service.version", serviceVersion),
			),
		)
		if err != nil {
			providerErr = closeOutput(err)
			return
		}
		provider = sdktrace.NewTracerProvider(
			sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(provider)
	})
	return providerErr
}

// Shutdown flushes and stops the installed provider, then closes the trace file.
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	return closeOutput(provider.Shutdown(ctx))
}

func closeOutput(err error) error {
	if output == nil {
		return err
	}
	closeErr := output.Close()
	output = nil
	return errors.Join(err, closeErr)
}

// Span is a started span.
type Span struct {
	span trace.Span
}

// StartSpan starts an internal span as a child of the span in ctx.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	return ctx, &Span{span: span}
}

// SetInt records an integer attribute.
func (s *Span) SetInt(key string, value int64) {
	if s == nil {
		return
	}
	s.span.SetAttributes(attribute.Int64(key, value))
}

// SetString records a string attribute.
func (s *Span) SetString(key, value string) {
	if s == nil {
		return
	}
	s.span.SetAttributes(attribute.String(key, value))
}

// EndSpan records the status derived from err and ends the span.
func EndSpan(s *Span, err error) {
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
