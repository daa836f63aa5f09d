package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/shakram02/dbinspect-rpc/internal/rpc"
)

const instrumentationName = "dbinspect_rpc"

// Config configures the dispatch hook. Nil providers fall back to the
// global ones.
type Config struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	ServiceName    string
}

// NewHook returns a DispatchHook that opens a server span per dispatch and
// records request count and duration.
func NewHook(cfg Config) (rpc.DispatchHook, error) {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "dbinspect-rpc"
	}

	h := &otelHook{
		service: cfg.ServiceName,
		tracer:  cfg.TracerProvider.Tracer(instrumentationName),
	}

	meter := cfg.MeterProvider.Meter(instrumentationName)
	var err error
	h.requestCounter, err = meter.Int64Counter("rpc.server.requests",
		metric.WithUnit("{request}"),
		metric.WithDescription("Number of RPC requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	h.durationHistogram, err = meter.Float64Histogram("rpc.server.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of RPC requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	return h, nil
}

type otelHook struct {
	service           string
	tracer            trace.Tracer
	requestCounter    metric.Int64Counter
	durationHistogram metric.Float64Histogram
}

type spanToken struct {
	span      trace.Span
	startTime time.Time
}

func (h *otelHook) OnDispatchStart(ctx context.Context, info rpc.DispatchInfo) (context.Context, rpc.HookToken) {
	ctx, span := h.tracer.Start(ctx, fmt.Sprintf("jsonrpc/%s", info.Method),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.system", "jsonrpc"),
			attribute.String("rpc.service", h.service),
			attribute.String("rpc.method", info.Method),
			attribute.String("rpc.jsonrpc.request_id", info.RequestID),
			attribute.String("dbinspect.trace_id", info.TraceID),
		),
	)
	return ctx, &spanToken{span: span, startTime: time.Now()}
}

func (h *otelHook) OnDispatchEnd(ctx context.Context, token rpc.HookToken, info rpc.DispatchInfo, err *rpc.Error) {
	st, ok := token.(*spanToken)
	if !ok {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}

	metricAttrs := metric.WithAttributes(
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.method", info.Method),
		attribute.String("status", status),
	)
	if h.requestCounter != nil {
		h.requestCounter.Add(ctx, 1, metricAttrs)
	}
	if h.durationHistogram != nil {
		h.durationHistogram.Record(ctx, time.Since(st.startTime).Seconds(), metricAttrs)
	}

	defer st.span.End()
	if !st.span.IsRecording() {
		return
	}
	if err != nil {
		obj := err.Object()
		st.span.SetStatus(codes.Error, err.Message)
		st.span.RecordError(err)
		st.span.SetAttributes(
			attribute.Int("rpc.jsonrpc.error_code", obj.Code),
			attribute.String("error.type", err.Kind.String()),
		)
	} else {
		st.span.SetStatus(codes.Ok, "")
	}
}
