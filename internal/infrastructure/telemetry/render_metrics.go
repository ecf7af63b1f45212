package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RenderMetrics instruments dispatcher render outcomes: success/failure
// counts and render duration, broken down by document type.
type RenderMetrics struct {
	logger *zap.Logger

	rendersTotal    *Counter
	renderFailures  *Counter
	renderDuration  *Histogram
}

var (
	AttrDocumentType = attribute.Key("document_type")
	AttrFailureKind  = attribute.Key("failure_kind")
	AttrDispatchMode = attribute.Key("dispatch_mode")
)

// NewRenderMetrics creates the render-domain instruments on meter.
func NewRenderMetrics(meter metric.Meter, logger *zap.Logger) (*RenderMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rm := &RenderMetrics{logger: logger}

	var err error
	rm.rendersTotal, err = NewCounter(meter, "render_requests_total", "Total render requests processed", "{requests}")
	if err != nil {
		return nil, err
	}
	rm.renderFailures, err = NewCounter(meter, "render_failures_total", "Total render requests that failed", "{requests}")
	if err != nil {
		return nil, err
	}
	rm.renderDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "render_duration_seconds",
		Description: "Render pipeline wall-clock duration",
		Unit:        "s",
	})
	if err != nil {
		return nil, err
	}
	return rm, nil
}

// RecordSuccess records a completed render and its elapsed duration.
func (rm *RenderMetrics) RecordSuccess(ctx context.Context, mode, documentType string, elapsedSeconds float64) {
	rm.rendersTotal.Inc(ctx, AttrDispatchMode.String(mode), AttrDocumentType.String(documentType))
	rm.renderDuration.Record(ctx, elapsedSeconds, AttrDispatchMode.String(mode), AttrDocumentType.String(documentType))
}

// RecordFailure records a failed render, tagged with the error kind.
func (rm *RenderMetrics) RecordFailure(ctx context.Context, mode, documentType, failureKind string) {
	rm.rendersTotal.Inc(ctx, AttrDispatchMode.String(mode), AttrDocumentType.String(documentType))
	rm.renderFailures.Inc(ctx, AttrDispatchMode.String(mode), AttrDocumentType.String(documentType), AttrFailureKind.String(failureKind))
}
