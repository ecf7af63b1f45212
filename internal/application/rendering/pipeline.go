// Package rendering wires the render orchestration engine's template model
// (C1), templating engine (C2) and PDF renderer (C4) into the single
// sequential pipeline (C5) every dispatcher invokes. Grounded on the
// teacher's PrintService.PreviewDocument orchestration shape.
package rendering

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openrender/pdfrender/internal/domain/rendering"
	"github.com/openrender/pdfrender/internal/infrastructure/rendering/templating"
	"github.com/openrender/pdfrender/internal/infrastructure/telemetry"
)

// Engine is the subset of the templating engine the pipeline depends on.
type Engine interface {
	Render(cancelSignal context.Context, htmlBody, css string, ctx templating.Context) (string, error)
}

// PDFRenderer is the subset of the PDF renderer the pipeline depends on.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, htmlBody string, opts rendering.PdfOptions) ([]byte, error)
}

// EngineFactory builds a fresh, per-render Engine scoped to one request's
// partials — the preferred option under the engine's scoping rule.
type EngineFactory func(partials map[string]string) Engine

// Pipeline executes one render end to end: engine.Render then
// renderer.RenderPDF, sequentially, measuring the elapsed wall time.
type Pipeline struct {
	newEngine EngineFactory
	renderer  PDFRenderer
	logger    *zap.Logger
}

func NewPipeline(newEngine EngineFactory, renderer PDFRenderer, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{newEngine: newEngine, renderer: renderer, logger: logger}
}

// Execute implements the §4.4 algorithm. Errors from either stage propagate
// unchanged; the pipeline performs no recovery of its own.
func (p *Pipeline) Execute(cancelSignal context.Context, req rendering.RenderRequest) (rendering.RenderResult, error) {
	cancelSignal, span := telemetry.StartServiceSpan(cancelSignal, "render_pipeline", "execute")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrJobID, req.JobID)
	telemetry.SetAttribute(span, telemetry.SpanAttrDocumentType, req.Template.DocumentType)

	start := time.Now()
	tmpl := req.Template

	engine := p.newEngine(tmpl.Template.Partials)
	tctx := templating.Context{
		Branding:  tmpl.Branding,
		Variables: variablesToVariantMap(tmpl.Variables),
		Meta: templating.Meta{
			DocumentType: tmpl.DocumentType,
			Version:      tmpl.Version,
			GeneratedAt:  time.Now().UTC(),
		},
	}

	html, err := engine.Render(cancelSignal, tmpl.Template.HTML, tmpl.Template.CSS, tctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return rendering.RenderResult{}, err
	}

	pdfBytes, err := p.renderer.RenderPDF(cancelSignal, html, tmpl.PDF)
	if err != nil {
		telemetry.RecordError(span, err)
		return rendering.RenderResult{}, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrPDFSizeBytes, len(pdfBytes))
	telemetry.SetOK(span)

	return rendering.RenderResult{
		JobID:        req.JobID,
		DocumentType: tmpl.DocumentType,
		PDFBytes:     pdfBytes,
		ElapsedTime:  time.Since(start),
	}, nil
}

func variablesToVariantMap(vars map[string]any) *rendering.VariantMap {
	m := rendering.NewVariantMap()
	for k, v := range vars {
		m.Set(k, rendering.FromJSONValue(v))
	}
	return m
}
