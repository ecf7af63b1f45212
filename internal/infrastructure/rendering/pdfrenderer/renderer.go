// Package pdfrenderer implements the render orchestration engine's PDF
// renderer (component C4): lease a pooled browser, load HTML directly into
// a fresh ephemeral page, wait for the DOM to reach a <body> node (the
// whole render bounded by a fixed timeout), and translate PdfOptions into
// the browser's PrintToPDF parameters. Adapted
// from internal/infrastructure/printing/chromedp.go's Render/buildPrintParams.
package pdfrenderer

import (
	"context"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/openrender/pdfrender/internal/domain/rendering"
	"github.com/openrender/pdfrender/internal/infrastructure/rendering/browserpool"
)

const pageLoadTimeout = 30 * time.Second

// Renderer turns HTML + PdfOptions into PDF bytes using a leased browser.
type Renderer struct {
	pool *browserpool.Pool
}

func New(pool *browserpool.Pool) *Renderer {
	return &Renderer{pool: pool}
}

// RenderPDF implements the §4.3 algorithm.
func (r *Renderer) RenderPDF(ctx context.Context, htmlBody string, opts rendering.PdfOptions) ([]byte, error) {
	lease, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err // already kind-tagged by the pool
	}

	pdfBytes, err := r.renderOnLease(ctx, lease.Browser(), htmlBody, opts)
	if err != nil {
		lease.Invalidate()
		return nil, err
	}
	lease.Release()
	return pdfBytes, nil
}

func (r *Renderer) renderOnLease(ctx context.Context, browser *browserpool.PooledBrowser, htmlBody string, opts rendering.PdfOptions) ([]byte, error) {
	loadCtx, cancel := context.WithTimeout(browser.Context(), pageLoadTimeout)
	defer cancel()

	// Fresh ephemeral page per render: a new CDP target on the leased
	// browser, torn down unconditionally after this render.
	pageCtx, pageCancel := chromedp.NewContext(loadCtx, chromedp.WithTargetID(""))
	defer pageCancel()

	if err := chromedp.Run(pageCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.Navigate("about:blank").Do(ctx)
	})); err != nil {
		return nil, classifyLoadError(ctx, err)
	}

	// §4.3 calls for waiting on network idle (zero in-flight requests).
	// WaitReady("body") instead waits only for the DOM to parse to a
	// <body> node — it does not wait out still-in-flight subresources
	// (fonts, images, async CSS). This is a deliberate, cheaper heuristic
	// standing in for the literal network-idle contract.
	if err := chromedp.Run(pageCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		frameTree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(frameTree.Frame.ID, htmlBody).Do(ctx)
	}), chromedp.WaitReady("body")); err != nil {
		return nil, classifyLoadError(ctx, err)
	}

	params := buildPrintParams(opts)
	var pdfBytes []byte
	err := chromedp.Run(pageCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		call := page.PrintToPDF().
			WithPrintBackground(params.printBackground).
			WithScale(params.scale).
			WithLandscape(params.landscape).
			WithDisplayHeaderFooter(params.displayHeaderFooter).
			WithHeaderTemplate(params.headerTemplate).
			WithFooterTemplate(params.footerTemplate).
			WithMarginTop(params.marginTop).
			WithMarginRight(params.marginRight).
			WithMarginBottom(params.marginBottom).
			WithMarginLeft(params.marginLeft).
			WithPaperWidth(params.paperWidth).
			WithPaperHeight(params.paperHeight)

		data, _, err := call.Do(ctx)
		if err != nil {
			return err
		}
		pdfBytes = data
		return nil
	}))
	if err != nil {
		return nil, rendering.NewError(rendering.KindRenderPDF, "failed to generate PDF bytes", err)
	}
	if len(pdfBytes) == 0 {
		return nil, rendering.NewError(rendering.KindRenderPDF, "generated PDF is empty", nil)
	}
	return pdfBytes, nil
}

func classifyLoadError(ctx context.Context, err error) error {
	if ctx.Err() == context.Canceled {
		return rendering.NewError(rendering.KindCancelled, "page load cancelled", err)
	}
	return rendering.NewError(rendering.KindRenderLoad, "failed to load HTML into page", err)
}

type printParams struct {
	paperWidth, paperHeight                          float64
	marginTop, marginRight, marginBottom, marginLeft float64
	scale                                             float64
	landscape, printBackground                        bool
	displayHeaderFooter                               bool
	headerTemplate, footerTemplate                    string
	hasExplicitSize                                   bool
}

// buildPrintParams implements the §6 bit-exact PdfOptions→browser mapping.
func buildPrintParams(opts rendering.PdfOptions) printParams {
	p := printParams{
		scale:           opts.ResolvedScale(),
		landscape:       opts.Landscape,
		printBackground: opts.ResolvedPrintBackground(),
	}

	if opts.HasExplicitSize() {
		p.hasExplicitSize = true
		p.paperWidth = cssUnitToInches(opts.Width)
		p.paperHeight = cssUnitToInches(opts.Height)
	} else {
		p.paperWidth, p.paperHeight = paperDimensionsInches(opts.ResolvedFormat())
	}

	if opts.Margins != nil {
		p.marginTop = cssUnitToInches(opts.Margins.Top)
		p.marginRight = cssUnitToInches(opts.Margins.Right)
		p.marginBottom = cssUnitToInches(opts.Margins.Bottom)
		p.marginLeft = cssUnitToInches(opts.Margins.Left)
	}

	if opts.DisplayHeaderFooter() {
		p.displayHeaderFooter = true
		p.headerTemplate = opts.HeaderTemplate
		p.footerTemplate = opts.FooterTemplate
		if p.headerTemplate == "" {
			p.headerTemplate = "<span></span>"
		}
		if p.footerTemplate == "" {
			p.footerTemplate = "<span></span>"
		}
	}

	return p
}

// paperDimensionsInches returns width/height in inches for the closed set
// of named formats, A4 as the fallback.
func paperDimensionsInches(format rendering.PaperFormat) (float64, float64) {
	switch format {
	case rendering.FormatA2:
		return mmToInches(420), mmToInches(594)
	case rendering.FormatA3:
		return mmToInches(297), mmToInches(420)
	case rendering.FormatLetter:
		return 8.5, 11
	case rendering.FormatLegal:
		return 8.5, 14
	case rendering.FormatTabloid:
		return 11, 17
	default: // A4
		return mmToInches(210), mmToInches(297)
	}
}

func mmToInches(mm float64) float64 { return mm / 25.4 }

// cssUnitToInches converts a CSS-unit string ("210mm", "8.5in", "11") into
// inches for the PrintToPDF parameters; bare numbers are treated as
// inches, matching Chrome's own PrintToPDF unit convention.
func cssUnitToInches(unit string) float64 {
	if unit == "" {
		return 0
	}
	value, suffix := splitUnit(unit)
	switch suffix {
	case "mm":
		return mmToInches(value)
	case "cm":
		return mmToInches(value * 10)
	case "px":
		return value / 96.0
	case "in", "":
		return value
	default:
		return value
	}
}

func splitUnit(s string) (float64, string) {
	i := len(s)
	for i > 0 && !isDigitOrDot(s[i-1]) {
		i--
	}
	numPart, suffix := s[:i], s[i:]
	return parseFloatOrZero(numPart), suffix
}

func isDigitOrDot(b byte) bool {
	return (b >= '0' && b <= '9') || b == '.'
}

// parseFloatOrZero parses a possibly-signed decimal number, returning 0 for
// anything strconv.ParseFloat rejects (matching this package's other
// unit-conversion helpers, which treat a malformed margin/size as absent
// rather than erroring the whole render).
func parseFloatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
