package rendering

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaperFormat is the closed set of named paper sizes the PDF renderer
// understands. Anything else maps to A4, per the PDF option mapping.
type PaperFormat string

const (
	FormatA2      PaperFormat = "A2"
	FormatA3      PaperFormat = "A3"
	FormatA4      PaperFormat = "A4"
	FormatLetter  PaperFormat = "Letter"
	FormatLegal   PaperFormat = "Legal"
	FormatTabloid PaperFormat = "Tabloid"
)

// NormalizeFormat upper-cases and validates a format string against the
// known set, falling back to A4 for anything unrecognised.
func NormalizeFormat(raw string) PaperFormat {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "A2":
		return FormatA2
	case "A3":
		return FormatA3
	case "LETTER":
		return FormatLetter
	case "LEGAL":
		return FormatLegal
	case "TABLOID":
		return FormatTabloid
	case "A4":
		return FormatA4
	default:
		return FormatA4
	}
}

// Branding carries the caller-supplied brand identity for a document.
type Branding struct {
	CompanyName     string            `json:"companyName"`
	LogoURL         string            `json:"logoUrl,omitempty"`
	PrimaryColour   string            `json:"primaryColour,omitempty"`
	SecondaryColour string            `json:"secondaryColour,omitempty"`
	HeadingFont     string            `json:"headingFont,omitempty"`
	BodyFont        string            `json:"bodyFont,omitempty"`
	Custom          map[string]string `json:"custom,omitempty"`
}

// TemplateContent holds the template body. After resolution html is
// guaranteed non-null; htmlPath/cssPath are carried through unchanged but
// are no longer consulted by the core (a collaborator resolves them first).
type TemplateContent struct {
	HTML     string            `json:"html"`
	CSS      string            `json:"css,omitempty"`
	HTMLPath string            `json:"htmlPath,omitempty"`
	CSSPath  string            `json:"cssPath,omitempty"`
	Partials map[string]string `json:"partials,omitempty"`
}

// Margins holds per-side CSS-unit margin strings. An empty field falls
// through to the browser's own default for that side.
type Margins struct {
	Top    string `json:"top,omitempty"`
	Bottom string `json:"bottom,omitempty"`
	Left   string `json:"left,omitempty"`
	Right  string `json:"right,omitempty"`
}

// PdfOptions controls pagination and print parameters for the rendered
// document. Zero-value construction must still be usable: ResolvedFormat,
// ResolvedScale and ResolvedPrintBackground apply the spec's defaults.
type PdfOptions struct {
	Format          string  `json:"format,omitempty"`
	Width           string  `json:"width,omitempty"`
	Height          string  `json:"height,omitempty"`
	Landscape       bool    `json:"landscape,omitempty"`
	PrintBackground *bool   `json:"printBackground,omitempty"`
	Scale           float64 `json:"scale,omitempty"`
	Margins         *Margins `json:"margins,omitempty"`
	HeaderTemplate  string  `json:"headerTemplate,omitempty"`
	FooterTemplate  string  `json:"footerTemplate,omitempty"`
}

// ResolvedFormat applies the §3 default ("A4") and case-insensitive
// validation.
func (o PdfOptions) ResolvedFormat() PaperFormat {
	if o.Format == "" {
		return FormatA4
	}
	return NormalizeFormat(o.Format)
}

// ResolvedScale clamps/defaults scale to the documented [0.1, 2.0] range.
func (o PdfOptions) ResolvedScale() float64 {
	if o.Scale == 0 {
		return 1.0
	}
	if o.Scale < 0.1 {
		return 0.1
	}
	if o.Scale > 2.0 {
		return 2.0
	}
	return o.Scale
}

// ResolvedPrintBackground applies the §3 default (true).
func (o PdfOptions) ResolvedPrintBackground() bool {
	if o.PrintBackground == nil {
		return true
	}
	return *o.PrintBackground
}

// HasExplicitSize reports whether both width and height were supplied,
// in which case they override format per §6.
func (o PdfOptions) HasExplicitSize() bool {
	return o.Width != "" && o.Height != ""
}

// DisplayHeaderFooter reports whether either template is set.
func (o PdfOptions) DisplayHeaderFooter() bool {
	return o.HeaderTemplate != "" || o.FooterTemplate != ""
}

// DocumentTemplate is the immutable unit of work: everything needed to
// render one PDF.
type DocumentTemplate struct {
	DocumentType string            `json:"documentType"`
	Version      string            `json:"version,omitempty"`
	Branding     Branding          `json:"branding"`
	Template     TemplateContent   `json:"template"`
	Variables    map[string]any    `json:"variables,omitempty"`
	PDF          PdfOptions        `json:"pdf"`
}

// RenderRequest is one render job.
type RenderRequest struct {
	JobID     string
	Template  DocumentTemplate
	CreatedAt time.Time
}

// NewRenderRequest builds a request, generating a job id when absent.
func NewRenderRequest(jobID string, tmpl DocumentTemplate) RenderRequest {
	if jobID == "" {
		jobID = uuid.NewString()
	}
	return RenderRequest{JobID: jobID, Template: tmpl, CreatedAt: time.Now().UTC()}
}

// RenderResult is the write-once outcome of a pipeline execution.
type RenderResult struct {
	JobID        string
	DocumentType string
	PDFBytes     []byte
	ElapsedTime  time.Duration
}

// Envelope is the queue-mode correlated request wrapper (spec §3).
type Envelope struct {
	CorrelationID   string           `json:"correlationId" validate:"required"`
	DeviceID        string           `json:"deviceId" validate:"required"`
	SessionID       string           `json:"sessionId,omitempty"`
	Template        DocumentTemplate `json:"template" validate:"required"`
	ReturnPdfInline *bool            `json:"returnPdfInline,omitempty"`
	RequestedAt     time.Time        `json:"requestedAt"`
}

// ReturnInline applies the §3 default (true).
func (e Envelope) ReturnInline() bool {
	if e.ReturnPdfInline == nil {
		return true
	}
	return *e.ReturnPdfInline
}

// ReplyEnvelope is the queue-mode response wrapper. Exactly one of
// PdfBase64/PdfPath is populated on success; neither is on failure.
type ReplyEnvelope struct {
	CorrelationID string    `json:"correlationId"`
	DeviceID      string    `json:"deviceId"`
	SessionID     string    `json:"sessionId,omitempty"`
	DocumentType  string    `json:"documentType"`
	Success       bool      `json:"success"`
	PdfBase64     string    `json:"pdfBase64,omitempty"`
	PdfPath       string    `json:"pdfPath,omitempty"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	ElapsedTime   time.Duration `json:"elapsedTime"`
	CompletedAt   time.Time `json:"completedAt"`
}
