package rendering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFormat(t *testing.T) {
	cases := map[string]PaperFormat{
		"a4":      FormatA4,
		"A4":      FormatA4,
		"letter":  FormatLetter,
		"LEGAL":   FormatLegal,
		"Tabloid": FormatTabloid,
		"a3":      FormatA3,
		"a2":      FormatA2,
		"bogus":   FormatA4,
		"":        FormatA4,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeFormat(raw), "input %q", raw)
	}
}

func TestPdfOptions_ResolvedScale(t *testing.T) {
	assert.Equal(t, 1.0, PdfOptions{}.ResolvedScale())
	assert.Equal(t, 0.1, PdfOptions{Scale: 0.01}.ResolvedScale())
	assert.Equal(t, 2.0, PdfOptions{Scale: 5}.ResolvedScale())
	assert.Equal(t, 1.5, PdfOptions{Scale: 1.5}.ResolvedScale())
}

func TestPdfOptions_ResolvedPrintBackground(t *testing.T) {
	assert.True(t, PdfOptions{}.ResolvedPrintBackground())
	no := false
	assert.False(t, PdfOptions{PrintBackground: &no}.ResolvedPrintBackground())
	yes := true
	assert.True(t, PdfOptions{PrintBackground: &yes}.ResolvedPrintBackground())
}

func TestPdfOptions_HasExplicitSize(t *testing.T) {
	assert.False(t, PdfOptions{}.HasExplicitSize())
	assert.False(t, PdfOptions{Width: "200mm"}.HasExplicitSize())
	assert.True(t, PdfOptions{Width: "200mm", Height: "300mm"}.HasExplicitSize())
}

func TestPdfOptions_DisplayHeaderFooter(t *testing.T) {
	assert.False(t, PdfOptions{}.DisplayHeaderFooter())
	assert.True(t, PdfOptions{HeaderTemplate: "<span>hi</span>"}.DisplayHeaderFooter())
	assert.True(t, PdfOptions{FooterTemplate: "<span>hi</span>"}.DisplayHeaderFooter())
}

func TestEnvelope_ReturnInline(t *testing.T) {
	assert.True(t, Envelope{}.ReturnInline())
	no := false
	assert.False(t, Envelope{ReturnPdfInline: &no}.ReturnInline())
}

func TestNewRenderRequest_GeneratesJobIDWhenAbsent(t *testing.T) {
	req := NewRenderRequest("", DocumentTemplate{DocumentType: "invoice"})
	assert.NotEmpty(t, req.JobID)

	withID := NewRenderRequest("abc-123", DocumentTemplate{})
	assert.Equal(t, "abc-123", withID.JobID)
}
