package templating

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQrCodeSVG_IsDeterministic(t *testing.T) {
	a := qrCodeSVG("INV-001", "#000000", "transparent")
	b := qrCodeSVG("INV-001", "#000000", "transparent")
	assert.Equal(t, a, b)
}

func TestQrCodeSVG_DifferentValuesDiffer(t *testing.T) {
	a := qrCodeSVG("INV-001", "#000000", "transparent")
	b := qrCodeSVG("INV-002", "#000000", "transparent")
	assert.NotEqual(t, a, b)
}

func TestQrCodeSVG_TransparentLightOmitsBackgroundRect(t *testing.T) {
	svg := qrCodeSVG("x", "#000000", "transparent")
	assert.NotContains(t, svg, `fill="transparent"`)
}

func TestQrCodeSVG_OpaqueLightDrawsBackgroundRect(t *testing.T) {
	svg := qrCodeSVG("x", "#000000", "#ffffff")
	assert.Contains(t, svg, `fill="#ffffff"`)
}

func TestBarCodeSVG_ShowTextAddsTextElement(t *testing.T) {
	withText := barCodeSVG("12345", 60, true, "#000000")
	withoutText := barCodeSVG("12345", 60, false, "#000000")
	assert.True(t, strings.Contains(withText, "<text"))
	assert.False(t, strings.Contains(withoutText, "<text"))
}

func TestBarCodeSVG_IsDeterministic(t *testing.T) {
	a := barCodeSVG("12345", 60, false, "#000000")
	b := barCodeSVG("12345", 60, false, "#000000")
	assert.Equal(t, a, b)
}
