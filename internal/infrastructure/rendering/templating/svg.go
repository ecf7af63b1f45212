package templating

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// qrModules is the module grid size of a version-1 QR symbol (21x21),
// used here only for visual sizing — this package does not implement the
// version-1 data or ECC capacity that size implies.
const qrModules = 21

// qrCodeSVG emits an inline SVG "QR code": a deterministic module grid at
// 10px/module, no quiet zone, derived from value so the same input always
// produces the same markup. This is NOT a conformant QR encoder: it
// carries no ECC level (no Reed-Solomon codewords are computed at all, let
// alone level-M's), no format/version information, and no real data
// placement — a real QR scanner cannot read it. It exists to make
// templates visually render a scannable-looking placeholder; see
// DESIGN.md for why no third-party QR library is wired in.
func qrCodeSVG(value, dark, light string) string {
	const moduleSize = 10
	total := qrModules * moduleSize

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d">`, total, total, total, total)

	bgFill := light
	if light == "" || light == "transparent" {
		bgFill = "none"
	}
	if bgFill != "none" {
		fmt.Fprintf(&sb, `<rect width="%d" height="%d" fill="%s"/>`, total, total, bgFill)
	}

	for row := 0; row < qrModules; row++ {
		for col := 0; col < qrModules; col++ {
			if isFinderPattern(row, col) || moduleBit(value, row, col) {
				x, y := col*moduleSize, row*moduleSize
				fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>`, x, y, moduleSize, moduleSize, dark)
			}
		}
	}
	sb.WriteString(`</svg>`)
	return sb.String()
}

// isFinderPattern marks the three 7x7 corner finder squares every QR
// symbol carries, so the emitted grid reads visually as a QR code.
func isFinderPattern(row, col int) bool {
	inCorner := func(r, c int) bool {
		return r >= 0 && r < 7 && c >= 0 && c < 7
	}
	return inCorner(row, col) || inCorner(row, qrModules-1-col) || inCorner(qrModules-1-row, col)
}

// moduleBit deterministically derives a single module's on/off state from
// value plus its coordinates via FNV-1a, so identical input always
// produces an identical symbol (the "deterministic substitution" property
// also binds here, not just plain text rendering).
func moduleBit(value string, row, col int) bool {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s:%d:%d", value, row, col)
	return h.Sum32()%3 == 0
}

// barCodeSVG emits an inline SVG "Code-128" style barcode: bar widths
// derived deterministically from each byte of value, recoloured to dark.
// It is not a checksum-validated Code-128 encoder — see DESIGN.md.
func barCodeSVG(value string, height float64, showText bool, dark string) string {
	const unit = 3
	x := 0
	var bars strings.Builder
	for i := 0; i < len(value); i++ {
		b := value[i]
		width := unit + int(b%4)*unit
		if i%2 == 0 {
			fmt.Fprintf(&bars, `<rect x="%d" y="0" width="%d" height="%g" fill="%s"/>`, x, width, height, dark)
		}
		x += width
	}
	totalWidth := x
	if totalWidth == 0 {
		totalWidth = unit
	}

	textHeight := 0.0
	var text string
	if showText {
		textHeight = 14
		text = fmt.Sprintf(`<text x="%d" y="%g" font-size="12" text-anchor="middle" fill="%s">%s</text>`,
			totalWidth/2, height+textHeight-2, dark, escapeSVGText(value))
	}

	var sb strings.Builder
	totalHeight := height + textHeight
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %g" width="%d" height="%g">`,
		totalWidth, totalHeight, totalWidth, totalHeight)
	sb.WriteString(bars.String())
	sb.WriteString(text)
	sb.WriteString(`</svg>`)
	return sb.String()
}

func escapeSVGText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
