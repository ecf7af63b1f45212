package templating

import "strings"

// rewriteTripleBrace applies the engine's one documented parser quirk:
// the tokenizer treats "}}}" as a closing-delimiter sequence, and CSS
// commonly ends a rule with adjacent closing braces. Splitting the triple
// into "}} }" keeps the CSS semantically identical while it passes through
// compilation. This must never run on HTML.
func rewriteTripleBrace(css string) string {
	return strings.ReplaceAll(css, "}}}", "}} }")
}

// injectCSS wraps compiled CSS in a <style> block and places it per the
// §4.1 injection rule: immediately before a case-insensitive "</head>" if
// present, otherwise prepended to the document.
func injectCSS(html, compiledCSS string) string {
	if compiledCSS == "" {
		return html
	}
	block := "<style>" + compiledCSS + "</style>"
	lower := strings.ToLower(html)
	if idx := strings.Index(lower, "</head>"); idx >= 0 {
		return html[:idx] + block + html[idx:]
	}
	return block + html
}
