package templating

import (
	"fmt"
	"strconv"
	"strings"
)

// node is one compiled template fragment.
type node interface {
	kind() string
}

type textNode struct{ text string }

func (textNode) kind() string { return "text" }

// exprNode is {{path}} (escaped) or {{{path}}} (unescaped), optionally a
// helper invocation ("helperName arg1 arg2").
type exprNode struct {
	raw       string
	unescaped bool
}

func (exprNode) kind() string { return "expr" }

// blockNode is {{#helper args...}}...{{else}}...{{/helper}}.
type blockNode struct {
	helper  string
	args    []string
	body    []node
	inverse []node
}

func (blockNode) kind() string { return "block" }

type partialNode struct{ name string }

func (partialNode) kind() string { return "partial" }

// tag is one {{...}} or {{{...}}} delimiter match found by the scanner.
type tag struct {
	content string
	triple  bool
}

// parse compiles src (already triple-brace-rewritten if it is CSS) into a
// node tree. It is a small recursive-descent parser over a flat tag
// stream; nested blocks are handled by consuming tags until the matching
// {{/helper}} is found.
func parse(src string) ([]node, error) {
	tags, texts, err := scan(src)
	if err != nil {
		return nil, err
	}
	nodes, rest, err := parseNodes(texts, tags)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("unexpected closing block tag: %q", rest[0].content)
	}
	return nodes, nil
}

// scan splits src into alternating text segments and tags: texts has one
// more element than tags (texts[i] precedes tags[i]; the final text
// segment trails the last tag).
func scan(src string) (tags []tag, texts []string, err error) {
	i := 0
	last := 0
	for i < len(src) {
		open := strings.Index(src[i:], "{{")
		if open < 0 {
			break
		}
		open += i
		texts = append(texts, src[last:open])

		triple := strings.HasPrefix(src[open:], "{{{")
		var closeSeq string
		var start int
		if triple {
			closeSeq = "}}}"
			start = open + 3
		} else {
			closeSeq = "}}"
			start = open + 2
		}
		closeIdx := strings.Index(src[start:], closeSeq)
		if closeIdx < 0 {
			return nil, nil, fmt.Errorf("unterminated tag starting at byte %d", open)
		}
		closeIdx += start
		tags = append(tags, tag{content: strings.TrimSpace(src[start:closeIdx]), triple: triple})
		last = closeIdx + len(closeSeq)
		i = last
	}
	texts = append(texts, src[last:])
	return tags, texts, nil
}

// parseNodes consumes texts/tags (texts has len(tags)+1 entries) until it
// hits a block-closing or else tag it cannot itself consume, returning the
// built nodes plus the unconsumed tag/text suffix (as a synthetic single
// "rest" entry set carried via the tags slice the caller re-slices).
func parseNodes(texts []string, tags []tag) (nodes []node, rest []tag, err error) {
	idx := 0 // index into tags; texts[idx] is the text immediately before tags[idx]
	emit := func() {
		if texts[idx] != "" {
			nodes = append(nodes, textNode{text: texts[idx]})
		}
	}
	for idx < len(tags) {
		emit()
		t := tags[idx]
		switch {
		case strings.HasPrefix(t.content, "#"):
			helperAndArgs := strings.TrimSpace(t.content[1:])
			name, args := splitHelperCall(helperAndArgs)
			idx++
			body, elseOrClose, consumed, ierr := parseBlockBody(texts, tags, idx, name)
			if ierr != nil {
				return nil, nil, ierr
			}
			idx = consumed
			var inverse []node
			if elseOrClose == "else" {
				idx++ // consume {{else}}
				var closeConsumed int
				inverse, _, closeConsumed, ierr = parseBlockBody(texts, tags, idx, name)
				if ierr != nil {
					return nil, nil, ierr
				}
				idx = closeConsumed
			}
			idx++ // consume {{/helper}}
			nodes = append(nodes, blockNode{helper: name, args: args, body: body, inverse: inverse})
			continue
		case strings.HasPrefix(t.content, "/"):
			return nodes, tags[idx:], nil
		case t.content == "else":
			return nodes, tags[idx:], nil
		case strings.HasPrefix(t.content, ">"):
			name := strings.TrimSpace(t.content[1:])
			nodes = append(nodes, partialNode{name: name})
			idx++
		default:
			nodes = append(nodes, exprNode{raw: t.content, unescaped: t.triple})
			idx++
		}
	}
	if texts[idx] != "" {
		nodes = append(nodes, textNode{text: texts[idx]})
	}
	return nodes, nil, nil
}

// parseBlockBody parses nodes starting at tags[start] until a stop tag
// (else, or the matching /helper close) and reports which stopped it and
// the index of that stop tag.
func parseBlockBody(texts []string, tags []tag, start int, helper string) ([]node, string, int, error) {
	sub, rest, err := parseNodes(texts[start:], tags[start:])
	if err != nil {
		return nil, "", 0, err
	}
	if len(rest) == 0 {
		return nil, "", 0, fmt.Errorf("unclosed block {{#%s}}", helper)
	}
	stop := rest[0]
	stopIdx := start + (len(tags[start:]) - len(rest))
	if stop.content == "else" {
		return sub, "else", stopIdx, nil
	}
	want := "/" + helper
	if strings.TrimSpace(stop.content) != want {
		return nil, "", 0, fmt.Errorf("mismatched close tag {{%s}}, expected {{%s}}", stop.content, want)
	}
	return sub, "close", stopIdx, nil
}

// splitHelperCall splits "name arg1 arg2" respecting double-quoted
// string literals as single arguments.
func splitHelperCall(s string) (string, []string) {
	toks := tokenizeArgs(s)
	if len(toks) == 0 {
		return "", nil
	}
	return toks[0], toks[1:]
}

func tokenizeArgs(s string) []string {
	var toks []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && !inQuote:
			inQuote = true
			cur.WriteByte(c)
		case c == '"' && inQuote:
			inQuote = false
			cur.WriteByte(c)
		case c == ' ' && !inQuote:
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return toks
}

// unquote strips a surrounding pair of double quotes if present.
func unquote(tok string) (string, bool) {
	if len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"' {
		return tok[1 : len(tok)-1], true
	}
	return tok, false
}

// isNumberLiteral reports whether tok parses as a number, returning it.
func isNumberLiteral(tok string) (float64, bool) {
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
