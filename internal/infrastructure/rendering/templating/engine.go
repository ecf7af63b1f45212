// Package templating implements the render orchestration engine's
// Handlebars-subset compile/execute step (component C2): expression and
// block-helper evaluation against a branding/variables/meta context,
// per-request partials, CSS inlining, and the triple-brace CSS quirk.
package templating

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/openrender/pdfrender/internal/domain/rendering"
)

// Context is the data exposed to every template: branding, the deep
// converted variable bag, and render metadata.
type Context struct {
	Branding  rendering.Branding
	Variables *rendering.VariantMap
	Meta      Meta
}

type Meta struct {
	DocumentType string
	Version      string
	GeneratedAt  time.Time
}

// Engine is a per-render template compiler/evaluator. Partials are scoped
// to one Engine instance so they never leak across concurrent renders —
// the preferred option under spec §5 over a single serialised global
// registry.
type Engine struct {
	partials map[string]string
}

// New constructs a per-render engine and registers the given partials.
func New(partials map[string]string) *Engine {
	e := &Engine{partials: make(map[string]string, len(partials))}
	for name, body := range partials {
		e.partials[name] = body
	}
	return e
}

// Render compiles and executes html against ctx, injects css (evaluated
// against the same context, with the triple-brace quirk applied only to
// it), and returns the complete HTML document string. If cancelSignal is
// already done, it fails fast with KindCancelled before doing any work.
func (e *Engine) Render(cancelSignal context.Context, htmlBody, css string, ctx Context) (string, error) {
	if err := cancelSignal.Err(); err != nil {
		return "", rendering.NewError(rendering.KindCancelled, "render cancelled before compile", err)
	}

	bodyNodes, err := parse(htmlBody)
	if err != nil {
		return "", rendering.NewError(rendering.KindTemplateParse, "failed to parse template html", err)
	}
	rendered, err := e.execute(bodyNodes, ctx)
	if err != nil {
		return "", rendering.NewError(rendering.KindTemplateEval, "failed to evaluate template html", err)
	}

	if css != "" {
		cssNodes, err := parse(rewriteTripleBrace(css))
		if err != nil {
			return "", rendering.NewError(rendering.KindTemplateParse, "failed to parse template css", err)
		}
		compiledCSS, err := e.execute(cssNodes, ctx)
		if err != nil {
			return "", rendering.NewError(rendering.KindTemplateEval, "failed to evaluate template css", err)
		}
		rendered = injectCSS(rendered, compiledCSS)
	}

	return rendered, nil
}

func (e *Engine) execute(nodes []node, ctx Context) (string, error) {
	var out strings.Builder
	if err := e.renderNodes(nodes, ctx, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (e *Engine) renderNodes(nodes []node, ctx Context, out *strings.Builder) error {
	for _, n := range nodes {
		if err := e.renderNode(n, ctx, out); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) renderNode(n node, ctx Context, out *strings.Builder) error {
	switch t := n.(type) {
	case textNode:
		out.WriteString(t.text)
	case partialNode:
		body, ok := e.partials[t.name]
		if !ok {
			return nil // unresolved binding policy: missing partial renders empty
		}
		nodes, err := parse(body)
		if err != nil {
			return err
		}
		return e.renderNodes(nodes, ctx, out)
	case exprNode:
		return e.renderExpr(t, ctx, out)
	case blockNode:
		return e.renderBlock(t, ctx, out)
	}
	return nil
}

func (e *Engine) renderExpr(n exprNode, ctx Context, out *strings.Builder) error {
	name, args := splitHelperCall(n.raw)
	if fn, ok := builtinHelpers[name]; ok {
		resolved := make([]rendering.Variant, len(args))
		for i, a := range args {
			resolved[i] = e.resolveArg(a, ctx)
		}
		result, rawOutput := fn(resolved)
		if rawOutput || n.unescaped {
			out.WriteString(result)
		} else {
			out.WriteString(html.EscapeString(result))
		}
		return nil
	}

	v := e.resolvePath(n.raw, ctx)
	text := v.String()
	if n.unescaped {
		out.WriteString(text)
	} else {
		out.WriteString(html.EscapeString(text))
	}
	return nil
}

func (e *Engine) renderBlock(n blockNode, ctx Context, out *strings.Builder) error {
	switch n.helper {
	case "ifEquals":
		if len(n.args) < 2 {
			return nil
		}
		a := e.resolveArg(n.args[0], ctx).String()
		b := e.resolveArg(n.args[1], ctx).String()
		if a == b {
			return e.renderNodes(n.body, ctx, out)
		}
		return e.renderNodes(n.inverse, ctx, out)
	default:
		// Unknown block helpers render empty rather than failing the
		// whole document, consistent with the unresolved-binding policy.
		return nil
	}
}

// resolveArg evaluates one helper argument token: a quoted string
// literal, a numeric literal, or a dotted context path.
func (e *Engine) resolveArg(tok string, ctx Context) rendering.Variant {
	if s, ok := unquote(tok); ok {
		return rendering.StringVariant(s)
	}
	if f, ok := isNumberLiteral(tok); ok {
		if f == float64(int64(f)) {
			return rendering.IntVariant(int64(f))
		}
		return rendering.FloatVariant(f)
	}
	switch tok {
	case "true":
		return rendering.BoolVariant(true)
	case "false":
		return rendering.BoolVariant(false)
	}
	return e.resolvePath(tok, ctx)
}

// resolvePath walks a dotted path ("variables.customer.name",
// "branding.companyName", "meta.documentType") against ctx. Missing
// lookups resolve to null rather than failing the render.
func (e *Engine) resolvePath(path string, ctx Context) rendering.Variant {
	segments := strings.Split(path, ".")
	if len(segments) == 0 {
		return rendering.NullVariant()
	}

	var cur rendering.Variant
	switch segments[0] {
	case "variables":
		cur = rendering.MapVariant(ctx.Variables)
	case "branding":
		cur = rendering.MapVariant(brandingToVariantMap(ctx.Branding))
	case "meta":
		cur = rendering.MapVariant(metaToVariantMap(ctx.Meta))
	default:
		return rendering.NullVariant()
	}

	for _, seg := range segments[1:] {
		m, ok := cur.AsMap()
		if !ok {
			return rendering.NullVariant()
		}
		v, ok := m.Get(seg)
		if !ok {
			return rendering.NullVariant()
		}
		cur = v
	}
	return cur
}

func brandingToVariantMap(b rendering.Branding) *rendering.VariantMap {
	m := rendering.NewVariantMap()
	m.Set("companyName", rendering.StringVariant(b.CompanyName))
	m.Set("logoUrl", rendering.StringVariant(b.LogoURL))
	m.Set("primaryColour", rendering.StringVariant(b.PrimaryColour))
	m.Set("secondaryColour", rendering.StringVariant(b.SecondaryColour))
	m.Set("headingFont", rendering.StringVariant(b.HeadingFont))
	m.Set("bodyFont", rendering.StringVariant(b.BodyFont))
	custom := rendering.NewVariantMap()
	for k, v := range b.Custom {
		custom.Set(k, rendering.StringVariant(v))
	}
	m.Set("custom", rendering.MapVariant(custom))
	return m
}

func metaToVariantMap(meta Meta) *rendering.VariantMap {
	m := rendering.NewVariantMap()
	m.Set("documentType", rendering.StringVariant(meta.DocumentType))
	m.Set("version", rendering.StringVariant(meta.Version))
	m.Set("generatedAt", rendering.StringVariant(meta.GeneratedAt.UTC().Format(time.RFC3339)))
	return m
}

// helperFunc evaluates a built-in helper's resolved arguments, returning
// its text output and whether that output must bypass HTML escaping
// (true for the SVG emitters).
type helperFunc func(args []rendering.Variant) (string, bool)

func arg(args []rendering.Variant, i int) rendering.Variant {
	if i < len(args) {
		return args[i]
	}
	return rendering.NullVariant()
}

var builtinHelpers = map[string]helperFunc{
	"upper": func(args []rendering.Variant) (string, bool) {
		return upperHelper(arg(args, 0).String()), false
	},
	"lower": func(args []rendering.Variant) (string, bool) {
		return lowerHelper(arg(args, 0).String()), false
	},
	"formatDate": func(args []rendering.Variant) (string, bool) {
		return formatDateHelper(arg(args, 0).String(), arg(args, 1).String()), false
	},
	"currency": func(args []rendering.Variant) (string, bool) {
		return currencyHelper(arg(args, 0).String(), arg(args, 1).String()), false
	},
	"qrCode": func(args []rendering.Variant) (string, bool) {
		dark := arg(args, 1).String()
		if dark == "" {
			dark = "#000000"
		}
		light := arg(args, 2).String()
		if light == "" {
			light = "transparent"
		}
		return qrCodeSVG(arg(args, 0).String(), dark, light), true
	},
	"barCode": func(args []rendering.Variant) (string, bool) {
		height := 60.0
		if hv, ok := arg(args, 1).AsFloat(); ok {
			height = hv
		}
		showText := arg(args, 2).Kind() == rendering.KindBool && arg(args, 2).String() == "true"
		dark := arg(args, 3).String()
		if dark == "" {
			dark = "#000000"
		}
		return barCodeSVG(arg(args, 0).String(), height, showText, dark), true
	},
}
