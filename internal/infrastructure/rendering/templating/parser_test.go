package templating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_SplitsTextAndTags(t *testing.T) {
	tags, texts, err := scan("hello {{name}} world {{{raw}}} end")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "name", tags[0].content)
	assert.False(t, tags[0].triple)
	assert.Equal(t, "raw", tags[1].content)
	assert.True(t, tags[1].triple)
	require.Len(t, texts, 3)
	assert.Equal(t, "hello ", texts[0])
	assert.Equal(t, " world ", texts[1])
	assert.Equal(t, " end", texts[2])
}

func TestScan_UnterminatedTagErrors(t *testing.T) {
	_, _, err := scan("hello {{name")
	assert.Error(t, err)
}

func TestParse_PlainTextNode(t *testing.T) {
	nodes, err := parse("just text")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	text, ok := nodes[0].(textNode)
	require.True(t, ok)
	assert.Equal(t, "just text", text.text)
}

func TestParse_ExprNode(t *testing.T) {
	nodes, err := parse("Hi {{variables.name}}!")
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "text", nodes[0].kind())
	expr, ok := nodes[1].(exprNode)
	require.True(t, ok)
	assert.Equal(t, "variables.name", expr.raw)
	assert.False(t, expr.unescaped)
}

func TestParse_TripleBraceIsUnescaped(t *testing.T) {
	nodes, err := parse("{{{qrCode variables.ref}}}")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	expr, ok := nodes[0].(exprNode)
	require.True(t, ok)
	assert.True(t, expr.unescaped)
}

func TestParse_PartialNode(t *testing.T) {
	nodes, err := parse("{{> footer}}")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	p, ok := nodes[0].(partialNode)
	require.True(t, ok)
	assert.Equal(t, "footer", p.name)
}

func TestParse_IfEqualsBlockWithoutElse(t *testing.T) {
	nodes, err := parse(`{{#ifEquals variables.status "paid"}}PAID{{/ifEquals}}`)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	block, ok := nodes[0].(blockNode)
	require.True(t, ok)
	assert.Equal(t, "ifEquals", block.helper)
	assert.Equal(t, []string{"variables.status", `"paid"`}, block.args)
	require.Len(t, block.body, 1)
	assert.Empty(t, block.inverse)
}

func TestParse_IfEqualsBlockWithElse(t *testing.T) {
	src := `{{#ifEquals variables.status "paid"}}PAID{{else}}DUE{{/ifEquals}}`
	nodes, err := parse(src)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	block, ok := nodes[0].(blockNode)
	require.True(t, ok)
	bodyText := block.body[0].(textNode).text
	inverseText := block.inverse[0].(textNode).text
	assert.Equal(t, "PAID", bodyText)
	assert.Equal(t, "DUE", inverseText)
}

func TestParse_NestedBlocks(t *testing.T) {
	src := `{{#ifEquals variables.a "1"}}{{#ifEquals variables.b "2"}}inner{{/ifEquals}}{{/ifEquals}}`
	nodes, err := parse(src)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	outer, ok := nodes[0].(blockNode)
	require.True(t, ok)
	require.Len(t, outer.body, 1)
	innerBlock, ok := outer.body[0].(blockNode)
	require.True(t, ok)
	assert.Equal(t, "ifEquals", innerBlock.helper)
	assert.Equal(t, "inner", innerBlock.body[0].(textNode).text)
}

func TestParse_MismatchedCloseTagErrors(t *testing.T) {
	_, err := parse(`{{#ifEquals a "1"}}x{{/otherHelper}}`)
	assert.Error(t, err)
}

func TestParse_UnclosedBlockErrors(t *testing.T) {
	_, err := parse(`{{#ifEquals a "1"}}x`)
	assert.Error(t, err)
}

func TestParse_UnexpectedClosingTagErrors(t *testing.T) {
	_, err := parse(`x{{/ifEquals}}`)
	assert.Error(t, err)
}

func TestSplitHelperCall_QuotedArgsAreSingleTokens(t *testing.T) {
	name, args := splitHelperCall(`currency variables.amount "en-GB"`)
	assert.Equal(t, "currency", name)
	assert.Equal(t, []string{"variables.amount", `"en-GB"`}, args)
}

func TestUnquote(t *testing.T) {
	s, ok := unquote(`"hello"`)
	assert.True(t, ok)
	assert.Equal(t, "hello", s)

	_, ok = unquote("hello")
	assert.False(t, ok)
}

func TestIsNumberLiteral(t *testing.T) {
	f, ok := isNumberLiteral("42")
	assert.True(t, ok)
	assert.Equal(t, 42.0, f)

	_, ok = isNumberLiteral("not-a-number")
	assert.False(t, ok)
}
