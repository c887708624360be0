package xmltree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileErr(t *testing.T, expr string) *SyntaxError {
	t.Helper()
	_, err := Compile(expr)
	require.Error(t, err)
	var serr *SyntaxError
	require.ErrorAs(t, err, &serr)
	return serr
}

func TestCompileAcceptsSupportedSyntax(t *testing.T) {
	exprs := []string{
		"/",
		"/catalog/item",
		"//item",
		"item/name",
		".",
		"..",
		"./item",
		"../item",
		"//item[@id]",
		"//item[@id='1']",
		`//item[@id="1"]`,
		"//item[2]",
		"//item[last()]",
		"//item[position()=2]",
		"//item[@price>15 and @price<=30]",
		"//item[@a='1' or @b='2']",
		"//item[not(@sale)]",
		"//a | //b | //c",
		"child::item",
		"descendant::item",
		"descendant-or-self::*",
		"parent::*",
		"ancestor::catalog",
		"ancestor-or-self::*",
		"following::note",
		"following-sibling::item",
		"preceding::item",
		"preceding-sibling::item",
		"self::item",
		"attribute::id",
		"//svg:*",
		"//svg:rect",
		"*",
		"//*[@id]",
		"count(//item)",
		"sum(item/@price)",
		"concat('a','b','c')",
		"1 + 2 * 3",
		"10 div 4",
		"10 mod 3",
		"-price",
		"(1 + 2) * 3",
		"substring('12345', 2, 3)",
		"//item[string-length(text()) > 1]",
		"//item[.//name]",
		"number()",
		"normalize-space()",
	}
	for _, expr := range exprs {
		_, err := Compile(expr)
		assert.NoError(t, err, "expr %q", expr)
	}
}

func TestCompileMissingClosingBracket(t *testing.T) {
	serr := compileErr(t, "//item[@id")
	assert.Contains(t, serr.Msg, "missing closing bracket")
	// The offset points at the opening delimiter, not at end of input.
	assert.Equal(t, 6, serr.Offset)

	rendered := serr.Error()
	assert.Contains(t, rendered, "//item[@id")
	lines := strings.Split(rendered, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "  "+strings.Repeat(" ", 6)+"^", lines[2])
}

func TestCompileMissingClosingParen(t *testing.T) {
	serr := compileErr(t, "count(//item")
	assert.Contains(t, serr.Msg, "missing closing parenthesis")
	assert.Equal(t, 5, serr.Offset)
}

func TestCompileCStyleOperators(t *testing.T) {
	serr := compileErr(t, "//item[@id='1' && @class='x']")
	assert.Equal(t, "and", serr.Suggestion)
	assert.Contains(t, serr.Error(), `did you mean "and"?`)

	serr = compileErr(t, "//item[@id='1' || @id='2']")
	assert.Equal(t, "or", serr.Suggestion)
}

func TestCompileWrongArity(t *testing.T) {
	serr := compileErr(t, "//item[contains(text())]")
	assert.Equal(t, "contains() requires 2 arguments", serr.Msg)

	serr = compileErr(t, "not()")
	assert.Equal(t, "not() requires 1 argument", serr.Msg)

	serr = compileErr(t, "concat('a')")
	assert.Equal(t, "concat() requires at least 2 arguments", serr.Msg)

	serr = compileErr(t, "substring('a')")
	assert.Equal(t, "substring() requires 2 to 3 arguments", serr.Msg)

	serr = compileErr(t, "position(1)")
	assert.Equal(t, "position() requires 0 arguments", serr.Msg)
}

func TestCompileUnknownFunction(t *testing.T) {
	serr := compileErr(t, "substing('abc', 'b')")
	assert.Contains(t, serr.Msg, "unknown function substing()")
	assert.Equal(t, "substring", serr.Suggestion)

	serr = compileErr(t, "frobnicate()")
	assert.Contains(t, serr.Msg, "unknown function")
	assert.Empty(t, serr.Suggestion, "nothing within edit distance")
}

func TestCompileUnknownAxis(t *testing.T) {
	serr := compileErr(t, "ancester::item")
	assert.Contains(t, serr.Msg, `unknown axis "ancester"`)
	assert.Equal(t, "ancestor", serr.Suggestion)
	assert.Equal(t, 0, serr.Offset)
}

func TestCompileEmptyPredicate(t *testing.T) {
	serr := compileErr(t, "//item[]")
	assert.Contains(t, serr.Msg, "empty predicate")
	assert.Equal(t, 6, serr.Offset)
}

func TestCompileUnterminatedString(t *testing.T) {
	serr := compileErr(t, "//item[@id='1]")
	assert.Contains(t, serr.Msg, "unterminated string")
}

func TestCompileTrailingGarbage(t *testing.T) {
	serr := compileErr(t, "//item )")
	assert.Contains(t, serr.Msg, "unexpected")
}

func TestCompileEmptyExpression(t *testing.T) {
	serr := compileErr(t, "")
	assert.Contains(t, serr.Msg, "unexpected end of expression")
}

func TestCompileUnbalancedClose(t *testing.T) {
	serr := compileErr(t, "//item]")
	assert.Contains(t, serr.Msg, "unexpected ']'")
}

func TestCompilePrecedence(t *testing.T) {
	// 1 + 2 * 3 groups as 1 + (2 * 3).
	e, err := Compile("1 + 2 * 3")
	require.NoError(t, err)
	add, ok := e.(BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "+", add.Op)
	mul, ok := add.Right.(BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Op)

	// Comparison binds looser than arithmetic.
	e, err = Compile("@a + 1 > 2 * 3")
	require.NoError(t, err)
	gt, ok := e.(BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ">", gt.Op)

	// 'or' is the loosest.
	e, err = Compile("@a = 1 or @b = 2 and @c = 3")
	require.NoError(t, err)
	or, ok := e.(BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "or", or.Op)
	and, ok := or.Right.(BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "and", and.Op)
}

func TestCompileDoubleSlashExpansion(t *testing.T) {
	e, err := Compile("//item")
	require.NoError(t, err)
	p, ok := e.(PathExpr)
	require.True(t, ok)
	assert.True(t, p.Absolute)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, AxisDescendantOrSelf, p.Steps[0].Axis)
	assert.Equal(t, AxisChild, p.Steps[1].Axis)
	assert.Equal(t, NodeTest{Kind: testName, Name: "item"}, p.Steps[1].Test)
}

func TestCompileStarDisambiguation(t *testing.T) {
	// Wildcard step.
	e, err := Compile("//*")
	require.NoError(t, err)
	p := e.(PathExpr)
	assert.Equal(t, testWildcard, p.Steps[1].Test.Kind)

	// Multiplication after a complete operand.
	e, err = Compile("2 * 3")
	require.NoError(t, err)
	mul, ok := e.(BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Op)
}

func TestCompilePrefixWildcard(t *testing.T) {
	e, err := Compile("//svg:*")
	require.NoError(t, err)
	p := e.(PathExpr)
	assert.Equal(t, NodeTest{Kind: testPrefixWildcard, Name: "svg"}, p.Steps[1].Test)

	e, err = Compile("//svg:rect")
	require.NoError(t, err)
	p = e.(PathExpr)
	assert.Equal(t, NodeTest{Kind: testName, Name: "svg:rect"}, p.Steps[1].Test)
}

func TestLexerTokens(t *testing.T) {
	lex := NewLexer(`//item[@id != "x"] | .//b`)
	var kinds []TokenKind
	for {
		tok, err := lex.Next()
		require.NoError(t, err)
		kinds = append(kinds, tok.Kind)
		if tok.Kind == TokEOF {
			break
		}
	}
	assert.Equal(t, []TokenKind{
		TokSlashSlash, TokIdent, TokLBracket, TokAt, TokIdent, TokOp,
		TokString, TokRBracket, TokPipe, TokDot, TokSlashSlash, TokIdent, TokEOF,
	}, kinds)
}

func TestLexerNumbers(t *testing.T) {
	for expr, want := range map[string]string{
		"42":   "42",
		"3.14": "3.14",
		".5":   ".5",
	} {
		lex := NewLexer(expr)
		tok, err := lex.Next()
		require.NoError(t, err)
		assert.Equal(t, TokNumber, tok.Kind, "expr %q", expr)
		assert.Equal(t, want, tok.Val)
	}
}

func TestEditDistanceSuggestions(t *testing.T) {
	assert.Equal(t, 0, editDistance("child", "child"))
	assert.Equal(t, 1, editDistance("chil", "child"))
	assert.Equal(t, "ancestor", suggest("ancester", axisNames))
	assert.Equal(t, "", suggest("zzzzzzzz", axisNames))
}
