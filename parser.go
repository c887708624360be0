package xmltree

import (
	"fmt"
	"strconv"
)

// Parser turns one XPath expression into an AST via recursive descent.
// Every failure is a *SyntaxError carrying the byte offset of the
// offending token.
type Parser struct {
	expr string
	lex  *Lexer
}

// Compile parses an XPath expression. The returned AST is reusable and
// owns no document state.
func Compile(expr string) (Expr, error) {
	p := &Parser{expr: expr, lex: NewLexer(expr)}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokEOF {
		return nil, syntaxErrf(expr, tok.Pos, "unexpected %q", tok.Val)
	}
	return e, nil
}

func (p *Parser) errf(offset int, format string, args ...any) *SyntaxError {
	return syntaxErrf(p.expr, offset, format, args...)
}

// parseExpr := OrExpr
func (p *Parser) parseExpr() (Expr, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind != TokIdent || tok.Val != "or" {
			return left, nil
		}
		p.lex.Next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: "or", Left: left, Right: right}
	}
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind != TokIdent || tok.Val != "and" {
			return left, nil
		}
		p.lex.Next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: "and", Left: left, Right: right}
	}
}

// parseComparison := AddExpr (('='|'!='|'<'|'>'|'<='|'>=') AddExpr)?
func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokOp {
		return left, nil
	}
	switch tok.Val {
	case "=", "!=", "<", ">", "<=", ">=":
	default:
		return left, nil
	}
	p.lex.Next()
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return BinaryExpr{Op: tok.Val, Left: left, Right: right}, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind != TokOp || (tok.Val != "+" && tok.Val != "-") {
			return left, nil
		}
		p.lex.Next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: tok.Val, Left: left, Right: right}
	}
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		var op string
		switch {
		case tok.Kind == TokStar:
			// After a complete operand '*' is multiplication, not a
			// wildcard step.
			op = "*"
		case tok.Kind == TokIdent && (tok.Val == "div" || tok.Val == "mod"):
			op = tok.Val
		default:
			return left, nil
		}
		p.lex.Next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() (Expr, error) {
	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == TokOp && tok.Val == "-" {
		p.lex.Next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: "-", Operand: operand}, nil
	}
	return p.parseUnion()
}

func (p *Parser) parseUnion() (Expr, error) {
	first, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	exprs := []Expr{first}
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind != TokPipe {
			break
		}
		p.lex.Next()
		next, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, next)
	}
	if len(exprs) == 1 {
		return first, nil
	}
	return UnionExpr{Exprs: exprs}, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case TokNumber:
		p.lex.Next()
		f, err := strconv.ParseFloat(tok.Val, 64)
		if err != nil {
			return nil, p.errf(tok.Pos, "invalid number %q", tok.Val)
		}
		return NumberLit{Value: f}, nil
	case TokString:
		p.lex.Next()
		return StringLit{Value: tok.Val}, nil
	case TokLParen:
		p.lex.Next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	case TokIdent:
		// A name directly followed by '(' is a function call; anything
		// else is the first step of a relative path.
		name := tok.Val
		namePos := tok.Pos
		if p.peekIsCall() {
			p.lex.Next() // name
			p.lex.Next() // (
			return p.parseFuncCall(name, namePos)
		}
		return p.parsePath()
	case TokSlash, TokSlashSlash, TokDot, TokDotDot, TokAt, TokStar, TokAxis:
		return p.parsePath()
	case TokEOF:
		return nil, p.errf(tok.Pos, "unexpected end of expression")
	default:
		return nil, p.errf(tok.Pos, "unexpected %q", tok.Val)
	}
}

// peekIsCall reports whether the buffered IDENT is immediately followed
// by '(' in the raw input, without disturbing lexer state.
func (p *Parser) peekIsCall() bool {
	pos := p.lex.pos
	for pos < len(p.expr) && (p.expr[pos] == ' ' || p.expr[pos] == '\t' || p.expr[pos] == '\n' || p.expr[pos] == '\r') {
		pos++
	}
	return pos < len(p.expr) && p.expr[pos] == '('
}

func (p *Parser) parseFuncCall(name string, pos int) (Expr, error) {
	var args []Expr
	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			tok, err = p.lex.Peek()
			if err != nil {
				return nil, err
			}
			if tok.Kind != TokComma {
				break
			}
			p.lex.Next()
		}
	}
	if err := p.expect(TokRParen, ")"); err != nil {
		return nil, err
	}

	spec, ok := builtins[name]
	if !ok {
		return nil, &SyntaxError{
			Msg:        fmt.Sprintf("unknown function %s()", name),
			Offset:     pos,
			Expr:       p.expr,
			Suggestion: suggest(name, builtinNames),
		}
	}
	if err := spec.checkArity(name, len(args)); err != nil {
		err.Offset = pos
		err.Expr = p.expr
		return nil, err
	}
	return FuncCall{Name: name, Args: args, Pos: pos}, nil
}

func isStepStart(tok Token) bool {
	switch tok.Kind {
	case TokDot, TokDotDot, TokAt, TokAxis, TokStar, TokIdent:
		return true
	}
	return false
}

func (p *Parser) parsePath() (Expr, error) {
	var steps []Step
	absolute := false

	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case TokSlash:
		absolute = true
		p.lex.Next()
		tok, err = p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if !isStepStart(tok) {
			// A bare "/" selects the root itself.
			return PathExpr{Absolute: true}, nil
		}
	case TokSlashSlash:
		absolute = true
		p.lex.Next()
		steps = append(steps, descendantOrSelfStep())
	}

	step, err := p.parseStep()
	if err != nil {
		return nil, err
	}
	steps = append(steps, step)

	for {
		tok, err = p.lex.Peek()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case TokSlash:
			p.lex.Next()
		case TokSlashSlash:
			p.lex.Next()
			steps = append(steps, descendantOrSelfStep())
		default:
			return PathExpr{Absolute: absolute, Steps: steps}, nil
		}
		step, err = p.parseStep()
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
}

// descendantOrSelfStep is the implicit step a '//' separator expands to.
func descendantOrSelfStep() Step {
	return Step{Axis: AxisDescendantOrSelf, Test: NodeTest{Kind: testAny}}
}

func (p *Parser) parseStep() (Step, error) {
	tok, err := p.lex.Peek()
	if err != nil {
		return Step{}, err
	}
	switch tok.Kind {
	case TokDot:
		p.lex.Next()
		return p.withPredicates(Step{Axis: AxisSelf, Test: NodeTest{Kind: testAny}})
	case TokDotDot:
		p.lex.Next()
		return p.withPredicates(Step{Axis: AxisParent, Test: NodeTest{Kind: testAny}})
	case TokAt:
		p.lex.Next()
		test, err := p.parseNodeTest()
		if err != nil {
			return Step{}, err
		}
		return p.withPredicates(Step{Axis: AxisAttribute, Test: test})
	case TokAxis:
		p.lex.Next()
		axis := tok.Val
		if !knownAxis(axis) {
			return Step{}, &SyntaxError{
				Msg:        fmt.Sprintf("unknown axis %q", axis),
				Offset:     tok.Pos,
				Expr:       p.expr,
				Suggestion: suggest(axis, axisNames),
			}
		}
		test, err := p.parseNodeTest()
		if err != nil {
			return Step{}, err
		}
		return p.withPredicates(Step{Axis: axis, Test: test})
	case TokStar, TokIdent:
		test, err := p.parseNodeTest()
		if err != nil {
			return Step{}, err
		}
		return p.withPredicates(Step{Axis: AxisChild, Test: test})
	default:
		return Step{}, p.errf(tok.Pos, "expected location step, got %q", tok.Val)
	}
}

func knownAxis(name string) bool {
	for _, a := range axisNames {
		if a == name {
			return true
		}
	}
	return false
}

func (p *Parser) parseNodeTest() (NodeTest, error) {
	tok, err := p.lex.Peek()
	if err != nil {
		return NodeTest{}, err
	}
	switch tok.Kind {
	case TokStar:
		p.lex.Next()
		return NodeTest{Kind: testWildcard}, nil
	case TokIdent:
		p.lex.Next()
		if len(tok.Val) > 2 && tok.Val[len(tok.Val)-2:] == ":*" {
			return NodeTest{Kind: testPrefixWildcard, Name: tok.Val[:len(tok.Val)-2]}, nil
		}
		return NodeTest{Kind: testName, Name: tok.Val}, nil
	default:
		return NodeTest{}, p.errf(tok.Pos, "expected node test, got %q", tok.Val)
	}
}

func (p *Parser) withPredicates(step Step) (Step, error) {
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return Step{}, err
		}
		if tok.Kind != TokLBracket {
			return step, nil
		}
		p.lex.Next()
		inner, err := p.lex.Peek()
		if err != nil {
			return Step{}, err
		}
		if inner.Kind == TokRBracket {
			return Step{}, p.errf(tok.Pos, "empty predicate")
		}
		pred, err := p.parseExpr()
		if err != nil {
			return Step{}, err
		}
		if err := p.expect(TokRBracket, "]"); err != nil {
			return Step{}, err
		}
		step.Predicates = append(step.Predicates, pred)
	}
}

func (p *Parser) expect(kind TokenKind, display string) error {
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	if tok.Kind != kind {
		return p.errf(tok.Pos, "expected %q, got %q", display, tok.Val)
	}
	return nil
}
