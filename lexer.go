package xmltree

import "unicode"

type TokenKind string

const (
	TokEOF        TokenKind = "EOF"
	TokNumber     TokenKind = "NUMBER"
	TokString     TokenKind = "STRING"
	TokIdent      TokenKind = "IDENT" // QName; "prefix:*" also lexes as IDENT
	TokAxis       TokenKind = "AXIS"  // identifier consumed together with "::"
	TokStar       TokenKind = "STAR"
	TokAt         TokenKind = "AT"
	TokDot        TokenKind = "DOT"
	TokDotDot     TokenKind = "DOTDOT"
	TokSlash      TokenKind = "SLASH"
	TokSlashSlash TokenKind = "SLASHSLASH"
	TokLBracket   TokenKind = "LBRACKET"
	TokRBracket   TokenKind = "RBRACKET"
	TokLParen     TokenKind = "LPAREN"
	TokRParen     TokenKind = "RPAREN"
	TokComma      TokenKind = "COMMA"
	TokPipe       TokenKind = "PIPE"
	TokOp         TokenKind = "OP" // = != < <= > >= + -
)

type Token struct {
	Kind TokenKind
	Val  string
	Pos  int
}

type openDelim struct {
	ch  byte
	pos int
}

// Lexer tokenizes one XPath expression in a single pass, tracking
// bracket/parenthesis balance so an imbalance is reported the moment the
// expression ends, with the offset of the unmatched delimiter.
type Lexer struct {
	expr   string
	pos    int
	buffer *Token
	opens  []openDelim
}

func NewLexer(expr string) *Lexer {
	return &Lexer{expr: expr}
}

func (l *Lexer) Peek() (Token, error) {
	if l.buffer == nil {
		tok, err := l.nextToken()
		if err != nil {
			return Token{}, err
		}
		l.buffer = &tok
	}
	return *l.buffer, nil
}

func (l *Lexer) Next() (Token, error) {
	if l.buffer != nil {
		tok := *l.buffer
		l.buffer = nil
		return tok, nil
	}
	return l.nextToken()
}

func isNameStart(ch byte) bool {
	return ch == '_' || unicode.IsLetter(rune(ch))
}

func isNameChar(ch byte) bool {
	return ch == '_' || ch == '-' || ch == '.' || unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch))
}

func (l *Lexer) scanNCName() string {
	start := l.pos
	for l.pos < len(l.expr) && isNameChar(l.expr[l.pos]) {
		l.pos++
	}
	return l.expr[start:l.pos]
}

func (l *Lexer) nextToken() (Token, error) {
	for l.pos < len(l.expr) && unicode.IsSpace(rune(l.expr[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.expr) {
		if len(l.opens) > 0 {
			open := l.opens[len(l.opens)-1]
			if open.ch == '[' {
				return Token{}, syntaxErrf(l.expr, open.pos, "missing closing bracket")
			}
			return Token{}, syntaxErrf(l.expr, open.pos, "missing closing parenthesis")
		}
		return Token{Kind: TokEOF, Pos: l.pos}, nil
	}

	start := l.pos
	ch := l.expr[l.pos]

	switch ch {
	case '[':
		l.pos++
		l.opens = append(l.opens, openDelim{ch: '[', pos: start})
		return Token{Kind: TokLBracket, Val: "[", Pos: start}, nil
	case ']':
		if len(l.opens) == 0 || l.opens[len(l.opens)-1].ch != '[' {
			return Token{}, syntaxErrf(l.expr, start, "unexpected ']'")
		}
		l.pos++
		l.opens = l.opens[:len(l.opens)-1]
		return Token{Kind: TokRBracket, Val: "]", Pos: start}, nil
	case '(':
		l.pos++
		l.opens = append(l.opens, openDelim{ch: '(', pos: start})
		return Token{Kind: TokLParen, Val: "(", Pos: start}, nil
	case ')':
		if len(l.opens) == 0 || l.opens[len(l.opens)-1].ch != '(' {
			return Token{}, syntaxErrf(l.expr, start, "unexpected ')'")
		}
		l.pos++
		l.opens = l.opens[:len(l.opens)-1]
		return Token{Kind: TokRParen, Val: ")", Pos: start}, nil
	case ',':
		l.pos++
		return Token{Kind: TokComma, Val: ",", Pos: start}, nil
	case '@':
		l.pos++
		return Token{Kind: TokAt, Val: "@", Pos: start}, nil
	case '*':
		l.pos++
		return Token{Kind: TokStar, Val: "*", Pos: start}, nil
	case '/':
		if l.pos+1 < len(l.expr) && l.expr[l.pos+1] == '/' {
			l.pos += 2
			return Token{Kind: TokSlashSlash, Val: "//", Pos: start}, nil
		}
		l.pos++
		return Token{Kind: TokSlash, Val: "/", Pos: start}, nil
	case '|':
		if l.pos+1 < len(l.expr) && l.expr[l.pos+1] == '|' {
			return Token{}, &SyntaxError{
				Msg: "unexpected '||', XPath uses 'or'", Offset: start, Expr: l.expr, Suggestion: "or",
			}
		}
		l.pos++
		return Token{Kind: TokPipe, Val: "|", Pos: start}, nil
	case '&':
		if l.pos+1 < len(l.expr) && l.expr[l.pos+1] == '&' {
			return Token{}, &SyntaxError{
				Msg: "unexpected '&&', XPath uses 'and'", Offset: start, Expr: l.expr, Suggestion: "and",
			}
		}
		return Token{}, syntaxErrf(l.expr, start, "unexpected character '&'")
	case '=':
		l.pos++
		return Token{Kind: TokOp, Val: "=", Pos: start}, nil
	case '!':
		if l.pos+1 < len(l.expr) && l.expr[l.pos+1] == '=' {
			l.pos += 2
			return Token{Kind: TokOp, Val: "!=", Pos: start}, nil
		}
		return Token{}, syntaxErrf(l.expr, start, "unexpected character '!'")
	case '<', '>':
		l.pos++
		if l.pos < len(l.expr) && l.expr[l.pos] == '=' {
			l.pos++
		}
		return Token{Kind: TokOp, Val: l.expr[start:l.pos], Pos: start}, nil
	case '+':
		l.pos++
		return Token{Kind: TokOp, Val: "+", Pos: start}, nil
	case '-':
		l.pos++
		return Token{Kind: TokOp, Val: "-", Pos: start}, nil
	case '\'', '"':
		quote := ch
		l.pos++
		for l.pos < len(l.expr) {
			if l.expr[l.pos] == quote {
				val := l.expr[start+1 : l.pos]
				l.pos++
				return Token{Kind: TokString, Val: val, Pos: start}, nil
			}
			l.pos++
		}
		return Token{}, syntaxErrf(l.expr, start, "unterminated string literal")
	case '.':
		if l.pos+1 < len(l.expr) && l.expr[l.pos+1] == '.' {
			l.pos += 2
			return Token{Kind: TokDotDot, Val: "..", Pos: start}, nil
		}
		if l.pos+1 < len(l.expr) && unicode.IsDigit(rune(l.expr[l.pos+1])) {
			return l.scanNumber(), nil
		}
		l.pos++
		return Token{Kind: TokDot, Val: ".", Pos: start}, nil
	}

	if unicode.IsDigit(rune(ch)) {
		return l.scanNumber(), nil
	}

	if isNameStart(ch) {
		name := l.scanNCName()
		// Axis syntax: name directly followed by "::".
		if l.pos+1 < len(l.expr) && l.expr[l.pos] == ':' && l.expr[l.pos+1] == ':' {
			l.pos += 2
			return Token{Kind: TokAxis, Val: name, Pos: start}, nil
		}
		// QName or namespace wildcard.
		if l.pos < len(l.expr) && l.expr[l.pos] == ':' {
			if l.pos+1 < len(l.expr) && l.expr[l.pos+1] == '*' {
				l.pos += 2
				return Token{Kind: TokIdent, Val: name + ":*", Pos: start}, nil
			}
			if l.pos+1 < len(l.expr) && isNameStart(l.expr[l.pos+1]) {
				l.pos++
				local := l.scanNCName()
				return Token{Kind: TokIdent, Val: name + ":" + local, Pos: start}, nil
			}
		}
		return Token{Kind: TokIdent, Val: name, Pos: start}, nil
	}

	return Token{}, syntaxErrf(l.expr, start, "unexpected character %q", ch)
}

func (l *Lexer) scanNumber() Token {
	start := l.pos
	seenDot := false
	for l.pos < len(l.expr) {
		c := l.expr[l.pos]
		if c == '.' && !seenDot {
			seenDot = true
			l.pos++
			continue
		}
		if !unicode.IsDigit(rune(c)) {
			break
		}
		l.pos++
	}
	return Token{Kind: TokNumber, Val: l.expr[start:l.pos], Pos: start}
}
