package lexer

import (
	"filament/internal/token"
)

// scanOperatorOrPunct is greedy: two-byte operators are tried before
// single bytes.
func (lx *Lexer) scanOperatorOrPunct() token.Token {
	start := lx.cursor.Mark()

	switch {
	case lx.try2('.', '.'):
		return lx.emit(token.DotDot, start)
	case lx.try2(':', ':'):
		return lx.emit(token.ColonColon, start)
	case lx.try2(':', '='):
		return lx.emit(token.ColonAssign, start)
	case lx.try2('=', '>'):
		return lx.emit(token.FatArrow, start)
	case lx.try2('=', '='):
		return lx.emit(token.EqEq, start)
	case lx.try2('<', '='):
		return lx.emit(token.LtEq, start)
	case lx.try2('>', '='):
		return lx.emit(token.GtEq, start)
	}

	var k token.Kind
	switch lx.cursor.Bump() {
	case '\'':
		k = token.Tick
	case '+':
		k = token.Plus
	case '-':
		k = token.Minus
	case '*':
		k = token.Star
	case '/':
		k = token.Slash
	case '%':
		k = token.Percent
	case '=':
		k = token.Assign
	case '<':
		k = token.Lt
	case '>':
		k = token.Gt
	case '|':
		k = token.Pipe
	case '?':
		k = token.Question
	case ':':
		k = token.Colon
	case ';':
		k = token.Semicolon
	case ',':
		k = token.Comma
	case '.':
		k = token.Dot
	case '(':
		k = token.LParen
	case ')':
		k = token.RParen
	case '{':
		k = token.LBrace
	case '}':
		k = token.RBrace
	case '[':
		k = token.LBracket
	case ']':
		k = token.RBracket
	default:
		tok := lx.emit(token.Invalid, start)
		lx.report(tok.Span, "unknown character "+tok.Text)
		return tok
	}
	return lx.emit(k, start)
}
