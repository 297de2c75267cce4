package lexer

import (
	"filament/internal/token"
)

// scanNumber scans decimal, 0x, 0o and 0b literals. Underscores are
// allowed between digits; the parser strips them.
func (lx *Lexer) scanNumber() token.Token {
	start := lx.cursor.Mark()
	digit := isDec
	prefixed := false
	if b0, b1, ok := lx.cursor.Peek2(); ok && b0 == '0' {
		prefixed = true
		switch b1 {
		case 'x', 'X':
			digit = isHex
		case 'o', 'O':
			digit = func(b byte) bool { return b >= '0' && b <= '7' }
		case 'b', 'B':
			digit = func(b byte) bool { return b == '0' || b == '1' }
		default:
			prefixed = false
		}
	}
	lx.cursor.Bump()
	if prefixed {
		lx.cursor.Bump()
		if !digit(lx.cursor.Peek()) {
			tok := lx.emit(token.Invalid, start)
			lx.report(tok.Span, "expected digits after base prefix")
			return tok
		}
	}
	for digit(lx.cursor.Peek()) || lx.cursor.Peek() == '_' {
		lx.cursor.Bump()
	}
	if isIdentStartByte(lx.cursor.Peek()) {
		for isIdentContinueByte(lx.cursor.Peek()) {
			lx.cursor.Bump()
		}
		tok := lx.emit(token.Invalid, start)
		lx.report(tok.Span, "malformed number "+tok.Text)
		return tok
	}
	return lx.emit(token.IntLit, start)
}
