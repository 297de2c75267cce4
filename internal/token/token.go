package token

import (
	"filament/internal/source"
)

// Token represents a single source token with its location.
type Token struct {
	Kind Kind
	Span source.Span
	Text string
}

// IsKeyword reports whether the token is a keyword.
func (t Token) IsKeyword() bool {
	return t.Kind >= KwNew && t.Kind <= KwNothing
}

// IsCmp reports whether the token is a comparison operator.
func (t Token) IsCmp() bool {
	switch t.Kind {
	case EqEq, Lt, LtEq, Gt, GtEq:
		return true
	}
	return false
}
