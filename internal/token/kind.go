package token

// Kind represents the category of a source token.
type Kind uint8

const (
	// Invalid indicates an erroneous token.
	Invalid Kind = iota
	// EOF marks the end of the input.
	EOF

	// Ident represents an identifier token.
	Ident
	// IntLit represents an unsigned integer literal.
	IntLit

	KwNew     // new
	KwFor     // for
	KwIn      // in
	KwIf      // if
	KwElse    // else
	KwLet     // let
	KwExists  // exists
	KwAssert  // assert
	KwAssume  // assume
	KwBundle  // bundle
	KwWhere   // where
	KwOpaque  // opaque
	KwNothing // nothing; unresolved let value written as '?'

	Tick        // '
	Plus        // +
	Minus       // -
	Star        // *
	Slash       // /
	Percent     // %
	Assign      // =
	EqEq        // ==
	Lt          // <
	LtEq        // <=
	Gt          // >
	GtEq        // >=
	FatArrow    // =>
	Pipe        // |
	Question    // ?
	Colon       // :
	ColonColon  // ::
	ColonAssign // :=
	Semicolon   // ;
	Comma       // ,
	Dot         // .
	DotDot      // ..
	LParen      // (
	RParen      // )
	LBrace      // {
	RBrace      // }
	LBracket    // [
	RBracket    // ]
)

var kindNames = [...]string{
	Invalid:     "invalid",
	EOF:         "end of input",
	Ident:       "identifier",
	IntLit:      "integer",
	KwNew:       "new",
	KwFor:       "for",
	KwIn:        "in",
	KwIf:        "if",
	KwElse:      "else",
	KwLet:       "let",
	KwExists:    "exists",
	KwAssert:    "assert",
	KwAssume:    "assume",
	KwBundle:    "bundle",
	KwWhere:     "where",
	KwOpaque:    "opaque",
	KwNothing:   "nothing",
	Tick:        "'",
	Plus:        "+",
	Minus:       "-",
	Star:        "*",
	Slash:       "/",
	Percent:     "%",
	Assign:      "=",
	EqEq:        "==",
	Lt:          "<",
	LtEq:        "<=",
	Gt:          ">",
	GtEq:        ">=",
	FatArrow:    "=>",
	Pipe:        "|",
	Question:    "?",
	Colon:       ":",
	ColonColon:  "::",
	ColonAssign: ":=",
	Semicolon:   ";",
	Comma:       ",",
	Dot:         ".",
	DotDot:      "..",
	LParen:      "(",
	RParen:      ")",
	LBrace:      "{",
	RBrace:      "}",
	LBracket:    "[",
	RBracket:    "]",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "?"
}
