package token

var keywords = map[string]Kind{
	"new":     KwNew,
	"for":     KwFor,
	"in":      KwIn,
	"if":      KwIf,
	"else":    KwElse,
	"let":     KwLet,
	"exists":  KwExists,
	"assert":  KwAssert,
	"assume":  KwAssume,
	"bundle":  KwBundle,
	"where":   KwWhere,
	"opaque":  KwOpaque,
	"nothing": KwNothing,
}

// LookupKeyword reports whether ident is a keyword. Keywords are lowercase
// and case-sensitive.
func LookupKeyword(ident string) (Kind, bool) {
	k, ok := keywords[ident]
	return k, ok
}
