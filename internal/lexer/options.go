package lexer

import (
	"filament/internal/source"
)

// Reporter receives lexical errors. The lexer keeps going after reporting.
type Reporter interface {
	Report(span source.Span, msg string)
}

type Options struct {
	Reporter Reporter // may be nil; errors then only produce Invalid tokens
}

func (lx *Lexer) report(sp source.Span, msg string) {
	if lx.opts.Reporter != nil {
		lx.opts.Reporter.Report(sp, msg)
	}
}
