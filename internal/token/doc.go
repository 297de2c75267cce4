// Package token defines the lexical tokens of Filament expressions and
// commands.
// Invariants:
//   - Token.Text is the exact source text covered by Token.Span.
//   - Built-in functions (pow2, log2, ...) are identifiers; the parser
//     recognizes them by the following '('.
//   - Event references are a Tick followed by an Ident.
package token
