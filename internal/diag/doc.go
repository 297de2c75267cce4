// Package diag defines the diagnostic model shared by every compiler pass.
//
// Producers (AST conversion, the checking passes, discharge, monomorphization)
// talk to a Reporter and never format anything themselves. Rendering lives in
// internal/diagfmt.
//
// A Diagnostic carries a Severity, a numeric Code, a short message, a primary
// span and optional notes. Notes are secondary labels: "instantiation occurs
// here", "source has width 8". Use them only when they point somewhere new.
//
// Bag stores diagnostics with an upper bound so that a runaway pass cannot
// flood the terminal; the driver sorts it before printing so output is stable
// regardless of which worker produced a diagnostic first.
package diag
