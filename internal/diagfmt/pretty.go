package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"filament/internal/diag"
	"filament/internal/source"
)

type palette struct {
	sev     map[diag.Severity]*color.Color
	loc     *color.Color
	gutter  *color.Color
	caret   *color.Color
	noteHdr *color.Color
}

func newPalette(enabled bool) *palette {
	p := &palette{
		sev: map[diag.Severity]*color.Color{
			diag.SevError:   color.New(color.FgRed, color.Bold),
			diag.SevWarning: color.New(color.FgYellow, color.Bold),
			diag.SevInfo:    color.New(color.FgCyan, color.Bold),
		},
		loc:     color.New(color.Bold),
		gutter:  color.New(color.FgBlue),
		caret:   color.New(color.FgRed, color.Bold),
		noteHdr: color.New(color.FgGreen, color.Bold),
	}
	for _, c := range []*color.Color{p.sev[diag.SevError], p.sev[diag.SevWarning], p.sev[diag.SevInfo], p.loc, p.gutter, p.caret, p.noteHdr} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Pretty renders the diagnostics of bag in order. Each one prints as
//
//	<path>:<line>:<col>: <SEV> <CODE>: <Message>
//
// followed by the source line with the span underlined and then the notes.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	pr := &prettyPrinter{w: w, fs: fs, opts: opts, pal: newPalette(opts.Color)}
	for _, d := range bag.Items() {
		pr.diagnostic(d)
	}
}

type prettyPrinter struct {
	w    io.Writer
	fs   *source.FileSet
	opts PrettyOpts
	pal  *palette
}

func (p *prettyPrinter) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(p.w, format, args...); err != nil {
		panic(err)
	}
}

// location renders a span as path:line:col, or "" when it has no file.
func (p *prettyPrinter) location(sp source.Span) string {
	if !sp.IsValid() || p.fs == nil {
		return ""
	}
	f := p.fs.Get(sp.File)
	if f == nil {
		return ""
	}
	pos := f.Position(sp.Start)
	return fmt.Sprintf("%s:%d:%d", formatPath(f.Path, p.opts.PathMode, p.opts.BaseDir), pos.Line, pos.Col)
}

func (p *prettyPrinter) diagnostic(d diag.Diagnostic) {
	sevColor := p.pal.sev[d.Severity]
	if sevColor == nil {
		sevColor = p.pal.sev[diag.SevError]
	}
	if loc := p.location(d.Primary); loc != "" {
		p.printf("%s: ", p.pal.loc.Sprint(loc))
	}
	p.printf("%s %s: %s\n", sevColor.Sprint(strings.ToUpper(d.Severity.String())), d.Code.ID(), d.Message)
	p.snippet(d.Primary, d.Label)

	if !p.opts.ShowNotes {
		return
	}
	for _, n := range d.Notes {
		hdr := p.pal.noteHdr.Sprint("note")
		if loc := p.location(n.Span); loc != "" {
			p.printf("%s: %s: %s\n", hdr, p.pal.loc.Sprint(loc), n.Msg)
			p.snippet(n.Span, "")
			continue
		}
		p.printf("%s: %s\n", hdr, n.Msg)
	}
}

// snippet prints the line of sp with its context and underlines the span.
// A span covering several lines is underlined to the end of its first line.
func (p *prettyPrinter) snippet(sp source.Span, label string) {
	if !sp.IsValid() || p.fs == nil {
		return
	}
	f := p.fs.Get(sp.File)
	if f == nil {
		return
	}
	start, end := f.Position(sp.Start), f.Position(sp.End)
	ctx := uint32(max(p.opts.Context, 0))
	first := uint32(1)
	if start.Line > ctx {
		first = start.Line - ctx
	}
	last := start.Line + ctx
	gutterWidth := len(fmt.Sprint(last))

	for n := first; n <= last; n++ {
		text := f.Line(n)
		if n > start.Line && text == "" {
			break
		}
		p.printf("%s %s\n", p.pal.gutter.Sprintf("%*d |", gutterWidth, n), expandTabs(text))
		if n != start.Line {
			continue
		}
		line := text
		from := min(int(start.Col-1), len(line))
		to := len(line)
		if end.Line == start.Line {
			to = min(int(end.Col-1), len(line))
		}
		pad := runewidth.StringWidth(expandTabs(line[:from]))
		width := max(runewidth.StringWidth(expandTabs(line[from:max(from, to)])), 1)
		marks := "^" + strings.Repeat("~", width-1)
		if label != "" {
			marks += " " + label
		}
		p.printf("%s %s%s\n", p.pal.gutter.Sprintf("%*s |", gutterWidth, ""), strings.Repeat(" ", pad), p.pal.caret.Sprint(marks))
	}
}

func expandTabs(s string) string { return strings.ReplaceAll(s, "\t", "    ") }
