package ast

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"filament/internal/diag"
	"filament/internal/lexer"
	"filament/internal/source"
	"filament/internal/token"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"
)

// A source file is a TOML document:
//
//	filament = ">= 0.1"
//	imports = ["primitives/core.fil"]
//
//	[[extern]]
//	path = "core.sv"
//	[[extern.comp]]
//	name = "Add"
//	params = ["W"]
//	events = ["G: 1"]
//	inputs = ["left: ['G, 'G+1] W", "right: ['G, 'G+1] W"]
//	outputs = ["out: ['G, 'G+1] W"]
//
//	[[comp]]
//	name = "main"
//	...
//	body = '''
//	A := new Add[32];
//	a0 := A<'G>(left, right);
//	out = a0.out;
//	'''
//
// Signature entries and bodies are written in the expression syntax of
// ParseCommands.

type fileDoc struct {
	Filament string      `toml:"filament"`
	Imports  []string    `toml:"imports"`
	Extern   []externDoc `toml:"extern"`
	Comp     []compDoc   `toml:"comp"`
}

type externDoc struct {
	Path string   `toml:"path"`
	Gen  string   `toml:"gen"`
	Comp []sigDoc `toml:"comp"`
}

type sigDoc struct {
	Name       string   `toml:"name"`
	Toplevel   bool     `toml:"toplevel"`
	CounterFSM bool     `toml:"counter_fsm"`
	Params     []string `toml:"params"`
	Lets       []string `toml:"lets"`
	Exists     []string `toml:"exists"`
	Events     []string `toml:"events"`
	Interfaces []string `toml:"interfaces"`
	Inputs     []string `toml:"inputs"`
	Outputs    []string `toml:"outputs"`
	Where      []string `toml:"where"`
}

type compDoc struct {
	sigDoc
	Body string `toml:"body"`
}

// ErrLoad is returned when a file could not be loaded. The details have
// been reported.
var ErrLoad = errors.New("failed to load program")

// locator maps the strings of a decoded document back to the file they were
// read from. Strings are searched forward from the last match, so entries
// are found in file order.
type locator struct {
	file *source.File
	off  int
}

func (l *locator) find(s string) (start, end int, ok bool) {
	for _, q := range []string{`"`, `'`} {
		needle := []byte(q + s + q)
		if i := bytes.Index(l.file.Content[l.off:], needle); i >= 0 {
			start = l.off + i + 1
			return start, start + len(s), true
		}
		if i := bytes.Index(l.file.Content, needle); i >= 0 {
			return i + 1, i + 1 + len(s), true
		}
	}
	return 0, 0, false
}

// cursor returns a lexer cursor over the occurrence of s, or over a scratch
// copy when s cannot be found verbatim.
func (l *locator) cursor(s string, quoted bool) lexer.Cursor {
	start, end, ok := 0, 0, false
	if quoted {
		start, end, ok = l.find(s)
	} else if i := bytes.Index(l.file.Content[l.off:], []byte(s)); i >= 0 && s != "" {
		start, end, ok = l.off+i, l.off+i+len(s), true
	}
	if !ok {
		return scratch(s)
	}
	l.off = end
	return lexer.NewWindow(l.file, mustU32(start), mustU32(end))
}

// seek moves past the name of the table that starts an entry.
func (l *locator) seek(name string) {
	if start, _, ok := l.find(name); ok && start >= l.off {
		l.off = start
	}
}

func mustU32(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("source offset overflow: %w", err))
	}
	return v
}

// fileLoader converts one decoded document, reporting every syntax error.
type fileLoader struct {
	loc  locator
	r    diag.Reporter
	errs int
}

func (fl *fileLoader) syntax(err error) {
	fl.errs++
	var se *SyntaxError
	if errors.As(err, &se) {
		diag.ReportError(fl.r, diag.InpBadExpr, se.Span, se.Msg).Emit()
		return
	}
	diag.ReportError(fl.r, diag.InpBadExpr, source.NoSpan, err.Error()).Emit()
}

func parseEach[T any](fl *fileLoader, items []string, fn func(*parser) T) []T {
	out := make([]T, 0, len(items))
	for _, s := range items {
		v, err := parseWith(fl.loc.cursor(s, true), fn)
		if err != nil {
			fl.syntax(err)
			continue
		}
		out = append(out, v)
	}
	return out
}

func (fl *fileLoader) signature(d *sigDoc) Signature {
	fl.loc.seek(d.Name)
	start, end, ok := fl.loc.find(d.Name)
	nameSpan := source.NoSpan
	if ok {
		nameSpan = source.Span{File: fl.loc.file.ID, Start: mustU32(start), End: mustU32(end)}
	}
	sig := Signature{
		Name:  Ident{Name: d.Name, Span: nameSpan},
		Attrs: Attrs{Toplevel: d.Toplevel, CounterFSM: d.CounterFSM},
	}
	if d.Toplevel {
		sig.Attrs.ToplevelSpan = nameSpan
	}
	sig.Params = parseEach(fl, d.Params, (*parser).paramBind)
	sig.SigBinds = append(parseEach(fl, d.Lets, (*parser).sigLet), parseEach(fl, d.Exists, (*parser).sigExists)...)
	sig.Events = parseEach(fl, d.Events, (*parser).eventBind)
	sig.Interfaces = parseEach(fl, d.Interfaces, (*parser).interfaceDef)
	sig.Inputs = parseEach(fl, d.Inputs, (*parser).portDef)
	sig.Outputs = parseEach(fl, d.Outputs, (*parser).portDef)
	for _, w := range d.Where {
		c := fl.loc.cursor(w, true)
		if c.Peek() == '\'' {
			tc, err := parseWith(c, (*parser).timeConstraint)
			if err != nil {
				fl.syntax(err)
				continue
			}
			sig.EventConstraints = append(sig.EventConstraints, tc)
			continue
		}
		pc, err := parseWith(c, (*parser).constraint)
		if err != nil {
			fl.syntax(err)
			continue
		}
		sig.ParamConstraints = append(sig.ParamConstraints, pc)
	}
	return sig
}

// ParseFile decodes one source file that has already been added to a file
// set. Imports are returned unresolved.
func ParseFile(f *source.File, r diag.Reporter) (*Namespace, error) {
	var doc fileDoc
	meta, err := toml.Decode(string(f.Content), &doc)
	if err != nil {
		sp := source.Span{File: f.ID}
		var pe toml.ParseError
		if errors.As(err, &pe) {
			sp.Start = mustU32(pe.Position.Start)
			sp.End = sp.Start + mustU32(pe.Position.Len)
			diag.ReportError(r, diag.InpDecode, sp, pe.Message).Emit()
		} else {
			diag.ReportError(r, diag.InpDecode, sp, err.Error()).Emit()
		}
		return nil, fmt.Errorf("%s: %w", f.Path, ErrLoad)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		diag.ReportError(r, diag.InpDecode, source.Span{File: f.ID}, fmt.Sprintf("unknown keys %v", undecoded)).Emit()
		return nil, fmt.Errorf("%s: %w", f.Path, ErrLoad)
	}

	fl := &fileLoader{loc: locator{file: f}, r: r}
	ns := NewNamespace()
	ns.Imports = doc.Imports
	if doc.Filament != "" {
		req := Requirement{Constraint: doc.Filament, Span: source.Span{File: f.ID}}
		if start, end, ok := fl.loc.find(doc.Filament); ok {
			req.Span.Start, req.Span.End = mustU32(start), mustU32(end)
		}
		ns.Requires = append(ns.Requires, req)
	}
	for i := range doc.Extern {
		ed := &doc.Extern[i]
		ext := Extern{Path: ed.Path, Gen: ed.Gen}
		if ext.Path != "" && !filepath.IsAbs(ext.Path) {
			ext.Path = filepath.Join(filepath.Dir(f.Path), ext.Path)
		}
		for j := range ed.Comp {
			ext.Comps = append(ext.Comps, fl.signature(&ed.Comp[j]))
		}
		ns.Externs = append(ns.Externs, ext)
	}
	for i := range doc.Comp {
		cd := &doc.Comp[i]
		comp := Component{Sig: fl.signature(&cd.sigDoc)}
		body, err := parseWith(fl.loc.cursor(cd.Body, false), func(p *parser) []Command {
			return p.commands(token.EOF)
		})
		if err != nil {
			fl.syntax(err)
		}
		comp.Body = body
		ns.Components = append(ns.Components, comp)
	}
	if fl.errs > 0 {
		return nil, fmt.Errorf("%s: %d syntax errors: %w", f.Path, fl.errs, ErrLoad)
	}
	return ns, nil
}

// Loader resolves imports against the importing file and a list of library
// directories. Each file is read once.
type Loader struct {
	Files *source.FileSet
	Libs  []string
	R     diag.Reporter
	seen  map[string]bool
}

func NewLoader(fs *source.FileSet, libs []string, r diag.Reporter) *Loader {
	return &Loader{Files: fs, Libs: libs, R: r, seen: make(map[string]bool)}
}

// Load reads path and everything it imports. Imported declarations come
// before those of the importing file.
func (l *Loader) Load(path string) (*Namespace, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	out := NewNamespace()
	if err := l.load(abs, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Loader) load(path string, out *Namespace) error {
	if l.seen[path] {
		return nil
	}
	l.seen[path] = true
	id, err := l.Files.Load(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	ns, err := ParseFile(l.Files.Get(id), l.R)
	if err != nil {
		return err
	}
	for _, imp := range ns.Imports {
		resolved, err := l.resolve(filepath.Dir(path), imp)
		if err != nil {
			return err
		}
		if err := l.load(resolved, out); err != nil {
			return err
		}
	}
	out.Imports = append(out.Imports, ns.Imports...)
	out.Merge(ns)
	return nil
}

func (l *Loader) resolve(dir, imp string) (string, error) {
	if filepath.IsAbs(imp) {
		return imp, nil
	}
	for _, base := range append([]string{dir}, l.Libs...) {
		cand := filepath.Join(base, imp)
		if _, err := os.Stat(cand); err == nil {
			return filepath.Abs(cand)
		}
	}
	return "", fmt.Errorf("could not find import %q in %s or the library paths %v", imp, dir, l.Libs)
}
