package ast

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filament/internal/diag"
	"filament/internal/source"
)

const primsFile = `
[[extern]]
path = "core.sv"

[[extern.comp]]
name = "Add"
params = ["W"]
events = ["G: 1"]
inputs = ["left: ['G, 'G+1] W", "right: ['G, 'G+1] W"]
outputs = ["out: ['G, 'G+1] W"]
`

const mainFile = `
imports = ["prims.fil"]

[[comp]]
name = "main"
params = ["W = 32"]
events = ["G: 1"]
inputs = ["a: ['G, 'G+1] W", "b: ['G, 'G+1] W"]
outputs = ["o: ['G, 'G+1] W"]
where = ["W > 0", "'G >= 'G"]
body = '''
A := new Add[W];
a0 := A<'G>(a, b);
o = a0.out;
'''
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadResolvesLibraryImports(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib")
	writeFile(t, filepath.Join(lib, "prims.fil"), primsFile)
	writeFile(t, filepath.Join(dir, "src", "main.fil"), mainFile)

	fs := source.NewFileSet()
	bag := diag.NewBag(10)
	ns, err := NewLoader(fs, []string{lib}, diag.NewBagReporter(bag)).Load(filepath.Join(dir, "src", "main.fil"))
	if err != nil {
		t.Fatalf("Load: %v (%v)", err, bag.Items())
	}
	if len(ns.Externs) != 1 || len(ns.Components) != 1 {
		t.Fatalf("externs = %d, components = %d", len(ns.Externs), len(ns.Components))
	}
	if want := filepath.Join(lib, "core.sv"); ns.Externs[0].Path != want {
		t.Fatalf("extern path = %s, want %s", ns.Externs[0].Path, want)
	}
	main := ns.Components[0]
	if len(main.Body) != 3 || len(main.Sig.ParamConstraints) != 1 || len(main.Sig.EventConstraints) != 1 {
		t.Fatalf("main = %+v", main)
	}
	if main.Sig.Params[0].Default.Value != 32 {
		t.Fatalf("default = %s", main.Sig.Params[0].Default)
	}
	if i, ok := ns.MainIdx(); !ok || i != 0 {
		t.Fatalf("MainIdx = %d, %v", i, ok)
	}
	if ns.RequiresGen() || ns.ExternCount() != 1 {
		t.Fatalf("RequiresGen = %v, ExternCount = %d", ns.RequiresGen(), ns.ExternCount())
	}
}

func TestSpansPointIntoTheFile(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.Add("main.fil", []byte(mainFile))
	f := fs.Get(id)
	ns, err := ParseFile(f, diag.NopReporter{})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	text := func(sp source.Span) string { return string(f.Content[sp.Start:sp.End]) }
	sig := ns.Components[0].Sig
	if got := text(sig.Name.Span); got != "main" {
		t.Fatalf("name span covers %q", got)
	}
	if got := text(sig.Inputs[1].Width.Span); got != "W" || sig.Inputs[1].Width.Span.Start < sig.Inputs[0].Span.End {
		t.Fatalf("width span covers %q", got)
	}
	inst := ns.Components[0].Body[0].(*Instance)
	if got := text(inst.Span); got != "A := new Add[W];" {
		t.Fatalf("instance span covers %q", got)
	}
}

func TestRequirementsAreCollected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "prims.fil"), "filament = \">= 0.1\"\n"+primsFile)
	writeFile(t, filepath.Join(dir, "main.fil"), "filament = '~0.1'\n"+mainFile)

	fs := source.NewFileSet()
	ns, err := NewLoader(fs, nil, diag.NopReporter{}).Load(filepath.Join(dir, "main.fil"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ns.Requires) != 2 {
		t.Fatalf("requires = %+v", ns.Requires)
	}
	// Imports merge first.
	if ns.Requires[0].Constraint != ">= 0.1" || ns.Requires[1].Constraint != "~0.1" {
		t.Fatalf("requires = %+v", ns.Requires)
	}
	req := ns.Requires[1]
	f := fs.Get(req.Span.File)
	if got := string(f.Content[req.Span.Start:req.Span.End]); got != "~0.1" {
		t.Fatalf("span covers %q", got)
	}
}

func TestLoadReportsErrors(t *testing.T) {
	cases := map[string]string{
		"[[comp]]\nname = \"x\"\nbody = \"a := ;\"\n": "expected",
		"[[comp]]\nname = \"x\"\ncolour = \"red\"\n":  "unknown keys",
		"[[comp]\n": "",
		"[[comp]]\nname = \"x\"\nevents = [\"G\"]\n": "expected `:'",
	}
	for src, want := range cases {
		fs := source.NewFileSet()
		id := fs.Add("bad.fil", []byte(src))
		bag := diag.NewBag(10)
		_, err := ParseFile(fs.Get(id), diag.NewBagReporter(bag))
		if !errors.Is(err, ErrLoad) {
			t.Fatalf("ParseFile(%q) = %v, want ErrLoad", src, err)
		}
		if !bag.HasErrors() || !strings.Contains(bag.Items()[0].Message, want) {
			t.Fatalf("ParseFile(%q) reported %+v, want %q", src, bag.Items(), want)
		}
	}
}

func TestMissingImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.fil"), "imports = [\"nope.fil\"]\n")
	_, err := NewLoader(source.NewFileSet(), nil, diag.NopReporter{}).Load(filepath.Join(dir, "main.fil"))
	if err == nil || !strings.Contains(err.Error(), "could not find import") {
		t.Fatalf("err = %v", err)
	}
}
