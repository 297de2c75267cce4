package source

import "testing"

func TestFileSetResolve(t *testing.T) {
	fs := NewFileSet()
	id := fs.Add("a.fil", []byte("comp main\r\n  x := 1\n"))
	f := fs.Get(id)
	if got := f.Line(2); got != "  x := 1" {
		t.Fatalf("line 2: got %q", got)
	}
	start, end := fs.Resolve(Span{File: id, Start: 12, End: 13})
	if start != (LineCol{Line: 2, Col: 3}) {
		t.Fatalf("start: got %+v", start)
	}
	if end.Col != 4 {
		t.Fatalf("end col: got %d, want 4", end.Col)
	}
	if got, ok := fs.Lookup("./a.fil"); !ok || got != id {
		t.Fatalf("lookup: got %d %v", got, ok)
	}
	fs.Add("b.fil", nil)
	fs.Add("a.fil", nil)
	if got := fs.Paths(); len(got) != 2 || got[0] != "a.fil" || got[1] != "b.fil" {
		t.Fatalf("paths: got %v", got)
	}
}

func TestNoSpan(t *testing.T) {
	if NoSpan.IsValid() {
		t.Fatalf("NoSpan must be invalid")
	}
	sp := Span{File: 0, Start: 4, End: 6}
	if got := NoSpan.Cover(sp); got != sp {
		t.Fatalf("got %v, want %v", got, sp)
	}
	if got := sp.Cover(Span{File: 0, Start: 1, End: 5}); got.Start != 1 || got.End != 6 {
		t.Fatalf("cover: got %v", got)
	}
}

func TestInternerNFC(t *testing.T) {
	in := NewInterner()
	a := in.Intern("café")
	b := in.Intern("café")
	if a != b {
		t.Fatalf("got %d and %d, want equal ids", a, b)
	}
	if in.Intern("x") == a {
		t.Fatalf("distinct names share an id")
	}
	if got := in.MustLookup(a); got != "café" {
		t.Fatalf("got %q", got)
	}
}
