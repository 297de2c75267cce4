package config

import (
	"errors"
	"slices"
	"testing"
)

func TestParseBindings(t *testing.T) {
	b, err := ParseBindings(`
params = [4, 8]

[gen.flopoco]
frequency = "800"
`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !slices.Equal(b.Params, []uint64{4, 8}) {
		t.Fatalf("got params %v, want [4 8]", b.Params)
	}
	if got := b.Tool("flopoco")["frequency"]; got != "800" {
		t.Fatalf("got frequency %q, want 800", got)
	}
}

func TestParseBindingsRejectsUnknownKeys(t *testing.T) {
	_, err := ParseBindings("param = [1]\n")
	if !errors.Is(err, ErrUndecodedKeys) {
		t.Fatalf("got %v, want ErrUndecodedKeys", err)
	}
}

func TestLoadBindingsEmptyPath(t *testing.T) {
	b, err := LoadBindings("")
	if err != nil || len(b.Params) != 0 {
		t.Fatalf("got %v, %v; want empty bindings", b, err)
	}
}

func TestParseSolver(t *testing.T) {
	for _, name := range []string{"z3", "cvc5", "boolector", "bitwuzla"} {
		s, err := ParseSolver(name)
		if err != nil || s.String() != name {
			t.Fatalf("got %v, %v; want %s", s, err, name)
		}
	}
	if _, err := ParseSolver("yices"); err == nil {
		t.Fatalf("expected an error for an unknown solver")
	}
}

func TestShouldDump(t *testing.T) {
	o := Defaults()
	o.DumpAfter = []string{"typecheck"}
	if !o.ShouldDump("typecheck") || o.ShouldDump("mono") {
		t.Fatalf("dump-after selection is wrong")
	}
	o.DumpAll = true
	if !o.ShouldDump("mono") {
		t.Fatalf("dump-all must select every pass")
	}
}
