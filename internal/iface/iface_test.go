package iface

import (
	"errors"
	"strings"
	"testing"

	"filament/internal/testkit"
)

func TestWriteGolden(t *testing.T) {
	p := testkit.NewProgram()
	m := p.Component("main")
	g := m.Event("G", 3, true)
	m.Input("left", 32, m.At(g, 0), m.At(g, 1))
	m.Output("out", 32, m.At(g, 4), m.At(g, 5))
	p.Main(m)

	var sb strings.Builder
	if err := Write(&sb, p.Ctx); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := `{
"interfaces": [
{"name": "go_G", "event": "G", "delay": 3, "states": 5, "phantom": false }
],
"inputs": [
{ "event": "G", "name": "left", "width": 32 , "start": 0, "end": 1 }
],
"outputs": [
{ "event": "G", "name": "out", "width": 32 , "start": 4, "end": 5 }
]
}
`
	if sb.String() != want {
		t.Fatalf("got:\n%s\nwant:\n%s", sb.String(), want)
	}
}

func TestPhantomEventHasNullName(t *testing.T) {
	p := testkit.NewProgram()
	m := p.Component("main")
	m.Event("T", 1, false)
	p.Main(m)

	var sb strings.Builder
	if err := Write(&sb, p.Ctx); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := `{"name": null, "event": "T", "delay": 1, "states": 0, "phantom": true }`
	if !strings.Contains(sb.String(), want) {
		t.Fatalf("got:\n%s\nwant line %s", sb.String(), want)
	}
	if !strings.Contains(sb.String(), "\"inputs\": [\n\n],") {
		t.Fatalf("empty inputs not rendered as an empty array:\n%s", sb.String())
	}
}

func TestStatesTakesLargestEnd(t *testing.T) {
	p := testkit.NewProgram()
	m := p.Component("main")
	g := m.Event("G", 10, true)
	m.Input("a", 1, m.At(g, 0), m.At(g, 7))
	m.Input("b", 1, m.At(g, 2), m.At(g, 3))
	states, err := States(m.C)
	if err != nil {
		t.Fatalf("States: %v", err)
	}
	if states[g] != 7 {
		t.Fatalf("states = %d, want 7", states[g])
	}
}

func TestBundlePortRejected(t *testing.T) {
	p := testkit.NewProgram()
	m := p.Component("main")
	g := m.Event("G", 1, true)
	m.Input("xs", 8, m.At(g, 0), m.At(g, 1), 4)
	p.Main(m)
	var sb strings.Builder
	if err := Write(&sb, p.Ctx); err == nil || !strings.Contains(err.Error(), "bundle") {
		t.Fatalf("err = %v", err)
	}
}

func TestNoEntrypoint(t *testing.T) {
	p := testkit.NewProgram()
	var sb strings.Builder
	if err := Write(&sb, p.Ctx); !errors.Is(err, ErrNoEntrypoint) {
		t.Fatalf("err = %v", err)
	}
}
