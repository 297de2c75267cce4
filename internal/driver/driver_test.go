package driver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filament/internal/config"
	"filament/internal/diag"
	"filament/internal/pipeline"
	"filament/internal/smt"
)

const adder = `
[[extern]]
path = "core.sv"

[[extern.comp]]
name = "Add"
params = ["W"]
events = ["G: 1"]
inputs = ["left: ['G, 'G+1] W", "right: ['G, 'G+1] W"]
outputs = ["out: ['G, 'G+1] W"]

[[comp]]
name = "main"
params = ["W = 32"]
events = ["G: 1"]
inputs = ["a: ['G, 'G+1] W", "b: ['G, 'G+1] W"]
outputs = ["o: ['G, 'G+1] W"]
body = '''
A := new Add[W];
a0 := A<'G>(a, b);
o = a0.out;
'''
`

// provedSolver answers unsat to every check, so every obligation holds.
type provedSolver struct{ checks int }

func (s *provedSolver) Send(...string) error { return nil }

func (s *provedSolver) CheckSat(...string) (smt.Result, error) {
	s.checks++
	return smt.Unsat, nil
}

func (s *provedSolver) GetValue(terms []string) ([]string, error) {
	return make([]string, len(terms)), nil
}

func (s *provedSolver) Close() error { return nil }

func writeInput(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func request(path string, out io.Writer, edit func(*config.Options)) (*Request, *pipeline.Recorder) {
	opts := config.Defaults()
	opts.Input = path
	if edit != nil {
		edit(opts)
	}
	rec := &pipeline.Recorder{}
	return &Request{
		Opts:     opts,
		Stdout:   out,
		Progress: rec,
		Solver: func(context.Context, io.Writer) (smt.Solver, error) {
			return &provedSolver{}, nil
		},
	}, rec
}

// final returns the last status reported for each stage.
func final(rec *pipeline.Recorder) map[pipeline.Stage]pipeline.Status {
	out := make(map[pipeline.Stage]pipeline.Status)
	for _, ev := range rec.Events {
		out[ev.Stage] = ev.Status
	}
	return out
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestDumpInterface(t *testing.T) {
	var out bytes.Buffer
	req, rec := request(writeInput(t, "adder.fil", adder), &out, func(o *config.Options) {
		o.DumpInterface = true
		o.UnsafeSkipDischarge = true
	})
	res, err := Compile(context.Background(), req)
	if err != nil {
		t.Fatalf("Compile: %v (%v)", err, res.Bag.Items())
	}
	for _, want := range []string{`"inputs": [`, `"name": "a"`, `"name": "o"`, `"width": 32`} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("interface lacks %q:\n%s", want, out.String())
		}
	}
	st := final(rec)
	if st[pipeline.StageDischarge] != pipeline.StatusSkipped {
		t.Fatalf("discharge = %s, want skipped", st[pipeline.StageDischarge])
	}
	for _, s := range []pipeline.Stage{pipeline.StageLoad, pipeline.StageConvert, pipeline.StageCheck, pipeline.StageMono, pipeline.StageAssign, pipeline.StageEmit} {
		if st[s] != pipeline.StatusDone {
			t.Fatalf("stage %s = %s, want done", s, st[s])
		}
	}
	if !res.Timings.Has(pipeline.StageMono) {
		t.Fatalf("no timing for %s", pipeline.StageMono)
	}
}

const chain = `
[[comp]]
name = "main"
params = ["N = 3"]
events = ["G: 1"]
inputs = ["x: ['G, 'G+1] 32"]
outputs = ["y: ['G, 'G+1] 32"]
body = '''
bundle t[N+1]: ['G, 'G+1] 32;
t{0} = x;
for i in 0..N {
  t{i+1} = t{i};
}
y = t{N};
'''
`

func TestDumpInterfaceAfterBundleElimination(t *testing.T) {
	var out bytes.Buffer
	req, rec := request(writeInput(t, "chain.fil", chain), &out, func(o *config.Options) {
		o.DumpInterface = true
		o.UnsafeSkipDischarge = true
	})
	res, err := Compile(context.Background(), req)
	if err != nil {
		t.Fatalf("Compile: %v (%v)", err, res.Bag.Items())
	}
	if st := final(rec)[pipeline.StageAssign]; st != pipeline.StatusDone {
		t.Fatalf("assign = %s, want done", st)
	}
	for _, want := range []string{`"name": "x"`, `"name": "y"`} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("interface lacks %q:\n%s", want, out.String())
		}
	}
	main := res.IR.Get(res.IR.Entrypoint.Comp)
	for _, idx := range main.Ports.Idxs() {
		if main.Ports.Get(idx).IsLocal() {
			t.Fatalf("local port %s survived", main.DisplayPort(idx))
		}
	}
}

func TestCheckOnlyStopsBeforeEmit(t *testing.T) {
	var out bytes.Buffer
	req, rec := request(writeInput(t, "adder.fil", adder), &out, func(o *config.Options) {
		o.Check = true
	})
	res, err := Compile(context.Background(), req)
	if err != nil {
		t.Fatalf("Compile: %v (%v)", err, res.Bag.Items())
	}
	if out.Len() != 0 {
		t.Fatalf("check wrote output:\n%s", out.String())
	}
	st := final(rec)
	if st[pipeline.StageDischarge] != pipeline.StatusDone || st[pipeline.StageEmit] != pipeline.StatusSkipped {
		t.Fatalf("statuses = %v", st)
	}
	if res.Errors != 0 {
		t.Fatalf("errors = %d", res.Errors)
	}
}

func TestEmitWritesIR(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, "adder.fil", adder)
	req, _ := request(input, io.Discard, func(o *config.Options) {
		o.OutDir = dir
		o.UnsafeSkipDischarge = true
	})
	if _, err := Compile(context.Background(), req); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "adder.ir"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "// filament ") || !strings.Contains(text, "backend=verilog entrypoint=main") {
		t.Fatalf("header:\n%s", text)
	}
	if !strings.Contains(text, "// extern "+filepath.Join(filepath.Dir(input), "core.sv")) {
		t.Fatalf("externals not annotated:\n%s", text)
	}
}

func TestDumpAfter(t *testing.T) {
	var out bytes.Buffer
	req, _ := request(writeInput(t, "adder.fil", adder), &out, func(o *config.Options) {
		o.Check = true
		o.UnsafeSkipDischarge = true
		o.DumpAfter = []string{"type-check"}
	})
	if _, err := Compile(context.Background(), req); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if strings.Count(out.String(), "// after ") != 1 || !strings.Contains(out.String(), "// after type-check") {
		t.Fatalf("dump:\n%s", out.String())
	}
}

func TestConversionErrorStopsPipeline(t *testing.T) {
	src := strings.Replace(adder, "new Add[W]", "new Mul[W]", 1)
	req, rec := request(writeInput(t, "bad.fil", src), io.Discard, nil)
	res, err := Compile(context.Background(), req)
	var failed *FailedError
	if !errors.As(err, &failed) || !errors.Is(err, ErrFailed) {
		t.Fatalf("err = %v, want *FailedError", err)
	}
	if failed.Stage != pipeline.StageConvert || failed.Errors != res.Errors || res.Errors == 0 {
		t.Fatalf("failure = %+v, result errors = %d", failed, res.Errors)
	}
	if !hasCode(res.Bag, diag.InpUnknownName) {
		t.Fatalf("diagnostics = %v", res.Bag.Items())
	}
	if err.Error() != "Compilation failed with 1 errors." {
		t.Fatalf("message = %q", err.Error())
	}
	st := final(rec)
	if st[pipeline.StageConvert] != pipeline.StatusError || st[pipeline.StageCheck] != pipeline.StatusSkipped {
		t.Fatalf("statuses = %v", st)
	}
}

func TestInputErrors(t *testing.T) {
	tests := []struct {
		name  string
		input func(t *testing.T) string
		edit  func(*config.Options)
		code  diag.Code
	}{
		{
			name:  "missing file",
			input: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.fil") },
			code:  diag.InpDecode,
		},
		{
			name:  "bad bindings",
			input: func(t *testing.T) string { return writeInput(t, "adder.fil", adder) },
			edit: func(o *config.Options) {
				o.BindingsPath = filepath.Join(os.TempDir(), "filament-no-such-bindings.toml")
			},
			code: diag.InpBindings,
		},
		{
			name:  "newer compiler required",
			input: func(t *testing.T) string { return writeInput(t, "adder.fil", "filament = \">= 99\"\n"+adder) },
			code:  diag.InpVersion,
		},
		{
			name: "missing generator manifest",
			input: func(t *testing.T) string {
				return writeInput(t, "gen.fil", `
[[extern]]
path = "tools/missing.toml"
gen = "shift"

[[extern.comp]]
name = "Shift"
params = ["W"]
events = ["G: 1"]
`)
			},
			code: diag.InpGenTool,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := request(tt.input(t), io.Discard, tt.edit)
			res, err := Compile(context.Background(), req)
			if !errors.Is(err, ErrFailed) {
				t.Fatalf("err = %v, want ErrFailed", err)
			}
			if !hasCode(res.Bag, tt.code) {
				t.Fatalf("diagnostics %v lack code %d", res.Bag.Items(), tt.code)
			}
		})
	}
}

func TestNoEntrypoint(t *testing.T) {
	src := strings.Replace(adder, `name = "main"`, `name = "helper"`, 1)
	path := writeInput(t, "lib.fil", src)

	req, rec := request(path, io.Discard, func(o *config.Options) { o.UnsafeSkipDischarge = true })
	res, err := Compile(context.Background(), req)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !hasCode(res.Bag, diag.InpNoEntrypoint) || res.Errors != 0 {
		t.Fatalf("diagnostics = %v", res.Bag.Items())
	}
	if st := final(rec); st[pipeline.StageMono] != pipeline.StatusSkipped {
		t.Fatalf("statuses = %v", st)
	}

	req, _ = request(path, io.Discard, func(o *config.Options) { o.DumpInterface = true })
	if _, err := Compile(context.Background(), req); !errors.Is(err, ErrFailed) {
		t.Fatalf("dump-interface without entrypoint: err = %v", err)
	}

	req, _ = request(path, io.Discard, func(o *config.Options) {
		o.UnsafeSkipDischarge = true
		o.Toplevel = "helper"
	})
	res, err = Compile(context.Background(), req)
	if err != nil || hasCode(res.Bag, diag.InpNoEntrypoint) {
		t.Fatalf("toplevel override: err = %v, diagnostics = %v", err, res.Bag.Items())
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ := request(writeInput(t, "adder.fil", adder), io.Discard, nil)
	if _, err := Compile(ctx, req); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
