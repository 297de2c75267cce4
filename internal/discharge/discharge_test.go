package discharge

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"filament/internal/config"
	"filament/internal/diag"
	"filament/internal/ir"
	"filament/internal/smt"
	"filament/internal/source"
	"filament/internal/testkit"
	"filament/internal/visitor"
)

type fakeSolver struct {
	results []smt.Result
	checks  int
	sent    []string
	closed  bool
}

func (f *fakeSolver) Send(cmds ...string) error {
	f.sent = append(f.sent, cmds...)
	return nil
}

func (f *fakeSolver) CheckSat(...string) (smt.Result, error) {
	if f.checks >= len(f.results) {
		return smt.Unknown, errors.New("unexpected check")
	}
	r := f.results[f.checks]
	f.checks++
	return r, nil
}

func (f *fakeSolver) GetValue(terms []string) ([]string, error) {
	out := make([]string, len(terms))
	for i := range out {
		out[i] = "3"
	}
	return out, nil
}

func (f *fakeSolver) Close() error {
	f.closed = true
	return nil
}

func using(s smt.Solver) Factory {
	return func(context.Context, io.Writer) (smt.Solver, error) { return s, nil }
}

func noSolver(t *testing.T) Factory {
	return func(context.Context, io.Writer) (smt.Solver, error) {
		t.Errorf("no solver should be started")
		return nil, errors.New("unexpected solver")
	}
}

func program() (*testkit.Program, *testkit.Comp, ir.ExprIdx) {
	p := testkit.NewProgram()
	m := p.Component("main")
	_, n := m.Param("N")
	return p, m, n
}

func assert(m *testkit.Comp, prop ir.PropIdx) {
	info := m.C.AddInfo(ir.AssertInfo(ir.MiscReason("obligation failed", source.NoSpan)))
	m.C.Cmds = append(m.C.Cmds, ir.AssertFact(prop, info))
}

func run(p *testkit.Program, opts *config.Options, f Factory) (*diag.Bag, error) {
	bag := diag.NewBag(100)
	err := New(opts, diag.NewBagReporter(bag)).WithSolver(f).Run(context.Background(), p.Ctx)
	return bag, err
}

func errorCount(t *testing.T, err error) uint64 {
	t.Helper()
	if err == nil {
		return 0
	}
	var perr *visitor.PassError
	if !errors.As(err, &perr) {
		t.Fatalf("got %v, want a pass error", err)
	}
	return perr.Errors
}

func TestLiteralFalseFails(t *testing.T) {
	p, m, _ := program()
	assert(m, m.C.FalseProp())

	bag, err := run(p, config.Defaults(), noSolver(t))
	if got := errorCount(t, err); got != 1 {
		t.Fatalf("got %d errors, want 1", got)
	}
	if d := bag.Items()[0]; d.Code != diag.ObgMisc || d.Message != "obligation failed" {
		t.Fatalf("got %v, want the reason of the obligation", d)
	}
}

func TestGroundObligationsSkipSolver(t *testing.T) {
	p, m, _ := program()
	c := m.C
	info := c.AddInfo(ir.EmptyInfo())
	x := c.Params.Add(ir.Param{Owner: ir.LetParam(m.Num(5)), Info: info})
	assert(m, c.ParamRef(x).Gt(m.Num(3), c))

	if _, err := run(p, config.Defaults(), noSolver(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBatchedProof(t *testing.T) {
	p, m, n := program()
	c := m.C
	assert(m, n.Add(m.Num(1), c).Gt(n, c))
	assert(m, n.Add(m.Num(2), c).Gt(n, c))

	s := &fakeSolver{results: []smt.Result{smt.Unsat}}
	if _, err := run(p, config.Defaults(), using(s)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.checks != 1 {
		t.Fatalf("got %d checks, want a single batched check", s.checks)
	}
	if !s.closed {
		t.Fatalf("solver was not closed")
	}
}

func TestBatchedFallback(t *testing.T) {
	p, m, n := program()
	c := m.C
	assert(m, n.Add(m.Num(1), c).Gt(n, c))
	assert(m, n.Gt(m.Num(4), c))

	opts := config.Defaults()
	opts.ShowModels = true
	s := &fakeSolver{results: []smt.Result{smt.Sat, smt.Unsat, smt.Sat}}
	bag, err := run(p, opts, using(s))
	if got := errorCount(t, err); got != 1 {
		t.Fatalf("got %d errors, want 1", got)
	}
	if s.checks != 3 {
		t.Fatalf("got %d checks, want 3", s.checks)
	}
	var notes []string
	for _, n := range bag.Items()[0].Notes {
		notes = append(notes, n.Msg)
	}
	joined := strings.Join(notes, "\n")
	if !strings.Contains(joined, "Counterexample: N = 3") {
		t.Fatalf("missing counterexample in %q", joined)
	}
	if !strings.Contains(joined, "Cannot prove constraint: N > 4") {
		t.Fatalf("missing constraint in %q", joined)
	}
}

func TestSeparateChecks(t *testing.T) {
	p, m, n := program()
	c := m.C
	assert(m, n.Add(m.Num(1), c).Gt(n, c))
	assert(m, n.Add(m.Num(2), c).Gt(n, c))

	opts := config.Defaults()
	opts.DischargeSeparate = true
	s := &fakeSolver{results: []smt.Result{smt.Unsat, smt.Unsat}}
	if _, err := run(p, opts, using(s)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.checks != 2 {
		t.Fatalf("got %d checks, want 2", s.checks)
	}
}

func TestUnknownIsNotProved(t *testing.T) {
	p, m, n := program()
	assert(m, n.Gt(m.Num(4), m.C))

	s := &fakeSolver{results: []smt.Result{smt.Unknown}}
	bag, err := run(p, config.Defaults(), using(s))
	if got := errorCount(t, err); got != 1 {
		t.Fatalf("got %d errors, want 1", got)
	}
	notes := bag.Items()[0].Notes
	if len(notes) == 0 || notes[0].Msg != "the solver could not decide this constraint" {
		t.Fatalf("got notes %v", notes)
	}
}

func TestSolverStartFailure(t *testing.T) {
	p, m, n := program()
	assert(m, n.Gt(m.Num(4), m.C))

	fail := func(context.Context, io.Writer) (smt.Solver, error) {
		return nil, errors.New("z3: executable file not found")
	}
	bag, err := run(p, config.Defaults(), fail)
	if got := errorCount(t, err); got != 2 {
		t.Fatalf("got %d errors, want 2", got)
	}
	if bag.Items()[0].Code != diag.SolStart {
		t.Fatalf("got %v, want a solver start error first", bag.Items()[0])
	}
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, err := OpenCache(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	key := Key([]string{"(declare-const x Int)"}, "prop3")
	if c.Has(key) {
		t.Fatalf("fresh cache must be empty")
	}
	c.Add(key)
	if err := c.Save(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	again, err := OpenCache(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !again.Has(key) || again.Len() != 1 {
		t.Fatalf("cache lost its entry")
	}
	if Key([]string{"(declare-const y Int)"}, "prop3") == key {
		t.Fatalf("keys must depend on the declarations")
	}
}

func TestCachedProofsSkipSolver(t *testing.T) {
	dir := t.TempDir()
	build := func() *testkit.Program {
		p, m, n := program()
		assert(m, n.Gt(m.Num(4), m.C))
		return p
	}
	cache, err := OpenCache(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := &fakeSolver{results: []smt.Result{smt.Unsat}}
	d := New(config.Defaults(), diag.NopReporter{}).WithSolver(using(s)).WithCache(cache)
	if err := d.Run(context.Background(), build().Ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cache, err = OpenCache(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d = New(config.Defaults(), diag.NopReporter{}).WithSolver(noSolver(t)).WithCache(cache)
	if err := d.Run(context.Background(), build().Ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
