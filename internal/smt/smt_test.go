package smt

import (
	"bufio"
	"context"
	"os/exec"
	"slices"
	"strings"
	"testing"

	"filament/internal/config"
	"filament/internal/ir"
	"filament/internal/testkit"
)

func TestReadNode(t *testing.T) {
	src := `; comment
((x 1) (|a b@param0| (- 3)) ("s""q" #b101))`
	n, err := readNode(bufio.NewReader(strings.NewReader(src)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !n.IsList || len(n.List) != 3 {
		t.Fatalf("got %s, want a list of three", n)
	}
	if got := n.List[1].List[0].Atom; got != "|a b@param0|" {
		t.Fatalf("got %q, want the quoted symbol", got)
	}
	if got := unquote(n.List[2].List[0].Atom); got != `s"q` {
		t.Fatalf("got %q, want %q", got, `s"q`)
	}
}

func TestReadNodeUnbalanced(t *testing.T) {
	if _, err := readNode(bufio.NewReader(strings.NewReader("(a (b"))); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestParseValues(t *testing.T) {
	n, err := readNode(bufio.NewReader(strings.NewReader("((x 4) (y (- 2)) (z #x0a) (w (_ bv7 16)))")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := parseValues(n, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"4", "-2", "10", "7"}; !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if _, err := parseValues(n, 3); err == nil {
		t.Fatalf("expected an error for a short model")
	}
}

func sample() (*testkit.Comp, ir.ParamIdx, ir.ExprIdx) {
	p := testkit.NewProgram()
	m := p.Component("main")
	n, ne := m.Param("N")
	return m, n, ne
}

func TestEncoderDefinesOnce(t *testing.T) {
	m, _, n := sample()
	c := m.C
	prop := n.Add(m.Num(1), c).Gt(n, c)
	enc := NewEncoder(c, nil, config.SolverCVC5, 0)

	name := enc.Prop(prop)
	if name != prop.String() {
		t.Fatalf("got %s, want %s", name, prop)
	}
	cmds := enc.Take()
	want := []string{
		"(declare-const param0 Int)",
		"(assert (>= param0 0))",
	}
	if len(cmds) < len(want) || !slices.Equal(cmds[:2], want) {
		t.Fatalf("got %v, want prefix %v", cmds, want)
	}
	if enc.Prop(prop) != name || len(enc.Take()) != 0 {
		t.Fatalf("second use must not emit definitions")
	}
	if p, ok := enc.ParamOf("param0"); !ok || c.ParamRef(p) != n {
		t.Fatalf("cannot map param0 back to N")
	}
}

func TestEncoderBitvector(t *testing.T) {
	m, _, n := sample()
	c := m.C
	enc := NewEncoder(c, nil, config.SolverBoolector, 4)
	if got := enc.Sort(); got != "(_ BitVec 8)" {
		t.Fatalf("got %s, want (_ BitVec 8)", got)
	}
	enc.Expr(n.Mul(m.Num(3), c))
	cmds := strings.Join(enc.Take(), "\n")
	for _, want := range []string{"(_ bv3 8)", "bvmul", "(assert (bvult param0 (_ bv16 8)))"} {
		if !strings.Contains(cmds, want) {
			t.Fatalf("missing %s in\n%s", want, cmds)
		}
	}
}

func TestEncoderQuotesNamesForZ3(t *testing.T) {
	m, _, n := sample()
	enc := NewEncoder(m.C, nil, config.SolverZ3, 0)
	if got := enc.Expr(n); got != "|N@param0|" {
		t.Fatalf("got %s, want |N@param0|", got)
	}
}

func TestEval(t *testing.T) {
	m, _, n := sample()
	c := m.C
	info := c.AddInfo(ir.EmptyInfo())
	let := c.Params.Add(ir.Param{Owner: ir.LetParam(m.Num(5)), Info: info})
	l := c.ParamRef(let)

	cases := []struct {
		name      string
		prop      ir.PropIdx
		value, ok bool
	}{
		{"let bound", l.Gt(m.Num(4), c), true, true},
		{"free", n.Gt(m.Num(4), c), false, false},
		{"guarded by false", l.Lt(m.Num(2), c).Implies(n.Gt(m.Num(4), c), c), true, true},
		{"and with false", n.Gt(m.Num(4), c).And(l.Lt(m.Num(2), c), c), false, true},
		{"or with free", n.Gt(m.Num(4), c).Or(l.Lt(m.Num(2), c), c), false, false},
		{"underflow", l.Sub(m.Num(9), c).Gt(m.Num(0), c), false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, ok := Eval(c, tc.prop)
			if ok != tc.ok || (ok && v != tc.value) {
				t.Fatalf("got (%v, %v), want (%v, %v)", v, ok, tc.value, tc.ok)
			}
		})
	}
}

func TestProcessSolver(t *testing.T) {
	if _, err := exec.LookPath("z3"); err != nil {
		t.Skip("z3 not installed")
	}
	s, err := Start(context.Background(), config.SolverZ3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = s.Close() }()

	if err := s.Send("(declare-const x Int)", "(assert (> x 3))"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := s.CheckSat()
	if err != nil || res != Sat {
		t.Fatalf("got (%v, %v), want sat", res, err)
	}
	vals, err := s.GetValue([]string{"(> x 3)"})
	if err != nil || len(vals) != 1 || vals[0] != "true" {
		t.Fatalf("got (%v, %v), want [true]", vals, err)
	}
	if err := s.Send("(assert (< x 2))"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res, err := s.CheckSat(); err != nil || res != Unsat {
		t.Fatalf("got (%v, %v), want unsat", res, err)
	}
}
