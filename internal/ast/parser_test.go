package ast

import (
	"strings"
	"testing"
)

func TestExprPrecedence(t *testing.T) {
	cases := map[string]string{
		"W * 2 + 1":             "W * 2 + 1",
		"(W + 1) * 2":           "(W + 1) * 2",
		"W - (N - 1)":           "W - (N - 1)",
		"pow2(log2(W))":         "pow2(log2(W))",
		"A::O % 4":              "A::O % 4",
		"if W > 2 {1} else {W}": "if W > 2 { 1 } else { W }",
		"0x10 + 0b11 + 010":     "16 + 3 + 10",
	}
	for in, want := range cases {
		e, err := ParseExpr(in)
		if err != nil {
			t.Fatalf("ParseExpr(%q): %v", in, err)
		}
		if got := e.String(); got != want {
			t.Fatalf("ParseExpr(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLessThanIsSwapped(t *testing.T) {
	c, err := ParseConstraint("W < 8")
	if err != nil {
		t.Fatalf("ParseConstraint: %v", err)
	}
	if c.Op != CmpGt || c.Left.String() != "8" || c.Right.String() != "W" {
		t.Fatalf("got %s", &c)
	}
	imp, err := ParseImplication("W > 1 => N <= W")
	if err != nil {
		t.Fatalf("ParseImplication: %v", err)
	}
	if imp.Guard == nil || imp.String() != "W > 1 => W >= N" {
		t.Fatalf("got %s", &imp)
	}
}

func TestTimesAndRanges(t *testing.T) {
	r, err := ParseRange("['G, 'G+W+1]")
	if err != nil {
		t.Fatalf("ParseRange: %v", err)
	}
	if got := r.String(); got != "['G, 'G+(W + 1)]" {
		t.Fatalf("range = %s", got)
	}
	tm, err := ParseTime("'L")
	if err != nil || tm.Offset != nil || tm.Event.Name != "L" {
		t.Fatalf("ParseTime = %+v, %v", tm, err)
	}
}

func TestSignatureEntries(t *testing.T) {
	eb, err := parseWith(scratch("G: |'L - 'G| = 'H+1"), (*parser).eventBind)
	if err != nil {
		t.Fatalf("eventBind: %v", err)
	}
	if !eb.Delay.IsSym() || eb.Default == nil || eb.Default.String() != "'H+1" {
		t.Fatalf("event = %+v", eb)
	}
	ex, err := parseWith(scratch("opaque O where O > 0, O <= W"), (*parser).sigExists)
	if err != nil {
		t.Fatalf("sigExists: %v", err)
	}
	if !ex.Opaque || ex.IsLet() || len(ex.Where) != 2 {
		t.Fatalf("exists = %+v", ex)
	}
	pd, err := parseWith(scratch("data[N][2]: for<i> ['G, 'G+1] W"), (*parser).portDef)
	if err != nil {
		t.Fatalf("portDef: %v", err)
	}
	if len(pd.Lens) != 2 || len(pd.Idxs) != 2 || pd.Idxs[0].Name != "i" || pd.Idxs[1].Name != "_1" {
		t.Fatalf("port = %+v", pd)
	}
	plain, err := parseWith(scratch("out: ['G, 'G+1] 32"), (*parser).portDef)
	if err != nil || len(plain.Lens) != 1 || plain.Lens[0].Value != 1 {
		t.Fatalf("plain port = %+v, %v", plain, err)
	}
	if _, err := parseWith(scratch("p: for<i, j> ['G, 'G+1] 1"), (*parser).portDef); err == nil {
		t.Fatalf("expected an error for extra indices")
	}
}

func TestCommands(t *testing.T) {
	src := `
		let L = W + 1;
		let U = ?;
		exists O = L * 2;
		A := new Add[W];
		a0 := A<'G>(left, right{0..2});
		r0 := new Reg[32]<'G+1>(a0.out) in ['G, 'G+3];
		out = r0.out;
		assert W > 0;
		assume W > 1 => O > 2;
		for i in 0..N { bundle b[N]: ['G, 'G+1] 32; b{i} = left; }
		if W > 2 { out = left; } else if W == 2 { out = right; } else { out = left; }
	`
	cmds, err := ParseCommands(src)
	if err != nil {
		t.Fatalf("ParseCommands: %v", err)
	}
	if len(cmds) != 12 {
		t.Fatalf("commands = %d, want 12", len(cmds))
	}
	if l := cmds[1].(*ParamLet); l.Expr != nil {
		t.Fatalf("open let has a value")
	}
	inv := cmds[4].(*Invoke)
	if len(inv.Ports) != 2 || len(inv.Ports[1].Access) != 1 {
		t.Fatalf("invoke = %+v", inv)
	}
	inst := cmds[5].(*Instance)
	if inst.Name.Name != "R0" || len(inst.Lives) != 1 {
		t.Fatalf("desugared instance = %+v", inst)
	}
	sugared := cmds[6].(*Invoke)
	if sugared.Name.Name != "r0" || sugared.Inst.Name != "R0" {
		t.Fatalf("desugared invoke = %+v", sugared)
	}
	if c := cmds[7].(*Connect); c.Src.Inv.Name != "r0" || c.Dst.Name.Name != "out" {
		t.Fatalf("connect = %+v", c)
	}
	if f := cmds[9].(*Fact); f.Checked || f.Cons.Guard == nil {
		t.Fatalf("fact = %+v", f)
	}
	loop := cmds[10].(*ForLoop)
	if len(loop.Body) != 2 {
		t.Fatalf("loop body = %d commands", len(loop.Body))
	}
	acc := loop.Body[1].(*Connect).Dst.Access[0]
	if acc.End.String() != "i + 1" {
		t.Fatalf("single index access ends at %s", acc.End)
	}
	branch := cmds[11].(*If)
	if len(branch.Alt) != 1 {
		t.Fatalf("else-if chain = %+v", branch.Alt)
	}
	if _, ok := branch.Alt[0].(*If); !ok {
		t.Fatalf("else branch is %T", branch.Alt[0])
	}
}

func TestSyntaxErrors(t *testing.T) {
	cases := map[string]string{
		"a := new Add[W]":     "expected `;'",
		"x = ;":               "expected `identifier'",
		"A := new Add<'G>();": "conflicts with the invocation name",
		"let x = 3 $ 4;":      "unknown character",
		"for i in 0..2 { ":    "end of input",
	}
	for in, want := range cases {
		_, err := ParseCommands(in)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("ParseCommands(%q) = %v, want %q", in, err, want)
		}
	}
}
