// Package discharge proves the assertions of every component with an SMT
// solver and reports the ones that cannot be proved.
package discharge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"filament/internal/config"
	"filament/internal/diag"
	"filament/internal/hoist"
	"filament/internal/ir"
	"filament/internal/smt"
	"filament/internal/source"
	"filament/internal/trace"
	"filament/internal/visitor"
)

// Name is the pass name used by --dump-after and in traces.
const Name = "discharge"

// Factory starts a solver session. replay receives every command sent and
// may be nil.
type Factory func(ctx context.Context, replay io.Writer) (smt.Solver, error)

// Discharge checks hoisted obligations component by component. Components
// are independent, so up to Options.Jobs of them are checked at once, each
// with its own solver session; diagnostics are reported in component order.
type Discharge struct {
	opts  *config.Options
	rep   diag.Reporter
	start Factory
	cache *Cache
}

func New(opts *config.Options, rep diag.Reporter) *Discharge {
	return &Discharge{
		opts: opts,
		rep:  rep,
		start: func(ctx context.Context, replay io.Writer) (smt.Solver, error) {
			return smt.Start(ctx, opts.Solver, replay)
		},
	}
}

// WithSolver replaces the solver binary.
func (d *Discharge) WithSolver(f Factory) *Discharge {
	d.start = f
	return d
}

// WithCache skips obligations proved by an earlier run.
func (d *Discharge) WithCache(c *Cache) *Discharge {
	d.cache = c
	return d
}

// outcome is the result of one component.
type outcome struct {
	diags  []diag.Diagnostic
	proved []string
	replay bytes.Buffer
}

func (o *outcome) fail(d diag.Diagnostic) { o.diags = append(o.diags, d) }

// Run discharges every defined component of irctx and returns a
// *visitor.PassError when an obligation could not be proved.
func (d *Discharge) Run(ctx context.Context, irctx *ir.Context) error {
	order, _, err := irctx.Order()
	if err != nil {
		return err
	}
	comps := slices.DeleteFunc(order, irctx.IsExt)

	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopePass, Name, trace.CurrentSpan(ctx))
	ctx = trace.WithSpan(ctx, span)

	jobs := d.opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	results := make([]outcome, len(comps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(comps))))
	for i, idx := range comps {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			d.component(gctx, irctx, idx, &results[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.End("cancelled")
		return err
	}

	if err := d.writeReplay(results); err != nil {
		span.End("failed")
		return err
	}
	var failed uint64
	for i := range results {
		for _, dg := range results[i].diags {
			d.rep.Report(dg)
			failed++
		}
		d.cache.Add(results[i].proved...)
	}
	if err := d.cache.Save(); err != nil {
		diag.ReportWarning(d.rep, diag.SolCache, source.NoSpan, err.Error()).Emit()
	}
	if failed > 0 {
		span.WithExtra("errors", fmt.Sprint(failed)).End("failed")
		return &visitor.PassError{Pass: Name, Errors: failed}
	}
	span.End("")
	return nil
}

func (d *Discharge) writeReplay(results []outcome) error {
	if d.opts.SolverReplayFile == "" {
		return nil
	}
	f, err := os.Create(d.opts.SolverReplayFile)
	if err != nil {
		return fmt.Errorf("discharge: solver log: %w", err)
	}
	for i := range results {
		if _, err := results[i].replay.WriteTo(f); err != nil {
			f.Close()
			return fmt.Errorf("discharge: solver log: %w", err)
		}
	}
	return f.Close()
}

// check is one obligation still to be sent to the solver.
type check struct {
	fact *ir.Fact
	term string
	key  string
}

func (d *Discharge) component(ctx context.Context, irctx *ir.Context, idx ir.CompIdx, out *outcome) {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeComponent, irctx.CompName(idx), trace.CurrentSpan(ctx))
	c := irctx.Get(idx)
	facts := hoist.Facts(c)

	// verdicts of failed props; the model is empty when none was requested
	failedProps := make(map[ir.PropIdx]string)
	unknownProps := make(map[ir.PropIdx]bool)
	defer func() {
		for _, f := range facts {
			if model, ok := failedProps[f.Prop]; ok {
				out.fail(d.failure(c, f, model, unknownProps[f.Prop]))
			}
		}
	}()

	var pending []*ir.Fact
	for _, f := range facts {
		v, ok := smt.Eval(c, f.Prop)
		if !ok {
			pending = append(pending, f)
			continue
		}
		if !v {
			failedProps[f.Prop] = ""
		}
	}
	span.WithExtra("obligations", fmt.Sprint(len(facts))).WithExtra("ground", fmt.Sprint(len(facts)-len(pending)))
	if len(pending) == 0 {
		span.End("")
		return
	}

	enc := smt.NewEncoder(c, irctx, d.opts.Solver, d.opts.SolverBV)
	var checks []check
	seen := make(map[ir.PropIdx]bool)
	for _, f := range pending {
		if seen[f.Prop] {
			continue
		}
		seen[f.Prop] = true
		checks = append(checks, check{fact: f, term: enc.Prop(f.Prop)})
	}
	decls := enc.Take()
	todo := checks[:0]
	for _, ch := range checks {
		ch.key = Key(decls, ch.term)
		if d.cache.Has(ch.key) {
			continue
		}
		todo = append(todo, ch)
	}
	if len(todo) == 0 {
		span.End("cached")
		return
	}

	fmt.Fprintf(&out.replay, "; %s\n", irctx.CompName(idx))
	s, err := d.start(ctx, &out.replay)
	if err != nil {
		abort(out, diag.SolStart, todo, failedProps, unknownProps, err)
		span.End("no solver")
		return
	}
	defer func() { _ = s.Close() }()

	sess := &session{d: d, c: c, enc: enc, s: s}
	if err := s.Send(decls...); err != nil {
		abort(out, diag.SolProtocol, todo, failedProps, unknownProps, err)
		span.End("solver error")
		return
	}
	if !d.opts.DischargeSeparate && len(todo) > 1 {
		all, err := sess.batch(todo)
		if err != nil {
			abort(out, diag.SolProtocol, todo, failedProps, unknownProps, err)
			span.End("solver error")
			return
		}
		if all {
			for _, ch := range todo {
				out.proved = append(out.proved, ch.key)
			}
			span.End("")
			return
		}
	}
	for i, ch := range todo {
		res, model, err := sess.one(ch)
		if err != nil {
			abort(out, diag.SolProtocol, todo[i:], failedProps, unknownProps, err)
			span.End("solver error")
			return
		}
		switch res {
		case smt.Unsat:
			out.proved = append(out.proved, ch.key)
		case smt.Sat:
			failedProps[ch.fact.Prop] = model
		default:
			failedProps[ch.fact.Prop] = ""
			unknownProps[ch.fact.Prop] = true
		}
	}
	span.End("")
}

// session is one solver process serving one component.
type session struct {
	d   *Discharge
	c   *ir.Component
	enc *smt.Encoder
	s   smt.Solver
}

// batch checks all obligations with a single query. It reports true when
// every one of them holds.
func (s *session) batch(todo []check) (bool, error) {
	terms := make([]string, len(todo))
	for i, ch := range todo {
		terms[i] = ch.term
	}
	act := s.enc.ActLit()
	cmds := append(s.enc.Take(), smt.App("assert", smt.App("=>", act, smt.App("not", smt.App("and", terms...)))))
	if err := s.s.Send(cmds...); err != nil {
		return false, err
	}
	res, err := s.s.CheckSat(act)
	if err != nil {
		return false, err
	}
	if err := s.s.Send(smt.App("assert", smt.App("not", act))); err != nil {
		return false, err
	}
	return res == smt.Unsat, nil
}

// one checks a single obligation, returning the counterexample when the
// obligation fails and models were requested.
func (s *session) one(ch check) (smt.Result, string, error) {
	act := s.enc.ActLit()
	cmds := append(s.enc.Take(), smt.App("assert", smt.App("=>", act, smt.App("not", ch.term))))
	if err := s.s.Send(cmds...); err != nil {
		return smt.Unknown, "", err
	}
	res, err := s.s.CheckSat(act)
	if err != nil {
		return smt.Unknown, "", err
	}
	var model string
	if res == smt.Sat && s.d.opts.ShowModels {
		model, err = s.model(ch.fact)
		if err != nil {
			return smt.Unknown, "", err
		}
	}
	if err := s.s.Send(smt.App("assert", smt.App("not", act))); err != nil {
		return smt.Unknown, "", err
	}
	return res, model, nil
}

// model prints the values of the parameters of the fact's consequent.
// Parameters that are zero are left out.
func (s *session) model(f *ir.Fact) (string, error) {
	c := s.c
	var params []ir.ParamIdx
	var terms []string
	for _, p := range c.PropParams(f.Prop.Consequent(c)) {
		if slices.Contains(params, p) {
			continue
		}
		term, ok := s.enc.ParamTerm(p)
		if !ok {
			continue
		}
		params = append(params, p)
		terms = append(terms, term)
	}
	values, err := s.s.GetValue(terms)
	if err != nil {
		return "", err
	}
	var parts []string
	for i, v := range values {
		if v == "0" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s = %s", c.DisplayParam(params[i]), v))
	}
	return strings.Join(parts, ", "), nil
}

// abort marks the remaining obligations as unproved after a solver error.
func abort(out *outcome, code diag.Code, todo []check, failed map[ir.PropIdx]string, unknown map[ir.PropIdx]bool, err error) {
	out.fail(diag.NewError(code, source.NoSpan, err.Error()))
	for _, ch := range todo {
		failed[ch.fact.Prop] = ""
		unknown[ch.fact.Prop] = true
	}
}

func (d *Discharge) failure(c *ir.Component, f *ir.Fact, model string, unknown bool) diag.Diagnostic {
	consequent := c.DisplayProp(f.Prop.Consequent(c))
	r := c.Reason(f.Reason)
	if r == nil {
		dg := diag.NewError(diag.ObgMisc, source.NoSpan, "cannot prove constraint "+consequent)
		dg.Notes = append(dg.Notes, diag.Note{Span: source.NoSpan, Msg: "No information was given on who generated this error. Please report this as a bug in the compiler with the program that triggered it."})
		return dg
	}
	dg := r.Diagnostic(c)
	note := func(msg string) { dg.Notes = append(dg.Notes, diag.Note{Span: source.NoSpan, Msg: msg}) }
	if unknown {
		note("the solver could not decide this constraint")
	}
	if d.opts.ShowModels {
		note("Cannot prove constraint: " + consequent)
		if model != "" {
			note(fmt.Sprintf("Counterexample: %s (unmentioned parameters are 0)", model))
		}
	}
	return dg
}
