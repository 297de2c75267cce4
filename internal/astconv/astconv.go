// Package astconv lowers a parsed namespace into the IR. Every signature is
// converted before any body so that components can instantiate each other
// in any order.
package astconv

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"filament/internal/ast"
	"filament/internal/diag"
	"filament/internal/ir"
	"filament/internal/source"
	"filament/internal/trace"
)

const Name = "astconv"

// ErrFailed is returned when conversion reported errors.
var ErrFailed = errors.New("astconv: conversion failed")

// errReported unwinds the conversion of one component after a diagnostic
// has been emitted.
var errReported = errors.New("astconv: reported")

// sig is a converted signature together with what instantiating it needs.
type sig struct {
	idx  ir.CompIdx
	comp *ir.Component
	name ast.Ident
	ext  bool

	params []ast.ParamBind
	// defaults[i] is the default of params[i] in terms of the component's
	// own parameters, or UnknownExpr.
	defaults []ir.ExprIdx
	events   []ast.EventBind
	// eventDefaults[i] is the default time of events[i], or UnknownTime.
	eventDefaults []ir.TimeIdx

	inputs, outputs []ir.PortIdx
}

// minParams is the number of leading parameters without a default.
func (s *sig) minParams() int {
	n := 0
	for n < len(s.params) && s.params[n].Default == nil {
		n++
	}
	return n
}

func (s *sig) minEvents() int {
	n := 0
	for n < len(s.events) && s.events[n].Default == nil {
		n++
	}
	return n
}

type transformer struct {
	ctx  *ir.Context
	r    *diag.Counter
	sigs map[string]*sig
}

func (t *transformer) intern(name string) source.NameID { return t.ctx.Names.Intern(name) }

func (t *transformer) errorf(code diag.Code, sp source.Span, format string, args ...any) error {
	diag.ReportError(t.r, code, sp, fmt.Sprintf(format, args...)).Emit()
	return errReported
}

func (t *transformer) lookupSig(name ast.Ident) (*sig, error) {
	s, ok := t.sigs[name.Name]
	if !ok {
		return nil, t.errorf(diag.InpUnknownName, name.Span, "undefined component `%s'", name.Name)
	}
	return s, nil
}

// pending is a component whose signature has been converted.
type pending struct {
	b    *builder
	body []ast.Command
	src  bool
}

// Transform converts ns. Names are interned into names, which may be nil.
// Errors are reported to r; the returned error only summarizes them.
func Transform(ctx context.Context, ns *ast.Namespace, names *source.Interner, r diag.Reporter) (*ir.Context, error) {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, Name, trace.CurrentSpan(ctx))
	t := &transformer{
		ctx:  ir.NewContext(names),
		r:    diag.NewCounter(r),
		sigs: make(map[string]*sig),
	}
	out, err := t.run(ns)
	if err != nil {
		span.End("failed")
		return nil, err
	}
	span.WithExtra("components", strconv.Itoa(out.Len())).End("")
	return out, nil
}

func (t *transformer) run(ns *ast.Namespace) (*ir.Context, error) {
	if err := t.checkToplevel(ns); err != nil {
		return nil, t.failed()
	}

	mainIdx := -1
	if i, ok := ns.MainIdx(); ok {
		mainIdx = ns.ExternCount() + i
	}

	var comps []pending
	for _, ext := range ns.Externs {
		kind := ir.CompExternal
		if ext.Gen != "" {
			kind = ir.CompGenerated
		}
		for i := range ext.Comps {
			b := t.newBuilder(kind, &ext.Comps[i], ext.Gen)
			b.sig.ext = true
			if kind == ir.CompExternal {
				t.ctx.Externals[ext.Path] = append(t.ctx.Externals[ext.Path], b.idx)
			}
			comps = append(comps, pending{b: b})
		}
	}
	for i := range ns.Components {
		c := &ns.Components[i]
		comps = append(comps, pending{b: t.newBuilder(ir.CompSource, &c.Sig, ""), body: c.Body, src: true})
	}

	// Signatures: a failure here leaves the callers without a signature to
	// instantiate, so conversion stops.
	for _, p := range comps {
		if prev, ok := t.sigs[p.b.sig.name.Name]; ok {
			diag.ReportError(t.r, diag.InpDuplicateName, p.b.sig.name.Span,
				fmt.Sprintf("component `%s' is defined more than once", p.b.sig.name.Name)).
				WithNote(prev.name.Span, "previous definition here").Emit()
			return nil, t.failed()
		}
		if err := p.b.signature(p.b.astSig); err != nil {
			return nil, t.failed()
		}
		t.sigs[p.b.sig.name.Name] = p.b.sig
	}

	if mainIdx >= 0 {
		main := comps[mainIdx].b
		bindings, err := main.entryBindings(ns.Bindings)
		if err != nil {
			return nil, t.failed()
		}
		t.ctx.Entrypoint = &ir.EntryPoint{Comp: main.idx, Bindings: bindings}
	}

	for _, p := range comps {
		if !p.src {
			continue
		}
		cmds, err := p.b.commands(p.body)
		if err != nil {
			continue
		}
		p.b.comp.Cmds = append(p.b.comp.Cmds, cmds...)
	}
	if t.r.Errors() > 0 {
		return nil, t.failed()
	}
	return t.ctx, nil
}

func (t *transformer) failed() error {
	return fmt.Errorf("%w with %d errors", ErrFailed, t.r.Errors())
}

// checkToplevel enforces that at most one component carries the toplevel
// attribute and that it is not an extern. Without the attribute the
// component named ns.Toplevel is the entry.
func (t *transformer) checkToplevel(ns *ast.Namespace) error {
	var err error
	for _, ext := range ns.Externs {
		for _, s := range ext.Comps {
			if s.Attrs.Toplevel {
				diag.ReportError(t.r, diag.InpExternToplevel, s.Name.Span, "External components cannot be top-level").
					WithNote(s.Attrs.ToplevelSpan, "toplevel attribute here").Emit()
				err = errReported
			}
		}
	}
	first := -1
	for i := range ns.Components {
		s := &ns.Components[i].Sig
		if !s.Attrs.Toplevel {
			continue
		}
		if first < 0 {
			first = i
			continue
		}
		diag.ReportError(t.r, diag.InpMultipleToplevel, s.Name.Span, "Multiple top-level components").
			WithNote(ns.Components[first].Sig.Attrs.ToplevelSpan, "first top-level component here").
			WithNote(s.Attrs.ToplevelSpan, "second top-level component here").Emit()
		err = errReported
	}
	if err != nil {
		return err
	}
	if first < 0 {
		if i, ok := ns.MainIdx(); ok {
			ns.Components[i].Sig.Attrs.Toplevel = true
		}
	}
	return nil
}

// entryBindings completes the user's bindings for the entry component with
// its defaults, which must evaluate to constants.
func (b *builder) entryBindings(given []uint64) ([]uint64, error) {
	s := b.sig
	if len(given) > len(s.params) || len(given) < s.minParams() {
		detail := fmt.Sprintf("`%s' requires %d to %d parameters but %d were provided",
			s.name.Name, s.minParams(), len(s.params), len(given))
		diag.ReportError(b.t.r, diag.InpBindings, s.name.Span,
			fmt.Sprintf("Incorrect parameter bindings provided to top-level component %s", s.name.Name)).
			WithNote(s.name.Span, detail).
			WithNote(source.NoSpan, "Parameter bindings should be provided via the `--bindings` flag in a `.toml` file.").Emit()
		return nil, errReported
	}
	c := b.comp
	vals := make([]ir.ExprIdx, 0, len(s.params))
	for _, v := range given {
		vals = append(vals, c.Num(v))
	}
	im := ir.NewImporter(c, c, paramsFrom(c.ParamArgs, &vals), nil)
	out := append([]uint64(nil), given...)
	for i := len(given); i < len(s.params); i++ {
		e := im.Expr(s.defaults[i])
		n, ok := e.AsConcrete(c)
		if !ok {
			diag.ReportError(b.t.r, diag.InpNonConcreteBinding, s.params[i].Name.Span,
				"Default values for parameters in the main component must be concrete").
				WithNote(s.params[i].Name.Span, "Parameter was not given a concrete value").Emit()
			return nil, errReported
		}
		vals = append(vals, e)
		out = append(out, n)
	}
	return out, nil
}

// paramsFrom maps formals[i] to (*actuals)[i] for the actuals known so far.
func paramsFrom(formals []ir.ParamIdx, actuals *[]ir.ExprIdx) func(ir.ParamIdx) (ir.ExprIdx, bool) {
	return func(p ir.ParamIdx) (ir.ExprIdx, bool) {
		for i, f := range formals {
			if f == p && i < len(*actuals) {
				return (*actuals)[i], true
			}
		}
		return ir.UnknownExpr, false
	}
}
