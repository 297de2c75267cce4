package driver

import (
	"context"
	"errors"
	"fmt"

	"filament/internal/ast"
	"filament/internal/astconv"
	"filament/internal/bundle"
	"filament/internal/check"
	"filament/internal/config"
	"filament/internal/diag"
	"filament/internal/discharge"
	"filament/internal/gen"
	"filament/internal/iface"
	"filament/internal/mono"
	"filament/internal/source"
	"filament/internal/version"
	"filament/internal/visitor"
)

func (r *run) load(context.Context) (string, error) {
	loader := ast.NewLoader(r.res.Files, r.opts.Library, r.rep)
	ns, err := loader.Load(r.opts.Input)
	if err != nil {
		if !errors.Is(err, ast.ErrLoad) {
			diag.ReportError(r.rep, diag.InpDecode, source.NoSpan, err.Error()).Emit()
		}
		return "", r.failed()
	}
	b, err := config.LoadBindings(r.opts.BindingsPath)
	if err != nil {
		diag.ReportError(r.rep, diag.InpBindings, source.NoSpan, "Incorrect parameter bindings").
			WithNote(source.NoSpan, err.Error()).Emit()
		return "", r.failed()
	}
	if len(b.Params) > 0 {
		ns.Bindings = b.Params
	}
	if r.opts.Toplevel != "" {
		ns.Toplevel = r.opts.Toplevel
	}
	r.ns = ns
	r.requirements()
	if err := r.generators(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d files, %d components", r.res.Files.Len(), ns.ExternCount()+len(ns.Components)), nil
}

// requirements checks the compiler version ranges the files declare.
func (r *run) requirements() {
	for _, req := range r.ns.Requires {
		ok, err := version.Satisfies(req.Constraint)
		switch {
		case err != nil:
			diag.ReportError(r.rep, diag.InpVersion, req.Span, err.Error()).Emit()
		case !ok:
			diag.ReportError(r.rep, diag.InpVersion, req.Span,
				fmt.Sprintf("file requires filament %s", req.Constraint)).
				WithNote(source.NoSpan, "this is filament "+version.Version).Emit()
		}
	}
}

// generators registers the tool of every generated extern. Tools are
// only run during monomorphization.
func (r *run) generators(b *config.Bindings) error {
	if r.exec != nil || !r.ns.RequiresGen() {
		return nil
	}
	exec, err := gen.NewExec(r.opts.OutDir, b.Gen)
	if err != nil {
		return fmt.Errorf("driver: %w", err)
	}
	r.exec, r.ownExec = exec, true
	for _, ext := range r.ns.Externs {
		if ext.Gen == "" {
			continue
		}
		tool, err := exec.RegisterFile(ext.Path)
		if err != nil {
			diag.ReportError(r.rep, diag.InpGenTool, source.NoSpan,
				fmt.Sprintf("cannot load generator tool `%s'", ext.Gen)).
				WithNote(source.NoSpan, err.Error()).Emit()
			continue
		}
		if tool.Name != ext.Gen {
			diag.ReportError(r.rep, diag.InpGenTool, source.NoSpan,
				fmt.Sprintf("%s defines tool `%s' but the extern uses `%s'", ext.Path, tool.Name, ext.Gen)).Emit()
		}
	}
	return nil
}

func (r *run) convert(ctx context.Context) (string, error) {
	irctx, err := astconv.Transform(ctx, r.ns, nil, r.rep)
	if err != nil {
		return "", r.settle(err)
	}
	r.res.IR = irctx
	if irctx.Entrypoint == nil {
		report := diag.ReportWarning
		if r.opts.DumpInterface {
			report = diag.ReportError
		}
		report(r.rep, diag.InpNoEntrypoint, source.NoSpan, "program has no entrypoint").
			WithNote(source.NoSpan, fmt.Sprintf("mark a component `toplevel = true' or name it `%s'", r.ns.Toplevel)).Emit()
	}
	if err := r.dump(astconv.Name, irctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d components", irctx.Len()), nil
}

// check runs the passes that add proof obligations. Each pass sees the
// obligations of the ones before it.
func (r *run) check(ctx context.Context) (string, error) {
	passes := []visitor.Visitor{
		check.NewAssumptions(),
		check.NewTypeCheck(),
		check.NewIntervalCheck(),
		check.NewPhantomCheck(r.rep),
	}
	for _, p := range passes {
		err := r.res.Timer.Track(p.Name(), func() error {
			return r.settle(visitor.Run(ctx, r.res.IR, p, r.opts))
		})
		if err != nil {
			return "", err
		}
		if err := r.dump(p.Name(), r.res.IR); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%d passes", len(passes)), nil
}

func (r *run) discharge(ctx context.Context) (string, error) {
	if r.opts.UnsafeSkipDischarge {
		return "unsafe", errSkip
	}
	d := discharge.New(r.opts, r.rep)
	if r.req.Solver != nil {
		d.WithSolver(r.req.Solver)
	}
	if r.opts.ProofCache != "" {
		cache, err := discharge.OpenCache(r.opts.ProofCache)
		if err != nil {
			diag.ReportWarning(r.rep, diag.SolCache, source.NoSpan, err.Error()).
				WithNote(source.NoSpan, "proving every obligation again").Emit()
		} else {
			d.WithCache(cache)
		}
	}
	if err := d.Run(ctx, r.res.IR); err != nil {
		return "", r.settle(err)
	}
	if err := r.dump(discharge.Name, r.res.IR); err != nil {
		return "", err
	}
	return r.opts.Solver.String(), nil
}

func (r *run) monomorphize(ctx context.Context) (string, error) {
	if r.res.IR.Entrypoint == nil {
		return "no entrypoint", errSkip
	}
	m := mono.New(r.res.IR, r.exec, mono.Options{MaxDepth: r.opts.MaxDepth})
	out, err := m.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		code := diag.MonoNonConcrete
		switch {
		case errors.Is(err, mono.ErrDepth):
			code = diag.MonoDepth
		case errors.Is(err, mono.ErrGen):
			code = diag.InpGenTool
		}
		diag.ReportError(r.rep, code, source.NoSpan, err.Error()).Emit()
		return "", r.failed()
	}
	r.res.IR, r.mono = out, true
	if r.opts.ShouldDump(mono.Name) {
		if err := m.Dump(r.out, mono.DumpOptions{}); err != nil {
			return "", fmt.Errorf("driver: %w", err)
		}
	}
	return fmt.Sprintf("%d specializations", m.Len()), nil
}

func (r *run) assign(ctx context.Context) (string, error) {
	if !r.mono {
		return "no entrypoint", errSkip
	}
	passes := []visitor.Visitor{
		check.NewAssignCheck(r.rep),
		bundle.NewElim(r.rep),
		check.NewAssignCheck(r.rep),
	}
	for _, p := range passes {
		err := r.res.Timer.Track(p.Name(), func() error {
			return r.settle(visitor.Run(ctx, r.res.IR, p, r.opts))
		})
		if err != nil {
			return "", err
		}
		if err := r.dump(p.Name(), r.res.IR); err != nil {
			return "", err
		}
	}
	return "", nil
}

func (r *run) emit(context.Context) (string, error) {
	switch {
	case r.opts.DumpInterface:
		if err := iface.Write(r.out, r.res.IR); err != nil {
			return "", fmt.Errorf("driver: %w", err)
		}
		return "interface", nil
	case r.opts.Check:
		return "check only", errSkip
	case !r.mono:
		return "no entrypoint", errSkip
	}
	return r.writeIR()
}
