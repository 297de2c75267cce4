package visitor

import (
	"context"
	"fmt"

	"filament/internal/config"
	"filament/internal/ir"
	"filament/internal/trace"
)

// PassError is returned by Run when a pass reports errors.
type PassError struct {
	Pass   string
	Errors uint64
}

func (e *PassError) Error() string {
	return fmt.Sprintf("%s: %d errors", e.Pass, e.Errors)
}

// Run applies v to every defined component of irctx in dependency order.
// A cyclic instantiation graph is reported as *ir.CycleError before any
// component is visited. The context is validated after the pass; an
// invalid context is a compiler bug and panics.
func Run(ctx context.Context, irctx *ir.Context, v Visitor, opts *config.Options) error {
	order, _, err := irctx.Order()
	if err != nil {
		return err
	}
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopePass, v.Name(), trace.CurrentSpan(ctx))
	passCtx := trace.WithSpan(ctx, span)

	for _, idx := range order {
		if irctx.IsExt(idx) {
			continue
		}
		visitOne(passCtx, irctx, idx, v, opts)
	}

	if err := ir.Validate(irctx); err != nil {
		panic(fmt.Sprintf("internal error: invalid IR after %s:\n%v", v.Name(), err))
	}

	if n, failed := v.AfterTraversal(); failed {
		span.WithExtra("errors", fmt.Sprint(n)).End("failed")
		return &PassError{Pass: v.Name(), Errors: n}
	}
	span.End("")
	return nil
}

func visitOne(ctx context.Context, irctx *ir.Context, idx ir.CompIdx, v Visitor, opts *config.Options) {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeComponent, irctx.CompName(idx), trace.CurrentSpan(ctx))
	defer span.End("")

	v.ClearData()
	d := &Data{
		Comp:    irctx.Take(idx),
		Idx:     idx,
		Opts:    opts,
		Ctx:     irctx,
		Context: trace.WithSpan(ctx, span),
	}
	defer func() { irctx.Put(idx, d.Comp) }()
	Visit(v, d)
}
