// Package driver runs a whole compilation: it loads the program, converts
// it to IR, checks and proves it, specializes it for its entrypoint and
// writes the requested output.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"filament/internal/ast"
	"filament/internal/astconv"
	"filament/internal/config"
	"filament/internal/diag"
	"filament/internal/discharge"
	"filament/internal/gen"
	"filament/internal/ir"
	"filament/internal/observ"
	"filament/internal/pipeline"
	"filament/internal/source"
	"filament/internal/trace"
	"filament/internal/visitor"
)

// Request configures one compilation.
type Request struct {
	Opts *config.Options
	// Stdout receives IR dumps, the interface and emitted code when no
	// output directory is set. Nil means os.Stdout.
	Stdout   io.Writer
	Progress pipeline.ProgressSink
	// Exec replaces the generator executor built from the program's
	// externs. The caller closes it.
	Exec gen.Executor
	// Solver replaces the solver binary selected by Opts.Solver.
	Solver discharge.Factory
	// MaxDiagnostics bounds the bag; the error count stays exact.
	MaxDiagnostics int
}

// Result is what a compilation produced, also when it failed.
type Result struct {
	Bag     *diag.Bag
	Files   *source.FileSet
	Timer   *observ.Timer
	Timings pipeline.Timings
	// IR is the checked program, replaced by the monomorphized one once
	// that stage has run.
	IR *ir.Context
	// Errors counts error diagnostics, including those the bag dropped.
	Errors int
}

// ErrFailed matches every *FailedError.
var ErrFailed = errors.New("compilation failed")

// FailedError is returned when a stage reported errors. The diagnostics
// are in Result.Bag.
type FailedError struct {
	Stage  pipeline.Stage
	Errors int
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("Compilation failed with %d errors.", e.Errors)
}

func (e *FailedError) Is(target error) bool { return target == ErrFailed }

type run struct {
	req    *Request
	opts   *config.Options
	res    *Result
	rep    diag.Reporter
	count  *diag.Counter
	out    io.Writer
	sink   pipeline.ProgressSink
	tracer trace.Tracer

	ns      *ast.Namespace
	exec    gen.Executor
	ownExec bool
	mono    bool
	stage   pipeline.Stage
}

// Compile runs every stage the options ask for and stops after the first
// one that reports errors; its error is then a *FailedError. Other errors
// are failures of the compiler's environment, such as an unwritable
// output directory or a cancelled context.
func Compile(ctx context.Context, req *Request) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil || req.Opts == nil {
		return nil, fmt.Errorf("driver: missing compile request")
	}
	if req.Opts.Input == "" {
		return nil, fmt.Errorf("driver: missing input file")
	}
	res := &Result{
		Bag:   diag.NewBag(req.MaxDiagnostics),
		Files: source.NewFileSet(),
		Timer: observ.NewTimer(),
	}
	r := &run{
		req:    req,
		opts:   req.Opts,
		res:    res,
		count:  diag.NewCounter(diag.NewBagReporter(res.Bag)),
		out:    req.Stdout,
		sink:   req.Progress,
		tracer: trace.FromContext(ctx),
		exec:   req.Exec,
	}
	r.rep = diag.NewDedupReporter(r.count)
	if r.out == nil {
		r.out = os.Stdout
	}
	if r.sink == nil {
		r.sink = pipeline.NopSink{}
	}
	for _, st := range pipeline.Stages {
		r.sink.OnEvent(pipeline.Event{Stage: st, Status: pipeline.StatusQueued})
	}

	span := trace.Begin(r.tracer, trace.ScopeDriver, "compile", trace.CurrentSpan(ctx))
	ctx = trace.WithSpan(ctx, span)
	err := r.all(ctx)
	if r.ownExec {
		if cerr := r.exec.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("driver: %w", cerr)
		}
	}
	res.Errors = int(r.count.Errors())
	res.Bag.Sort()
	if err != nil {
		span.End("failed")
		return res, err
	}
	span.End("")
	return res, nil
}

// all runs the stages in order; the stages after a failed one are
// reported skipped.
func (r *run) all(ctx context.Context) error {
	steps := []struct {
		stage pipeline.Stage
		fn    func(context.Context) (string, error)
	}{
		{pipeline.StageLoad, r.load},
		{pipeline.StageConvert, r.convert},
		{pipeline.StageCheck, r.check},
		{pipeline.StageDischarge, r.discharge},
		{pipeline.StageMono, r.monomorphize},
		{pipeline.StageAssign, r.assign},
		{pipeline.StageEmit, r.emit},
	}
	for i, step := range steps {
		if err := r.step(ctx, step.stage, step.fn); err != nil {
			for _, rest := range steps[i+1:] {
				r.sink.OnEvent(pipeline.Event{Stage: rest.stage, Status: pipeline.StatusSkipped})
			}
			return err
		}
	}
	return nil
}

// errSkip marks a stage the options turned off.
var errSkip = errors.New("skipped")

func (r *run) step(ctx context.Context, st pipeline.Stage, fn func(context.Context) (string, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.stage = st
	r.sink.OnEvent(pipeline.Event{Stage: st, Status: pipeline.StatusWorking})
	span := trace.Begin(r.tracer, trace.ScopeDriver, string(st), trace.CurrentSpan(ctx))
	phase := r.res.Timer.Begin(string(st))
	before := r.count.Errors()
	start := time.Now()

	note, err := fn(trace.WithSpan(ctx, span))

	elapsed := time.Since(start)
	r.res.Timer.End(phase, note)
	switch {
	case errors.Is(err, errSkip):
		span.End("skipped")
		r.sink.OnEvent(pipeline.Event{Stage: st, Status: pipeline.StatusSkipped, Note: note})
		return nil
	case err == nil && r.count.Errors() > before:
		err = r.failed()
	}
	r.res.Timings.Set(st, elapsed)
	if err != nil {
		span.End("failed")
		r.sink.OnEvent(pipeline.Event{Stage: st, Status: pipeline.StatusError, Err: err, Elapsed: elapsed})
		return err
	}
	span.End(note)
	r.sink.OnEvent(pipeline.Event{Stage: st, Status: pipeline.StatusDone, Elapsed: elapsed, Note: note})
	return nil
}

func (r *run) failed() error {
	return &FailedError{Stage: r.stage, Errors: max(1, int(r.count.Errors()))}
}

// settle turns the error of a pass into a *FailedError when its cause was
// reported or can be reported here. Other errors are returned unchanged.
func (r *run) settle(err error) error {
	if err == nil {
		return nil
	}
	var cycle *ir.CycleError
	var pass *visitor.PassError
	switch {
	case errors.As(err, &cycle):
		diag.ReportError(r.rep, diag.InpCycle, source.NoSpan,
			fmt.Sprintf("components instantiate each other: %s", strings.Join(cycle.Names, ", "))).Emit()
	case errors.As(err, &pass), errors.Is(err, ast.ErrLoad), errors.Is(err, astconv.ErrFailed):
	default:
		return err
	}
	return r.failed()
}
