package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"filament/internal/config"
	"filament/internal/diagfmt"
	"filament/internal/driver"
	"filament/internal/version"
)

func init() {
	f := rootCmd.Flags()
	f.StringArrayP("library", "l", nil, "directory searched for imports (repeatable)")
	f.String("toplevel", "", "entry component when none is marked toplevel")
	f.String("bindings", "", "TOML file with entrypoint parameters and generator settings")
	f.Bool("check", false, "check the program and stop before emitting")
	f.Bool("dump-interface", false, "print the interface of the entrypoint as JSON")
	f.StringSlice("dump-after", nil, "print the IR after the named passes")
	f.Bool("dump-all", false, "print the IR after every pass")

	f.Bool("unsafe-skip-discharge", false, "do not prove the obligations")
	f.String("solver", "z3", "SMT solver (z3|cvc5|boolector|bitwuzla)")
	f.Bool("show-models", false, "show a counterexample for each violated obligation")
	f.Bool("discharge-separate", false, "check every obligation in its own query")
	f.String("dump-solver-log", "", "write every command sent to the solver to this file")
	f.Uint8("solver-bv", 0, "prove with bitvectors of this width instead of integers")
	f.String("proof-cache", "", "directory caching proved obligations between runs")
	f.Int("jobs", 1, "components proved in parallel (0 = one per CPU)")

	f.String("backend", "verilog", "lowering target (verilog|calyx)")
	f.String("out-dir", "", "directory for emitted and generated files")
	f.Bool("no-counter-fsms", false, "never use counter FSMs for events")
	f.Bool("no-preserve-names", false, "do not keep source names in the output")
	f.Int("max-depth", 256, "maximum depth of nested specializations")

	f.String("ui", "auto", "progress UI mode (auto|on|off)")
	f.String("diag-format", "pretty", "diagnostics format (pretty|json|sarif)")
	f.String("path-mode", "auto", "paths in diagnostics (auto|absolute|relative|basename)")
	f.Bool("with-notes", true, "include diagnostic notes")
	f.Bool("watch", false, "compile again whenever an input file changes")
}

// readOptions turns the flags of cmd into compiler options.
func readOptions(cmd *cobra.Command, input string) (*config.Options, error) {
	f := cmd.Flags()
	opts := config.Defaults()
	opts.Input = input

	var err error
	get := func(fn func() error) {
		if err == nil {
			err = fn()
		}
	}
	get(func() (e error) { opts.Library, e = f.GetStringArray("library"); return })
	get(func() (e error) { opts.Toplevel, e = f.GetString("toplevel"); return })
	get(func() (e error) { opts.BindingsPath, e = f.GetString("bindings"); return })
	get(func() (e error) { opts.Check, e = f.GetBool("check"); return })
	get(func() (e error) { opts.DumpInterface, e = f.GetBool("dump-interface"); return })
	get(func() (e error) { opts.DumpAfter, e = f.GetStringSlice("dump-after"); return })
	get(func() (e error) { opts.DumpAll, e = f.GetBool("dump-all"); return })
	get(func() (e error) { opts.UnsafeSkipDischarge, e = f.GetBool("unsafe-skip-discharge"); return })
	get(func() (e error) { opts.ShowModels, e = f.GetBool("show-models"); return })
	get(func() (e error) { opts.DischargeSeparate, e = f.GetBool("discharge-separate"); return })
	get(func() (e error) { opts.SolverReplayFile, e = f.GetString("dump-solver-log"); return })
	get(func() (e error) { opts.SolverBV, e = f.GetUint8("solver-bv"); return })
	get(func() (e error) { opts.ProofCache, e = f.GetString("proof-cache"); return })
	get(func() (e error) { opts.Jobs, e = f.GetInt("jobs"); return })
	get(func() (e error) { opts.OutDir, e = f.GetString("out-dir"); return })
	get(func() (e error) { opts.NoCounterFSMs, e = f.GetBool("no-counter-fsms"); return })
	get(func() (e error) { opts.NoPreserveNames, e = f.GetBool("no-preserve-names"); return })
	get(func() (e error) { opts.MaxDepth, e = f.GetInt("max-depth"); return })
	get(func() (e error) { opts.Timings, e = cmd.Root().PersistentFlags().GetBool("timings"); return })
	get(func() error {
		name, e := f.GetString("solver")
		if e != nil {
			return e
		}
		opts.Solver, e = config.ParseSolver(name)
		return e
	})
	get(func() error {
		name, e := f.GetString("backend")
		if e != nil {
			return e
		}
		opts.Backend, e = config.ParseBackend(name)
		return e
	})
	if err != nil {
		return nil, err
	}
	return opts, nil
}

func runCompile(cmd *cobra.Command, args []string) error {
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()
	defer crashReport(cmd)

	opts, err := readOptions(cmd, args[0])
	if err != nil {
		return err
	}
	render, err := readRenderOptions(cmd)
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	watching, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return fmt.Errorf("failed to get watch flag: %w", err)
	}
	opts.UI = shouldUseTUI(mode) && !watching
	opts.Color = render.color

	c := &compiler{opts: opts, render: render, stdout: cmd.OutOrStdout(), stderr: os.Stderr}
	if watching {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return watch(ctx, c)
	}
	_, err = c.compile(cmd.Context())
	return err
}

// compiler runs one compilation and reports its outcome.
type compiler struct {
	opts   *config.Options
	render renderOptions
	stdout io.Writer
	stderr io.Writer
}

// compile runs the driver and prints the diagnostics. A compilation that
// reported errors yields an *exitError.
func (c *compiler) compile(ctx context.Context) (*driver.Result, error) {
	req := &driver.Request{
		Opts:           c.opts,
		Stdout:         c.stdout,
		MaxDiagnostics: c.render.maxDiagnostics,
	}
	var res *driver.Result
	var err error
	if c.opts.UI {
		res, err = runCompileWithUI(ctx, filepath.Base(c.opts.Input), req)
	} else {
		res, err = driver.Compile(ctx, req)
	}
	if res != nil {
		if rerr := renderDiagnostics(c.stderr, res, c.render, os.Args[1:]); rerr != nil {
			return res, rerr
		}
		if c.opts.Timings {
			printStageTimings(c.stderr, res)
		}
	}

	var failed *driver.FailedError
	if errors.As(err, &failed) {
		fmt.Fprintln(c.stderr, failed.Error())
		return res, &exitError{code: exitCode(failed.Errors)}
	}
	if err != nil {
		return res, err
	}
	if c.opts.UI && !c.opts.DumpInterface {
		fmt.Fprintf(c.stderr, "filament %s: %s ok\n", version.Colored(), c.opts.Input)
	}
	return res, nil
}

type renderOptions struct {
	format         string
	color          bool
	pathMode       diagfmt.PathMode
	withNotes      bool
	maxDiagnostics int
}

func readRenderOptions(cmd *cobra.Command) (renderOptions, error) {
	var ro renderOptions
	format, err := cmd.Flags().GetString("diag-format")
	if err != nil {
		return ro, fmt.Errorf("failed to get diag-format flag: %w", err)
	}
	switch format {
	case "pretty", "json", "sarif":
		ro.format = format
	default:
		return ro, fmt.Errorf("unknown diagnostics format %q (expected pretty|json|sarif)", format)
	}
	pathMode, err := cmd.Flags().GetString("path-mode")
	if err != nil {
		return ro, fmt.Errorf("failed to get path-mode flag: %w", err)
	}
	var ok bool
	if ro.pathMode, ok = diagfmt.ParsePathMode(pathMode); !ok {
		return ro, fmt.Errorf("unknown path mode %q (expected auto|absolute|relative|basename)", pathMode)
	}
	if ro.withNotes, err = cmd.Flags().GetBool("with-notes"); err != nil {
		return ro, fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	if ro.maxDiagnostics, err = cmd.Root().PersistentFlags().GetInt("max-diagnostics"); err != nil {
		return ro, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	colorValue, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return ro, fmt.Errorf("failed to get color flag: %w", err)
	}
	switch colorValue {
	case "on":
		ro.color = true
	case "off":
		ro.color = false
	case "auto":
		ro.color = isTerminal(os.Stderr)
	default:
		return ro, fmt.Errorf("invalid --color value %q (expected auto|on|off)", colorValue)
	}
	return ro, nil
}
