package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"filament/internal/config"
)

func TestExitCode(t *testing.T) {
	tests := []struct{ errors, want int }{
		{0, 1},
		{1, 1},
		{7, 7},
		{300, 255},
	}
	for _, tt := range tests {
		if got := exitCode(tt.errors); got != tt.want {
			t.Fatalf("exitCode(%d) = %d, want %d", tt.errors, got, tt.want)
		}
	}
}

// parsed returns rootCmd with args parsed into its flags. Flags keep
// their values across tests, so every test resets the ones it reads.
func parsed(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
	if err := rootCmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v): %v", args, err)
	}
	return rootCmd
}

func TestReadOptions(t *testing.T) {
	cmd := parsed(t, "-l", "lib", "-l", "prims", "--solver", "cvc5", "--dump-after", "type-check,discharge",
		"--unsafe-skip-discharge", "--backend", "calyx", "--jobs", "4", "--toplevel", "Top")
	opts, err := readOptions(cmd, "main.fil")
	if err != nil {
		t.Fatalf("readOptions: %v", err)
	}
	if opts.Input != "main.fil" || strings.Join(opts.Library, ",") != "lib,prims" {
		t.Fatalf("input = %q, library = %v", opts.Input, opts.Library)
	}
	if opts.Solver != config.SolverCVC5 || opts.Backend != config.BackendCalyx || opts.Jobs != 4 {
		t.Fatalf("solver = %s, backend = %s, jobs = %d", opts.Solver, opts.Backend, opts.Jobs)
	}
	if !opts.UnsafeSkipDischarge || opts.Toplevel != "Top" || !opts.ShouldDump("discharge") || opts.ShouldDump("assign-check") {
		t.Fatalf("options = %+v", opts)
	}
}

func TestReadOptionsRejectsUnknownSolver(t *testing.T) {
	cmd := parsed(t, "--solver", "yices")
	if _, err := readOptions(cmd, "main.fil"); err == nil || !strings.Contains(err.Error(), "unknown solver: yices") {
		t.Fatalf("err = %v", err)
	}
}

func TestReadUIMode(t *testing.T) {
	if m, err := readUIMode(" ON "); err != nil || m != uiModeOn {
		t.Fatalf("readUIMode = %s, %v", m, err)
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Fatalf("invalid mode accepted")
	}
}

func TestVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := renderVersionJSON(&buf, false); err != nil {
		t.Fatalf("renderVersionJSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"tool": "filament"`) || strings.Contains(buf.String(), "git_commit") {
		t.Fatalf("payload = %s", buf.String())
	}
}
