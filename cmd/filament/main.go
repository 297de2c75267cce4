package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"filament/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "filament [flags] <file>",
	Short: "Filament hardware description compiler",
	Long: `Filament checks the timing of a hardware design, proves its obligations
with an SMT solver and specializes it for its entrypoint.`,
	Args:          cobra.ExactArgs(1),
	RunE:          runCompile,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries the process status of a compilation that reported
// errors. Its message has already been printed.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// exitCode maps an error count to a process status: the count itself,
// clamped to what a shell can see.
func exitCode(n int) int {
	return min(max(n, 1), 255)
}

func init() {
	rootCmd.Version = version.Full()
	rootCmd.AddCommand(versionCmd)

	pf := rootCmd.PersistentFlags()
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("timings", false, "print how long each stage took")
	pf.Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	pf.String("trace", "", "trace output file (- for stderr, .ndjson selects NDJSON)")
	pf.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-format", "auto", "trace format (auto|text|ndjson)")
	pf.Int("trace-ring-size", 4096, "trace events kept for crash reports")
	pf.String("cpu-profile", "", "write a CPU profile of the compiler")
	pf.String("mem-profile", "", "write a heap profile of the compiler on exit")
	pf.String("runtime-trace", "", "write a Go runtime trace of the compiler")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "filament: %v\n", err)
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
