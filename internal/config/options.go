// Package config holds the compiler options shared by the driver and the
// passes, and loads the bindings file given with --bindings.
package config

import (
	"fmt"
	"strings"
)

// Solver names an SMT solver binary.
type Solver uint8

const (
	SolverZ3 Solver = iota
	SolverCVC5
	SolverBoolector
	SolverBitwuzla
)

var solverNames = [...]string{"z3", "cvc5", "boolector", "bitwuzla"}

func (s Solver) String() string {
	if int(s) < len(solverNames) {
		return solverNames[s]
	}
	return "unknown"
}

func ParseSolver(s string) (Solver, error) {
	for i, name := range solverNames {
		if s == name {
			return Solver(i), nil
		}
	}
	return SolverZ3, fmt.Errorf("unknown solver: %s. Known solvers are: %s", s, strings.Join(solverNames[:], ", "))
}

// Backend selects the lowering target.
type Backend uint8

const (
	BackendVerilog Backend = iota
	BackendCalyx
)

func (b Backend) String() string {
	if b == BackendCalyx {
		return "calyx"
	}
	return "verilog"
}

func ParseBackend(s string) (Backend, error) {
	switch s {
	case "verilog":
		return BackendVerilog, nil
	case "calyx":
		return BackendCalyx, nil
	}
	return BackendVerilog, fmt.Errorf("unknown backend: %s. Known backends are: calyx, verilog", s)
}

// Options configures one compilation run.
type Options struct {
	Input   string
	Library []string
	// Toplevel names the entry component when no component is marked
	// toplevel. Empty keeps the program's own choice.
	Toplevel string

	Check         bool
	DumpInterface bool
	DumpAfter     []string
	DumpAll       bool

	ShowModels          bool
	UnsafeSkipDischarge bool
	DischargeSeparate   bool
	Solver              Solver
	SolverReplayFile    string
	// SolverBV is the bitvector width used for proofs; 0 selects integers.
	SolverBV   uint8
	ProofCache string
	Jobs       int

	Backend         Backend
	OutDir          string
	BindingsPath    string
	NoCounterFSMs   bool
	NoPreserveNames bool

	// MaxDepth bounds nested monomorphization.
	MaxDepth int

	Timings bool
	UI      bool
	Color   bool
}

// Defaults returns the options of a bare invocation.
func Defaults() *Options {
	return &Options{
		Solver:   SolverZ3,
		MaxDepth: 256,
		Jobs:     1,
	}
}

// ShouldDump reports whether the IR is printed after the named pass.
func (o *Options) ShouldDump(pass string) bool {
	if o == nil {
		return false
	}
	if o.DumpAll {
		return true
	}
	for _, p := range o.DumpAfter {
		if p == pass {
			return true
		}
	}
	return false
}
