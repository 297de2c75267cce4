package smt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"filament/internal/config"
)

// Result is the answer to a satisfiability check.
type Result uint8

const (
	Unknown Result = iota
	Sat
	Unsat
)

func (r Result) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	}
	return "unknown"
}

// Solver runs SMT-LIB2 commands. Implementations are used from a single
// goroutine.
type Solver interface {
	// Send runs commands that produce no output besides success.
	Send(cmds ...string) error
	// CheckSat checks satisfiability under the given literals.
	CheckSat(assumptions ...string) (Result, error)
	// GetValue returns the model value of each term after a sat check.
	GetValue(terms []string) ([]string, error)
	Close() error
}

// ErrSolver is returned when the solver answers with an error.
var ErrSolver = errors.New("smt: solver error")

// Command returns the binary and arguments used to run solver in
// incremental SMT-LIB2 mode on standard input.
func Command(solver config.Solver) (string, []string) {
	switch solver {
	case config.SolverCVC5:
		return "cvc5", []string{"--incremental", "--force-logic=ALL"}
	case config.SolverBoolector:
		return "boolector", []string{"--incremental"}
	case config.SolverBitwuzla:
		return "bitwuzla", nil
	}
	return "z3", []string{"-smt2", "-in"}
}

// ProcessSolver drives a solver binary through its standard streams.
type ProcessSolver struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	in     *bufio.Writer
	out    *bufio.Reader
	stderr strings.Builder
	replay io.Writer
	name   string
}

// Start launches solver. Every command sent is also written to replay
// when it is not nil. The process is killed when ctx is done.
func Start(ctx context.Context, solver config.Solver, replay io.Writer) (*ProcessSolver, error) {
	name, args := Command(solver)
	cmd := exec.CommandContext(ctx, name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("smt: %s: %w", name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("smt: %s: %w", name, err)
	}
	s := &ProcessSolver{
		cmd:    cmd,
		stdin:  stdin,
		in:     bufio.NewWriter(stdin),
		out:    bufio.NewReader(stdout),
		replay: replay,
		name:   name,
	}
	cmd.Stderr = &s.stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("smt: cannot start %s: %w", name, err)
	}
	if err := s.Send("(set-option :print-success true)", "(set-option :produce-models true)"); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *ProcessSolver) write(cmd string) error {
	if s.replay != nil {
		if _, err := io.WriteString(s.replay, cmd+"\n"); err != nil {
			return fmt.Errorf("smt: replay log: %w", err)
		}
	}
	if _, err := s.in.WriteString(cmd + "\n"); err != nil {
		return s.wrap(err)
	}
	return s.wrap(s.in.Flush())
}

func (s *ProcessSolver) wrap(err error) error {
	if err == nil {
		return nil
	}
	if msg := strings.TrimSpace(s.stderr.String()); msg != "" {
		return fmt.Errorf("smt: %s: %s: %w", s.name, msg, err)
	}
	return fmt.Errorf("smt: %s: %w", s.name, err)
}

func (s *ProcessSolver) read() (Node, error) {
	n, err := readNode(s.out)
	if err != nil {
		return Node{}, s.wrap(err)
	}
	if n.IsList && len(n.List) == 2 && !n.List[0].IsList && n.List[0].Atom == "error" {
		return Node{}, fmt.Errorf("%w: %s: %s", ErrSolver, s.name, unquote(n.List[1].Atom))
	}
	return n, nil
}

func (s *ProcessSolver) Send(cmds ...string) error {
	for _, cmd := range cmds {
		if err := s.write(cmd); err != nil {
			return err
		}
		n, err := s.read()
		if err != nil {
			return err
		}
		if n.IsList || n.Atom != "success" {
			return fmt.Errorf("%w: %s: expected success after %s, got %s", ErrSolver, s.name, cmd, n)
		}
	}
	return nil
}

func (s *ProcessSolver) CheckSat(assumptions ...string) (Result, error) {
	cmd := "(check-sat)"
	if len(assumptions) > 0 {
		cmd = "(check-sat-assuming (" + strings.Join(assumptions, " ") + "))"
	}
	if err := s.write(cmd); err != nil {
		return Unknown, err
	}
	n, err := s.read()
	if err != nil {
		return Unknown, err
	}
	switch n.Atom {
	case "sat":
		return Sat, nil
	case "unsat":
		return Unsat, nil
	case "unknown", "timeout":
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("%w: %s: unexpected answer %s", ErrSolver, s.name, n)
}

func (s *ProcessSolver) GetValue(terms []string) ([]string, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	if err := s.write("(get-value (" + strings.Join(terms, " ") + "))"); err != nil {
		return nil, err
	}
	n, err := s.read()
	if err != nil {
		return nil, err
	}
	return parseValues(n, len(terms))
}

// parseValues reads the ((term value) ...) answer of get-value.
func parseValues(n Node, want int) ([]string, error) {
	if !n.IsList || len(n.List) != want {
		return nil, fmt.Errorf("%w: malformed model %s", ErrSolver, n)
	}
	out := make([]string, want)
	for i, pair := range n.List {
		if !pair.IsList || len(pair.List) != 2 {
			return nil, fmt.Errorf("%w: malformed model entry %s", ErrSolver, pair)
		}
		out[i] = FormatValue(pair.List[1])
	}
	return out, nil
}

// FormatValue prints a model value as a decimal number when it is one.
func FormatValue(n Node) string {
	if n.IsList {
		// (- 3) for negative integers
		if len(n.List) == 2 && n.List[0].Atom == "-" && !n.List[1].IsList {
			return "-" + n.List[1].Atom
		}
		// (_ bvN w)
		if len(n.List) == 3 && n.List[0].Atom == "_" && strings.HasPrefix(n.List[1].Atom, "bv") {
			return strings.TrimPrefix(n.List[1].Atom, "bv")
		}
		return n.String()
	}
	if v, ok := parseBits(n.Atom); ok {
		return v
	}
	return n.Atom
}

func (s *ProcessSolver) Close() error {
	_ = s.write("(exit)")
	_ = s.stdin.Close()
	err := s.cmd.Wait()
	var exit *exec.ExitError
	if errors.As(err, &exit) {
		// solvers may exit non-zero once killed or after (exit)
		return nil
	}
	return err
}
