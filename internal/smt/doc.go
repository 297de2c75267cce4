// Package smt talks to SMT solvers in the SMT-LIB2 language.
//
// An Encoder turns the expressions, times and propositions of one
// component into solver terms, emitting the declarations they depend on
// the first time each is used. A Solver runs commands; ProcessSolver drives
// an external binary over its standard streams. Eval decides propositions
// that mention no free variables without starting a solver at all.
package smt
