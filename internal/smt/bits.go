package smt

import (
	"math/big"
	"strings"
)

// parseBits converts #b and #x bitvector literals to decimal.
func parseBits(atom string) (string, bool) {
	var base int
	switch {
	case strings.HasPrefix(atom, "#b"):
		base = 2
	case strings.HasPrefix(atom, "#x"):
		base = 16
	default:
		return "", false
	}
	v, ok := new(big.Int).SetString(atom[2:], base)
	if !ok {
		return "", false
	}
	return v.String(), true
}
