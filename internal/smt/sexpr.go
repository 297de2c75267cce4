package smt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Node is a parsed S-expression: an atom when IsList is false.
type Node struct {
	Atom   string
	List   []Node
	IsList bool
}

func (n Node) String() string {
	if !n.IsList {
		return n.Atom
	}
	parts := make([]string, len(n.List))
	for i, c := range n.List {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// App builds the application (op args...). With no arguments it is op.
func App(op string, args ...string) string {
	if len(args) == 0 {
		return op
	}
	return "(" + op + " " + strings.Join(args, " ") + ")"
}

var errUnbalanced = errors.New("smt: unbalanced parentheses in solver output")

// readNode reads one S-expression, skipping whitespace and comments.
func readNode(r *bufio.Reader) (Node, error) {
	if err := skipSpace(r); err != nil {
		return Node{}, err
	}
	ch, err := r.ReadByte()
	if err != nil {
		return Node{}, err
	}
	switch ch {
	case '(':
		n := Node{IsList: true}
		for {
			if err := skipSpace(r); err != nil {
				if errors.Is(err, io.EOF) {
					return Node{}, errUnbalanced
				}
				return Node{}, err
			}
			next, err := r.ReadByte()
			if err != nil {
				return Node{}, err
			}
			if next == ')' {
				return n, nil
			}
			if err := r.UnreadByte(); err != nil {
				return Node{}, err
			}
			child, err := readNode(r)
			if err != nil {
				return Node{}, err
			}
			n.List = append(n.List, child)
		}
	case ')':
		return Node{}, errUnbalanced
	case '"':
		return readDelimited(r, '"', true)
	case '|':
		return readDelimited(r, '|', false)
	}

	var sb strings.Builder
	sb.WriteByte(ch)
	for {
		next, err := r.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Node{}, err
		}
		if next == '(' || next == ')' || isSpace(next) {
			if err := r.UnreadByte(); err != nil {
				return Node{}, err
			}
			break
		}
		sb.WriteByte(next)
	}
	return Node{Atom: sb.String()}, nil
}

// readDelimited reads a string literal or quoted symbol. In string
// literals a doubled quote stands for one quote character.
func readDelimited(r *bufio.Reader, delim byte, doubled bool) (Node, error) {
	var sb strings.Builder
	sb.WriteByte(delim)
	for {
		ch, err := r.ReadByte()
		if err != nil {
			return Node{}, fmt.Errorf("smt: unterminated %c in solver output: %w", delim, err)
		}
		sb.WriteByte(ch)
		if ch != delim {
			continue
		}
		if doubled {
			next, err := r.ReadByte()
			if err == nil && next == delim {
				sb.WriteByte(next)
				continue
			}
			if err == nil {
				_ = r.UnreadByte()
			}
		}
		return Node{Atom: sb.String()}, nil
	}
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func skipSpace(r *bufio.Reader) error {
	for {
		ch, err := r.ReadByte()
		if err != nil {
			return err
		}
		if ch == ';' {
			if _, err := r.ReadString('\n'); err != nil {
				return err
			}
			continue
		}
		if !isSpace(ch) {
			return r.UnreadByte()
		}
	}
}

// unquote strips the delimiters of a string literal.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return s
}
