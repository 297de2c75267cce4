// Package gen runs the external tools that produce the definitions of
// generated components.
package gen

import (
	"context"
	"fmt"
	"strings"
)

// Instance is one request for a generated module.
type Instance struct {
	Module string
	Params []string
}

func (i Instance) String() string {
	return fmt.Sprintf("%s[%s]", i.Module, strings.Join(i.Params, ", "))
}

func (i Instance) key() string {
	return i.Module + "\x00" + strings.Join(i.Params, "\x00")
}

// Output describes a generated module: its name in the generated file, the
// file itself and the values of its existential parameters by name.
type Output struct {
	Name   string
	File   string
	Exists map[string]string
}

// Executor produces generated modules. A run creates one executor and
// closes it only after every consumer of the generated files is done.
type Executor interface {
	Generate(ctx context.Context, tool string, inst Instance) (Output, error)
	Close() error
}
