package gen

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// StaticInstance is a pre-computed generator output.
type StaticInstance struct {
	Tool   string            `toml:"tool"`
	Module string            `toml:"module"`
	Params []string          `toml:"params"`
	Name   string            `toml:"name"`
	File   string            `toml:"file"`
	Exists map[string]string `toml:"exists"`
}

// Static answers from a fixed table instead of running tools. It lets a
// program with generated components be checked without the tools
// installed.
type Static struct {
	outputs map[string]Output
}

type staticFile struct {
	Instances []StaticInstance `toml:"instance"`
}

// ParseStatic reads a table of [[instance]] entries.
func ParseStatic(src string) (*Static, error) {
	var f staticFile
	meta, err := toml.Decode(src, &f)
	if err != nil {
		return nil, fmt.Errorf("gen: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("gen: unknown keys %v", undecoded)
	}
	s := NewStatic()
	for _, in := range f.Instances {
		s.Add(in)
	}
	return s, nil
}

func NewStatic() *Static { return &Static{outputs: make(map[string]Output)} }

func (s *Static) Add(in StaticInstance) {
	key := in.Tool + "\x00" + Instance{Module: in.Module, Params: in.Params}.key()
	out := Output{Name: in.Name, File: in.File, Exists: maps.Clone(in.Exists)}
	if out.Name == "" {
		out.Name = in.Module + "_" + strings.Join(in.Params, "_")
	}
	if out.Exists == nil {
		out.Exists = make(map[string]string)
	}
	s.outputs[key] = out
}

func (s *Static) Generate(_ context.Context, tool string, inst Instance) (Output, error) {
	out, ok := s.outputs[tool+"\x00"+inst.key()]
	if !ok {
		return Output{}, fmt.Errorf("gen: no output for %s from tool %s", inst, tool)
	}
	return out, nil
}

func (s *Static) Close() error { return nil }

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
