package gen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"filament/internal/config"
	"filament/internal/trace"
)

// Exec runs registered tools as processes and caches their outputs for the
// duration of a run.
type Exec struct {
	mu        sync.Mutex
	tools     map[string]*Tool
	generated map[string]map[string]Output
	config    config.GenConfig
	outDir    string
	tmp       bool
	// DryRun prints nothing and runs nothing; every instance gets an empty
	// output.
	DryRun bool
}

// NewExec creates an executor writing into outDir. An empty outDir selects
// a temporary directory that is removed by Close.
func NewExec(outDir string, cfg config.GenConfig) (*Exec, error) {
	e := &Exec{
		tools:     make(map[string]*Tool),
		generated: make(map[string]map[string]Output),
		config:    cfg,
		outDir:    outDir,
	}
	if outDir == "" {
		dir, err := os.MkdirTemp("", "filament-gen-")
		if err != nil {
			return nil, fmt.Errorf("gen: output directory: %w", err)
		}
		e.outDir, e.tmp = dir, true
	} else if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("gen: output directory: %w", err)
	}
	return e, nil
}

// OutDir is where generated files are written.
func (e *Exec) OutDir() string { return e.outDir }

// RegisterFile loads and registers the tool described by a manifest.
// Registering the same manifest twice is a no-op.
func (e *Exec) RegisterFile(path string) (*Tool, error) {
	t, err := LoadTool(path)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if old, ok := e.tools[t.Name]; ok && old.Path == t.Path {
		return old, nil
	}
	return t, e.register(t)
}

// Register adds a tool. Globals from the bindings file replace the ones of
// the manifest.
func (e *Exec) Register(t *Tool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.register(t)
}

func (e *Exec) register(t *Tool) error {
	if _, ok := e.tools[t.Name]; ok {
		return fmt.Errorf("gen: tool %s is already registered", t.Name)
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if globals, ok := e.config[t.Name]; ok {
		t.Globals = globals
	}
	e.tools[t.Name] = t
	return nil
}

func (e *Exec) Generate(ctx context.Context, tool string, inst Instance) (Output, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tools[tool]
	if !ok {
		return Output{}, fmt.Errorf("gen: unknown tool %s", tool)
	}
	if out, ok := e.generated[tool][inst.key()]; ok {
		return out, nil
	}
	mod, ok := t.Modules[inst.Module]
	if !ok {
		return Output{}, fmt.Errorf("gen: tool %s does not define module %s", tool, inst.Module)
	}
	if len(mod.Params) != len(inst.Params) {
		return Output{}, fmt.Errorf("gen: module %s has %d parameters but %d were given", inst.Module, len(mod.Params), len(inst.Params))
	}
	if !t.RequiresOutFile {
		return Output{}, fmt.Errorf("gen: tool %s does not support $OUT_FILE", tool)
	}

	var b binding
	for i, p := range mod.Params {
		b = append(b, [2]string{p, inst.Params[i]})
	}
	for _, k := range sortedKeys(t.Globals) {
		b = append(b, [2]string{k, t.Globals[k]})
	}
	name, err := b.expand(mod.NameFormat)
	if err != nil {
		return Output{}, err
	}
	file := filepath.Join(e.outDir, name+".v")
	b = append(b, [2]string{"NAME_FORMAT", name}, [2]string{"OUT_FILE", file})
	args, err := b.expand(mod.CLI)
	if err != nil {
		return Output{}, err
	}

	span := trace.Begin(trace.FromContext(ctx), trace.ScopeQuery, "gen "+inst.String(), trace.CurrentSpan(ctx))
	span.WithExtra("cmd", t.Path+" "+args)
	out := Output{Name: name, File: file, Exists: make(map[string]string)}
	if !e.DryRun {
		if _, err := os.Stat(file); err == nil {
			span.End("exists")
			return Output{}, fmt.Errorf("gen: file already exists: %s", file)
		}
		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, t.Path, strings.Fields(args)...)
		cmd.Stdout, cmd.Stderr = &stdout, &stderr
		if err := cmd.Run(); err != nil {
			span.End("failed")
			return Output{}, fmt.Errorf("gen: %s %s: %w\n%s", t.Path, args, err, stderr.String())
		}
		values := parseOutput(stdout.String())
		for _, p := range sortedKeys(mod.Outputs) {
			v, ok := values[mod.Outputs[p]]
			if !ok {
				span.End("failed")
				return Output{}, fmt.Errorf("gen: tool %s did not print a value for existential parameter %s", tool, mod.Outputs[p])
			}
			out.Exists[p] = v
		}
	}
	span.End("")

	if e.generated[tool] == nil {
		e.generated[tool] = make(map[string]Output)
	}
	e.generated[tool][inst.key()] = out
	return out, nil
}

// Close removes the temporary output directory, if one was created.
func (e *Exec) Close() error {
	if !e.tmp {
		return nil
	}
	return os.RemoveAll(e.outDir)
}
