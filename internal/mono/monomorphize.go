// Package mono turns a parametric program into a concrete one. Starting
// from the entrypoint, every instance is specialized for the concrete
// values of its parameters, loops are unrolled, conditionals resolved and
// let-bindings substituted away.
package mono

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"filament/internal/gen"
	"filament/internal/ir"
	"filament/internal/trace"
)

// Name is the pass name used by --dump-after and in traces.
const Name = "monomorphize"

// Options controls the pass.
type Options struct {
	// MaxDepth bounds the chain of nested specializations. Zero means
	// DefaultMaxDepth.
	MaxDepth int
}

// DefaultMaxDepth is large enough for any real design and small enough to
// catch components that instantiate themselves with growing parameters.
const DefaultMaxDepth = 1024

var (
	// ErrDepth reports a chain of specializations longer than MaxDepth.
	ErrDepth = errors.New("mono: instantiation depth exceeded")
	// ErrGen wraps failures of the generator executor.
	ErrGen = errors.New("mono: generation failed")
)

// Monomorphizer holds the state shared by the specializations of one run.
type Monomorphizer struct {
	old  *ir.Context
	ctx  *ir.Context
	exec gen.Executor
	opts Options

	processed map[CompKey]Base[ir.CompIdx]
	instInfo  map[CompKey]*InstanceInfo
	stack     []CompKey
}

// New prepares a run over old. exec may be nil when the program has no
// generated components.
func New(old *ir.Context, exec gen.Executor, opts Options) *Monomorphizer {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Monomorphizer{
		old:       old,
		ctx:       ir.NewContext(old.Names),
		exec:      exec,
		opts:      opts,
		processed: make(map[CompKey]Base[ir.CompIdx]),
		instInfo:  make(map[CompKey]*InstanceInfo),
	}
}

// Monomorphize builds the concrete program reachable from the entrypoint
// of old. A program without an entrypoint yields an empty context.
func Monomorphize(ctx context.Context, old *ir.Context, exec gen.Executor, opts Options) (*ir.Context, error) {
	return New(old, exec, opts).Run(ctx)
}

// Run performs the transformation. It can be called once.
func (m *Monomorphizer) Run(ctx context.Context) (*ir.Context, error) {
	ep := m.old.Entrypoint
	if ep == nil {
		return m.ctx, nil
	}
	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, Name, trace.CurrentSpan(ctx))
	ctx = trace.WithSpan(ctx, span)

	_, main, err := m.monomorphize(ctx, ep.Comp, ep.Bindings)
	if err != nil {
		span.End("failed")
		return nil, err
	}
	m.ctx.Entrypoint = &ir.EntryPoint{Comp: main.Get()}
	if err := ir.Validate(m.ctx); err != nil {
		span.End("invalid")
		return nil, fmt.Errorf("mono: %w", err)
	}
	if err := CheckConcrete(m.ctx); err != nil {
		span.End("invalid")
		return nil, err
	}
	span.WithExtra("components", strconv.Itoa(m.ctx.Len())).End("")
	return m.ctx, nil
}

// Len reports how many components have been built so far.
func (m *Monomorphizer) Len() int { return len(m.processed) }

func (m *Monomorphizer) key(comp ir.CompIdx, args []uint64) CompKey {
	c := m.old.Get(comp)
	if c.IsExt() {
		// Externals are parameterized outside the language; one copy
		// serves every instantiation.
		return NewCompKey(comp, nil)
	}
	return NewCompKey(comp, args)
}

// monomorphize returns the specialization of comp for args, building it
// on first use.
func (m *Monomorphizer) monomorphize(ctx context.Context, comp ir.CompIdx, args []uint64) (CompKey, Base[ir.CompIdx], error) {
	key := m.key(comp, args)
	if idx, ok := m.processed[key]; ok {
		return key, idx, nil
	}
	if len(m.stack) >= m.opts.MaxDepth {
		return key, Base[ir.CompIdx]{}, fmt.Errorf("%w (%d) while specializing %s", ErrDepth, m.opts.MaxDepth, m.describe(key))
	}
	m.stack = append(m.stack, key)
	defer func() { m.stack = m.stack[:len(m.stack)-1] }()

	c := m.old.Get(comp)
	if c.IsExt() {
		return key, m.ext(key), nil
	}
	if len(args) != len(c.ParamArgs) {
		return key, Base[ir.CompIdx]{}, fmt.Errorf("mono: %s expects %d parameters, got %d", m.old.CompName(comp), len(c.ParamArgs), len(args))
	}

	span := trace.Begin(trace.FromContext(ctx), trace.ScopeComponent, m.describe(key), trace.CurrentSpan(ctx))
	ctx = trace.WithSpan(ctx, span)
	var idx Base[ir.CompIdx]
	var err error
	if c.IsGen() {
		idx, err = m.gen(ctx, key, args)
	} else {
		idx, err = m.source(ctx, key, args)
	}
	if err != nil {
		span.End("failed")
		return key, idx, err
	}
	span.End("")
	return key, idx, nil
}

func (m *Monomorphizer) describe(key CompKey) string {
	return fmt.Sprintf("%s[%s]", m.old.CompName(key.Comp.Get()), key.Args)
}

func (m *Monomorphizer) info(key CompKey) *InstanceInfo {
	ii, ok := m.instInfo[key]
	if !ok {
		ii = newInstanceInfo()
		m.instInfo[key] = ii
	}
	return ii
}

// ext copies an external component unchanged.
func (m *Monomorphizer) ext(key CompKey) Base[ir.CompIdx] {
	ul := m.old.Get(key.Comp.Get())
	c := ul.Clone()
	ii := m.info(key)
	c.Ports.Iter(func(p ir.PortIdx, _ ir.Port) { ii.ports[underlying(p)] = base(p) })
	c.Events.Iter(func(e ir.EventIdx, _ ir.Event) { ii.events[underlying(e)] = base(e) })

	idx := base(m.ctx.Add(c))
	m.processed[key] = idx
	file, _ := m.old.Filename(key.Comp.Get())
	m.ctx.Externals[file] = append(m.ctx.Externals[file], idx.Get())
	return idx
}

// gen asks the generator for a concrete module and builds its signature
// with the existential values the tool reported.
func (m *Monomorphizer) gen(ctx context.Context, key CompKey, args []uint64) (Base[ir.CompIdx], error) {
	ul := m.old.Get(key.Comp.Get())
	if m.exec == nil {
		return Base[ir.CompIdx]{}, fmt.Errorf("%w: %s is generated but no generator is configured", ErrGen, m.describe(key))
	}
	inst := gen.Instance{Module: m.old.CompName(key.Comp.Get())}
	for _, a := range args {
		inst.Params = append(inst.Params, strconv.FormatUint(a, 10))
	}
	out, err := m.exec.Generate(ctx, ul.Src.GenTool, inst)
	if err != nil {
		return Base[ir.CompIdx]{}, fmt.Errorf("%w: %s: %w", ErrGen, m.describe(key), err)
	}

	s := newSpecializer(m, key, ul, ir.CompExternal, args)
	s.sigPartial()
	for name, raw := range out.Exists {
		id, ok := m.old.Names.Lookup(name)
		p, found := ul.Src.ParamByName(id)
		if !ok || !found {
			return Base[ir.CompIdx]{}, fmt.Errorf("mono: %s has no parameter %s", m.describe(key), name)
		}
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Base[ir.CompIdx]{}, fmt.Errorf("mono: %s: value of %s: %w", m.describe(key), name, err)
		}
		s.exists[underlying(p)] = v
	}
	if err := s.sigComplete(); err != nil {
		return Base[ir.CompIdx]{}, err
	}
	s.base.Src.Name = m.old.Names.Intern(out.Name)
	s.base.Src.GenTool = ""

	idx := base(m.ctx.Add(s.base))
	m.processed[key] = idx
	m.ctx.Externals[out.File] = append(m.ctx.Externals[out.File], idx.Get())
	return idx, nil
}

// source specializes a component defined in the language.
func (m *Monomorphizer) source(ctx context.Context, key CompKey, args []uint64) (Base[ir.CompIdx], error) {
	ul := m.old.Get(key.Comp.Get())
	s := newSpecializer(m, key, ul, ir.CompSource, args)
	s.sigPartial()
	if err := s.cmds(ctx, ul.Cmds); err != nil {
		return Base[ir.CompIdx]{}, err
	}
	if err := s.sigComplete(); err != nil {
		return Base[ir.CompIdx]{}, err
	}
	idx := base(m.ctx.Add(s.base))
	m.processed[key] = idx
	return idx, nil
}
