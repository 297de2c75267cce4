package ir

import (
	"fmt"
	"sort"

	"filament/internal/source"
)

// EntryPoint is the component compilation starts from, with the values of
// its signature parameters.
type EntryPoint struct {
	Comp     CompIdx
	Bindings []uint64
}

// Context owns every component of a program.
type Context struct {
	comps *Store[CompIdx, *Component]
	// Externals maps a file name to the external components it declares.
	Externals  map[string][]CompIdx
	Entrypoint *EntryPoint
	Names      *source.Interner
	// taken holds the components detached with Take.
	taken map[CompIdx]*Component
}

func NewContext(names *source.Interner) *Context {
	if names == nil {
		names = source.NewInterner()
	}
	return &Context{
		comps:     NewStore[CompIdx, *Component](),
		Externals: make(map[string][]CompIdx),
		Names:     names,
		taken:     make(map[CompIdx]*Component),
	}
}

// Add registers a component and returns its index.
func (ctx *Context) Add(c *Component) CompIdx {
	c.Names = ctx.Names
	return ctx.comps.Add(c)
}

// NewComp creates and registers an empty component.
func (ctx *Context) NewComp(kind CompKind, attrs Attrs) CompIdx {
	return ctx.Add(NewComponent(kind, attrs))
}

// Get returns a component. It panics when the component was deleted or is
// currently taken out with Take.
func (ctx *Context) Get(idx CompIdx) *Component {
	c := ctx.comps.Get(idx)
	if c == nil {
		panic(fmt.Sprintf("ir: component %s is being visited", idx))
	}
	return c
}

// Take detaches a component so that it can be mutated while the rest of
// the context is read. Put must be called before the next Take of idx.
func (ctx *Context) Take(idx CompIdx) *Component {
	c := ctx.Get(idx)
	*ctx.comps.Mut(idx) = nil
	if ctx.taken == nil {
		ctx.taken = make(map[CompIdx]*Component)
	}
	ctx.taken[idx] = c
	return c
}

// Put reattaches a component detached with Take.
func (ctx *Context) Put(idx CompIdx, c *Component) {
	slot := ctx.comps.Mut(idx)
	if *slot != nil {
		panic(fmt.Sprintf("ir: component %s was not taken", idx))
	}
	c.Names = ctx.Names
	*slot = c
	delete(ctx.taken, idx)
}

// Delete removes a component; its index is never reused.
func (ctx *Context) Delete(idx CompIdx) { ctx.comps.Delete(idx) }

func (ctx *Context) Valid(idx CompIdx) bool { return ctx.comps.Valid(idx) }

func (ctx *Context) Len() int { return ctx.comps.Len() }

// Idxs returns the indices of all live components.
func (ctx *Context) Idxs() []CompIdx { return ctx.comps.Idxs() }

// Iter calls fn for each live component in index order.
func (ctx *Context) Iter(fn func(CompIdx, *Component)) {
	ctx.comps.Iter(fn)
}

func (ctx *Context) IsExt(idx CompIdx) bool { return ctx.Get(idx).IsExt() }

// Filename returns the file that declared an external component.
func (ctx *Context) Filename(idx CompIdx) (string, bool) {
	files := make([]string, 0, len(ctx.Externals))
	for f := range ctx.Externals {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		for _, c := range ctx.Externals[f] {
			if c == idx {
				return f, true
			}
		}
	}
	return "", false
}

// CompName returns the surface name of a component, or its index. It also
// names components detached with Take.
func (ctx *Context) CompName(idx CompIdx) string {
	c := ctx.comps.Get(idx)
	if c == nil {
		c = ctx.taken[idx]
	}
	if c != nil && c.Src != nil {
		return ctx.Names.MustLookup(c.Src.Name)
	}
	return idx.String()
}

// ForeignPort resolves a port owned by another component.
func (ctx *Context) ForeignPort(f Foreign[PortIdx]) Port {
	return ctx.Get(f.Owner).Ports.Get(f.Key)
}

// ForeignEvent resolves an event owned by another component.
func (ctx *Context) ForeignEvent(f Foreign[EventIdx]) Event {
	return ctx.Get(f.Owner).Events.Get(f.Key)
}

// ForeignParam resolves a parameter owned by another component.
func (ctx *Context) ForeignParam(f Foreign[ParamIdx]) Param {
	return ctx.Get(f.Owner).Params.Get(f.Key)
}
