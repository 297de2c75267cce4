package mono

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"filament/internal/ir"
)

// DumpOptions configures the specialization dump.
type DumpOptions struct {
	// If true, prints only the specialization table.
	HeadersOnly bool
}

// Dump writes the table of specializations built so far, ordered by
// generic component and arguments, followed by the components themselves.
func (m *Monomorphizer) Dump(w io.Writer, opts DumpOptions) error {
	if w == nil {
		return nil
	}
	keys := make([]CompKey, 0, len(m.processed))
	for k := range m.processed {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b CompKey) int {
		if c := cmp.Compare(a.Comp.Get(), b.Comp.Get()); c != 0 {
			return c
		}
		return cmp.Compare(a.Args, b.Args)
	})

	if _, err := fmt.Fprintf(w, "specializations=%d\n", len(keys)); err != nil {
		return err
	}
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "  %s -> %s\n", m.describe(k), m.processed[k].Get()); err != nil {
			return err
		}
	}
	if opts.HeadersOnly {
		return nil
	}
	for _, k := range keys {
		idx := m.processed[k].Get()
		if err := ir.NewPrinter(m.ctx.Get(idx)).WithContext(m.ctx, idx).Print(w); err != nil {
			return err
		}
	}
	return nil
}
