package mono

import (
	"errors"
	"fmt"

	"filament/internal/ir"
)

// CheckConcrete verifies that a monomorphized context is free of
// parametric constructs: defined components have no parameters other than
// bundle indices and no loops, conditionals or bindings remain. External
// components keep their signatures and are skipped.
func CheckConcrete(ctx *ir.Context) error {
	var errs []error
	ctx.Iter(func(idx ir.CompIdx, c *ir.Component) {
		if c.IsExt() {
			return
		}
		fail := func(format string, args ...any) {
			errs = append(errs, fmt.Errorf("mono: %s: %s", ctx.CompName(idx), fmt.Sprintf(format, args...)))
		}
		if len(c.ParamArgs) != 0 {
			fail("%d signature parameters remain", len(c.ParamArgs))
		}
		c.Params.Iter(func(p ir.ParamIdx, param ir.Param) {
			if param.Owner.Kind != ir.ParamBundle {
				fail("parameter %s is owned by %s", c.DisplayParam(p), param.Owner)
			}
		})
		c.Instances.Iter(func(i ir.InstIdx, inst ir.Instance) {
			if len(inst.Params) != 0 {
				fail("instance %s exposes parameters", c.DisplayInst(i))
			}
			if !ctx.IsExt(inst.Comp) && len(inst.Args) != 0 {
				fail("instance %s of a defined component has arguments", c.DisplayInst(i))
			}
		})
		ir.WalkCmds(c.Cmds, func(cmd ir.Command) {
			switch cmd.(type) {
			case *ir.ForLoop:
				fail("loop was not unrolled")
			case *ir.If:
				fail("conditional was not resolved")
			case *ir.Let:
				fail("let binding remains")
			case *ir.Exists:
				fail("existential binding remains")
			}
		})
	})
	return errors.Join(errs...)
}
