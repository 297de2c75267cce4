package driver

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filament/internal/ir"
	"filament/internal/version"
)

// dump prints irctx after the named pass when the options ask for it.
func (r *run) dump(pass string, irctx *ir.Context) error {
	if !r.opts.ShouldDump(pass) {
		return nil
	}
	if _, err := fmt.Fprintf(r.out, "// after %s\n", pass); err != nil {
		return fmt.Errorf("driver: %w", err)
	}
	if err := printContext(r.out, irctx); err != nil {
		return fmt.Errorf("driver: %w", err)
	}
	return nil
}

// printContext writes every component of irctx, externals first as bare
// signatures annotated with their file.
func printContext(w io.Writer, irctx *ir.Context) error {
	var err error
	irctx.Iter(func(idx ir.CompIdx, c *ir.Component) {
		if err != nil || !c.IsExt() {
			return
		}
		if file, ok := irctx.Filename(idx); ok {
			if _, err = fmt.Fprintf(w, "// extern %s\n", file); err != nil {
				return
			}
		}
		err = ir.NewPrinter(c).WithContext(irctx, idx).Print(w)
	})
	irctx.Iter(func(idx ir.CompIdx, c *ir.Component) {
		if err != nil || c.IsExt() {
			return
		}
		err = ir.NewPrinter(c).WithContext(irctx, idx).Print(w)
	})
	return err
}

// writeIR writes the monomorphized program to <out-dir>/<input>.ir, or to
// stdout without an output directory.
func (r *run) writeIR() (string, error) {
	w := r.out
	dest := "stdout"
	var f *os.File
	if r.opts.OutDir != "" {
		if err := os.MkdirAll(r.opts.OutDir, 0o755); err != nil {
			return "", fmt.Errorf("driver: output directory: %w", err)
		}
		base := filepath.Base(r.opts.Input)
		dest = filepath.Join(r.opts.OutDir, strings.TrimSuffix(base, filepath.Ext(base))+".ir")
		var err error
		if f, err = os.Create(dest); err != nil {
			return "", fmt.Errorf("driver: %w", err)
		}
		w = f
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "// filament %s backend=%s entrypoint=%s\n",
		version.Version, r.opts.Backend, r.res.IR.CompName(r.res.IR.Entrypoint.Comp))
	err := printContext(bw, r.res.IR)
	if err == nil {
		err = bw.Flush()
	}
	if f != nil {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return "", fmt.Errorf("driver: %s: %w", dest, err)
	}
	return dest, nil
}
