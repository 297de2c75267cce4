package main

import (
	"fmt"
	"io"
	"os"

	"filament/internal/diagfmt"
	"filament/internal/driver"
	"filament/internal/version"
)

// renderDiagnostics prints the diagnostics of res in the requested format.
func renderDiagnostics(w io.Writer, res *driver.Result, ro renderOptions, args []string) error {
	bag := res.Bag
	if bag == nil {
		return nil
	}
	baseDir, err := os.Getwd()
	if err != nil {
		baseDir = ""
	}
	switch ro.format {
	case "json":
		return diagfmt.JSON(w, bag, res.Files, diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         ro.pathMode,
			BaseDir:          baseDir,
			Max:              ro.maxDiagnostics,
			IncludeNotes:     ro.withNotes,
		})
	case "sarif":
		return diagfmt.Sarif(w, bag, res.Files, diagfmt.SarifRunMeta{
			ToolName:       "filament",
			ToolVersion:    version.Version,
			InvocationArgs: args,
		})
	}
	if bag.Len() == 0 {
		return nil
	}
	diagfmt.Pretty(w, bag, res.Files, diagfmt.PrettyOpts{
		Color:     ro.color,
		Context:   1,
		PathMode:  ro.pathMode,
		BaseDir:   baseDir,
		ShowNotes: ro.withNotes,
	})
	if dropped := bag.Dropped(); dropped > 0 {
		fmt.Fprintf(w, "... and %d more diagnostics (raise --max-diagnostics to see them)\n", dropped)
	}
	return nil
}
