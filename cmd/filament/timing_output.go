package main

import (
	"io"

	"filament/internal/driver"
)

// printStageTimings writes the stages and the passes nested in them with
// their durations.
func printStageTimings(out io.Writer, res *driver.Result) {
	if out == nil || res == nil || res.Timer == nil {
		return
	}
	if _, err := io.WriteString(out, res.Timer.Summary()); err != nil {
		panic(err)
	}
}
