// Package pipeline describes the stages of a compilation and the progress
// events the driver emits while running them.
package pipeline

import "time"

// Stage describes a high-level pipeline phase.
type Stage string

const (
	// StageLoad reads the input and its imports.
	StageLoad Stage = "load"
	// StageConvert builds the IR from the parsed namespace.
	StageConvert Stage = "astconv"
	// StageCheck runs the structural checks that add proof obligations.
	StageCheck Stage = "check"
	// StageDischarge proves the obligations.
	StageDischarge Stage = "discharge"
	// StageMono specializes the program for its entrypoint bindings.
	StageMono Stage = "monomorphize"
	// StageAssign checks that every port is assigned exactly once.
	StageAssign Stage = "assign"
	// StageEmit writes the requested output.
	StageEmit Stage = "emit"
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageLoad, StageConvert, StageCheck, StageDischarge, StageMono, StageAssign, StageEmit}

// Status captures progress state within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	// StatusSkipped marks a stage the options turned off.
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Event reports progress for one stage.
type Event struct {
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
	// Note is a short summary such as the number of components built.
	Note string
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings holds stage durations.
type Timings struct {
	stages map[Stage]time.Duration
}

func (t *Timings) ensure() {
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
}

// Set stores a duration for the given stage.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	t.ensure()
	t.stages[stage] = dur
}

// Has reports whether a duration for stage is recorded.
func (t Timings) Has(stage Stage) bool {
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t Timings) Duration(stage Stage) time.Duration {
	return t.stages[stage]
}

// Sum returns the sum of durations across the provided stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}
