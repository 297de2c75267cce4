package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"filament/internal/pipeline"
)

func TestProgressFollowsEvents(t *testing.T) {
	events := make(chan pipeline.Event)
	m := NewProgressModel("main.fil", pipeline.Stages, events).(*progressModel)

	m.applyEvent(pipeline.Event{Stage: pipeline.StageLoad, Status: pipeline.StatusDone, Elapsed: 2 * time.Millisecond})
	m.applyEvent(pipeline.Event{Stage: pipeline.StageConvert, Status: pipeline.StatusWorking})
	m.applyEvent(pipeline.Event{Stage: "unknown", Status: pipeline.StatusDone})

	want := 1.5 / float64(len(pipeline.Stages))
	if got := m.fraction(); got != want {
		t.Fatalf("fraction = %v, want %v", got, want)
	}
	view := m.View()
	if !strings.Contains(view, "load") || !strings.Contains(view, "2.0 ms") {
		t.Fatalf("view:\n%s", view)
	}
}

func TestProgressShowsErrors(t *testing.T) {
	m := NewProgressModel("main.fil", []pipeline.Stage{pipeline.StageDischarge}, nil).(*progressModel)
	m.applyEvent(pipeline.Event{Stage: pipeline.StageDischarge, Status: pipeline.StatusError, Err: errors.New("3 errors")})
	if !strings.Contains(m.View(), "3 errors") {
		t.Fatalf("view:\n%s", m.View())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("monomorphize", 8); got != "monom..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("load", 8); got != "load" {
		t.Fatalf("truncate = %q", got)
	}
}
