package pipeline

import (
	"testing"
	"time"
)

func TestTimings(t *testing.T) {
	var tm Timings
	if tm.Has(StageLoad) || tm.Sum(Stages...) != 0 {
		t.Fatalf("zero Timings reports durations")
	}
	tm.Set(StageLoad, 2*time.Millisecond)
	tm.Set(StageCheck, 3*time.Millisecond)
	tm.Set(StageLoad, 5*time.Millisecond)
	if !tm.Has(StageLoad) || tm.Has(StageEmit) {
		t.Fatalf("Has: load = %v, emit = %v", tm.Has(StageLoad), tm.Has(StageEmit))
	}
	if got := tm.Duration(StageLoad); got != 5*time.Millisecond {
		t.Fatalf("Duration(load) = %s", got)
	}
	if got := tm.Sum(Stages...); got != 8*time.Millisecond {
		t.Fatalf("Sum = %s, want 8ms", got)
	}
}

func TestSinks(t *testing.T) {
	ch := make(chan Event, 2)
	ChannelSink{Ch: ch}.OnEvent(Event{Stage: StageMono, Status: StatusWorking})
	ChannelSink{}.OnEvent(Event{Stage: StageMono})
	if ev := <-ch; ev.Stage != StageMono || ev.Status != StatusWorking {
		t.Fatalf("event = %+v", ev)
	}

	var rec Recorder
	for _, st := range Stages {
		rec.OnEvent(Event{Stage: st, Status: StatusQueued})
	}
	if len(rec.Events) != len(Stages) || rec.Events[len(Stages)-1].Stage != StageEmit {
		t.Fatalf("recorded %+v", rec.Events)
	}
}
