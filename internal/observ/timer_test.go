package observ

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func fakeClock() func() time.Time {
	t := time.Unix(0, 0)
	return func() time.Time {
		t = t.Add(time.Millisecond)
		return t
	}
}

func TestNestedPhases(t *testing.T) {
	tm := NewTimer()
	tm.now = fakeClock()

	outer := tm.Begin("check")
	inner := tm.Begin("type-check")
	tm.End(inner, "")
	tm.End(outer, "3 components")

	ps := tm.Phases()
	if len(ps) != 2 || ps[1].Depth != 1 {
		t.Fatalf("phases = %+v", ps)
	}
	if ps[0].Dur != 3*time.Millisecond || ps[1].Dur != time.Millisecond {
		t.Fatalf("durations = %v, %v", ps[0].Dur, ps[1].Dur)
	}
	r := tm.Report()
	if r.TotalMS != 3 {
		t.Fatalf("total = %v, want only the outer phase", r.TotalMS)
	}
	if s := tm.Summary(); !strings.Contains(s, "    type-check") || !strings.Contains(s, "// 3 components") {
		t.Fatalf("summary:\n%s", s)
	}
}

func TestEndClosesInnerPhases(t *testing.T) {
	tm := NewTimer()
	tm.now = fakeClock()
	outer := tm.Begin("discharge")
	tm.Begin("main")
	tm.End(outer, "")
	for _, p := range tm.Phases() {
		if p.Dur == 0 {
			t.Fatalf("phase %s left open", p.Name)
		}
	}
}

func TestTrackMarksFailures(t *testing.T) {
	tm := NewTimer()
	err := tm.Track("mono", func() error { return errors.New("boom") })
	if err == nil || tm.Phases()[0].Note != "failed" {
		t.Fatalf("err = %v, phases = %+v", err, tm.Phases())
	}
}
