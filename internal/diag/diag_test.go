package diag

import (
	"testing"

	"filament/internal/source"
)

func TestDedupReporter(t *testing.T) {
	bag := NewBag(0)
	r := NewDedupReporter(NewBagReporter(bag))
	sp := source.Span{File: 0, Start: 1, End: 3}
	for range 3 {
		ReportError(r, ObgLiveness, sp, "source port does not provide value").
			WithNote(source.Span{File: 0, Start: 5, End: 6}, "requires value").
			Emit()
	}
	ReportError(r, ObgLiveness, sp, "source port does not provide value").
		WithNote(source.Span{File: 0, Start: 7, End: 8}, "requires value").
		Emit()
	if got := bag.Len(); got != 2 {
		t.Fatalf("got %d diagnostics, want 2", got)
	}
}

func TestBagLimitAndSort(t *testing.T) {
	bag := NewBag(2)
	bag.Add(NewError(ObgInBounds, source.Span{File: 1, Start: 0, End: 1}, "b"))
	bag.Add(New(SevWarning, ObgMisc, source.Span{File: 0, Start: 4, End: 5}, "a"))
	if bag.Add(NewError(ObgMisc, source.Span{}, "c")) {
		t.Fatalf("bag accepted diagnostic past its limit")
	}
	if got := bag.ErrorCount(); got != 2 {
		t.Fatalf("got %d errors, want 2", got)
	}
	bag.Sort()
	if bag.Items()[0].Message != "a" {
		t.Fatalf("got %q first, want %q", bag.Items()[0].Message, "a")
	}
}

func TestCodeID(t *testing.T) {
	cases := map[Code]string{
		InpDecode:        "INP1001",
		ChkNeverAssigned: "CHK2004",
		ObgLiveness:      "OBG3007",
		Code(42):         "E0000",
	}
	for c, want := range cases {
		if got := c.ID(); got != want {
			t.Fatalf("got %s, want %s", got, want)
		}
	}
}

func TestCounter(t *testing.T) {
	c := NewCounter(NopReporter{})
	c.Report(New(SevWarning, ObgMisc, source.NoSpan, "w"))
	c.Report(NewError(ObgMisc, source.NoSpan, "e"))
	if got := c.Errors(); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
}
