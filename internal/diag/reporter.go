package diag

import (
	"sync"

	"filament/internal/source"
)

// Reporter receives diagnostics from passes.
type Reporter interface {
	Report(d Diagnostic)
}

// ReportBuilder accumulates labels before emitting to a Reporter.
type ReportBuilder struct {
	reporter Reporter
	diag     Diagnostic
	emitted  bool
}

func NewReportBuilder(r Reporter, sev Severity, code Code, primary source.Span, msg string) *ReportBuilder {
	return &ReportBuilder{reporter: r, diag: New(sev, code, primary, msg)}
}

// ReportError is a shortcut for SevError diagnostics.
func ReportError(r Reporter, code Code, primary source.Span, msg string) *ReportBuilder {
	return NewReportBuilder(r, SevError, code, primary, msg)
}

// ReportWarning is a shortcut for SevWarning diagnostics.
func ReportWarning(r Reporter, code Code, primary source.Span, msg string) *ReportBuilder {
	return NewReportBuilder(r, SevWarning, code, primary, msg)
}

// WithLabel sets the message shown under the primary span.
func (b *ReportBuilder) WithLabel(msg string) *ReportBuilder {
	if b == nil {
		return nil
	}
	b.diag.Label = msg
	return b
}

// WithNote appends a secondary label. Notes without a location are kept;
// renderers print them as plain text.
func (b *ReportBuilder) WithNote(sp source.Span, msg string) *ReportBuilder {
	if b == nil {
		return nil
	}
	b.diag.Notes = append(b.diag.Notes, Note{Span: sp, Msg: msg})
	return b
}

// Emit sends the diagnostic exactly once.
func (b *ReportBuilder) Emit() {
	if b == nil || b.emitted {
		return
	}
	if b.reporter != nil {
		b.reporter.Report(b.diag)
	}
	b.emitted = true
}

// Diagnostic returns the accumulated diagnostic without emitting it.
func (b *ReportBuilder) Diagnostic() Diagnostic {
	if b == nil {
		return Diagnostic{}
	}
	return b.diag
}

// BagReporter stores diagnostics into a Bag. It is safe for concurrent use
// so that parallel discharge workers can share one.
type BagReporter struct {
	mu  sync.Mutex
	Bag *Bag
}

func NewBagReporter(bag *Bag) *BagReporter { return &BagReporter{Bag: bag} }

func (r *BagReporter) Report(d Diagnostic) {
	if r == nil || r.Bag == nil {
		return
	}
	r.mu.Lock()
	r.Bag.Add(d)
	r.mu.Unlock()
}

// NopReporter drops everything.
type NopReporter struct{}

func (NopReporter) Report(Diagnostic) {}

// Counter counts errors while forwarding to another reporter.
type Counter struct {
	mu     sync.Mutex
	next   Reporter
	errors uint64
}

func NewCounter(next Reporter) *Counter { return &Counter{next: next} }

func (c *Counter) Report(d Diagnostic) {
	c.mu.Lock()
	if d.Severity >= SevError {
		c.errors++
	}
	c.mu.Unlock()
	if c.next != nil {
		c.next.Report(d)
	}
}

// Errors returns the number of error diagnostics seen so far.
func (c *Counter) Errors() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors
}
