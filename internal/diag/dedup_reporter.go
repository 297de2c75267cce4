package diag

import (
	"strings"
	"sync"

	"filament/internal/source"
)

type dedupKey struct {
	code    Code
	sev     Severity
	primary source.Span
	msg     string
	notes   string
}

// DedupReporter suppresses diagnostics with the same code, severity, primary
// span, message and notes. Monomorphization can visit the same source
// location once per instantiation; users want to see it once.
type DedupReporter struct {
	mu   sync.Mutex
	next Reporter
	seen map[dedupKey]struct{}
}

func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{next: next, seen: make(map[dedupKey]struct{})}
}

func (r *DedupReporter) Report(d Diagnostic) {
	if r == nil {
		return
	}
	var notes strings.Builder
	for _, n := range d.Notes {
		notes.WriteString(n.Span.String())
		notes.WriteByte(0)
		notes.WriteString(n.Msg)
		notes.WriteByte(0)
	}
	key := dedupKey{code: d.Code, sev: d.Severity, primary: d.Primary, msg: d.Message, notes: notes.String()}
	r.mu.Lock()
	_, dup := r.seen[key]
	r.seen[key] = struct{}{}
	r.mu.Unlock()
	if !dup && r.next != nil {
		r.next.Report(d)
	}
}
