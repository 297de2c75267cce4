package trace

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Tracer receives trace events. Implementations must be safe for
// concurrent use: discharge workers emit from several goroutines.
type Tracer interface {
	Emit(ev *Event)
	Flush() error
	Close() error
	Level() Level
	Enabled() bool
}

// Config selects a tracer.
type Config struct {
	Level      Level
	Format     Format
	Output     io.Writer // takes precedence over OutputPath
	OutputPath string    // "-" or empty for stderr
	RingSize   int       // events kept for crash dumps; 0 disables the ring
}

// New creates a tracer for cfg. At LevelError only the ring buffer is
// kept; the driver dumps it when the compiler crashes.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return Nop, nil
	}
	if cfg.Format == FormatAuto {
		cfg.Format = FormatText
		if strings.HasSuffix(cfg.OutputPath, ".ndjson") {
			cfg.Format = FormatNDJSON
		}
	}
	var ring *RingTracer
	if cfg.RingSize > 0 || cfg.Level == LevelError {
		ring = NewRingTracer(cfg.RingSize, cfg.Level)
	}
	if cfg.Level == LevelError {
		return ring, nil
	}
	w := cfg.Output
	if w == nil {
		if cfg.OutputPath == "" || cfg.OutputPath == "-" {
			w = os.Stderr
		} else {
			f, err := os.Create(cfg.OutputPath)
			if err != nil {
				return nil, fmt.Errorf("trace: open output: %w", err)
			}
			w = f
		}
	}
	stream := NewStreamTracer(w, cfg.Level, cfg.Format)
	if ring == nil {
		return stream, nil
	}
	return NewMultiTracer(cfg.Level, stream, ring), nil
}

// Point emits an instant event.
func Point(t Tracer, scope Scope, name, detail string, parent uint64) {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	t.Emit(&Event{Kind: KindPoint, Scope: scope, ParentID: parent, Name: name, Detail: detail})
}
