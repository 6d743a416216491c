package trace

import "time"

// Kind is the type of a trace event.
type Kind uint8

const (
	// KindSpanBegin opens a span.
	KindSpanBegin Kind = iota + 1
	// KindSpanEnd closes a span.
	KindSpanEnd
	// KindPoint is an instant event inside a span.
	KindPoint
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity of the event. Lower values are coarser.
type Scope uint8

const (
	// ScopeCommand covers CLI commands and batch runs.
	ScopeCommand Scope = iota + 1
	// ScopePass covers pipeline stages and the rewriting passes.
	ScopePass
	// ScopeEdit covers single editor operations and executor runs.
	ScopeEdit
	// ScopeInstr covers per-instruction emission.
	ScopeInstr
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeCommand:
		return "command"
	case ScopePass:
		return "pass"
	case ScopeEdit:
		return "edit"
	case ScopeInstr:
		return "instr"
	default:
		return "unknown"
	}
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // assigned by the sink
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for root spans
	Depth    int    // number of enclosing spans
	// File names the blob being processed. Batch runs interleave the events
	// of several blobs, so sinks print it next to the name.
	File   string
	Name   string // "inject", "split_block", "sim_run"
	Detail string
	Extra  map[string]string
}
