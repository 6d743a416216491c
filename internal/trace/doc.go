// Package trace provides span tracing for ampcap.
//
// It tracks pipeline stages, instrumentation passes and individual editor
// operations to help diagnose slow or stuck edits. Events started under
// WithFile carry the blob name, so the interleaved output of a batch run can
// be told apart.
//
// # Usage
//
//	ampcap inject --trace=- --trace-level=detail shader.sxbc
//
// # Tracers
//
//   - Nop: zero-overhead no-op tracer when disabled
//   - StreamTracer: immediate write to output (file/stderr)
//   - RingTracer: keeps the last events and writes them on Close
//   - MultiTracer: combines multiple tracers
//
// # Levels and scopes
//
// LevelPhase emits ScopeCommand and ScopePass events, LevelDetail adds
// ScopeEdit (editor operations) and LevelDebug adds ScopeInstr
// (per-instruction emission).
//
// # Context propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.Start(ctx, trace.ScopePass, "inject")
//	defer span.End("")
package trace
