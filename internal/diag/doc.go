// Package diag defines the diagnostic model shared by the codec, the editor
// and the capture passes.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity – tri-level enum (Info, Warning, Error) defined in severity.go.
//   - Code – compact numeric identifier (see codes.go) with stable string form.
//   - Message – human oriented text; keep it short and actionable.
//   - Primary – a Location naming the file, chunk, function, block and
//     instruction the finding is about.
//   - Notes – optional secondary locations with additional context.
//
// # Fatal conditions
//
// Structural precondition failures abort the current edit. They travel as
// *Error values through ordinary error returns so callers can use errors.As
// and CodeOf, and are mirrored into the pass Reporter with ReportErr.
//
// # Emitting diagnostics
//
// Producers use a Reporter to decouple emission from storage. ReportBuilder
// (via ReportError/ReportWarning/ReportInfo) chains WithNote before Emit.
// BagReporter aggregates diagnostics into a Bag, which supports sorting and
// deduplication; FormatShort renders a Bag for the CLI.
package diag
