// Package logging assembles structured slog loggers used across PMT.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so connector and writer code can
// tag log lines with run IDs and stage names. Console output goes to stderr so
// commands can keep stdout for serialized projects and result tables.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// the same field names (component, stage, run_id, event_type) as the rest of
// the tool.
package logging
