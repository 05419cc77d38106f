// Package naming parses and renders brace-token naming conventions used by
// readers and writers to build identifiers and target paths.
package naming
