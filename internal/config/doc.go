// Package config loads, normalizes, and validates PMT configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// PMT_ENGINE_ROOT and PMT_OUTPUT_PROJECT_PATH. The Config type centralizes the
// reader, writer, and connector settings so the CLI can hand explicit structs to
// each component instead of relying on process-wide state.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical policy names, and clear validation errors.
package config
