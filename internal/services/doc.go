// Package services defines shared utilities consumed by readers, writers, and
// the connector.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers for the translation taxonomy plus the Wrap
//     helper, so every failure can be classified into a Kind and a CLI exit
//     code without string matching.
//
// Readers and writers should return errors built with Wrap and one of the
// exported markers. The connector and CLI rely on errors.Is against those
// markers to report the failing family.
package services
