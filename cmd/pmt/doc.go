// Package main hosts the pmt CLI.
//
// Commands resolve readers and writers by name through internal/catalog and
// hand them to the connector. Results go to stdout, logs to stderr and the
// log file. The process exit status follows the error taxonomy in
// internal/services so scripts can tell source, target, schema, and timeout
// failures apart.
package main
