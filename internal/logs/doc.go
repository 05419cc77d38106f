// Package logs reads pmt log files and preserved target host logs for the
// CLI, with substring filtering and polling follow.
package logs
