// Package history records translation runs in a SQLite database so operators
// can review past runs and find preserved workspaces of failed ones.
package history
