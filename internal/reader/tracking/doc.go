// Package tracking reads projects back out of the production tracking
// database written by the tracking writer.
package tracking
