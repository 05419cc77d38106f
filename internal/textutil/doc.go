// Package textutil provides text normalization helpers shared by readers and
// writers: display-name casing, ASCII folding, identifier and lock-key
// sanitization, and filesystem-safe path segments.
package textutil
