// Package reader defines the Reader contract and the reader for serialized
// project documents. Concrete source readers live in subpackages.
package reader
