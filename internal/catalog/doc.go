// Package catalog registers the built-in readers and writers by name.
package catalog
