// Package project defines the intermediate Project Model shared by every reader
// and writer.
//
// A Project holds an ordered tree of Sequences containing Shots, plus a set of
// Assets keyed by identifier. Shots reference assets through named sub-tracks
// and character links. Readers build a Project in one pass; writers only read
// it.
//
// Marshal and Unmarshal convert to and from the JSON document exchanged between
// processes. Both validate, so a document that decodes is always a valid
// Project, and Unmarshal(Marshal(p)) reproduces p exactly.
package project
