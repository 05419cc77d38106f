package writer

import (
	"sort"
)

// Kind names a family of target entities.
type Kind string

const (
	KindProject  Kind = "project"
	KindSequence Kind = "sequence"
	KindShot     Kind = "shot"
	KindTrack    Kind = "track"
	KindAsset    Kind = "asset"
	KindTask     Kind = "task"
	KindFolder   Kind = "folder"
	KindLocation Kind = "location"
	KindBinding  Kind = "binding"

	KindUser          Kind = "user"
	KindNote          Kind = "note"
	KindPublishedFile Kind = "published_file"
	KindVersion       Kind = "version"
)

// Outcome is what happened to one target entity.
type Outcome string

const (
	Created Outcome = "created"
	Updated Outcome = "updated"
	Skipped Outcome = "skipped"
)

// Counts tallies outcomes for one entity kind.
type Counts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Total is the number of entities touched or inspected.
func (c Counts) Total() int {
	return c.Created + c.Updated + c.Skipped
}

// Result reports what a write did, per entity kind.
type Result struct {
	Writer   string          `json:"writer"`
	Target   string          `json:"target"`
	Counts   map[Kind]Counts `json:"counts"`
	Warnings []string        `json:"warnings,omitempty"`
}

// NewResult returns an empty result for target.
func NewResult(writer, target string) *Result {
	return &Result{Writer: writer, Target: target, Counts: map[Kind]Counts{}}
}

// Record adds one outcome for kind.
func (r *Result) Record(kind Kind, outcome Outcome) {
	if r.Counts == nil {
		r.Counts = map[Kind]Counts{}
	}
	c := r.Counts[kind]
	switch outcome {
	case Created:
		c.Created++
	case Updated:
		c.Updated++
	case Skipped:
		c.Skipped++
	}
	r.Counts[kind] = c
}

// Warn appends a non-fatal note.
func (r *Result) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Get returns the counts for kind.
func (r *Result) Get(kind Kind) Counts {
	return r.Counts[kind]
}

// Kinds returns the recorded kinds sorted.
func (r *Result) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.Counts))
	for k := range r.Counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Totals sums counts across kinds.
func (r *Result) Totals() Counts {
	var total Counts
	for _, c := range r.Counts {
		total.Created += c.Created
		total.Updated += c.Updated
		total.Skipped += c.Skipped
	}
	return total
}
