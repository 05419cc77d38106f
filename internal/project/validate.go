package project

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"pmt/internal/services"
)

// ValidationError lists every schema problem found in a Project. It matches
// services.ErrSchema with errors.Is.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid project: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid project: %d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return services.ErrSchema
}

// Validate checks identifiers, frame counts, tree shape, and references.
func (p *Project) Validate() error {
	if p == nil {
		return &ValidationError{Problems: []string{"project is nil"}}
	}
	v := &validator{
		project:   p,
		sequences: map[string]int{},
		shots:     map[string]int{},
		seen:      map[*Sequence]bool{},
		onPath:    map[*Sequence]bool{},
	}
	if strings.TrimSpace(p.Name) == "" {
		v.fail("project name is empty")
	}
	v.text("project", "name", p.Name)
	v.text("metadata", "reader", p.Metadata.Reader)
	v.text("metadata", "source", p.Metadata.Source)
	for i, w := range p.Metadata.Warnings {
		path := fmt.Sprintf("metadata.warnings[%d]", i)
		v.text(path, "code", w.Code)
		v.text(path, "message", w.Message)
	}
	v.checkAssets()
	for i, seq := range p.Sequences {
		v.checkSequence(seq, fmt.Sprintf("sequences[%d]", i))
	}
	for _, id := range sortedDuplicates(v.sequences) {
		v.fail("sequence id %q is used %d times", id, v.sequences[id])
	}
	for _, id := range sortedDuplicates(v.shots) {
		v.fail("shot id %q is used %d times", id, v.shots[id])
	}
	if len(v.problems) > 0 {
		return &ValidationError{Problems: v.problems}
	}
	return nil
}

type validator struct {
	project   *Project
	problems  []string
	sequences map[string]int
	shots     map[string]int
	seen      map[*Sequence]bool
	onPath    map[*Sequence]bool
}

func (v *validator) fail(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) checkAssets() {
	for _, key := range v.project.AssetIDs() {
		asset := v.project.Assets[key]
		switch {
		case asset == nil:
			v.fail("asset %q is null", key)
		case strings.TrimSpace(asset.ID) == "":
			v.fail("asset %q has an empty id", key)
		case asset.ID != key:
			v.fail("asset keyed %q has id %q", key, asset.ID)
		}
		if asset == nil {
			continue
		}
		if strings.TrimSpace(asset.Type) == "" {
			v.fail("asset %q has no type", key)
		}
		path := fmt.Sprintf("asset %q", key)
		v.text(path, "key", key)
		v.text(path, "id", asset.ID)
		v.text(path, "name", asset.Name)
		v.text(path, "type", asset.Type)
		v.text(path, "placeholder", asset.Placeholder)
		v.text(path, "reference", asset.Reference)
		depts := make([]string, 0, len(asset.Departments))
		for dept := range asset.Departments {
			depts = append(depts, dept)
		}
		sort.Strings(depts)
		for _, dept := range depts {
			v.text(path, "department", dept)
			for _, task := range asset.Departments[dept] {
				v.text(path, "task", task)
			}
		}
	}
}

func (v *validator) checkSequence(seq *Sequence, path string) {
	if seq == nil {
		v.fail("%s is null", path)
		return
	}
	if v.onPath[seq] {
		v.fail("%s (%q) forms a cycle", path, seq.ID)
		return
	}
	if v.seen[seq] {
		v.fail("%s (%q) is nested under more than one parent", path, seq.ID)
		return
	}
	v.seen[seq] = true
	v.onPath[seq] = true
	defer delete(v.onPath, seq)

	if strings.TrimSpace(seq.ID) == "" {
		v.fail("%s has an empty id", path)
	} else {
		v.sequences[seq.ID]++
	}
	v.text(path, "id", seq.ID)
	v.text(path, "name", seq.Name)
	for i, shot := range seq.Shots {
		v.checkShot(shot, fmt.Sprintf("%s.shots[%d]", path, i))
	}
	for i, child := range seq.Sequences {
		v.checkSequence(child, fmt.Sprintf("%s.sequences[%d]", path, i))
	}
}

func (v *validator) checkShot(shot *Shot, path string) {
	if shot == nil {
		v.fail("%s is null", path)
		return
	}
	if strings.TrimSpace(shot.ID) == "" {
		v.fail("%s has an empty id", path)
	} else {
		v.shots[shot.ID]++
		path = fmt.Sprintf("shot %q", shot.ID)
	}
	v.text(path, "id", shot.ID)
	v.text(path, "name", shot.Name)
	v.text(path, "location", shot.Location)
	v.text(path, "lighting", shot.Lighting)
	if shot.Start < 0 {
		v.fail("%s has negative start %d", path, shot.Start)
	}
	if shot.Length <= 0 {
		v.fail("%s has missing or non-positive length %d", path, shot.Length)
	}
	for _, ref := range shot.Characters {
		v.text(path, "character", ref.AssetID)
		asset, ok := v.project.Assets[ref.AssetID]
		switch {
		case !ok || asset == nil:
			v.fail("%s references unknown character %q", path, ref.AssetID)
		case asset.Type != AssetCharacter && asset.Type != AssetUndefined:
			v.fail("%s character %q is an asset of type %q", path, ref.AssetID, asset.Type)
		}
	}
	for _, track := range shot.TrackNames() {
		if strings.TrimSpace(track) == "" {
			v.fail("%s has an unnamed track", path)
		}
		v.text(path, "track", track)
		for _, id := range shot.Tracks[track] {
			v.text(path, "track asset", id)
			if _, ok := v.project.Assets[id]; !ok {
				v.fail("%s track %q references unknown asset %q", path, track, id)
			}
		}
	}
}

// text flags values JSON cannot carry unchanged.
func (v *validator) text(path, field, value string) {
	if !utf8.ValidString(value) {
		v.fail("%s %s %q is not valid UTF-8", path, field, value)
	}
}

func sortedDuplicates(counts map[string]int) []string {
	var dups []string
	for id, n := range counts {
		if n > 1 {
			dups = append(dups, id)
		}
	}
	sort.Strings(dups)
	return dups
}
