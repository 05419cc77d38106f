package project

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// EntityKind names the entities Compare matches across projects.
type EntityKind string

const (
	EntitySequence EntityKind = "sequence"
	EntityShot     EntityKind = "shot"
	EntityAsset    EntityKind = "asset"
)

// EntityRef identifies one entity of a project. Type is set for assets only.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
	Type string     `json:"type,omitempty"`
}

func (r EntityRef) String() string {
	if r.Type != "" {
		return fmt.Sprintf("%s %s (%s)", r.Kind, r.ID, r.Type)
	}
	return string(r.Kind) + " " + r.ID
}

// Difference is an entity present in both projects whose content differs.
type Difference struct {
	Entity EntityRef `json:"entity"`
	Fields []string  `json:"fields"`
}

// Discrepancies lists what Compare found. LeftMissing are entities only the
// right project has, RightMissing the reverse.
type Discrepancies struct {
	LeftMissing  []EntityRef  `json:"left_missing"`
	RightMissing []EntityRef  `json:"right_missing"`
	Differing    []Difference `json:"differing"`
}

// Empty reports whether no discrepancy was found.
func (d Discrepancies) Empty() bool {
	return len(d.LeftMissing) == 0 && len(d.RightMissing) == 0 && len(d.Differing) == 0
}

// Report renders d as indented text, or "" when d is empty.
func (d Discrepancies) Report() string {
	var b strings.Builder
	section := func(title string, refs []EntityRef) {
		if len(refs) == 0 {
			return
		}
		b.WriteString(title + ":\n")
		for _, ref := range refs {
			b.WriteString("- " + ref.String() + "\n")
		}
	}
	section("Missing in left project", d.LeftMissing)
	section("Missing in right project", d.RightMissing)
	if len(d.Differing) > 0 {
		b.WriteString("Differing entities:\n")
		for _, diff := range d.Differing {
			fmt.Fprintf(&b, "- %s: %s\n", diff.Entity, strings.Join(diff.Fields, ", "))
		}
	}
	return b.String()
}

// Compare matches sequences, shots and assets of left and right by
// identifier. Assets with the same id but a different type count as missing
// on both sides. Metadata is provenance and is not compared.
func Compare(left, right *Project) Discrepancies {
	l, r := index(left), index(right)
	var d Discrepancies
	for _, key := range unionKeys(l, r) {
		le, inLeft := l[key]
		re, inRight := r[key]
		switch {
		case !inLeft:
			d.LeftMissing = append(d.LeftMissing, key)
		case !inRight:
			d.RightMissing = append(d.RightMissing, key)
		default:
			if fields := diffFields(le, re); len(fields) > 0 {
				d.Differing = append(d.Differing, Difference{Entity: key, Fields: fields})
			}
		}
	}
	return d
}

// Equal reports whether left and right have the same name and structurally
// identical sequences, shots and assets. Nil and empty collections are equal.
func Equal(left, right *Project) bool {
	if left == nil || right == nil {
		return left == right
	}
	return left.Name == right.Name && Compare(left, right).Empty()
}

type entity map[string]string

func index(p *Project) map[EntityRef]entity {
	out := map[EntityRef]entity{}
	if p == nil {
		return out
	}
	var visit func(seqs []*Sequence, parent string)
	visit = func(seqs []*Sequence, parent string) {
		for pos, seq := range seqs {
			if seq == nil {
				continue
			}
			out[EntityRef{Kind: EntitySequence, ID: seq.ID}] = entity{
				"name":      seq.Name,
				"parent":    parent,
				"position":  fmt.Sprint(pos),
				"shots":     joinIDs(seq.Shots),
				"sequences": joinIDs(seq.Sequences),
			}
			for _, shot := range seq.Shots {
				if shot == nil {
					continue
				}
				out[EntityRef{Kind: EntityShot, ID: shot.ID}] = shotFields(seq.ID, shot)
			}
			visit(seq.Sequences, seq.ID)
		}
	}
	visit(p.Sequences, "")
	for id, asset := range p.Assets {
		if asset == nil {
			continue
		}
		out[EntityRef{Kind: EntityAsset, ID: id, Type: asset.Type}] = entity{
			"name":        asset.Name,
			"placeholder": asset.Placeholder,
			"reference":   asset.Reference,
			"departments": joinMap(asset.Departments),
		}
	}
	return out
}

func shotFields(sequence string, shot *Shot) entity {
	chars := make([]string, len(shot.Characters))
	for i, ref := range shot.Characters {
		chars[i] = ref.AssetID
	}
	return entity{
		"sequence":   sequence,
		"name":       shot.Name,
		"start":      fmt.Sprint(shot.Start),
		"length":     fmt.Sprint(shot.Length),
		"location":   shot.Location,
		"lighting":   shot.Lighting,
		"characters": strings.Join(chars, "\x00"),
		"tracks":     joinMap(shot.Tracks),
	}
}

func joinIDs[T interface{ *Shot | *Sequence }](items []T) string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		switch v := any(item).(type) {
		case *Shot:
			if v != nil {
				ids = append(ids, v.ID)
			}
		case *Sequence:
			if v != nil {
				ids = append(ids, v.ID)
			}
		}
	}
	return strings.Join(ids, "\x00")
}

func joinMap(m map[string][]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k + "=" + strings.Join(m[k], "\x00") + "\x01")
	}
	return b.String()
}

func diffFields(left, right entity) []string {
	var fields []string
	for name, value := range left {
		if right[name] != value {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return fields
}

// unionKeys returns every key of both indexes sorted by kind, id, then type.
func unionKeys(l, r map[EntityRef]entity) []EntityRef {
	seen := map[EntityRef]bool{}
	for k := range l {
		seen[k] = true
	}
	for k := range r {
		seen[k] = true
	}
	keys := make([]EntityRef, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b EntityRef) int {
		if c := strings.Compare(string(a.Kind), string(b.Kind)); c != 0 {
			return c
		}
		if c := strings.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		return strings.Compare(a.Type, b.Type)
	})
	return keys
}
