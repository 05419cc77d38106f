package tracking

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"pmt/internal/project"
	"pmt/internal/services"
	"pmt/internal/trackingdb"
	"pmt/internal/writer"
)

// Review is the review data recorded next to a project: notes, published
// files and versions, each attached to a project entity written as
// "shot/0010", "asset/JOHN" or "sequence/SQ0010".
type Review struct {
	Notes          []Note          `yaml:"notes"`
	PublishedFiles []PublishedFile `yaml:"published_files"`
	Versions       []Version       `yaml:"versions"`

	dir string
}

// Note is a review note. Authors are user roles from the tracking users table.
type Note struct {
	Entity      string   `yaml:"entity"`
	Subject     string   `yaml:"subject"`
	Body        string   `yaml:"body"`
	Author      string   `yaml:"author"`
	Attachments []string `yaml:"attachments"`
	Replies     []Reply  `yaml:"replies"`
}

type Reply struct {
	Author string `yaml:"author"`
	Body   string `yaml:"body"`
}

// PublishedFile is a file under the project's storage. A file with upstream
// codes and no entity inherits entity and task from its first upstream.
type PublishedFile struct {
	Code     string   `yaml:"code"`
	Entity   string   `yaml:"entity"`
	Task     string   `yaml:"task"`
	Path     string   `yaml:"path"`
	Upstream []string `yaml:"upstream"`
}

// Version is a reviewable take, optionally linked to a task step of its
// entity and carrying an mp4 movie.
type Version struct {
	Code        string `yaml:"code"`
	Entity      string `yaml:"entity"`
	Task        string `yaml:"task"`
	Movie       string `yaml:"movie"`
	Description string `yaml:"description"`
}

// LoadReview reads a review file. Relative attachment and movie paths resolve
// against the file's directory.
func LoadReview(path string) (*Review, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceNotFound, "tracking", "review", path, err)
	}
	var r Review
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil && !errors.Is(err, io.EOF) {
		return nil, services.Wrap(services.ErrSourceParse, "tracking", "review", path, err)
	}
	r.dir = filepath.Dir(path)
	return &r, nil
}

func (r *Review) resolveFile(name string) (string, error) {
	resolved := name
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(r.dir, resolved)
	}
	if _, err := os.Stat(resolved); err != nil {
		return "", services.Wrap(services.ErrSourceNotFound, "tracking", "review", name, err)
	}
	return resolved, nil
}

type entityRef struct {
	kind string
	code string
}

func parseEntity(p *project.Project, ref string) (entityRef, error) {
	kind, code, _ := strings.Cut(strings.TrimSpace(ref), "/")
	e := entityRef{kind: strings.ToLower(kind), code: code}
	found := false
	switch e.kind {
	case trackingdb.EntityAsset:
		_, found = p.Assets[code]
	case trackingdb.EntityShot:
		for _, s := range p.Shots() {
			found = found || s.Shot.ID == code
		}
	case trackingdb.EntitySequence:
		_ = p.Walk(func(seq *project.Sequence, _ int) error {
			found = found || seq.ID == code
			return nil
		})
	}
	if !found {
		return entityRef{}, services.Wrap(services.ErrSchema, "tracking", "review",
			fmt.Sprintf("entity %q is not in project %s", ref, p.Name), nil)
	}
	return e, nil
}

func (b *build) ensureUsers() error {
	roles := make([]string, 0, len(b.cfg.Users))
	for role := range b.cfg.Users {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		name := b.cfg.Users[role]
		_, found, err := b.tx.User(name)
		if err != nil {
			return err
		}
		if found {
			b.result.Record(writer.KindUser, writer.Skipped)
			continue
		}
		first, last, _ := strings.Cut(name, " ")
		if err := b.tx.InsertUser(trackingdb.UserRow{Login: name, FirstName: first, LastName: last, Role: role}); err != nil {
			return err
		}
		b.result.Record(writer.KindUser, writer.Created)
	}
	return nil
}

func (b *build) user(role string) (string, error) {
	name, ok := b.cfg.Users[role]
	if !ok {
		return "", services.Wrap(services.ErrTargetConfig, "tracking", "review",
			fmt.Sprintf("no user configured for role %q", role), nil)
	}
	return name, nil
}

func (b *build) ensureReview(r *Review) error {
	for _, n := range r.Notes {
		if err := b.ensureNote(r, n); err != nil {
			return err
		}
	}
	published := map[string]trackingdb.PublishedFileRow{}
	for _, pf := range r.PublishedFiles {
		row, err := b.ensurePublishedFile(pf, published)
		if err != nil {
			return err
		}
		published[row.Code] = row
	}
	for _, v := range r.Versions {
		if err := b.ensureVersion(r, v); err != nil {
			return err
		}
	}
	return nil
}

func (b *build) ensureNote(r *Review, n Note) error {
	e, err := parseEntity(b.project, n.Entity)
	if err != nil {
		return err
	}
	if strings.TrimSpace(n.Subject) == "" {
		return services.Wrap(services.ErrSchema, "tracking", "review", "note on "+n.Entity+" has no subject", nil)
	}
	author, err := b.user(n.Author)
	if err != nil {
		return err
	}
	want := trackingdb.NoteRow{EntityType: e.kind, EntityCode: e.code, Subject: n.Subject, Body: n.Body, Author: author}
	for _, reply := range n.Replies {
		replyAuthor, err := b.user(reply.Author)
		if err != nil {
			return err
		}
		want.Replies = append(want.Replies, trackingdb.ReplyRow{Author: replyAuthor, Body: reply.Body})
	}
	for _, name := range n.Attachments {
		resolved, err := r.resolveFile(name)
		if err != nil {
			return err
		}
		want.Attachments = append(want.Attachments, resolved)
	}

	existing, found, err := b.tx.Note(b.projectID, e.kind, e.code, n.Subject)
	if err != nil {
		return err
	}
	outcome, err := b.cfg.Policy.Decide(writer.KindNote, n.Entity+"/"+n.Subject, found, found && existing.Same(want))
	if err != nil {
		return err
	}
	if outcome != writer.Skipped {
		if err := b.tx.PutNote(b.projectID, want); err != nil {
			return err
		}
	}
	b.result.Record(writer.KindNote, outcome)
	return nil
}

func (b *build) ensurePublishedFile(pf PublishedFile, earlier map[string]trackingdb.PublishedFileRow) (trackingdb.PublishedFileRow, error) {
	if strings.TrimSpace(pf.Code) == "" || strings.TrimSpace(pf.Path) == "" {
		return trackingdb.PublishedFileRow{}, services.Wrap(services.ErrSchema, "tracking", "review",
			"published files need a code and a path", nil)
	}
	want := trackingdb.PublishedFileRow{Code: pf.Code, Task: pf.Task, PathCache: filepath.ToSlash(filepath.Clean(pf.Path))}
	for _, up := range pf.Upstream {
		if _, ok := earlier[up]; !ok {
			return trackingdb.PublishedFileRow{}, services.Wrap(services.ErrSchema, "tracking", "review",
				fmt.Sprintf("upstream %s must be listed before %s", up, pf.Code), nil)
		}
		want.Upstream = append(want.Upstream, up)
	}
	if pf.Entity == "" && len(pf.Upstream) > 0 {
		parent := earlier[pf.Upstream[0]]
		want.EntityType, want.EntityCode = parent.EntityType, parent.EntityCode
		if want.Task == "" {
			want.Task = parent.Task
		}
	} else {
		e, err := parseEntity(b.project, pf.Entity)
		if err != nil {
			return trackingdb.PublishedFileRow{}, err
		}
		want.EntityType, want.EntityCode = e.kind, e.code
	}
	want.LocalPath = filepath.Join(b.cfg.StorageRoot, b.tank, filepath.FromSlash(want.PathCache))
	if _, err := os.Stat(want.LocalPath); err != nil {
		b.result.Warn(fmt.Sprintf("published file %s is not on disk at %s", pf.Code, want.LocalPath))
	}

	existing, found, err := b.tx.PublishedFile(b.projectID, pf.Code)
	if err != nil {
		return trackingdb.PublishedFileRow{}, err
	}
	outcome, err := b.cfg.Policy.Decide(writer.KindPublishedFile, pf.Code, found, found && existing.Same(want))
	if err != nil {
		return trackingdb.PublishedFileRow{}, err
	}
	if outcome != writer.Skipped {
		if err := b.tx.PutPublishedFile(b.projectID, want); err != nil {
			return trackingdb.PublishedFileRow{}, err
		}
	}
	b.result.Record(writer.KindPublishedFile, outcome)
	return want, nil
}

func (b *build) ensureVersion(r *Review, v Version) error {
	if strings.TrimSpace(v.Code) == "" {
		return services.Wrap(services.ErrSchema, "tracking", "review", "version on "+v.Entity+" has no code", nil)
	}
	e, err := parseEntity(b.project, v.Entity)
	if err != nil {
		return err
	}
	want := trackingdb.VersionRow{Code: v.Code, EntityType: e.kind, EntityCode: e.code, Description: v.Description}
	if v.Task != "" {
		ok, err := b.tx.HasStep(b.projectID, e.kind, e.code, v.Task)
		if err != nil {
			return err
		}
		if ok {
			want.Task = v.Task
		} else {
			b.result.Warn(fmt.Sprintf("version %s: %s has no %s task; left unlinked", v.Code, v.Entity, v.Task))
		}
	}
	if v.Movie != "" {
		if !strings.EqualFold(filepath.Ext(v.Movie), ".mp4") {
			return services.Wrap(services.ErrSchema, "tracking", "review",
				fmt.Sprintf("version %s: movie %s is not an mp4", v.Code, v.Movie), nil)
		}
		if want.Movie, err = r.resolveFile(v.Movie); err != nil {
			return err
		}
	}

	existing, found, err := b.tx.Version(b.projectID, v.Code)
	if err != nil {
		return err
	}
	outcome, err := b.cfg.Policy.Decide(writer.KindVersion, v.Code, found, found && existing == want)
	if err != nil {
		return err
	}
	if outcome != writer.Skipped {
		if err := b.tx.PutVersion(b.projectID, want); err != nil {
			return err
		}
	}
	b.result.Record(writer.KindVersion, outcome)
	return nil
}
