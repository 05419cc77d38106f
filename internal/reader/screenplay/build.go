package screenplay

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"pmt/internal/naming"
	"pmt/internal/project"
	"pmt/internal/services"
	"pmt/internal/textutil"
)

// BuildOptions control how tokens become a project.
type BuildOptions struct {
	Name                string
	Source              string
	SequenceID          string
	ShotID              *naming.Template
	InitialNumber       int
	ShotLength          int
	KeepUndefinedAssets bool
	FailOnAmbiguity     bool
}

type scene struct {
	heading Token
	shot    *project.Shot
	// mentioned holds uppercase names found in action lines, in order.
	mentioned []mention
}

type mention struct {
	name string
	line int
}

// Build turns tokens into a project with one sequence holding one shot per
// scene. Shots are laid out back to back starting at frame zero.
func Build(tokens []Token, warnings []project.Warning, opts BuildOptions) (*project.Project, error) {
	p := project.New(opts.Name)
	p.Metadata = project.Metadata{
		Reader:      "screenplay",
		Source:      opts.Source,
		GeneratedAt: time.Now().UTC(),
		Warnings:    append([]project.Warning(nil), warnings...),
	}

	seq := p.AddSequence(opts.SequenceID, "")
	var (
		scenes  []*scene
		current *scene
		spoken  = map[string]bool{}
		frame   = 0
	)
	for _, tok := range tokens {
		switch tok.Type {
		case TokenSceneHeading:
			count := opts.InitialNumber + len(scenes)
			id, err := opts.ShotID.Render(map[string]any{"count": count})
			if err != nil {
				return nil, err
			}
			shot := seq.AddShot(id, frame, opts.ShotLength)
			shot.Name = tok.Location
			shot.Location = tok.Location
			shot.Lighting = tok.Lighting
			frame = shot.End()
			current = &scene{heading: tok, shot: shot}
			scenes = append(scenes, current)
		case TokenCharacter:
			if current == nil {
				continue
			}
			id := textutil.Identifier(tok.Text)
			p.EnsureAsset(id, textutil.DisplayName(tok.Text), project.AssetCharacter)
			current.shot.AddCharacter(id)
			spoken[id] = true
		case TokenAction:
			if current == nil {
				continue
			}
			for _, name := range FindCharacters(tok.Text) {
				current.mentioned = append(current.mentioned, mention{name: name, line: tok.Line})
			}
		}
	}
	if len(scenes) == 0 {
		return nil, services.Wrap(services.ErrSourceParse, "screenplay", "build", "no scene heading found", nil)
	}

	undefined := map[string]bool{}
	for _, sc := range scenes {
		for _, m := range sc.mentioned {
			id := textutil.Identifier(m.name)
			switch {
			case spoken[id]:
				sc.shot.AddCharacter(id)
			case opts.KeepUndefinedAssets:
				if _, exists := p.Assets[id]; !exists {
					p.EnsureAsset(id, textutil.DisplayName(m.name), project.AssetUndefined)
				}
				sc.shot.AddCharacter(id)
				if !undefined[id] {
					undefined[id] = true
					p.Warn(WarnUndefinedAsset, m.line, "%q never speaks; kept as an asset of type %q", m.name, project.AssetUndefined)
				}
			}
		}
	}

	if err := checkSceneNumbers(p, scenes, opts.FailOnAmbiguity); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// checkSceneNumbers compares explicit scene numbers against reading order.
func checkSceneNumbers(p *project.Project, scenes []*scene, fail bool) error {
	seen := map[string]int{}
	for i, sc := range scenes {
		num := sc.heading.Number
		if num == "" {
			continue
		}
		value, key := sceneNumber(num)
		var code, msg string
		switch {
		case seen[key] > 0:
			code = WarnSceneNumberRepeat
			msg = fmt.Sprintf("scene number %s repeats the scene at line %d", num, seen[key])
		case value != i+1:
			code = WarnSceneNumberMismatch
			msg = fmt.Sprintf("scene number %s is scene %d in reading order; shot %s follows reading order", num, i+1, sc.shot.ID)
		}
		if _, dup := seen[key]; !dup {
			seen[key] = sc.heading.Line
		}
		if code == "" {
			continue
		}
		if fail {
			return services.Wrap(services.ErrSourceParse, "screenplay", "scene numbers",
				fmt.Sprintf("line %d: %s", sc.heading.Line, msg), nil)
		}
		p.Warn(code, sc.heading.Line, "%s", msg)
	}
	return nil
}

// sceneNumber splits "012A" into its numeric value 12 and the key "12A" used
// to detect repeats. Leading zeros are insignificant.
func sceneNumber(num string) (int, string) {
	end := strings.IndexFunc(num, func(r rune) bool { return r < '0' || r > '9' })
	if end < 0 {
		end = len(num)
	}
	value, err := strconv.Atoi(num[:end])
	if err != nil {
		return -1, num
	}
	return value, strconv.Itoa(value) + num[end:]
}
