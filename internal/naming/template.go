package naming

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"pmt/internal/services"
)

var formatSpecPattern = regexp.MustCompile(`^-?0?\d*$`)

// Template is a naming convention such as "/Game/shots/{shot}/" or
// "{count:03}0". Tokens are {name} or {name:spec} where spec is a printf
// width like 03.
type Template struct {
	name   string
	raw    string
	marker error
	parts  []templatePart
}

type templatePart struct {
	literal string
	token   string
	spec    string
}

// Parse parses raw. Errors from Parse, Validate, and Render are tagged with
// marker (for example services.ErrTargetConfig) when it is non-nil.
func Parse(name, raw string, marker error) (*Template, error) {
	t := &Template{name: name, raw: raw, marker: marker}
	rest := raw
	for rest != "" {
		open := strings.IndexAny(rest, "{}")
		if open < 0 {
			t.parts = append(t.parts, templatePart{literal: rest})
			break
		}
		if rest[open] == '}' {
			return nil, t.configError(fmt.Sprintf("unexpected '}' at offset %d", len(raw)-len(rest)+open))
		}
		if open > 0 {
			t.parts = append(t.parts, templatePart{literal: rest[:open]})
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return nil, t.configError("unterminated '{'")
		}
		body := rest[open+1 : open+end]
		token, spec, _ := strings.Cut(body, ":")
		token = strings.TrimSpace(token)
		if token == "" || strings.ContainsAny(token, "{ ") {
			return nil, t.configError(fmt.Sprintf("invalid token %q", body))
		}
		if !formatSpecPattern.MatchString(spec) {
			return nil, t.configError(fmt.Sprintf("invalid format %q for token %q", spec, token))
		}
		t.parts = append(t.parts, templatePart{token: token, spec: spec})
		rest = rest[open+end+1:]
	}
	return t, nil
}

// MustParse is Parse for constants.
func MustParse(name, raw string) *Template {
	t, err := Parse(name, raw, nil)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the raw template text.
func (t *Template) String() string { return t.raw }

// Tokens returns the distinct token names, sorted.
func (t *Template) Tokens() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range t.parts {
		if p.token == "" {
			continue
		}
		if _, ok := seen[p.token]; ok {
			continue
		}
		seen[p.token] = struct{}{}
		out = append(out, p.token)
	}
	sort.Strings(out)
	return out
}

// Validate reports tokens outside allowed.
func (t *Template) Validate(allowed ...string) error {
	ok := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		ok[a] = struct{}{}
	}
	var unknown []string
	for _, tok := range t.Tokens() {
		if _, found := ok[tok]; !found {
			unknown = append(unknown, tok)
		}
	}
	if len(unknown) > 0 {
		return t.configError(fmt.Sprintf("unresolved tokens {%s} (known: %s)", strings.Join(unknown, "}, {"), strings.Join(allowed, ", ")))
	}
	return nil
}

// Render substitutes values. A token without a value is an error.
func (t *Template) Render(values map[string]any) (string, error) {
	var b strings.Builder
	for _, p := range t.parts {
		if p.token == "" {
			b.WriteString(p.literal)
			continue
		}
		v, ok := values[p.token]
		if !ok || v == nil {
			return "", t.configError(fmt.Sprintf("unresolved token {%s}", p.token))
		}
		b.WriteString(formatToken(v, p.spec))
	}
	return b.String(), nil
}

func formatToken(v any, spec string) string {
	switch val := v.(type) {
	case int, int64, int32:
		return fmt.Sprintf("%"+spec+"d", val)
	case string:
		if spec == "" {
			return val
		}
		return fmt.Sprintf("%"+strings.TrimLeft(spec, "0")+"s", val)
	default:
		return fmt.Sprintf("%"+strings.TrimLeft(spec, "0")+"v", val)
	}
}

func (t *Template) configError(msg string) error {
	return services.Wrap(t.marker, "template", t.name, fmt.Sprintf("%s in %q", msg, t.raw), nil)
}
