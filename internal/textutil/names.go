package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldASCII strips combining marks after canonical decomposition, so "Amélie"
// becomes "Amelie". Characters without an ASCII base are left untouched.
func FoldASCII(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

// DisplayName turns a screenplay cue such as "JOHN SMITH" into "John Smith".
func DisplayName(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return ""
	}
	return cases.Title(language.Und).String(strings.ToLower(value))
}

// Identifier converts a name into a stable entity identifier: ASCII folded,
// whitespace runs collapsed to underscores, case preserved.
func Identifier(value string) string {
	fields := strings.Fields(FoldASCII(value))
	return strings.Join(fields, "_")
}

// TankName keeps only lowercase ASCII letters, the short code tracking systems
// use for on-disk project roots.
func TankName(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(FoldASCII(value)) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ProjectName derives a project name from a source file stem: ASCII folded
// with whitespace removed.
func ProjectName(stem string) string {
	return strings.Join(strings.Fields(FoldASCII(stem)), "")
}
