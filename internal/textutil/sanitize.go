package textutil

import "strings"

// SanitizeFileName makes a project name usable as a single path element.
// Path separators, colons and asterisks become dashes. Characters that
// shells or Windows reject are dropped.
func SanitizeFileName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*':
			return '-'
		case '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	return strings.TrimSpace(mapped)
}

// SanitizeToken lowercases value to [a-z0-9_-] for lock and temp file names,
// folding accents and turning anything else into underscores. Leading and
// trailing separators are trimmed. Empty results become "unknown".
func SanitizeToken(value string) string {
	folded := strings.ToLower(strings.TrimSpace(FoldASCII(value)))
	token := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, folded)
	if token = strings.Trim(token, "_-"); token == "" {
		return "unknown"
	}
	return token
}
