package screenplay

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"pmt/internal/project"
	"pmt/internal/services"
)

// Warning codes recorded by the tokenizer and the builder.
const (
	WarnFalseCharacter      = "false_character_cue"
	WarnMultipleCharacters  = "multiple_characters"
	WarnUndefinedAsset      = "undefined_asset"
	WarnSceneNumberMismatch = "scene_number_mismatch"
	WarnSceneNumberRepeat   = "scene_number_repeat"
)

var (
	sceneNumberRE = regexp.MustCompile(`^(\d+[A-Z]?)\.?\s+(.+)$`)
	// Hyphen, en dash, and em dash all separate the lighting scenario.
	sceneHeadingRE = regexp.MustCompile(
		`^(?P<location>(?:FLASHBACK\s+(?:-|–|—)\s+)?(?:INT|EXT|INT\.?/EXT)\..+?)` +
			`(?:(?:-|–|—)(?P<lighting>[A-Z .]+)(?:[A-Z() ]+)?)?$`)
	characterRE = regexp.MustCompile(
		`^(?P<name>[A-Z.]{2,}[.\-–— ]*?[A-Z][A-Z'\d&\-–— ]*)` +
			`(?: *\([A-Za-z.]+\))?` +
			`(?: *\((?:cont'd|CONT'D)\))?$`)
	containsCharacterRE = regexp.MustCompile(`[A-Z.]{2,}[.\-–— ]*?[A-Z][A-Z' ]*`)
	characterNameRE     = regexp.MustCompile(`^[A-Z.]{2,}[.\-–— ]*?[A-Z][A-Z' ]*$`)
	shotInstructionRE   = regexp.MustCompile(`^([A-Z ]+):$`)
	parentheticalRE     = regexp.MustCompile(`^\((.+?)\)$`)
)

// Options tune tokenization.
type Options struct {
	// KeepAllSpeakers keeps "A & B" cues whole instead of the first name.
	KeepAllSpeakers bool
	// NameWords caps the number of words in a character cue.
	NameWords int
	// Rules names the rule set, default when empty.
	Rules string
}

// Tokenize classifies lines and applies post-processing: cues without dialog
// become shot instructions and adjacent tokens of the same kind are merged.
// Blank and discardable lines are dropped from the result.
func Tokenize(lines []string, opts Options) ([]Token, []project.Warning, error) {
	start, err := buildRules(opts.Rules)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrSourceParse, "screenplay", "tokenize", "", err)
	}
	if opts.NameWords <= 0 {
		opts.NameWords = 6
	}

	var (
		tokens   []Token
		warnings []project.Warning
		current  = start
	)
	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimLeftFunc(raw, unicode.IsSpace)

		var (
			tok     Token
			matched bool
		)
		for _, child := range current.children {
			tok, matched = match(child.kind, line, opts)
			if matched {
				current = child
				break
			}
		}
		if !matched {
			return nil, nil, services.Wrap(services.ErrSourceParse, "screenplay", "tokenize",
				fmt.Sprintf("line %d: no rule after %s matches %q", lineNo, current.name, line), nil)
		}
		if tok.Type == TokenBlankLine || tok.Type == TokenDiscardable {
			continue
		}
		tok.Line = lineNo
		if tok.Type == TokenCharacter {
			name, warn := speakerName(tok.Text, opts.KeepAllSpeakers)
			if warn {
				warnings = append(warnings, project.Warning{
					Code:    WarnMultipleCharacters,
					Line:    lineNo,
					Message: fmt.Sprintf("cue %q has several speakers; keeping %q", tok.Text, name),
				})
			}
			tok.Text = name
		}
		tokens = append(tokens, tok)
	}

	tokens, falseCues := replaceFalseCharacters(tokens)
	warnings = append(warnings, falseCues...)
	return mergeAdjacent(tokens), warnings, nil
}

func match(kind TokenType, line string, opts Options) (Token, bool) {
	switch kind {
	case TokenBlankLine:
		if strings.TrimSpace(line) == "" {
			return Token{Type: TokenBlankLine}, true
		}
	case TokenDiscardable:
		return Token{Type: TokenDiscardable}, true
	case TokenSceneHeading:
		return matchSceneHeading(line)
	case TokenShotInstruction:
		if m := shotInstructionRE.FindStringSubmatch(line); m != nil {
			return Token{Type: TokenShotInstruction, Text: m[1]}, true
		}
	case TokenCharacter:
		m := characterRE.FindStringSubmatch(line)
		if m == nil {
			return Token{}, false
		}
		name := strings.TrimSpace(m[1])
		if len(strings.Fields(name)) > opts.NameWords {
			return Token{}, false
		}
		return Token{Type: TokenCharacter, Text: name}, true
	case TokenParenthetical:
		if m := parentheticalRE.FindStringSubmatch(line); m != nil {
			return Token{Type: TokenParenthetical, Text: collapse(m[1])}, true
		}
	case TokenDialog:
		return Token{Type: TokenDialog, Text: collapse(line)}, true
	case TokenAction:
		return Token{Type: TokenAction, Text: collapse(line)}, true
	}
	return Token{}, false
}

func matchSceneHeading(line string) (Token, bool) {
	text := strings.TrimRightFunc(line, unicode.IsSpace)
	var number string
	if m := sceneNumberRE.FindStringSubmatch(text); m != nil && sceneHeadingRE.MatchString(m[2]) {
		number, text = m[1], m[2]
	}
	m := sceneHeadingRE.FindStringSubmatch(text)
	if m == nil {
		return Token{}, false
	}
	return Token{
		Type:     TokenSceneHeading,
		Location: collapse(m[sceneHeadingRE.SubexpIndex("location")]),
		Lighting: collapse(m[sceneHeadingRE.SubexpIndex("lighting")]),
		Number:   number,
	}, true
}

func speakerName(cue string, keepAll bool) (string, bool) {
	if keepAll || !strings.Contains(cue, "&") {
		return cue, false
	}
	first, _, _ := strings.Cut(cue, "&")
	return strings.TrimSpace(first), true
}

// FindCharacters returns uppercase names embedded in an action line. A
// candidate running into a lowercase letter loses its last character, so
// "HARLAN THROMBEY himself" yields "HARLAN THROMBEY".
func FindCharacters(line string) []string {
	var names []string
	offset := 0
	for offset < len(line) {
		loc := containsCharacterRE.FindStringIndex(line[offset:])
		if loc == nil {
			break
		}
		begin, end := offset+loc[0], offset+loc[1]
		if end < len(line) && isLowerASCII(line[end]) {
			end--
		}
		if candidate := line[begin:end]; characterNameRE.MatchString(candidate) {
			names = append(names, strings.TrimSpace(candidate))
		}
		offset += loc[1]
	}
	return names
}

func isLowerASCII(b byte) bool {
	return b >= 'a' && b <= 'z'
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func replaceFalseCharacters(tokens []Token) ([]Token, []project.Warning) {
	var warnings []project.Warning
	for i, tok := range tokens {
		if tok.Type != TokenCharacter {
			continue
		}
		if i+1 < len(tokens) {
			next := tokens[i+1].Type
			if next == TokenParenthetical || next == TokenDialog {
				continue
			}
		}
		tokens[i] = Token{Type: TokenShotInstruction, Line: tok.Line, Text: tok.Text}
		warnings = append(warnings, project.Warning{
			Code:    WarnFalseCharacter,
			Line:    tok.Line,
			Message: fmt.Sprintf("%q looks like a character cue but no dialog follows; treated as a shot instruction", tok.Text),
		})
	}
	return tokens, warnings
}

func mergeAdjacent(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for _, tok := range tokens {
		if n := len(out); n > 0 && out[n-1].Type == tok.Type {
			if sep, ok := tok.Type.mergeable(); ok {
				out[n-1].Text += sep + tok.Text
				continue
			}
		}
		out = append(out, tok)
	}
	return out
}
