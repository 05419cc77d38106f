package screenplay_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pmt/internal/reader/screenplay"
)

type tok struct {
	Type screenplay.TokenType
	Text string
}

func simplify(tokens []screenplay.Token) []tok {
	out := make([]tok, 0, len(tokens))
	for _, t := range tokens {
		text := t.Text
		if t.Type == screenplay.TokenSceneHeading {
			text = t.Location + " | " + t.Lighting
		}
		out = append(out, tok{Type: t.Type, Text: text})
	}
	return out
}

func lines(s string) []string {
	return strings.Split(strings.TrimPrefix(s, "\n"), "\n")
}

func TestTokenizeDefaultRules(t *testing.T) {
	script := lines(`
THE HEIST
by Nobody

INT. BANK VAULT - NIGHT

Alarms blare.
Smoke everywhere.

JOHN SMITH
(whispering)
Nobody
move.

CUT TO:
SMASH CUT TO:

EXT. STREET - DAY
`)
	tokens, warnings, err := screenplay.Tokenize(script, screenplay.Options{})
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings %+v", warnings)
	}
	want := []tok{
		{screenplay.TokenSceneHeading, "INT. BANK VAULT | NIGHT"},
		{screenplay.TokenAction, "Alarms blare. Smoke everywhere."},
		{screenplay.TokenCharacter, "JOHN SMITH"},
		{screenplay.TokenParenthetical, "whispering"},
		{screenplay.TokenDialog, "Nobody move."},
		{screenplay.TokenShotInstruction, "CUT TO\nSMASH CUT TO"},
		{screenplay.TokenSceneHeading, "EXT. STREET | DAY"},
	}
	if diff := cmp.Diff(want, simplify(tokens)); diff != "" {
		t.Fatalf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenizeSceneHeadingVariants(t *testing.T) {
	cases := []struct {
		line     string
		location string
		lighting string
		number   string
	}{
		{"EXT. COURTHOUSE - DEWY MORNING", "EXT. COURTHOUSE", "DEWY MORNING", ""},
		{"INT.    KITCHEN - MORNING.", "INT. KITCHEN", "MORNING.", ""},
		{"INT./EXT.    JOHN'S CAR - DAY", "INT./EXT. JOHN'S CAR", "DAY", ""},
		{"FLASHBACK – EXT. TRAIN TRACKS – DAY", "FLASHBACK – EXT. TRAIN TRACKS", "DAY", ""},
		{"INT. COURTHOUSE", "INT. COURTHOUSE", "", ""},
		{"12 INT. LOBBY - NIGHT", "INT. LOBBY", "NIGHT", "12"},
		{"   4A. EXT. ROOF - DAY", "EXT. ROOF", "DAY", "4A"},
	}
	for _, tc := range cases {
		tokens, _, err := screenplay.Tokenize([]string{tc.line}, screenplay.Options{})
		if err != nil {
			t.Fatalf("%q: %v", tc.line, err)
		}
		if len(tokens) != 1 || tokens[0].Type != screenplay.TokenSceneHeading {
			t.Fatalf("%q: expected one scene heading, got %+v", tc.line, tokens)
		}
		got := tokens[0]
		if got.Location != tc.location || got.Lighting != tc.lighting || got.Number != tc.number {
			t.Fatalf("%q: got location=%q lighting=%q number=%q", tc.line, got.Location, got.Lighting, got.Number)
		}
	}
}

func TestTokenizeCueWithoutDialogBecomesInstruction(t *testing.T) {
	script := lines(`
INT. ROOM - DAY

BOOM

The wall collapses.
`)
	tokens, warnings, err := screenplay.Tokenize(script, screenplay.Options{})
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []tok{
		{screenplay.TokenSceneHeading, "INT. ROOM | DAY"},
		{screenplay.TokenShotInstruction, "BOOM"},
		{screenplay.TokenAction, "The wall collapses."},
	}
	if diff := cmp.Diff(want, simplify(tokens)); diff != "" {
		t.Fatalf("tokens mismatch (-want +got):\n%s", diff)
	}
	if len(warnings) != 1 || warnings[0].Code != screenplay.WarnFalseCharacter || warnings[0].Line != 3 {
		t.Fatalf("expected a false cue warning on line 3, got %+v", warnings)
	}
}

func TestTokenizeMultipleSpeakers(t *testing.T) {
	script := lines(`
INT. ROOM - DAY

JOHN & MARY (V.O.)
Surprise!
`)
	tokens, warnings, err := screenplay.Tokenize(script, screenplay.Options{})
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if tokens[1].Type != screenplay.TokenCharacter || tokens[1].Text != "JOHN" {
		t.Fatalf("expected first speaker, got %+v", tokens[1])
	}
	if len(warnings) != 1 || warnings[0].Code != screenplay.WarnMultipleCharacters {
		t.Fatalf("expected multiple speakers warning, got %+v", warnings)
	}

	tokens, warnings, err = screenplay.Tokenize(script, screenplay.Options{KeepAllSpeakers: true})
	if err != nil {
		t.Fatalf("Tokenize keep all: %v", err)
	}
	if tokens[1].Text != "JOHN & MARY" || len(warnings) != 0 {
		t.Fatalf("expected whole cue without warnings, got %+v %+v", tokens[1], warnings)
	}
}

func TestTokenizeNameWordLimit(t *testing.T) {
	script := lines(`
INT. ROOM - DAY

GROUP OF VERY ANGRY PROTESTERS ARRIVE NOW
They chant.
`)
	tokens, _, err := screenplay.Tokenize(script, screenplay.Options{NameWords: 6})
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	for _, tk := range tokens {
		if tk.Type == screenplay.TokenCharacter {
			t.Fatalf("long uppercase line should not be a cue: %+v", tk)
		}
	}
}

func TestTokenizeBlankLineNotDelimiter(t *testing.T) {
	script := lines(`
INT. ROOM - DAY

ANNA
First line.

Second line.

BOB
Reply.
`)
	defaults, _, err := screenplay.Tokenize(script, screenplay.Options{})
	if err != nil {
		t.Fatalf("Tokenize default: %v", err)
	}
	if defaults[3].Type != screenplay.TokenAction {
		t.Fatalf("default rules should end dialog at a blank line, got %+v", simplify(defaults))
	}

	tokens, _, err := screenplay.Tokenize(script, screenplay.Options{Rules: screenplay.RulesBlankLineNotDelimiter})
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []tok{
		{screenplay.TokenSceneHeading, "INT. ROOM | DAY"},
		{screenplay.TokenCharacter, "ANNA"},
		{screenplay.TokenDialog, "First line. Second line."},
		{screenplay.TokenCharacter, "BOB"},
		{screenplay.TokenDialog, "Reply."},
	}
	if diff := cmp.Diff(want, simplify(tokens)); diff != "" {
		t.Fatalf("tokens mismatch (-want +got):\n%s", diff)
	}

	if _, _, err := screenplay.Tokenize(script, screenplay.Options{Rules: "freeform"}); err == nil {
		t.Fatal("expected unknown rule set to fail")
	}
}

func TestFindCharacters(t *testing.T) {
	cases := []struct {
		line string
		want []string
	}{
		{"HARLAN THROMBEY himself. 85 years old.", []string{"HARLAN THROMBEY"}},
		{"The CROWD cheers as DR. JONES arrives", []string{"CROWD", "DR. JONES"}},
		{"MARY waves at JOHN SMITH.", []string{"MARY", "JOHN SMITH"}},
		{"Nothing to see here.", nil},
	}
	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, screenplay.FindCharacters(tc.line)); diff != "" {
			t.Fatalf("%q (-want +got):\n%s", tc.line, diff)
		}
	}
}
