package screenplay

// TokenType classifies one screenplay line.
type TokenType int

const (
	TokenSceneHeading TokenType = iota + 1
	TokenCharacter
	TokenParenthetical
	TokenDialog
	TokenAction
	TokenShotInstruction
	TokenBlankLine
	TokenDiscardable
)

var tokenNames = map[TokenType]string{
	TokenSceneHeading:    "SceneHeading",
	TokenCharacter:       "Character",
	TokenParenthetical:   "Parenthetical",
	TokenDialog:          "Dialog",
	TokenAction:          "Action",
	TokenShotInstruction: "ShotInstruction",
	TokenBlankLine:       "BlankLine",
	TokenDiscardable:     "Discardable",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "Unknown"
}

// Token is one classified line, or several merged lines of the same type.
//
// Text holds the dialog, action, parenthetical, or instruction content and the
// character name for cues. Scene headings fill Location, Lighting, and the
// optional explicit Number instead.
type Token struct {
	Type     TokenType
	Line     int
	Text     string
	Location string
	Lighting string
	Number   string
}

// mergeable reports whether adjacent tokens of this type are joined, and with
// which separator.
func (t TokenType) mergeable() (string, bool) {
	switch t {
	case TokenAction, TokenDialog, TokenParenthetical:
		return " ", true
	case TokenShotInstruction:
		return "\n", true
	default:
		return "", false
	}
}
