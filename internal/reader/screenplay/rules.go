package screenplay

import "fmt"

// Rule set names.
const (
	RulesDefault               = "default"
	RulesBlankLineNotDelimiter = "blank_line_not_delimiter"
)

// node is one state of the tokenizer. The next line is tried against each
// child in order and the first match becomes the new state.
type node struct {
	name     string
	kind     TokenType
	children []*node
}

func newNode(name string, kind TokenType) *node {
	return &node{name: name, kind: kind}
}

func (n *node) then(children ...*node) *node {
	n.children = append(n.children, children...)
	return n
}

// buildRules returns the start node of the named rule set.
func buildRules(name string) (*node, error) {
	start := newNode("Start", 0)
	heading := newNode("SceneHeading", TokenSceneHeading)
	discard := newNode("Discardable", TokenDiscardable)
	blank := newNode("BlankLine", TokenBlankLine)
	instruction := newNode("ShotInstruction", TokenShotInstruction)
	character := newNode("Character", TokenCharacter)
	action := newNode("Action", TokenAction)
	parenthetical := newNode("Parenthetical", TokenParenthetical)
	dialog := newNode("Dialog", TokenDialog)

	start.then(heading, discard)
	discard.then(heading, discard)
	sceneBody := []*node{blank, heading, instruction, character, action}
	heading.then(sceneBody...)
	blank.then(sceneBody...)
	instruction.then(sceneBody...)
	action.then(blank, action)
	character.then(blank, parenthetical, dialog)

	switch name {
	case "", RulesDefault:
		parenthetical.then(blank, parenthetical, dialog)
		dialog.then(blank, parenthetical, dialog)
	case RulesBlankLineNotDelimiter:
		// Inside dialog a blank line keeps the speaker; only a new cue,
		// heading, or transition leaves the dialog.
		dialogBlank := newNode("DialogBlankLine", TokenBlankLine)
		dialogBlank.then(dialogBlank, heading, instruction, character, parenthetical, dialog)
		parenthetical.then(dialogBlank, parenthetical, dialog)
		dialog.then(dialogBlank, parenthetical, dialog)
	default:
		return nil, fmt.Errorf("unknown tokenizer rules %q", name)
	}
	return start, nil
}
