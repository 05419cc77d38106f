// Package screenplay reads plain-text screenplays into a project.
//
// Lines are classified by a small state machine: each state lists the token
// kinds allowed next and the first matching kind wins. Everything before the
// first scene heading is discarded. Each scene becomes one shot of a single
// sequence, and characters who speak become character assets linked to the
// shots they appear in.
package screenplay
