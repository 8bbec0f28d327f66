// Package ansi removes terminal escape sequences from console lines.
//
// Game server consoles colorize their output with ANSI codes; every
// consumer in this codebase (pattern matching, chat rendering) wants the
// plain text, so stripping happens at the read boundary and nowhere else.
package ansi

import "regexp"

// escapePattern matches CSI sequences (colors, cursor movement) and the
// two-byte escapes some server distributions emit.
var escapePattern = regexp.MustCompile(`\x1B(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)

// Strip removes all terminal escape sequences from s. Stripping is
// idempotent: text without escape sequences is returned unchanged.
func Strip(s string) string {
	return escapePattern.ReplaceAllString(s, "")
}
