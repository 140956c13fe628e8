package model

// RawLine is one line of a combat log as read by a connector.
type RawLine struct {
	Number int    // 1-based line number in the source
	Text   string // line text without the trailing newline
}
