package ui

import (
	"os"

	"golang.org/x/term"
)

const (
	ansiBold  = "\x1b[1m"
	ansiRed   = "\x1b[31m"
	ansiCyan  = "\x1b[36m"
	ansiFaint = "\x1b[2m"
	ansiReset = "\x1b[0m"
)

// Highlight marks text as an identifier.
func Highlight(text string) string {
	return wrapANSI(ansiBold+ansiCyan, text)
}

// Alert marks text that needs attention, such as an overdue date.
func Alert(text string) string {
	return wrapANSI(ansiBold+ansiRed, text)
}

// Muted dims text of secondary interest.
func Muted(text string) string {
	return wrapANSI(ansiFaint, text)
}

func wrapANSI(code, text string) string {
	if text == "" || !ansiEnabled() {
		return text
	}
	return code + text + ansiReset
}

func ansiEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// TerminalWidth returns the width of stdout, or fallback when it is not a
// terminal.
func TerminalWidth(fallback int) int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return fallback
	}
	return width
}
