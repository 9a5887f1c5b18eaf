package ui

import (
	"strings"

	internalstrings "github.com/amonks/taskdash/internal/strings"
	"github.com/muesli/reflow/wordwrap"
)

// ReflowParagraphs wraps each blank-line separated paragraph of value to
// width, collapsing whitespace inside paragraphs.
func ReflowParagraphs(value string, width int) string {
	value = strings.TrimSpace(internalstrings.NormalizeNewlines(value))
	if value == "" {
		return ""
	}
	if width < 1 {
		width = 1
	}
	var wrapped []string
	for _, paragraph := range strings.Split(value, "\n\n") {
		normalized := internalstrings.NormalizeWhitespace(paragraph)
		if normalized == "" {
			continue
		}
		wrapped = append(wrapped, wordwrap.String(normalized, width))
	}
	return strings.Join(wrapped, "\n\n")
}
