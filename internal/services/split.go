package services

import (
	"strings"
	"unicode/utf8"
)

// SplitReply cuts text into at most maxParts segments of at most maxRunes
// runes each, preferring line breaks as cut points. Text beyond the last
// segment is dropped. Blank text yields no segments.
func SplitReply(text string, maxRunes, maxParts int) []string {
	text = strings.TrimSpace(text)
	if text == "" || maxRunes <= 0 || maxParts <= 0 {
		return nil
	}
	var out []string
	for text != "" && len(out) < maxParts {
		if utf8.RuneCountInString(text) <= maxRunes {
			out = append(out, text)
			break
		}
		runes := []rune(text)
		cut := maxRunes
		// Break at the last newline in the back half of the window.
		for i := maxRunes - 1; i >= maxRunes/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		seg := strings.TrimSpace(string(runes[:cut]))
		if seg != "" {
			out = append(out, seg)
		}
		text = strings.TrimSpace(string(runes[cut:]))
	}
	return out
}
