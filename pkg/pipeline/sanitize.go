package pipeline

import (
	"strings"
	"unicode"
)

// stopPatterns truncate the script at their first occurrence. They mark the
// start of meta-commentary the writer model sometimes appends after the
// usable script.
var stopPatterns = []string{
	"```",
	"---",
	"***",
	"Note:",
	"NOTE:",
	"(Note",
	"[Note",
	"Here is",
	"Here's a",
	"I hope this",
	"Let me know",
	"Word count:",
	"(approx",
	"[END",
	"<END",
}

// stripPrefixes are removed from the start of the script when present.
var stripPrefixes = []string{
	"Script:",
	"SCRIPT:",
	"DJ:",
	"Sure!",
	"Sure,",
	"Certainly!",
}

// Sanitize normalizes raw writer output into an on-air script: strips
// boilerplate lead-ins, truncates at the first stop pattern, removes emoji
// and collapses whitespace. Deterministic and table-driven.
func Sanitize(raw string) string {
	text := strings.TrimSpace(raw)

	for _, prefix := range stripPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimSpace(text[len(prefix):])
		}
	}

	// Truncate at the earliest stop pattern, but never at position 0:
	// a script that opens with a stop pattern has nothing usable anyway
	// and cutting there would just hide that.
	cut := len(text)
	for _, pat := range stopPatterns {
		if idx := strings.Index(text, pat); idx > 0 && idx < cut {
			cut = idx
		}
	}
	text = text[:cut]

	text = stripEmoji(text)
	return collapseWhitespace(text)
}

// stripEmoji removes symbol and pictograph runes that a TTS voice would
// either skip or read out loud.
func stripEmoji(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0x1F000 || unicode.Is(unicode.So, r) {
			return -1
		}
		return r
	}, s)
}

// collapseWhitespace trims each line, drops empty runs and joins paragraphs
// with single blank lines.
func collapseWhitespace(s string) string {
	var out []string
	lastBlank := true
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !lastBlank {
				out = append(out, "")
				lastBlank = true
			}
			continue
		}
		out = append(out, line)
		lastBlank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
