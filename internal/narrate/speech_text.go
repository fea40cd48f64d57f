package narrate

import (
	"regexp"
	"strings"
)

var (
	fencePattern      = regexp.MustCompile("(?m)^```[^\n]*$")
	inlineCodePattern = regexp.MustCompile("`([^`]*)`")
	boldPattern       = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	italicPattern     = regexp.MustCompile(`\*([^*]+)\*|_([^_]+)_`)
	headerPattern     = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	linkPattern       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	bulletPattern     = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CleanTextForSpeech strips markdown syntax from assistant text so synthesis
// sounds conversational. The cleaned string is what gets narrated and what
// all position math indexes into, so cleaning must happen exactly once, up
// front.
func CleanTextForSpeech(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	s = fencePattern.ReplaceAllString(s, " ")
	s = inlineCodePattern.ReplaceAllString(s, "$1")
	s = boldPattern.ReplaceAllString(s, "$1$2")
	s = italicPattern.ReplaceAllString(s, "$1$2")
	s = headerPattern.ReplaceAllString(s, "")
	s = linkPattern.ReplaceAllString(s, "$1")
	s = bulletPattern.ReplaceAllString(s, "")

	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// errorMarkers are literal substrings identifying content that is itself an
// error message. Matching content is never narrated or illustrated.
var errorMarkers = []string{
	"error:",
	"rate limit",
	"quota exceeded",
	"api key",
}

// IsErrorContent reports whether content looks like an error message rather
// than an answer.
func IsErrorContent(content string) bool {
	lower := strings.ToLower(content)
	for _, marker := range errorMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
