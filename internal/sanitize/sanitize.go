// Package sanitize strips markup from user supplied free text before it is
// validated or stored.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	scriptBlock = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	tagLike     = regexp.MustCompile(`<[^>]*>`)
	entityRef   = regexp.MustCompile(`&(?:[a-zA-Z][a-zA-Z0-9]*|#[0-9]+|#[xX][0-9a-fA-F]+);`)
)

// Text removes script blocks, tag-like substrings and entity references from s
// and trims surrounding whitespace. Text(Text(s)) == Text(s) for every s.
func Text(s string) string {
	if s == "" {
		return ""
	}

	s = removeAll(scriptBlock, s)
	// Any '<' left after this pass has no '>' after it.
	s = tagLike.ReplaceAllString(s, "")
	// Removing one reference can splice a new one together ("&am&amp;p;").
	s = removeAll(entityRef, s)

	return strings.TrimSpace(s)
}

// Notes sanitizes an optional notes value. Nil, empty, and values that are
// empty once stripped all come back as nil.
func Notes(notes *string) *string {
	if notes == nil || *notes == "" {
		return nil
	}
	clean := Text(*notes)
	if clean == "" {
		return nil
	}
	return &clean
}

func removeAll(re *regexp.Regexp, s string) string {
	for {
		next := re.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = next
	}
}
