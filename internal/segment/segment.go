// Package segment splits extracted text into the sections a learner works
// through one at a time.
package segment

import (
	"regexp"
	"strings"
)

// ideographic full stop
const sentenceStop = "。"

// a line break, optional horizontal whitespace, another line break
var paragraphBreak = regexp.MustCompile(`\r?\n[ \t]*\r?\n`)

// Segment returns the ordered, non-empty, trimmed sections of raw.
//
// Paragraph breaks win when present. Otherwise text containing ideographic
// full stops is split into sentences. Otherwise the whole trimmed text is a
// single section. Empty or whitespace-only input has no sections.
func Segment(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}

	if paragraphBreak.MatchString(raw) {
		if sections := keepNonEmpty(paragraphBreak.Split(raw, -1)); len(sections) > 0 {
			return sections
		}
	}

	if strings.Contains(raw, sentenceStop) {
		if sections := keepNonEmpty(strings.Split(raw, sentenceStop)); len(sections) > 0 {
			return sections
		}
	}

	return []string{strings.TrimSpace(raw)}
}

func keepNonEmpty(pieces []string) []string {
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
