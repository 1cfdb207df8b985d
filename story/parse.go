package story

import (
	"regexp"
	"strings"
)

// markerRe matches a **bold** marker, non-greedy across line breaks, and the
// whitespace that follows it.
var markerRe = regexp.MustCompile(`(?s)\*\*(.*?)\*\*\s*`)

// ParseSections splits raw story text into sections at bold markers.
// Text without any marker comes back as a single unmarked section.
func ParseSections(raw string) []Section {
	matches := markerRe.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		body := strings.TrimSpace(raw)
		if body == "" {
			return nil
		}
		return []Section{{Body: body}}
	}

	sections := make([]Section, 0, len(matches))
	for i, m := range matches {
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		sections = append(sections, Section{
			Marker: strings.TrimSpace(raw[m[2]:m[3]]),
			Body:   strings.TrimSpace(raw[m[1]:end]),
		})
	}
	return sections
}
