// Package document turns parsed story sections and their illustrations into
// a Word document.
package document

import (
	"strings"

	"bedtime_story_generator/story"
)

const titlePrefix = "Title:"

// headingPrefixes mark sections whose first line renders as a level-2 heading.
var headingPrefixes = []string{"Opening Hook:", "Page", "Ending", "The End"}

// Layout is the rendered shape of a story: an optional title and ordered blocks.
type Layout struct {
	Title  string
	Blocks []Block
}

// Block is one section on the page. Heading and Image may be empty.
type Block struct {
	Heading string
	Body    string
	Image   string
	// Section is the index of the source section.
	Section int
}

// Plan lays out sections with their images; images[i] belongs to sections[i]
// and "" means no image. A leading "Title:" section becomes the title and is
// not rendered as a block. A section without text is skipped with its image.
func Plan(sections []story.Section, images []string) Layout {
	var l Layout
	offset := 0
	if len(sections) > 0 && strings.HasPrefix(sections[0].Text(), titlePrefix) {
		l.Title = extractTitle(sections[0])
		offset = 1
	}

	for i := offset; i < len(sections); i++ {
		text := sections[i].Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		b := Block{Section: i}
		if i < len(images) {
			b.Image = images[i]
		}

		lines := strings.Split(text, "\n")
		first := strings.TrimSpace(lines[0])
		if isHeading(first) {
			b.Heading = first
			b.Body = strings.TrimSpace(strings.Join(lines[1:], "\n"))
		} else {
			b.Body = text
		}
		l.Blocks = append(l.Blocks, b)
	}
	return l
}

// extractTitle takes the first line after the prefix, or the first body line
// when the marker was a bare "Title:".
func extractTitle(s story.Section) string {
	text := s.Text()
	first, rest, _ := strings.Cut(text, "\n")
	title := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(first), titlePrefix))
	if title != "" {
		return title
	}
	for _, line := range strings.Split(rest, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func isHeading(line string) bool {
	for _, p := range headingPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
