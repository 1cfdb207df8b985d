package story

import (
	"errors"
	"strings"
)

// DefaultIllustrationStyle is used when the caller leaves the style empty.
const DefaultIllustrationStyle = "sketch"

// NoIllustrations disables image generation for a run.
const NoIllustrations = "none"

// Params describes the story the caller wants. Values arrive already resolved.
type Params struct {
	Age               string `json:"Age"`
	Theme             string `json:"Theme"`
	Pages             int    `json:"Pages"`
	Time              int    `json:"Time"`
	Tone              string `json:"Tone"`
	Setting           string `json:"Setting"`
	Moral             string `json:"Moral"`
	IllustrationStyle string `json:"IllustrationStyle"`
}

// Validate checks the fields the prompt cannot do without.
func (p Params) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"Age", p.Age},
		{"Theme", p.Theme},
		{"Tone", p.Tone},
		{"Setting", p.Setting},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return errors.New("missing story parameters: " + strings.Join(missing, ", "))
	}
	if p.Pages < 1 {
		return errors.New("pages must be at least 1")
	}
	if p.Time < 1 {
		return errors.New("time must be at least 1 minute")
	}
	return nil
}

// Style returns the illustration style with the default applied.
func (p Params) Style() string {
	s := strings.TrimSpace(p.IllustrationStyle)
	if s == "" {
		return DefaultIllustrationStyle
	}
	return s
}

// Illustrated reports whether images should be generated at all.
func (p Params) Illustrated() bool {
	return !strings.EqualFold(p.Style(), NoIllustrations)
}

// Section is one narrative unit: the bold marker and the text that follows it.
type Section struct {
	Marker string `json:"marker"`
	Body   string `json:"body"`
}

// Text joins marker and body the way they are rendered and sent to the image prompt.
func (s Section) Text() string {
	switch {
	case s.Marker == "":
		return s.Body
	case s.Body == "":
		return s.Marker
	default:
		return s.Marker + "\n\n" + s.Body
	}
}
