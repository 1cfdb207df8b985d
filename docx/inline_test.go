package docx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInlineRuns(t *testing.T) {
	br := Run{Break: true}
	tests := []struct {
		name string
		in   string
		want []Run
	}{
		{
			name: "plain",
			in:   "The fox ran.",
			want: []Run{{Text: "The fox ran."}},
		},
		{
			name: "emphasis",
			in:   "A *soft* and **bold** night.",
			want: []Run{
				{Text: "A "},
				{Text: "soft", Italic: true},
				{Text: " and "},
				{Text: "bold", Bold: true},
				{Text: " night."},
			},
		},
		{
			name: "line break",
			in:   "one\ntwo",
			want: []Run{{Text: "one"}, br, {Text: "two"}},
		},
		{
			name: "paragraphs",
			in:   "first\n\nsecond",
			want: []Run{{Text: "first"}, br, br, {Text: "second"}},
		},
		{
			name: "list markers kept as written",
			in:   "Things:\n\n- moon\n- stars",
			want: []Run{{Text: "Things:"}, br, br, {Text: "- moon"}, br, {Text: "- stars"}},
		},
		{
			name: "numbered lines kept as written",
			in:   "3. three\n4. four",
			want: []Run{{Text: "3. three"}, br, {Text: "4. four"}},
		},
		{
			name: "backticks are plain text",
			in:   "say `hush`",
			want: []Run{{Text: "say `hush`"}},
		},
		{
			name: "angle brackets are plain text",
			in:   "Mia held up a sign that read <Home Sweet Home> and smiled.",
			want: []Run{{Text: "Mia held up a sign that read <Home Sweet Home> and smiled."}},
		},
		{
			name: "html block is plain text",
			in:   "<div>Goodnight, moon.</div>",
			want: []Run{{Text: "<div>Goodnight, moon.</div>"}},
		},
		{
			name: "rule line is plain text",
			in:   "before\n\n***\n\nafter",
			want: []Run{{Text: "before"}, br, br, {Text: "***"}, br, br, {Text: "after"}},
		},
		{
			name: "indented line is plain text",
			in:   "The night was calm.\n\n    The owl hooted softly.",
			want: []Run{{Text: "The night was calm."}, br, br, {Text: "The owl hooted softly."}},
		},
		{
			name: "indented first line",
			in:   "    The owl hooted softly.\nThe end.",
			want: []Run{{Text: "The owl hooted softly."}, br, {Text: "The end."}},
		},
		{
			name: "heading marker is plain text",
			in:   "# Chapter One",
			want: []Run{{Text: "# Chapter One"}},
		},
		{
			name: "unmatched emphasis is plain text",
			in:   "two **stars",
			want: []Run{{Text: "two **stars"}},
		},
		{
			name: "empty",
			in:   "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InlineRuns(tt.in))
		})
	}
}

func TestInlineRuns_KeepsAllText(t *testing.T) {
	body := "Mia held up a sign that read <Home Sweet Home> and smiled.\n\n***\n\n    The owl hooted softly.\n\n<div>Goodnight, moon.</div>"

	var sb strings.Builder
	for _, r := range InlineRuns(body) {
		if r.Break {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(r.Text)
	}
	assert.Equal(t, "Mia held up a sign that read <Home Sweet Home> and smiled.\n\n***\n\nThe owl hooted softly.\n\n<div>Goodnight, moon.</div>", sb.String())
}
