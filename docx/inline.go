package docx

import (
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Run is a span of text sharing one format, or a line break.
type Run struct {
	Text   string
	Bold   bool
	Italic bool
	Break  bool
}

// emphasisOnly recognises paragraphs and * / _ emphasis and nothing else, so
// headings, lists, html, rules and code keep their literal text.
var emphasisOnly = parser.NewParser(
	parser.WithBlockParsers(util.Prioritized(parser.NewParagraphParser(), 100)),
	parser.WithInlineParsers(util.Prioritized(parser.NewEmphasisParser(), 100)),
)

// InlineRuns splits src into runs for a single paragraph. Emphasis becomes
// bold/italic, line breaks become breaks and blank lines a double break.
// All other text is kept as written.
func InlineRuns(src string) []Run {
	source := []byte(normalizeLines(src))
	root := emphasisOnly.Parse(text.NewReader(source))

	w := &runWalker{source: source}
	_ = ast.Walk(root, w.visit)
	return w.runs
}

// normalizeLines trims every line. Indentation would otherwise stop the
// paragraph parser from opening a block.
func normalizeLines(src string) string {
	lines := strings.Split(src, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.Join(lines, "\n")
}

type runWalker struct {
	source []byte
	runs   []Run
	bold   int
	italic int
}

func (w *runWalker) visit(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Paragraph:
		if entering && len(w.runs) > 0 {
			w.lineBreak()
			w.lineBreak()
		}
	case *ast.Emphasis:
		delta := 1
		if !entering {
			delta = -1
		}
		if node.Level >= 2 {
			w.bold += delta
		} else {
			w.italic += delta
		}
	case *ast.String:
		if entering {
			w.text(string(node.Value))
		}
	case *ast.Text:
		if entering {
			w.text(string(node.Segment.Value(w.source)))
			if node.SoftLineBreak() || node.HardLineBreak() {
				w.lineBreak()
			}
		}
	}
	return ast.WalkContinue, nil
}

func (w *runWalker) text(s string) {
	if s == "" {
		return
	}
	r := Run{Text: s, Bold: w.bold > 0, Italic: w.italic > 0}
	if last := len(w.runs) - 1; last >= 0 {
		prev := w.runs[last]
		if !prev.Break && prev.Bold == r.Bold && prev.Italic == r.Italic {
			w.runs[last].Text += s
			return
		}
	}
	w.runs = append(w.runs, r)
}

func (w *runWalker) lineBreak() {
	w.runs = append(w.runs, Run{Break: true})
}
