package document

import (
	"fmt"
	"log"
	"os"

	"bedtime_story_generator/docx"
	"bedtime_story_generator/story"
)

// DefaultImageWidth is the display width of every illustration.
var DefaultImageWidth = docx.Inches(4)

// Result summarizes a written document.
type Result struct {
	Path   string
	Title  string
	Blocks int
	Images int
	// Failures holds images that could not be embedded, in section order.
	Failures []error
}

// Assembler renders layouts into .docx files.
type Assembler struct {
	ImageWidth int64
	Creator    string
	verbose    bool
	logger     *log.Logger
}

func NewAssembler(verbose bool, logger *log.Logger) *Assembler {
	if logger == nil {
		logger = log.Default()
	}
	return &Assembler{
		ImageWidth: DefaultImageWidth,
		Creator:    "Bedtime Story Generator",
		verbose:    verbose,
		logger:     logger,
	}
}

func (a *Assembler) infof(format string, args ...interface{}) {
	if !a.verbose {
		return
	}
	a.logger.Printf("[INFO] [document] "+format, args...)
}

// Assemble writes sections and their images to target. An image that cannot
// be embedded is logged and skipped; only failing to save the file is an error.
func (a *Assembler) Assemble(sections []story.Section, images []string, target string) (Result, error) {
	layout := Plan(sections, images)
	doc, failures := a.Render(layout)

	if err := doc.Save(target); err != nil {
		return Result{}, fmt.Errorf("save document: %w", err)
	}
	info, err := os.Stat(target)
	if err != nil {
		return Result{}, err
	}
	if info.Size() == 0 {
		return Result{}, fmt.Errorf("save document: %s is empty", target)
	}
	a.infof("story saved to %s (%d blocks, %d images)", target, len(layout.Blocks), doc.Pictures())

	return Result{
		Path:     target,
		Title:    layout.Title,
		Blocks:   len(layout.Blocks),
		Images:   doc.Pictures(),
		Failures: failures,
	}, nil
}

// Render builds the document for l.
func (a *Assembler) Render(l Layout) (*docx.Document, []error) {
	doc := docx.New()
	doc.Creator = a.Creator
	if l.Title != "" {
		doc.Title = l.Title
		doc.AddHeading(l.Title, 1)
	}

	var failures []error
	for _, b := range l.Blocks {
		if b.Heading != "" {
			doc.AddHeading(b.Heading, 2)
		}
		if b.Body != "" {
			doc.AddParagraph(b.Body)
		}
		if b.Image == "" {
			continue
		}
		if err := doc.AddPicture(b.Image, a.ImageWidth); err != nil {
			err = fmt.Errorf("section %d: insert image: %w", b.Section+1, err)
			a.logger.Printf("[WARN] [document] %v", err)
			failures = append(failures, err)
		}
	}
	return doc, failures
}
