// Package pipeline runs one story request end to end: story text, sections,
// one illustration per section, and the assembled document.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"bedtime_story_generator/document"
	"bedtime_story_generator/flux"
	"bedtime_story_generator/story"
)

var (
	ErrInvalidParams        = errors.New("invalid story parameters")
	ErrMissingLLM           = errors.New("llm client is not configured")
	ErrMissingImageProvider = errors.New("image provider is not configured")
)

// DefaultDelay is the pause between two image requests.
const DefaultDelay = time.Second

// ImageGenerator produces one illustration per prompt. Any error means the
// section goes without an image.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (*flux.Image, error)
}

// Settings controls where a run writes and how fast it calls the image API.
type Settings struct {
	// OutputDir receives the finished documents. Defaults to os.TempDir().
	OutputDir string
	// WorkDir holds per-run image files. Defaults to os.TempDir().
	WorkDir string
	// Delay is the pause from the end of one image request to the start of
	// the next; zero disables it.
	Delay time.Duration
}

// Artifact is the handle to a finished document, returned to the caller.
type Artifact struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Title    string `json:"title,omitempty"`
	Sections int    `json:"sections"`
	Blocks   int    `json:"blocks"`
	Images   int    `json:"images"`
	// Failures aggregates the per-section image problems; nil when every
	// requested image made it into the document.
	Failures *multierror.Error `json:"-"`
}

// MissingImages is the number of sections that ended up without an image.
func (a *Artifact) MissingImages() int {
	if a.Failures == nil {
		return 0
	}
	return len(a.Failures.Errors)
}

// Pipeline wires the collaborators of a run. It holds no per-run state and
// may serve concurrent requests.
type Pipeline struct {
	llm       story.LLMClient
	images    ImageGenerator
	assembler *document.Assembler
	cfg       Settings
	verbose   bool
	logger    *log.Logger
}

func New(llm story.LLMClient, images ImageGenerator, cfg Settings, verbose bool, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = os.TempDir()
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return &Pipeline{
		llm:       llm,
		images:    images,
		assembler: document.NewAssembler(verbose, logger),
		cfg:       cfg,
		verbose:   verbose,
		logger:    logger,
	}
}

func (p *Pipeline) infof(format string, args ...interface{}) {
	if !p.verbose {
		return
	}
	p.logger.Printf("[INFO] [pipeline] "+format, args...)
}

// Run generates the story for params and writes the document. Errors before
// assembly abort the run and leave no document behind; image problems only
// show up in Artifact.Failures.
func (p *Pipeline) Run(ctx context.Context, params story.Params) (*Artifact, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if p.llm == nil {
		return nil, ErrMissingLLM
	}
	if params.Illustrated() && p.images == nil {
		return nil, ErrMissingImageProvider
	}

	agent, err := story.NewAgent(p.llm)
	if err != nil {
		return nil, err
	}
	p.infof("generating story theme=%q pages=%d", params.Theme, params.Pages)
	raw, err := agent.Write(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "generate story")
	}

	sections := story.ParseSections(raw)
	if len(sections) == 0 {
		return nil, story.ErrEmptyStory
	}
	p.infof("story parsed into %d sections", len(sections))

	id := uuid.NewString()
	workDir, err := os.MkdirTemp(p.cfg.WorkDir, "story-"+id+"-")
	if err != nil {
		return nil, errors.Wrap(err, "create work dir")
	}
	defer os.RemoveAll(workDir)

	images, failures := p.illustrate(ctx, params, sections, workDir)
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "illustrate story")
	}

	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create output dir")
	}
	target := filepath.Join(p.cfg.OutputDir, "bedtime_story_"+id+".docx")
	res, err := p.assembler.Assemble(sections, images, target)
	if err != nil {
		return nil, errors.Wrap(err, "assemble document")
	}
	for _, f := range res.Failures {
		failures = multierror.Append(failures, f)
	}

	return &Artifact{
		ID:       id,
		Path:     res.Path,
		Title:    res.Title,
		Sections: len(sections),
		Blocks:   res.Blocks,
		Images:   res.Images,
		Failures: failures,
	}, nil
}

// illustrate requests one image per non-empty section, strictly in order, and returns
// the file paths parallel to sections ("" where there is none).
func (p *Pipeline) illustrate(ctx context.Context, params story.Params, sections []story.Section, dir string) ([]string, *multierror.Error) {
	paths := make([]string, len(sections))
	if !params.Illustrated() {
		p.infof("illustration style %q, skipping images", params.Style())
		return paths, nil
	}

	var (
		failures *multierror.Error
		pause    *rate.Limiter
	)
	style := params.Style()
	for i, s := range sections {
		if strings.TrimSpace(s.Text()) == "" {
			continue
		}
		if pause != nil {
			if err := pause.Wait(ctx); err != nil {
				for j := i; j < len(sections); j++ {
					if strings.TrimSpace(sections[j].Text()) != "" {
						failures = multierror.Append(failures, errors.Wrapf(err, "section %d", j+1))
					}
				}
				p.logger.Printf("[WARN] [pipeline] images stopped at section %d: %v", i+1, err)
				break
			}
		}
		p.infof("generating image for section %d/%d", i+1, len(sections))

		path, err := p.illustrateSection(ctx, style, s, i, dir)
		pause = newPause(p.cfg.Delay)
		if err != nil {
			err = errors.Wrapf(err, "section %d", i+1)
			p.logger.Printf("[WARN] [pipeline] %v", err)
			failures = multierror.Append(failures, err)
			continue
		}
		paths[i] = path
		p.infof("image for section %d saved as %s", i+1, path)
	}
	return paths, failures
}

func (p *Pipeline) illustrateSection(ctx context.Context, style string, s story.Section, i int, dir string) (string, error) {
	img, err := p.images.Generate(ctx, story.BuildImagePrompt(style, s.Text()))
	if err != nil {
		return "", err
	}
	if img == nil || len(img.Data) == 0 {
		return "", errors.New("no image returned")
	}
	name := fmt.Sprintf("section_%d_%s.%s", i+1, strings.ReplaceAll(uuid.NewString(), "-", ""), extension(img.ContentType))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, img.Data, 0o600); err != nil {
		return "", errors.Wrap(err, "save image")
	}
	return path, nil
}

// newPause returns a limiter whose next Wait returns delay after now.
func newPause(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	l := rate.NewLimiter(rate.Every(delay), 1)
	l.Allow()
	return l
}

func extension(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	switch strings.TrimSpace(strings.ToLower(ct)) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "img"
	}
}
