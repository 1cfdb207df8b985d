package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedtime_story_generator/docx"
	"bedtime_story_generator/flux"
	"bedtime_story_generator/story"
)

const foxStory = "**Title: The Fox**\ncontent0\n**Page 1**\nThe fox ran.\n**The End**\nGoodnight."

type fakeLLM struct {
	out string
	err error
}

func (f fakeLLM) Complete(context.Context, story.Prompt) (string, error) {
	return f.out, f.err
}

// fakeImages returns a PNG for every prompt unless fail says otherwise.
type fakeImages struct {
	mu      sync.Mutex
	prompts []string
	calls   []time.Time
	ends    []time.Time
	fail    func(n int) bool
	data    []byte
	latency time.Duration
}

func (f *fakeImages) Generate(_ context.Context, prompt string) (*flux.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	f.calls = append(f.calls, time.Now())
	if f.latency > 0 {
		time.Sleep(f.latency)
	}
	defer func() { f.ends = append(f.ends, time.Now()) }()
	if f.fail != nil && f.fail(n) {
		return nil, errors.New("content moderated")
	}
	data := f.data
	if data == nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 3))); err != nil {
			return nil, err
		}
		data = buf.Bytes()
	}
	return &flux.Image{Data: data, ContentType: "image/png"}, nil
}

func params() story.Params {
	return story.Params{
		Age:               "6-8",
		Theme:             "adventure",
		Pages:             1,
		Time:              3,
		Tone:              "fun",
		Setting:           "forest",
		IllustrationStyle: "watercolor",
	}
}

func newTestPipeline(t *testing.T, llm story.LLMClient, images ImageGenerator) (*Pipeline, Settings) {
	t.Helper()
	cfg := Settings{OutputDir: t.TempDir(), WorkDir: t.TempDir()}
	return New(llm, images, cfg, true, log.New(io.Discard, "", 0)), cfg
}

func readOutline(t *testing.T, path string) docx.Outline {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out, err := docx.ReadOutline(data)
	require.NoError(t, err)
	return out
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRun_Example(t *testing.T) {
	images := &fakeImages{}
	p, cfg := newTestPipeline(t, fakeLLM{out: foxStory}, images)

	art, err := p.Run(context.Background(), params())
	require.NoError(t, err)

	assert.Equal(t, "The Fox", art.Title)
	assert.Equal(t, 3, art.Sections)
	assert.Equal(t, 2, art.Blocks)
	assert.Equal(t, 2, art.Images)
	assert.Zero(t, art.MissingImages())
	assert.Nil(t, art.Failures.ErrorOrNil())
	assert.Equal(t, filepath.Join(cfg.OutputDir, "bedtime_story_"+art.ID+".docx"), art.Path)

	require.Len(t, images.prompts, 3)
	assert.Contains(t, images.prompts[0], "Title: The Fox\n\ncontent0")
	assert.Contains(t, images.prompts[1], "Page 1\n\nThe fox ran.")
	for _, prompt := range images.prompts {
		assert.Contains(t, prompt, "style for this prompt: watercolor")
	}

	out := readOutline(t, art.Path)
	assert.Equal(t, "The Fox", out.Title)
	assert.Equal(t, 2, out.Pictures())

	assert.Empty(t, dirEntries(t, cfg.WorkDir), "temporary images are removed")
}

func TestRun_AllImagesFail(t *testing.T) {
	images := &fakeImages{fail: func(int) bool { return true }}
	p, _ := newTestPipeline(t, fakeLLM{out: foxStory}, images)

	art, err := p.Run(context.Background(), params())

	require.NoError(t, err)
	assert.Zero(t, art.Images)
	assert.Equal(t, 3, art.MissingImages())
	assert.Contains(t, art.Failures.Error(), "section 2: content moderated")

	out := readOutline(t, art.Path)
	assert.Zero(t, out.Pictures())
	var texts []string
	for _, b := range out.Blocks {
		texts = append(texts, b.Text)
	}
	assert.Equal(t, []string{"The Fox", "Page 1", "The fox ran.", "The End", "Goodnight."}, texts)
}

func TestRun_PartialImages(t *testing.T) {
	images := &fakeImages{fail: func(n int) bool { return n == 1 }}
	p, _ := newTestPipeline(t, fakeLLM{out: foxStory}, images)

	art, err := p.Run(context.Background(), params())

	require.NoError(t, err)
	assert.Equal(t, 1, art.Images)
	assert.Equal(t, 1, art.MissingImages())

	out := readOutline(t, art.Path)
	require.Len(t, out.Blocks, 6)
	assert.Equal(t, "The fox ran.", out.Blocks[2].Text)
	assert.Equal(t, "The End", out.Blocks[3].Text)
	assert.Equal(t, 1, out.Blocks[5].Pictures)
}

func TestRun_CorruptImageIsNotFatal(t *testing.T) {
	images := &fakeImages{data: []byte("definitely not a png")}
	p, _ := newTestPipeline(t, fakeLLM{out: foxStory}, images)

	art, err := p.Run(context.Background(), params())

	require.NoError(t, err)
	assert.Zero(t, art.Images)
	assert.Equal(t, 2, art.MissingImages())
	assert.Contains(t, art.Failures.Error(), "insert image")
}

func TestRun_NoMarkers(t *testing.T) {
	p, _ := newTestPipeline(t, fakeLLM{out: "Once upon a time, a bear slept."}, &fakeImages{})

	art, err := p.Run(context.Background(), params())

	require.NoError(t, err)
	assert.Equal(t, 1, art.Sections)
	assert.Empty(t, art.Title)
	out := readOutline(t, art.Path)
	require.Len(t, out.Blocks, 2)
	assert.Equal(t, "Once upon a time, a bear slept.", out.Blocks[0].Text)
}

func TestRun_StyleNoneSkipsImages(t *testing.T) {
	pr := params()
	pr.IllustrationStyle = "none"
	p, _ := newTestPipeline(t, fakeLLM{out: foxStory}, nil)

	art, err := p.Run(context.Background(), pr)

	require.NoError(t, err)
	assert.Zero(t, art.Images)
	assert.Zero(t, art.MissingImages())
}

func TestRun_DefaultStyle(t *testing.T) {
	pr := params()
	pr.IllustrationStyle = ""
	images := &fakeImages{}
	p, _ := newTestPipeline(t, fakeLLM{out: foxStory}, images)

	_, err := p.Run(context.Background(), pr)

	require.NoError(t, err)
	assert.Contains(t, images.prompts[0], "style for this prompt: sketch")
}

func TestRun_FatalErrors(t *testing.T) {
	boom := errors.New("upstream down")
	invalid := params()
	invalid.Pages = 0

	tests := []struct {
		name   string
		llm    story.LLMClient
		images ImageGenerator
		params story.Params
		want   error
	}{
		{"invalid params", fakeLLM{out: foxStory}, &fakeImages{}, invalid, ErrInvalidParams},
		{"missing llm", nil, &fakeImages{}, params(), ErrMissingLLM},
		{"missing images", fakeLLM{out: foxStory}, nil, params(), ErrMissingImageProvider},
		{"llm error", fakeLLM{err: boom}, &fakeImages{}, params(), boom},
		{"empty story", fakeLLM{out: "  \n "}, &fakeImages{}, params(), story.ErrEmptyStory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, cfg := newTestPipeline(t, tt.llm, tt.images)

			art, err := p.Run(context.Background(), tt.params)

			assert.Nil(t, art)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, dirEntries(t, cfg.OutputDir), "no document on fatal error")
			if fi, ok := tt.images.(*fakeImages); ok {
				assert.Empty(t, fi.prompts)
			}
		})
	}
}

func TestRun_DelayBetweenImages(t *testing.T) {
	images := &fakeImages{latency: 60 * time.Millisecond}
	cfg := Settings{OutputDir: t.TempDir(), WorkDir: t.TempDir(), Delay: 40 * time.Millisecond}
	p := New(fakeLLM{out: foxStory}, images, cfg, false, log.New(io.Discard, "", 0))

	_, err := p.Run(context.Background(), params())
	require.NoError(t, err)

	require.Len(t, images.calls, 3)
	require.Len(t, images.ends, 3)
	for i := 1; i < len(images.calls); i++ {
		gap := images.calls[i].Sub(images.ends[i-1])
		assert.GreaterOrEqual(t, gap, 35*time.Millisecond, "pause before call %d", i+1)
	}
}

func TestRun_DeadlineShorterThanDelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	images := &fakeImages{}
	cfg := Settings{OutputDir: t.TempDir(), WorkDir: t.TempDir(), Delay: time.Hour}
	p := New(fakeLLM{out: foxStory}, images, cfg, false, log.New(io.Discard, "", 0))

	art, err := p.Run(ctx, params())

	require.NoError(t, err)
	assert.Len(t, images.prompts, 1)
	assert.Equal(t, 2, art.MissingImages())
	assert.Contains(t, art.Failures.Error(), "section 2")
	assert.Contains(t, art.Failures.Error(), "section 3")
}

func TestRun_EmptySectionGetsNoImage(t *testing.T) {
	images := &fakeImages{}
	p, _ := newTestPipeline(t, fakeLLM{out: "**Page 1**\nThe fox ran.\n****\n**The End**\nGoodnight."}, images)

	art, err := p.Run(context.Background(), params())

	require.NoError(t, err)
	assert.Equal(t, 3, art.Sections)
	assert.Equal(t, 2, art.Blocks)
	assert.Equal(t, 2, art.Images)
	assert.Zero(t, art.MissingImages())
	require.Len(t, images.prompts, 2)
	assert.Contains(t, images.prompts[1], "The End\n\nGoodnight.")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	images := &fakeImages{fail: func(int) bool { cancel(); return true }}
	cfg := Settings{OutputDir: t.TempDir(), WorkDir: t.TempDir(), Delay: time.Hour}
	p := New(fakeLLM{out: foxStory}, images, cfg, false, log.New(io.Discard, "", 0))

	_, err := p.Run(ctx, params())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, images.prompts, 1)
	assert.Empty(t, dirEntries(t, cfg.OutputDir))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "png", extension("image/png"))
	assert.Equal(t, "jpg", extension("image/jpeg; charset=binary"))
	assert.Equal(t, "webp", extension("IMAGE/WEBP"))
	assert.Equal(t, "img", extension(""))
	assert.True(t, strings.HasPrefix(extension("image/gif"), "gif"))
}
