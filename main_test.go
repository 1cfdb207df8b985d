package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedtime_story_generator/config"
	"bedtime_story_generator/flux"
	"bedtime_story_generator/story"
)

func TestBuildLLM(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		llm     *config.LLMConfig
		wantErr bool
		check   func(t *testing.T, c story.LLMClient)
	}{
		{name: "missing", llm: nil, wantErr: true},
		{name: "openai", llm: &config.LLMConfig{Provider: "openai", APIKey: "k"}, check: func(t *testing.T, c story.LLMClient) {
			o, ok := c.(*story.OpenAILLM)
			require.True(t, ok)
			assert.Equal(t, story.DefaultOpenAIModel, o.Model)
		}},
		{name: "deepseek needs base url", llm: &config.LLMConfig{Provider: "deepseek", APIKey: "k"}, wantErr: true},
		{name: "deepseek", llm: &config.LLMConfig{Provider: "deepseek", APIKey: "k", BaseURL: "https://api.deepseek.com", Model: "deepseek-chat"}},
		{name: "mock", llm: &config.LLMConfig{Provider: "mock"}, check: func(t *testing.T, c story.LLMClient) {
			_, ok := c.(story.MockLLM)
			assert.True(t, ok)
		}},
		{name: "unknown", llm: &config.LLMConfig{Provider: "claude", APIKey: "k"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := buildLLM(ctx, config.Config{LLM: tt.llm})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, c)
			if tt.check != nil {
				tt.check(t, c)
			}
		})
	}
}

func TestBuildImages(t *testing.T) {
	g, err := buildImages(config.Config{Image: &config.ImageConfig{Disabled: true}}, nil)
	require.NoError(t, err)
	assert.Nil(t, g)

	g, err = buildImages(config.Config{Image: &config.ImageConfig{APIKey: "bfl"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &flux.Client{}, g)

	_, err = buildImages(config.Config{Image: &config.ImageConfig{}}, nil)
	assert.ErrorIs(t, err, flux.ErrMissingAPIKey)
}

func TestGenerateCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{
		"output_dir": "`+filepath.ToSlash(filepath.Join(dir, "out"))+`",
		"llm": {"provider": "mock"},
		"image": {"disabled": true}
	}`), 0o644))
	target := filepath.Join(dir, "stories", "star.docx")

	root := newRootCmd()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetArgs([]string{
		"generate", "--config", cfgPath,
		"--age", "4-6", "--theme", "stars", "--pages", "3", "--time", "5",
		"--tone", "calm", "--setting", "night sky", "--style", "none",
		"-o", target, "--outline",
	})
	require.NoError(t, root.Execute())

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	var sum struct {
		ID            string `json:"id"`
		Path          string `json:"path"`
		Title         string `json:"title"`
		Sections      int    `json:"sections"`
		Images        int    `json:"images"`
		MissingImages int    `json:"missing_images"`
		Outline       struct {
			Title string `json:"title"`
		} `json:"outline"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &sum))
	assert.NotEmpty(t, sum.ID)
	assert.Equal(t, target, sum.Path)
	assert.Equal(t, "The Sleepy Little Star", sum.Title)
	assert.Equal(t, "The Sleepy Little Star", sum.Outline.Title)
	assert.Equal(t, 6, sum.Sections)
	assert.Zero(t, sum.Images)
	assert.Zero(t, sum.MissingImages)

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Empty(t, entries, "document should have been moved to -o")
}

func TestGenerateCommand_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[llm]\nprovider = \"claude\"\n"), 0o644))

	root := newRootCmd()
	root.SetArgs([]string{"generate", "--config", cfgPath, "--age", "5"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestGenerateCommand_MissingParams(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"output_dir": "`+filepath.ToSlash(dir)+`", "llm": {"provider": "mock"}, "image": {"disabled": true}}`), 0o644))

	root := newRootCmd()
	root.SetArgs([]string{"generate", "--config", cfgPath, "--style", "none"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing story parameters")
}
