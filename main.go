package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bedtime_story_generator/config"
	"bedtime_story_generator/flux"
	"bedtime_story_generator/pipeline"
	"bedtime_story_generator/story"
)

const defaultConfigPath = "config/config.json"

var (
	configPath string
	verbose    bool
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storyteller",
		Short:         "Generate illustrated bedtime stories as Word documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to config.json or config.toml")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable info logs")

	root.AddCommand(serveCmd())
	root.AddCommand(generateCmd())
	return root
}

// loadConfig reads the config file; the default path may be absent when the
// environment carries the credentials.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := configPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	cfg.Verbose = cfg.Verbose || verbose
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func buildPipeline(ctx context.Context, cfg config.Config, logger *log.Logger) (*pipeline.Pipeline, error) {
	llm, err := buildLLM(ctx, cfg)
	if err != nil {
		return nil, err
	}
	images, err := buildImages(cfg, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.New(llm, images, pipeline.Settings{
		OutputDir: cfg.OutputDir,
		Delay:     time.Duration(cfg.Image.Delay),
	}, cfg.Verbose, logger), nil
}

func buildLLM(ctx context.Context, cfg config.Config) (story.LLMClient, error) {
	if cfg.LLM == nil || cfg.LLM.Provider == "" {
		return nil, fmt.Errorf("llm config missing; please set llm.provider/model/api_key in config")
	}
	settings := &story.LLMSettings{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
	}
	switch cfg.LLM.Provider {
	case "openai":
		return story.NewOpenAILLMFromConfig(settings)
	case "deepseek":
		// OpenAI-compatible endpoint; base_url is mandatory.
		if cfg.LLM.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return story.NewOpenAILLMFromConfig(settings)
	case "gemini":
		return story.NewGeminiLLM(ctx, settings)
	case "mock":
		return story.MockLLM{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}

// buildImages returns a nil generator when images are disabled, so only
// style "none" requests can succeed.
func buildImages(cfg config.Config, logger *log.Logger) (pipeline.ImageGenerator, error) {
	if cfg.Image == nil || cfg.Image.Disabled {
		return nil, nil
	}
	c, err := flux.New(flux.Settings{
		APIKey:       cfg.Image.APIKey,
		BaseURL:      cfg.Image.BaseURL,
		Model:        cfg.Image.Model,
		Width:        cfg.Image.Width,
		Height:       cfg.Image.Height,
		PollInterval: time.Duration(cfg.Image.PollInterval),
		MaxWait:      time.Duration(cfg.Image.MaxWait),
	}, nil, cfg.Verbose, logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}
