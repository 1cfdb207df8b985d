package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"bedtime_story_generator/docx"
	"bedtime_story_generator/pipeline"
	"bedtime_story_generator/server"
	"bedtime_story_generator/story"
)

type generateSummary struct {
	*pipeline.Artifact
	MissingImages int           `json:"missing_images"`
	Failures      []string      `json:"failures,omitempty"`
	Outline       *docx.Outline `json:"outline,omitempty"`
}

func generateCmd() *cobra.Command {
	var (
		params  story.Params
		output  string
		outline bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one story document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := buildPipeline(cmd.Context(), cfg, log.Default())
			if err != nil {
				return err
			}
			return runGenerate(cmd, p, params, output, outline)
		},
	}
	f := cmd.Flags()
	f.StringVar(&params.Age, "age", "", "target age group")
	f.StringVar(&params.Theme, "theme", "", "story theme")
	f.IntVar(&params.Pages, "pages", 3, "number of pages")
	f.IntVar(&params.Time, "time", 5, "reading time in minutes")
	f.StringVar(&params.Tone, "tone", "", "story tone")
	f.StringVar(&params.Setting, "setting", "", "story setting")
	f.StringVar(&params.Moral, "moral", "", "optional moral lesson")
	f.StringVar(&params.IllustrationStyle, "style", story.DefaultIllustrationStyle, `illustration style ("none" skips images)`)
	f.StringVarP(&output, "output", "o", "", "write the document here (default: the configured output dir)")
	f.BoolVar(&outline, "outline", false, "include the document outline in the summary")
	return cmd
}

func runGenerate(cmd *cobra.Command, r server.Runner, params story.Params, output string, withOutline bool) error {
	art, err := r.Run(cmd.Context(), params)
	if err != nil {
		return err
	}
	if output != "" {
		if err := moveFile(art.Path, output); err != nil {
			return err
		}
		art.Path = output
	}
	log.Printf("[cli] story written path=%s images=%d/%d", art.Path, art.Images, art.Sections)

	sum := generateSummary{Artifact: art, MissingImages: art.MissingImages()}
	if art.Failures != nil {
		for _, e := range art.Failures.Errors {
			sum.Failures = append(sum.Failures, e.Error())
		}
	}
	if withOutline {
		data, err := os.ReadFile(art.Path)
		if err != nil {
			return err
		}
		o, err := docx.ReadOutline(data)
		if err != nil {
			return err
		}
		sum.Outline = &o
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

// moveFile copies src to dst and removes src; a rename may cross devices.
func moveFile(src, dst string) error {
	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	in.Close()
	return os.Remove(src)
}
