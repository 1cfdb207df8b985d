package story

import (
	"fmt"
	"strings"
)

// Prompt is the message set sent to the LLM.
type Prompt struct {
	System string
	User   string
}

const storySystem = "You are an imaginative and skilled storyteller, known for creating fun and meaningful bedtime stories. " +
	"You understand how to make stories simple, engaging, and perfect for young listeners."

// BuildStoryPrompt renders the fixed story template for p.
func BuildStoryPrompt(p Params) Prompt {
	var sb strings.Builder
	sb.WriteString("Please write a bedtime story using these details:\n\n")
	sb.WriteString(fmt.Sprintf("1. Target Age Group: %s\n", p.Age))
	sb.WriteString(fmt.Sprintf("2. Theme: %s\n", p.Theme))
	sb.WriteString(fmt.Sprintf("3. Story Length: %d pages\n", p.Pages))
	sb.WriteString(fmt.Sprintf("4. Estimated Reading Time: %d minutes\n", p.Time))
	sb.WriteString(fmt.Sprintf("5. Tone & Atmosphere: %s\n", p.Tone))
	sb.WriteString(fmt.Sprintf("6. Setting: %s\n", p.Setting))
	if m := strings.TrimSpace(p.Moral); m != "" {
		sb.WriteString(fmt.Sprintf("7. Core Message or Lesson: %s\n", m))
	}
	sb.WriteString("\nStory Guidelines:\n")
	sb.WriteString("- Each page should have 200 to 300 words to keep the pacing just right.\n")
	sb.WriteString("- Use simple and easy-to-understand words so children can follow the story.\n")
	sb.WriteString("- Include natural dialogue to make the story feel real and exciting.\n")
	sb.WriteString("- End with a happy or comforting resolution so kids feel safe and relaxed before bed.\n")
	sb.WriteString("\nFormat:\n")
	sb.WriteString("- Start with the title on its own line as **Title: <story title>**.\n")
	sb.WriteString("- Then **Opening Hook:** followed by one or two inviting sentences.\n")
	sb.WriteString(fmt.Sprintf("- Then one marker per page, **Page 1** through **Page %d**, each followed by that page's text.\n", p.Pages))
	sb.WriteString("- Finish with **The End** followed by a short goodnight line.\n")
	sb.WriteString("- Use double asterisks only for these markers.\n")
	sb.WriteString("\nNow, create a heartwarming story that is easy to understand, and full of imagination!")

	return Prompt{
		System: storySystem,
		User:   sb.String(),
	}
}

const imageTemplate = `You are a creative visual storyteller tasked with generating detailed, evocative image prompts that capture the enchanting atmosphere of a bedtime story.

Bedtime Story Context:
%s

Instructions:
- Create an image prompt that evokes warmth, wonder, and a sense of magical realism.
- Include the following key components:
  1. Subject/Scene: the characters, setting and key moment of this part of the story, with child-friendly magical elements.
  2. Composition and Action: spatial arrangement and the storytelling action in the frame.
  3. Emotion and Style: the gentle, calming and imaginative tone of the narrative.
  4. Lighting and Color: soft, warm lighting and a soothing palette such as muted pastels or warm earth tones.
  5. Camera and Lens Settings (optional): for example a shallow depth of field for a dreamy background.
  6. Artistic Enhancements and Aspect Ratio: bokeh, soft focus or vignette, an aspect ratio tag (e.g. --ar 4:5) and style tags (e.g. --style dreamy).
  7. Overall Mood: nurturing, imaginative and calming.

Style Directive:
Use the following artistic style for this prompt: %s

Now, please craft an image prompt that embodies these guidelines.`

// BuildImagePrompt turns one section of the story into an illustration request.
func BuildImagePrompt(style, sectionText string) string {
	return fmt.Sprintf(imageTemplate, sectionText, style)
}
