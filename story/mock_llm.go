package story

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var pagesRe = regexp.MustCompile(`Story Length: (\d+) pages`)

// MockLLM is a local stand-in that never calls a model. It returns a short
// story in the marker format so the rest of the pipeline can be exercised.
// Pages overrides the page count the prompt asks for.
type MockLLM struct {
	Pages int
}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	pages := m.Pages
	if pages <= 0 {
		if sm := pagesRe.FindStringSubmatch(prompt.User); sm != nil {
			pages, _ = strconv.Atoi(sm[1])
		}
	}
	if pages <= 0 {
		pages = 2
	}
	var sb strings.Builder
	sb.WriteString("**Title: The Sleepy Little Star**\n\n")
	sb.WriteString("**Opening Hook:**\nHigh above the rooftops, one little star could not fall asleep.\n\n")
	for i := 1; i <= pages; i++ {
		sb.WriteString(fmt.Sprintf("**Page %d**\n", i))
		sb.WriteString(fmt.Sprintf("The star counted %d clouds and yawned a *tiny* yawn.\n\n", i*3))
	}
	sb.WriteString("**The End**\nGoodnight, little star. Goodnight, little you.\n")
	return sb.String(), nil
}
