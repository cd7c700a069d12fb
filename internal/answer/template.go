package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/askchat/askchat-ai-backend/internal/models"
	"github.com/askchat/askchat-ai-backend/pkg/utils"
)

// NoSourcesAnswer is the deterministic reply when retrieval finds nothing.
const NoSourcesAnswer = "I couldn't find anything relevant in your chats."

// TemplateDrafter renders answers without an LLM: it acknowledges the
// question and lists each source as a cited bullet. Output is fully
// deterministic, which also makes it the fallback when no remote provider
// is configured.
type TemplateDrafter struct {
	maxSourceChars int
}

// NewTemplateDrafter creates a template drafter. Non-positive maxSourceChars
// falls back to 120.
func NewTemplateDrafter(maxSourceChars int) *TemplateDrafter {
	if maxSourceChars <= 0 {
		maxSourceChars = 120
	}
	return &TemplateDrafter{maxSourceChars: maxSourceChars}
}

// Draft renders the answer. An empty source list yields NoSourcesAnswer.
func (d *TemplateDrafter) Draft(_ context.Context, question string, sources []models.Source) (string, error) {
	if len(sources) == 0 {
		return NoSourcesAnswer, nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You asked: %q. Relevant snippets:\n", question)
	for i, s := range sources {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- [%s:%s] %s", s.ChatID, s.MessageID, utils.Truncate(s.Text, d.maxSourceChars))
	}
	return b.String(), nil
}

// Name identifies the provider in logs and status output.
func (d *TemplateDrafter) Name() string { return "template" }
