package answer

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/askchat/askchat-ai-backend/internal/models"
	"github.com/askchat/askchat-ai-backend/pkg/utils"
)

const answerSystemPrompt = "You answer questions about the user's chat history. " +
	"Use only the provided snippets. Cite snippets as [chatId:messageId]. " +
	"If the snippets do not contain the answer, say so."

// OpenAIDrafter composes answers with a chat-completion model, citing the
// retrieved snippets. When retrieval found nothing it short-circuits to the
// deterministic no-sources reply instead of spending a completion call.
type OpenAIDrafter struct {
	client         *openai.Client
	model          string
	maxSourceChars int
}

// OpenAIDrafterConfig configures an OpenAIDrafter.
type OpenAIDrafterConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxSourceChars int
}

// NewOpenAIDrafter creates a drafter backed by the OpenAI chat API.
func NewOpenAIDrafter(cfg OpenAIDrafterConfig) (*OpenAIDrafter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai drafter requires an API key")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	maxSourceChars := cfg.MaxSourceChars
	if maxSourceChars <= 0 {
		maxSourceChars = 120
	}
	return &OpenAIDrafter{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          model,
		maxSourceChars: maxSourceChars,
	}, nil
}

// Draft asks the model for an answer grounded in the sources.
func (d *OpenAIDrafter) Draft(ctx context.Context, question string, sources []models.Source) (string, error) {
	if len(sources) == 0 {
		return NoSourcesAnswer, nil
	}
	var b strings.Builder
	b.WriteString("Snippets:\n")
	for _, s := range sources {
		fmt.Fprintf(&b, "- [%s:%s] %s\n", s.ChatID, s.MessageID, utils.Truncate(s.Text, d.maxSourceChars))
	}
	fmt.Fprintf(&b, "\nQuestion: %s", question)

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: b.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Name identifies the provider in logs and status output.
func (d *OpenAIDrafter) Name() string { return "openai" }
