package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/wonny/stockread/pkg/logger"
)

const defaultClaudeMaxTokens = 4096

// Claude completes prompts with the Anthropic Messages API
type Claude struct {
	client anthropic.Client
	model  string
	logger *logger.Logger
}

// NewClaude creates a Claude completer
func NewClaude(apiKey, model string, log *logger.Logger) *Claude {
	if model == "" {
		model = DefaultClaudeModel
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	log.WithFields(map[string]interface{}{
		"provider": ProviderClaude,
		"model":    model,
	}).Info("LLM client initialized")

	return &Claude{client: client, model: model, logger: log}
}

func (c *Claude) Provider() string { return ProviderClaude }
func (c *Claude) Model() string    { return c.model }

// Complete sends one user turn and concatenates the text blocks of the answer
func (c *Claude) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultClaudeMaxTokens
	}

	prompt := req.Prompt
	if req.JSON {
		prompt += "\n\nRespond with the JSON object only."
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", classify("claude", err)
	}

	text := joinText(resp.Content)
	if text == "" {
		return "", fmt.Errorf("claude: empty response")
	}
	return text, nil
}

// joinText concatenates the text blocks of a response, skipping tool use and thinking blocks
func joinText(blocks []anthropic.ContentBlockUnion) string {
	var out strings.Builder
	for _, block := range blocks {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String()
}
