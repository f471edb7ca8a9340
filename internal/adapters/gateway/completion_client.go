package gateway

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"avito-assist/internal/core/ports"
)

// Ensure CompletionClient implements Completer
var _ ports.Completer = (*CompletionClient)(nil)

const (
	// DefaultCompletionBaseURL is Perplexity's OpenAI-compatible endpoint
	DefaultCompletionBaseURL = "https://api.perplexity.ai"
	DefaultCompletionModel   = "sonar"
)

// CompletionClient generates replies through an OpenAI-compatible chat
// completions API
type CompletionClient struct {
	client *openai.Client
	model  string
}

// NewCompletionClient creates a new completion client
func NewCompletionClient(apiKey, baseURL, model string) *CompletionClient {
	if baseURL == "" {
		baseURL = DefaultCompletionBaseURL
	}
	if model == "" {
		model = DefaultCompletionModel
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimRight(baseURL, "/")

	return &CompletionClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// GenerateReply sends the system prompt and the user message and returns the
// first choice's content
func (c *CompletionClient) GenerateReply(ctx context.Context, userMessage, systemPrompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userMessage})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		slog.Error("Error while calling chat completions API",
			"error", err,
			"model", c.model,
		)
		return "", errors.New("Failed to get reply from completion service")
	}

	if len(resp.Choices) == 0 {
		slog.Error("Completion response has no choices", "model", c.model)
		return "", errors.New("Invalid response format from completion service")
	}

	return resp.Choices[0].Message.Content, nil
}
