package processor

import (
	"context"
	"fmt"
	"time"

	"voice-server/internal/observability"

	"github.com/openai/openai-go"
	openaiOption "github.com/openai/openai-go/option"
)

// CompletionError indicates the language-model backend failed after the
// bounded retry budget.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed: %v", e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

const (
	maxAttempts  = 3
	retryBackoff = time.Second
)

const systemPrompt = "You are a helpful voice assistant on a phone call. " +
	"Answer in one or two short spoken sentences."

// ChatClient is the slice of the OpenAI client the processor needs,
// narrowed for tests.
type ChatClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAIChatClient calls the OpenAI chat completions API.
type OpenAIChatClient struct {
	apiKey string
}

// NewOpenAIChatClient creates a chat client.
func NewOpenAIChatClient(apiKey string) (*OpenAIChatClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return &OpenAIChatClient{apiKey: apiKey}, nil
}

// Complete requests a single chat completion.
func (c *OpenAIChatClient) Complete(ctx context.Context, prompt string) (string, error) {
	client := openai.NewClient(openaiOption.WithAPIKey(c.apiKey))

	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModelGPT4o,
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("completion response contained no message")
	}
	return completion.Choices[0].Message.Content, nil
}

// CompletionProcessor bridges the language-model collaborator behind a single
// prompt-to-text function with a small fixed retry budget.
type CompletionProcessor struct {
	client ChatClient
	logger *observability.Logger
}

// New creates a new CompletionProcessor.
func New(client ChatClient, logger *observability.Logger) *CompletionProcessor {
	return &CompletionProcessor{
		client: client,
		logger: logger,
	}
}

// Complete generates a reply for a prompt.
func (p *CompletionProcessor) Complete(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", &CompletionError{Err: fmt.Errorf("prompt is empty")}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		reply, err := p.client.Complete(ctx, prompt)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		p.logger.WarnWithError(observability.WithFields(ctx,
			observability.Field{Key: "attempt", Value: attempt},
		), "Completion attempt failed", err)
		if attempt < maxAttempts {
			time.Sleep(retryBackoff)
		}
	}
	return "", &CompletionError{Err: lastErr}
}
