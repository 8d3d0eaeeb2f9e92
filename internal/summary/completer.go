package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel = "gpt-4o-mini"

	completionTemperature = 0.3
	completionMaxTokens   = 3000
)

var ErrEmptyCompletion = errors.New("empty_completion")

// Completer sends one chat completion and returns the assistant's text.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}

// OpenAIConfig captures the language model connection settings.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAICompleter requests JSON-object completions from an OpenAI-compatible endpoint.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewCompleter returns a nil Completer when no API key is configured, which keeps the engine on the fallback path.
func NewCompleter(config OpenAIConfig) Completer {
	completer := NewOpenAICompleter(config)
	if completer == nil {
		return nil
	}
	return completer
}

// NewOpenAICompleter returns nil when no API key is configured.
func NewOpenAICompleter(config OpenAIConfig) *OpenAICompleter {
	apiKey := strings.TrimSpace(config.APIKey)
	if apiKey == "" {
		return nil
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(config.BaseURL); baseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(baseURL, "/")
	}
	modelName := strings.TrimSpace(config.Model)
	if modelName == "" {
		modelName = DefaultModel
	}
	return &OpenAICompleter{
		client: openai.NewClientWithConfig(clientConfig),
		model:  modelName,
	}
}

func (completer *OpenAICompleter) Complete(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	response, err := completer.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: completer.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: completionTemperature,
		MaxTokens:   completionMaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(response.Choices) == 0 || strings.TrimSpace(response.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return response.Choices[0].Message.Content, nil
}
