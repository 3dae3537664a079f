package services

import (
	"context"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"
)

// ---------------------------------------------------------------------------
// Groq metadata generator
// Groq serves an OpenAI-compatible chat completions API, so the go-openai
// client works against it with a custom base URL.
// ---------------------------------------------------------------------------

const (
	groqBaseURL = "https://api.groq.com/openai/v1"
	groqModel   = "openai/gpt-oss-120b"
)

type GroqService struct {
	client *openai.Client
}

// Ensure GroqService implements MetadataService at compile time.
var _ MetadataService = (*GroqService)(nil)

func NewGroqService(apiKey string) *GroqService {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL

	return &GroqService{
		client: openai.NewClientWithConfig(cfg),
	}
}

// Describe generates a title and description for the text.
// Implements the MetadataService interface; any API failure falls back to
// text-derived metadata.
func (s *GroqService) Describe(ctx context.Context, text string) Metadata {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: groqModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildMetadataPrompt(text),
			},
		},
		Temperature: 0.7,
		MaxTokens:   200,
	})

	if err != nil {
		log.Printf("[Groq] Metadata request failed, using fallback: %v", err)
		return fallbackMetadata(text)
	}

	if len(resp.Choices) == 0 {
		log.Printf("[Groq] Metadata response had no choices, using fallback")
		return fallbackMetadata(text)
	}

	return parseMetadataResponse(resp.Choices[0].Message.Content, text)
}

// String identifies the provider in startup logs.
func (s *GroqService) String() string {
	return fmt.Sprintf("Groq (%s)", groqModel)
}
