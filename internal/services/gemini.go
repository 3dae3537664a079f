package services

import (
	"context"
	"log"

	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Gemini metadata generator
// Fallback provider used when no Groq key is configured.
// ---------------------------------------------------------------------------

const geminiMetadataModel = "gemini-2.0-flash"

type GeminiService struct {
	apiKey string
	model  string
}

// Ensure GeminiService implements MetadataService at compile time.
var _ MetadataService = (*GeminiService)(nil)

func NewGeminiService(apiKey string) *GeminiService {
	return &GeminiService{
		apiKey: apiKey,
		model:  geminiMetadataModel,
	}
}

// Describe generates a title and description for the text.
// Implements the MetadataService interface; any API failure falls back to
// text-derived metadata.
func (s *GeminiService) Describe(ctx context.Context, text string) Metadata {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Printf("[Gemini] Failed to create client, using fallback: %v", err)
		return fallbackMetadata(text)
	}

	resp, err := client.Models.GenerateContent(ctx, s.model, genai.Text(buildMetadataPrompt(text)), nil)
	if err != nil {
		log.Printf("[Gemini] Metadata request failed, using fallback: %v", err)
		return fallbackMetadata(text)
	}

	content := resp.Text()
	if content == "" {
		log.Printf("[Gemini] Metadata response was empty, using fallback")
		return fallbackMetadata(text)
	}

	return parseMetadataResponse(content, text)
}

// String identifies the provider in startup logs.
func (s *GeminiService) String() string {
	return "Gemini (" + s.model + ")"
}
