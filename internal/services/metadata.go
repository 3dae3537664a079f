package services

import (
	"context"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// MetadataService — common interface for title/description generators
// Metadata is best-effort: implementations never return an error, they fall
// back to text-derived metadata instead. A generation must never fail because
// its title could not be produced.
// ---------------------------------------------------------------------------

const (
	maxTitleLen       = 60
	maxDescriptionLen = 150
	metadataPreview   = 1000 // Characters of the text sent to the model
)

// Metadata is a short human-readable summary of a submitted text.
type Metadata struct {
	Title       string
	Description string
}

// MetadataService produces a title and description for a text.
type MetadataService interface {
	Describe(ctx context.Context, text string) Metadata
}

// FallbackMetadataService derives metadata from the text alone, with no
// remote calls. Used when no completion API key is configured.
type FallbackMetadataService struct{}

var _ MetadataService = (*FallbackMetadataService)(nil)

func (FallbackMetadataService) Describe(_ context.Context, text string) Metadata {
	return fallbackMetadata(text)
}

func (FallbackMetadataService) String() string {
	return "text-derived fallback"
}

// buildMetadataPrompt renders the completion prompt for a text preview.
func buildMetadataPrompt(text string) string {
	preview := text
	if runes := []rune(preview); len(runes) > metadataPreview {
		preview = string(runes[:metadataPreview]) + "..."
	}

	return fmt.Sprintf(`Based on the following text, generate:
1. A short, catchy title (max %d characters)
2. A brief description (max %d characters)

Text:
%s

Respond in exactly this format (no markdown, no quotes):
TITLE: [your title here]
DESCRIPTION: [your description here]`, maxTitleLen, maxDescriptionLen, preview)
}

// parseMetadataResponse extracts TITLE:/DESCRIPTION: lines from a model
// response, filling any gap from the original text.
func parseMetadataResponse(content, originalText string) Metadata {
	var title, description string

	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		if strings.HasPrefix(upper, "TITLE:") {
			title = strings.TrimSpace(line[len("TITLE:"):])
		} else if strings.HasPrefix(upper, "DESCRIPTION:") {
			description = strings.TrimSpace(line[len("DESCRIPTION:"):])
		}
	}

	fallback := fallbackMetadata(originalText)
	if title == "" {
		title = fallback.Title
	}
	if description == "" {
		description = fallback.Description
	}

	return Metadata{
		Title:       truncateRunes(title, maxTitleLen),
		Description: truncateRunes(description, maxDescriptionLen),
	}
}

// fallbackMetadata derives a title and description from the text itself:
// first line for the title, leading characters for the description.
func fallbackMetadata(text string) Metadata {
	firstLine := strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])

	return Metadata{
		Title:       ellipsize(firstLine, maxTitleLen),
		Description: ellipsize(text, maxDescriptionLen),
	}
}

func ellipsize(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
