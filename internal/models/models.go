package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Enums
type GenerationStatus string

const (
	StatusProcessing GenerationStatus = "processing"
	StatusCompleted  GenerationStatus = "completed"
	StatusFailed     GenerationStatus = "failed"
)

// Voice identifiers accepted by the synthesis endpoint (Kokoro voice packs).
const DefaultVoice = "af_heart"

var validVoices = map[string]bool{
	"af_heart":   true,
	"af_bella":   true,
	"af_nicole":  true,
	"am_adam":    true,
	"am_michael": true,
	"am_puck":    true,
	"bf_emma":    true,
	"bm_george":  true,
}

// IsValidVoice reports whether v names a known synthesis voice.
func IsValidVoice(v string) bool {
	return validVoices[v]
}

// Voices returns the accepted voice identifiers, sorted for stable rendering.
func Voices() []string {
	out := make([]string, 0, len(validVoices))
	for v := range validVoices {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Models

// Generation is one text-to-audio request and its tracked lifecycle.
// A row is created with status=processing and mutated exactly once more,
// by the background workflow, to a terminal state.
type Generation struct {
	ID           uuid.UUID        `json:"id"`
	Title        *string          `json:"title,omitempty"`
	Description  *string          `json:"description,omitempty"`
	TextContent  string           `json:"text_content"`
	Voice        string           `json:"voice"`
	Status       GenerationStatus `json:"status"`
	StoragePath  *string          `json:"storage_path,omitempty"`
	FileURL      *string          `json:"file_url,omitempty"`
	URLExpiresAt *time.Time       `json:"url_expires_at,omitempty"`
	Error        *string          `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the generation has settled.
func (g *Generation) IsTerminal() bool {
	return g.Status == StatusCompleted || g.Status == StatusFailed
}

// DTOs for API requests/responses

type GenerateRequest struct {
	Text  string  `json:"text"`
	Title *string `json:"title,omitempty"`
	Voice *string `json:"voice,omitempty"`
}

type GenerateResponse struct {
	JobID  uuid.UUID        `json:"job_id"`
	Status GenerationStatus `json:"status"`
}

type StatusResponse struct {
	Status  GenerationStatus `json:"status"`
	PlayURL *string          `json:"play_url"`
	MP3URL  *string          `json:"mp3_url"`
	OggURL  *string          `json:"ogg_url"`
	Error   *string          `json:"error"`
}

// GenerationSummary is a lightweight DTO for the playlist listing — no text body,
// just metadata and playback links.
type GenerationSummary struct {
	ID          uuid.UUID        `json:"id"`
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Status      GenerationStatus `json:"status"`
	PlayURL     string           `json:"play_url"`
	Error       *string          `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

type ListGenerationsResponse struct {
	Generations []GenerationSummary `json:"generations"`
	Total       int                 `json:"total"`
}

// NormalizeText trims surrounding whitespace from submitted text.
func NormalizeText(text string) string {
	return strings.TrimSpace(text)
}
