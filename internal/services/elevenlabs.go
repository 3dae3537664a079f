package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ---------------------------------------------------------------------------
// ElevenLabs Text-to-Speech Service
// Synchronous fallback provider — used when no RunPod endpoint is configured.
// Model: eleven_flash_v2_5 (Flash v2.5 — fast, 32 languages, ~75ms latency)
// ---------------------------------------------------------------------------

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io"
	elevenLabsDefaultModel = "eleven_flash_v2_5"
	elevenLabsDefaultVoice = "pNInz6obpgDQGcFmaJgB" // Default voice ID
	elevenLabsOutputFormat = "mp3_44100_128"        // High-quality MP3
)

// elevenLabsVoiceMap maps the API's enumerated voice names to ElevenLabs
// voice IDs with a comparable character. Unmapped names fall back to the
// service-level default.
var elevenLabsVoiceMap = map[string]string{
	"af_heart":   "EXAVITQu4vr4xnSDxMaL",
	"af_bella":   "21m00Tcm4TlvDq8ikWAM",
	"af_nicole":  "piTKgcLEGmPE4e6mEKli",
	"am_adam":    "pNInz6obpgDQGcFmaJgB",
	"am_michael": "flq6f7yk4E4fJM5XTYuZ",
	"am_puck":    "TxGEqnHWrfWFTfGW9XjX",
	"bf_emma":    "ThT5KcBeYPX3keUQqHPh",
	"bm_george":  "JBFqnCBsd6RMkjVDRZzb",
}

// ElevenLabsService handles text-to-speech via ElevenLabs API.
type ElevenLabsService struct {
	apiKey  string
	voiceID string
	modelID string
	client  *http.Client
}

// Ensure ElevenLabsService implements TTSService at compile time.
var _ TTSService = (*ElevenLabsService)(nil)

// NewElevenLabsService creates a new ElevenLabs TTS service.
// defaultVoiceID overrides the built-in default when non-empty.
func NewElevenLabsService(apiKey, defaultVoiceID string) *ElevenLabsService {
	if defaultVoiceID == "" {
		defaultVoiceID = elevenLabsDefaultVoice
	}
	return &ElevenLabsService{
		apiKey:  apiKey,
		voiceID: defaultVoiceID,
		modelID: elevenLabsDefaultModel,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

// ---------------------------------------------------------------------------
// Request types
// ---------------------------------------------------------------------------

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// GenerateSpeech converts text to speech using ElevenLabs.
// Implements the TTSService interface. voice is an enumerated voice name,
// mapped to an ElevenLabs voice ID.
func (s *ElevenLabsService) GenerateSpeech(ctx context.Context, text, voice string) (*TTSResponse, error) {
	effectiveVoice := s.voiceID
	if mapped, ok := elevenLabsVoiceMap[voice]; ok {
		effectiveVoice = mapped
	}

	reqBody := elevenLabsRequest{
		Text:    CleanText(text),
		ModelID: s.modelID,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       0.60, // Moderate stability — allows some emotional range
			SimilarityBoost: 0.80, // High voice consistency
			Style:           0.35, // Mild style exaggeration for natural delivery
			UseSpeakerBoost: true,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ElevenLabs request: %w", err)
	}

	// Build URL: POST /v1/text-to-speech/{voice_id}?output_format=mp3_44100_128
	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		elevenLabsBaseURL, effectiveVoice, elevenLabsOutputFormat)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create ElevenLabs request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	log.Printf("[ElevenLabs] Generating speech (voice=%s, voiceID=%s, model=%s, textLen=%d)",
		voice, effectiveVoice, s.modelID, len(text))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ElevenLabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ElevenLabs returned status %d: %s", resp.StatusCode, string(body))
	}

	// Read audio data — the response body IS the audio file
	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ElevenLabs audio response: %w", err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("ElevenLabs returned empty audio")
	}

	log.Printf("[ElevenLabs] Speech generated (%d bytes)", len(audioData))

	return &TTSResponse{
		AudioData: audioData,
		Format:    "mp3",
	}, nil
}
