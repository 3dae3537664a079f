package services

import (
	"context"
	"errors"
	"strings"
)

// ---------------------------------------------------------------------------
// TTSService — common interface for text-to-speech providers
// Both RunPod (hosted Kokoro) and ElevenLabs implement this interface so the
// worker can use whichever is configured without knowing the underlying provider.
// ---------------------------------------------------------------------------

// ErrTimeout is returned when a provider-side job does not reach a terminal
// status within the client's outer ceiling.
var ErrTimeout = errors.New("tts generation timed out")

// TTSResponse is the common response type from any TTS provider.
type TTSResponse struct {
	AudioData []byte
	Format    string // "mp3", "wav", etc.
}

// TTSService is the interface that any TTS provider must implement.
type TTSService interface {
	// GenerateSpeech converts text to audio. voice is one of the enumerated
	// voice identifiers (see models.IsValidVoice); providers map it to their
	// own voice selection.
	GenerateSpeech(ctx context.Context, text, voice string) (*TTSResponse, error)
}

// CleanText strips characters that trip up the synthesizer.
func CleanText(text string) string {
	return strings.ReplaceAll(text, "*", "")
}
