package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ---------------------------------------------------------------------------
// FFmpegService — streamed audio container conversion
// Conversions run stdin→stdout through ffmpeg pipes; nothing touches disk and
// results are never cached (recomputed on every request for that format).
// ---------------------------------------------------------------------------

// ErrConversion is returned when ffmpeg fails to transcode the input.
var ErrConversion = errors.New("audio conversion failed")

const stderrExcerptLen = 200

type FFmpegService struct {
	binary string
}

func NewFFmpegService() *FFmpegService {
	return &FFmpegService{binary: "ffmpeg"}
}

// ConvertMP3ToOggOpus converts MP3 bytes to an OGG container with the Opus
// codec. Telegram voice messages and several players require OGG/Opus.
func (s *FFmpegService) ConvertMP3ToOggOpus(ctx context.Context, mp3Bytes []byte) ([]byte, error) {
	args := []string{
		"-i", "pipe:0", // Read from stdin
		"-c:a", "libopus", // Opus codec
		"-b:a", "128k", // Bitrate
		"-vn",       // No video
		"-f", "ogg", // OGG container
		"pipe:1",    // Write to stdout
	}

	return s.run(ctx, args, mp3Bytes)
}

// ConvertWAVToMP3 converts WAV bytes to MP3.
func (s *FFmpegService) ConvertWAVToMP3(ctx context.Context, wavBytes []byte) ([]byte, error) {
	args := []string{
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", "192k",
		"-f", "mp3",
		"pipe:1",
	}

	return s.run(ctx, args, wavBytes)
}

func (s *FFmpegService) run(ctx context.Context, args []string, input []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		excerpt := strings.TrimSpace(stderr.String())
		if len(excerpt) > stderrExcerptLen {
			excerpt = excerpt[:stderrExcerptLen]
		}
		return nil, fmt.Errorf("%w: %s", ErrConversion, excerpt)
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: ffmpeg produced no output", ErrConversion)
	}

	return stdout.Bytes(), nil
}
