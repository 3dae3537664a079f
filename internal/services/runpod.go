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
// RunPod Text-to-Speech Service
// Talks to a RunPod serverless endpoint hosting a Kokoro TTS worker.
// Follows a deferred request pattern: submit job → poll by run id → download.
// ---------------------------------------------------------------------------

const (
	runpodInitialDelay    = 3 * time.Second  // Wait before first poll (jobs typically take 30-60s)
	runpodPollInterval    = 5 * time.Second  // Fixed interval between status polls
	runpodMaxPollDuration = 5 * time.Minute  // Outer ceiling before declaring a timeout
	runpodRequestTimeout  = 30 * time.Second // Per-call HTTP timeout (not the full poll cycle)
	runpodDownloadTimeout = 60 * time.Second // Timeout for fetching the produced audio
)

// RunPodService handles text-to-speech via a RunPod serverless Kokoro endpoint.
type RunPodService struct {
	apiToken string
	endpoint string
	speed    float64
	client   *http.Client

	// Poll timings are fields so tests can shrink them.
	initialDelay    time.Duration
	pollInterval    time.Duration
	maxPollDuration time.Duration
}

// Ensure RunPodService implements TTSService at compile time.
var _ TTSService = (*RunPodService)(nil)

// NewRunPodService creates a new RunPod TTS service.
// endpoint is the full serverless endpoint base URL, e.g.
// https://api.runpod.ai/v2/<endpoint-id>
func NewRunPodService(apiToken, endpoint string, speed float64) *RunPodService {
	if speed <= 0 {
		speed = 1.0
	}
	return &RunPodService{
		apiToken:        apiToken,
		endpoint:        endpoint,
		speed:           speed,
		client:          &http.Client{Timeout: runpodRequestTimeout},
		initialDelay:    runpodInitialDelay,
		pollInterval:    runpodPollInterval,
		maxPollDuration: runpodMaxPollDuration,
	}
}

// ---------------------------------------------------------------------------
// Request / Response types
// ---------------------------------------------------------------------------

// runpodRunRequest is the body for POST {endpoint}/run
type runpodRunRequest struct {
	Input runpodRunInput `json:"input"`
}

type runpodRunInput struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
}

// runpodRunResponse is the response from POST {endpoint}/run
type runpodRunResponse struct {
	ID string `json:"id"`
}

// runpodStatusResponse is the response from POST {endpoint}/status/{id}.
//
// Status is one of IN_QUEUE, IN_PROGRESS, COMPLETED, FAILED, ERROR.
// On COMPLETED the output carries a download URL for the produced MP3.
type runpodStatusResponse struct {
	Status string `json:"status"`
	Output struct {
		DownloadURL string `json:"download_url"`
	} `json:"output"`
	Error string `json:"error"`
}

// GenerateSpeech converts text to speech on the RunPod endpoint.
// Implements the TTSService interface.
//
// The provider processes asynchronously, so this submits a run, polls the
// status endpoint at a fixed interval until a terminal provider status, and
// downloads the result. Any provider-reported failure or a poll past the
// outer ceiling is returned as an error.
func (s *RunPodService) GenerateSpeech(ctx context.Context, text, voice string) (*TTSResponse, error) {
	runID, err := s.submitRun(ctx, CleanText(text), voice)
	if err != nil {
		return nil, fmt.Errorf("failed to submit tts job: %w", err)
	}

	log.Printf("[RunPod] Job submitted (run_id=%s, voice=%s, textLen=%d)", runID, voice, len(text))

	downloadURL, err := s.pollForResult(ctx, runID)
	if err != nil {
		return nil, err
	}

	audioData, err := s.downloadAudio(ctx, downloadURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download generated audio: %w", err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("runpod returned empty audio (run_id=%s)", runID)
	}

	log.Printf("[RunPod] Audio downloaded (%d bytes, run_id=%s)", len(audioData), runID)

	return &TTSResponse{
		AudioData: audioData,
		Format:    "mp3",
	}, nil
}

// submitRun sends the initial generation request and returns the run id.
func (s *RunPodService) submitRun(ctx context.Context, text, voice string) (string, error) {
	reqBody := runpodRunRequest{
		Input: runpodRunInput{
			Text:  text,
			Voice: voice,
			Speed: s.speed,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.endpoint+"/run", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("runpod returned status %d: %s", resp.StatusCode, string(body))
	}

	var runResp runpodRunResponse
	if err := json.Unmarshal(body, &runResp); err != nil {
		return "", fmt.Errorf("failed to parse run response: %w (body: %s)", err, string(body))
	}

	if runResp.ID == "" {
		return "", fmt.Errorf("no run id in response: %s", string(body))
	}

	return runResp.ID, nil
}

// pollForResult polls the status endpoint until the run reaches a terminal
// provider status, returning the download URL on completion.
//
// Polling strategy: a short initial delay (synthesis never finishes instantly),
// then a fixed 5s interval up to a 5-minute ceiling. A transient poll error is
// logged and retried on the next tick rather than failing the run.
func (s *RunPodService) pollForResult(ctx context.Context, runID string) (string, error) {
	deadline := time.Now().Add(s.maxPollDuration)
	pollCount := 0

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("tts generation cancelled during initial wait: %w", ctx.Err())
	case <-time.After(s.initialDelay):
	}

	for {
		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w after %v (polled %d times, run_id=%s)", ErrTimeout, s.maxPollDuration, pollCount, runID)
		}

		pollCount++

		result, err := s.getRunStatus(ctx, runID)
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("tts generation cancelled: %w", ctx.Err())
			}
			log.Printf("[RunPod] Poll %d failed (retrying): %v", pollCount, err)
		} else {
			switch result.Status {
			case "COMPLETED":
				if result.Output.DownloadURL == "" {
					return "", fmt.Errorf("runpod job completed but returned no download URL (run_id=%s)", runID)
				}
				log.Printf("[RunPod] Poll %d: completed (run_id=%s)", pollCount, runID)
				return result.Output.DownloadURL, nil

			case "FAILED", "ERROR":
				errMsg := result.Error
				if errMsg == "" {
					errMsg = "unknown error"
				}
				return "", fmt.Errorf("tts generation failed: %s (run_id=%s)", errMsg, runID)

			default:
				log.Printf("[RunPod] Poll %d: status=%s (next poll in %v)", pollCount, result.Status, s.pollInterval)
			}
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("tts generation cancelled: %w", ctx.Err())
		case <-time.After(s.pollInterval):
		}
	}
}

// getRunStatus fetches the current provider-side status of a run.
func (s *RunPodService) getRunStatus(ctx context.Context, runID string) (*runpodStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/status/%s", s.endpoint, runID), bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("runpod returned status %d: %s", resp.StatusCode, string(body))
	}

	var result runpodStatusResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w (body: %s)", err, string(body))
	}

	return &result, nil
}

// downloadAudio fetches the produced audio bytes from the given URL.
func (s *RunPodService) downloadAudio(ctx context.Context, downloadURL string) ([]byte, error) {
	downloadClient := &http.Client{Timeout: runpodDownloadTimeout}

	req, err := http.NewRequestWithContext(ctx, "GET", downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audio download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	return data, nil
}
