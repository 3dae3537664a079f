package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/readaloudhq/readaloud/internal/db"
	"github.com/readaloudhq/readaloud/internal/models"
	"github.com/readaloudhq/readaloud/internal/services"
	"github.com/readaloudhq/readaloud/internal/worker"
)

const (
	testAPIKey = "test-api-key"
	testPIN    = "4321"
)

// fakeStore is a minimal in-memory worker.Store for handler tests.
type fakeStore struct {
	mu   sync.Mutex
	gens map[uuid.UUID]*models.Generation
}

func newFakeStore() *fakeStore {
	return &fakeStore{gens: make(map[uuid.UUID]*models.Generation)}
}

func (s *fakeStore) CreateGeneration(_ context.Context, gen *models.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen.CreatedAt = time.Now()
	cp := *gen
	s.gens[gen.ID] = &cp
	return nil
}

func (s *fakeStore) GetGeneration(_ context.Context, id uuid.UUID) (*models.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen, ok := s.gens[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *gen
	return &cp, nil
}

func (s *fakeStore) ListGenerations(_ context.Context) ([]models.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Generation, 0, len(s.gens))
	for _, gen := range s.gens {
		out = append(out, *gen)
	}
	return out, nil
}

func (s *fakeStore) MarkCompleted(_ context.Context, id uuid.UUID, storagePath, fileURL string, urlExpiresAt time.Time, title, description *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen, ok := s.gens[id]
	if !ok || gen.Status != models.StatusProcessing {
		return nil
	}
	now := time.Now()
	gen.Status = models.StatusCompleted
	gen.StoragePath = &storagePath
	gen.FileURL = &fileURL
	gen.URLExpiresAt = &urlExpiresAt
	if gen.Title == nil {
		gen.Title = title
	}
	if gen.Description == nil {
		gen.Description = description
	}
	gen.CompletedAt = &now
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id uuid.UUID, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen, ok := s.gens[id]
	if !ok || gen.Status != models.StatusProcessing {
		return nil
	}
	now := time.Now()
	gen.Status = models.StatusFailed
	gen.Error = &errorMessage
	gen.CompletedAt = &now
	return nil
}

func (s *fakeStore) UpdateFileURL(_ context.Context, id uuid.UUID, fileURL string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen, ok := s.gens[id]; ok {
		gen.FileURL = &fileURL
		gen.URLExpiresAt = &expiresAt
	}
	return nil
}

func (s *fakeStore) DeleteGeneration(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.gens[id]; !ok {
		return db.ErrNotFound
	}
	delete(s.gens, id)
	return nil
}

type fakeObjects struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{blobs: make(map[string][]byte)}
}

func (o *fakeObjects) Upload(_ context.Context, path string, data []byte, _ string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.blobs[path] = data
	return nil
}

func (o *fakeObjects) Download(_ context.Context, path string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.blobs[path]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (o *fakeObjects) CreateSignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return "https://storage.example.com/sign/" + path + "?token=abc", nil
}

func (o *fakeObjects) Delete(_ context.Context, path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.blobs, path)
	return nil
}

type fakeTTS struct {
	delay time.Duration
	err   error
}

func (f *fakeTTS) GenerateSpeech(ctx context.Context, _, _ string) (*services.TTSResponse, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &services.TTSResponse{AudioData: []byte("fake-mp3"), Format: "mp3"}, nil
}

func newTestServer(t *testing.T, tts services.TTSService) *httptest.Server {
	t.Helper()
	w := worker.New(newFakeStore(), newFakeObjects(), tts, services.FallbackMetadataService{}, services.NewFFmpegService(), 25000, 5*time.Second)
	h := NewHandler(w, testPIN)
	router := NewRouter(h, RouterConfig{TTSAPIKey: testAPIKey})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func apiRequest(t *testing.T, server *httptest.Server, method, path string, body []byte) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func submitGeneration(t *testing.T, server *httptest.Server, text string) models.GenerateResponse {
	t.Helper()
	body, _ := json.Marshal(models.GenerateRequest{Text: text})
	resp := apiRequest(t, server, http.MethodPost, "/api/generate", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("generate returned %d", resp.StatusCode)
	}
	var out models.GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func pollUntilTerminal(t *testing.T, server *httptest.Server, jobID uuid.UUID) models.StatusResponse {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp := apiRequest(t, server, http.MethodGet, "/api/status/"+jobID.String(), nil)
		var status models.StatusResponse
		err := json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if status.Status != models.StatusProcessing {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("generation never settled")
	return models.StatusResponse{}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealthIsPublic(t *testing.T) {
	server := newTestServer(t, &fakeTTS{})

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health returned %d without auth", resp.StatusCode)
	}
}

func TestAPIAuth(t *testing.T) {
	server := newTestServer(t, &fakeTTS{})

	// No credentials
	resp, err := http.Get(server.URL + "/api/generations")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("missing key: got %d, want 401", resp.StatusCode)
	}

	// Wrong key
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/generations", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("wrong key: got %d, want 403", resp.StatusCode)
	}

	// X-API-Key works as an alternative to the bearer header
	req, _ = http.NewRequest(http.MethodGet, server.URL+"/api/generations", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("x-api-key: got %d, want 200", resp.StatusCode)
	}
}

func TestGenerateValidation(t *testing.T) {
	server := newTestServer(t, &fakeTTS{})

	tests := []struct {
		name string
		body string
	}{
		{"empty text", `{"text":""}`},
		{"whitespace text", `{"text":"   "}`},
		{"too long", `{"text":"` + strings.Repeat("a", 30000) + `"}`},
		{"unknown voice", `{"text":"hello","voice":"narrator"}`},
		{"malformed json", `{"text": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := apiRequest(t, server, http.MethodPost, "/api/generate", []byte(tt.body))
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("got %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestGenerateLifecycle(t *testing.T) {
	server := newTestServer(t, &fakeTTS{})

	out := submitGeneration(t, server, "Hello world, read this aloud.")
	if out.JobID == uuid.Nil {
		t.Fatal("missing job_id")
	}
	if out.Status != models.StatusProcessing {
		t.Errorf("initial status = %s, want processing", out.Status)
	}

	status := pollUntilTerminal(t, server, out.JobID)
	if status.Status != models.StatusCompleted {
		t.Fatalf("final status = %s (error %v)", status.Status, status.Error)
	}
	if status.MP3URL == nil || *status.MP3URL == "" {
		t.Error("completed status must carry mp3_url")
	}
	if status.OggURL == nil || !strings.Contains(*status.OggURL, "format=ogg") {
		t.Errorf("ogg_url = %v", status.OggURL)
	}
	if status.PlayURL == nil || *status.PlayURL != "/play/"+out.JobID.String() {
		t.Errorf("play_url = %v", status.PlayURL)
	}

	// The stored MP3 is served through the audio endpoint
	resp := apiRequest(t, server, http.MethodGet, "/api/audio/"+out.JobID.String(), nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audio returned %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("content type = %q", ct)
	}
	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if buf.String() != "fake-mp3" {
		t.Errorf("audio body = %q", buf.String())
	}
}

func TestStatusErrors(t *testing.T) {
	server := newTestServer(t, &fakeTTS{})

	resp := apiRequest(t, server, http.MethodGet, "/api/status/not-a-uuid", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid id: got %d, want 400", resp.StatusCode)
	}

	resp = apiRequest(t, server, http.MethodGet, "/api/status/"+uuid.NewString(), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown id: got %d, want 404", resp.StatusCode)
	}
}

func TestAudioErrors(t *testing.T) {
	// Slow provider keeps the job in processing for the duration of the test
	server := newTestServer(t, &fakeTTS{delay: 2 * time.Second})

	out := submitGeneration(t, server, "Hello")

	resp := apiRequest(t, server, http.MethodGet, "/api/audio/"+out.JobID.String(), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("processing job: got %d, want 404", resp.StatusCode)
	}

	resp = apiRequest(t, server, http.MethodGet, "/api/audio/"+out.JobID.String()+"?format=flac", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad format: got %d, want 400", resp.StatusCode)
	}

	resp = apiRequest(t, server, http.MethodGet, "/api/audio/"+uuid.NewString(), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown id: got %d, want 404", resp.StatusCode)
	}
}

func TestFailedGenerationStatus(t *testing.T) {
	server := newTestServer(t, &fakeTTS{err: errors.New("tts generation failed: model crashed")})

	out := submitGeneration(t, server, "Hello")
	status := pollUntilTerminal(t, server, out.JobID)

	if status.Status != models.StatusFailed {
		t.Fatalf("status = %s, want failed", status.Status)
	}
	if status.Error == nil || !strings.Contains(*status.Error, "model crashed") {
		t.Errorf("error = %v", status.Error)
	}
	if status.MP3URL != nil || status.OggURL != nil {
		t.Error("failed generation must not expose audio URLs")
	}
}

func TestListAndDelete(t *testing.T) {
	server := newTestServer(t, &fakeTTS{})

	out := submitGeneration(t, server, "Hello")
	pollUntilTerminal(t, server, out.JobID)

	resp := apiRequest(t, server, http.MethodGet, "/api/generations", nil)
	var list models.ListGenerationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	resp.Body.Close()
	if list.Total != 1 || len(list.Generations) != 1 {
		t.Fatalf("total = %d, items = %d", list.Total, len(list.Generations))
	}
	if list.Generations[0].ID != out.JobID {
		t.Error("listed id mismatch")
	}

	resp = apiRequest(t, server, http.MethodDelete, "/api/generations/"+out.JobID.String(), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: got %d, want 204", resp.StatusCode)
	}

	resp = apiRequest(t, server, http.MethodGet, "/api/status/"+out.JobID.String(), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status after delete: got %d, want 404", resp.StatusCode)
	}

	resp = apiRequest(t, server, http.MethodDelete, "/api/generations/"+out.JobID.String(), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("double delete: got %d, want 404", resp.StatusCode)
	}
}

func TestHomePINGate(t *testing.T) {
	server := newTestServer(t, &fakeTTS{})

	// No PIN: the prompt page, never the playlist
	resp, err := http.Get(server.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body := new(bytes.Buffer)
	body.ReadFrom(resp.Body)
	resp.Body.Close()
	if !strings.Contains(body.String(), `name="pin"`) {
		t.Error("expected the PIN prompt without credentials")
	}

	// Wrong PIN stays on the prompt
	resp, err = http.Get(server.URL + "/?pin=0000")
	if err != nil {
		t.Fatal(err)
	}
	body.Reset()
	body.ReadFrom(resp.Body)
	resp.Body.Close()
	if !strings.Contains(body.String(), `name="pin"`) {
		t.Error("wrong PIN should not unlock the playlist")
	}

	// Correct PIN shows the playlist and sets the cookie
	resp, err = http.Get(server.URL + "/?pin=" + testPIN)
	if err != nil {
		t.Fatal(err)
	}
	body.Reset()
	body.ReadFrom(resp.Body)
	if strings.Contains(body.String(), `name="pin"`) {
		t.Error("correct PIN should unlock the playlist")
	}
	var pinCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "playlist_pin" {
			pinCookie = c
		}
	}
	resp.Body.Close()
	if pinCookie == nil {
		t.Fatal("expected the playlist_pin cookie to be set")
	}
	if !pinCookie.HttpOnly || pinCookie.MaxAge != 86400*30 {
		t.Errorf("cookie attrs: HttpOnly=%v MaxAge=%d", pinCookie.HttpOnly, pinCookie.MaxAge)
	}

	// The cookie alone authenticates subsequent requests
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/", nil)
	req.AddCookie(pinCookie)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	body.Reset()
	body.ReadFrom(resp.Body)
	resp.Body.Close()
	if strings.Contains(body.String(), `name="pin"`) {
		t.Error("cookie should unlock the playlist")
	}
}

func TestPlayerPageIsPublic(t *testing.T) {
	server := newTestServer(t, &fakeTTS{})

	out := submitGeneration(t, server, "Hello world")
	pollUntilTerminal(t, server, out.JobID)

	// No PIN, no API key
	resp, err := http.Get(server.URL + "/play/" + out.JobID.String())
	if err != nil {
		t.Fatal(err)
	}
	body := new(bytes.Buffer)
	body.ReadFrom(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("player page returned %d", resp.StatusCode)
	}
	if !strings.Contains(body.String(), "<audio") {
		t.Error("player page should embed an audio element for a completed generation")
	}

	resp, err = http.Get(server.URL + "/play/" + uuid.NewString())
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown generation: got %d, want 404", resp.StatusCode)
	}
}
