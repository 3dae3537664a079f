package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAudioObjectPath(t *testing.T) {
	id := uuid.New()
	if got := AudioObjectPath(id); got != id.String()+".mp3" {
		t.Errorf("AudioObjectPath = %q", got)
	}
}

func TestUpload(t *testing.T) {
	var gotPath, gotAuth, gotUpsert string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotUpsert = r.Header.Get("x-upsert")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := New(server.URL, "service-key", "generations")

	err := s.Upload(context.Background(), "abc.mp3", []byte("audio"), "audio/mpeg")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if gotPath != "/storage/v1/object/generations/abc.mp3" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer service-key" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotUpsert != "true" {
		t.Errorf("x-upsert = %q", gotUpsert)
	}
	if string(gotBody) != "audio" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestUploadRetriesOnServerError(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := New(server.URL, "key", "generations")

	if err := s.Upload(context.Background(), "x.mp3", []byte("a"), "audio/mpeg"); err != nil {
		t.Fatalf("upload should succeed after a retry: %v", err)
	}
	if atomic.LoadInt32(&attempts) != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestUploadDoesNotRetryClientError(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	s := New(server.URL, "key", "generations")

	if err := s.Upload(context.Background(), "x.mp3", []byte("a"), "audio/mpeg"); err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("403 must not be retried, got %d attempts", attempts)
	}
}

func TestDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/v1/object/generations/abc.mp3" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("stored-audio"))
	}))
	defer server.Close()

	s := New(server.URL, "key", "generations")

	data, err := s.Download(context.Background(), "abc.mp3")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(data) != "stored-audio" {
		t.Errorf("data = %q", data)
	}
}

func TestCreateSignedURL(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/storage/v1/object/sign/generations/abc.mp3" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprint(w, `{"signedURL":"/object/sign/generations/abc.mp3?token=tok"}`)
	}))
	defer server.Close()

	s := New(server.URL, "key", "generations")

	url, err := s.CreateSignedURL(context.Background(), "abc.mp3", SignedURLTTL)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	want := server.URL + "/storage/v1/object/sign/generations/abc.mp3?token=tok"
	if url != want {
		t.Errorf("url = %q, want %q", url, want)
	}

	// The TTL travels as whole seconds
	wantExpiry := fmt.Sprintf(`{"expiresIn": %d}`, int((14 * 24 * time.Hour).Seconds()))
	if gotBody != wantExpiry {
		t.Errorf("body = %q, want %q", gotBody, wantExpiry)
	}
}

func TestDelete(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	s := New(server.URL, "key", "generations")

	if err := s.Delete(context.Background(), "abc.mp3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/storage/v1/object/generations/abc.mp3" {
		t.Errorf("got %s %s", gotMethod, gotPath)
	}
}

func TestRetryDelayBounds(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := retryDelay(attempt)
		if d < baseRetryDelay {
			t.Errorf("attempt %d: delay %v below base", attempt, d)
		}
		// Cap plus full jitter
		if d > maxRetryDelay+maxRetryDelay/4 {
			t.Errorf("attempt %d: delay %v above cap", attempt, d)
		}
	}
}

func TestIsRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 502, 503, 504} {
		if !isRetryableStatus(code) {
			t.Errorf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 413} {
		if isRetryableStatus(code) {
			t.Errorf("status %d should not be retryable", code)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	if !isRetryableError(fmt.Errorf("read tcp: connection reset by peer")) {
		t.Error("connection reset should be retryable")
	}
	if isRetryableError(fmt.Errorf("certificate signed by unknown authority")) {
		t.Error("tls error should not be retryable")
	}
	if isRetryableError(nil) {
		t.Error("nil error should not be retryable")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	long := strings.Repeat("x", 300)
	got := truncate(long, 200)
	if len(got) != 203 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncate length = %d", len(got))
	}
}
