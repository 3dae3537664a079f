package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/readaloudhq/readaloud/internal/models"
	"github.com/readaloudhq/readaloud/internal/services"
	"github.com/readaloudhq/readaloud/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Validation errors, surfaced synchronously before a job record exists.
var (
	ErrEmptyText    = errors.New("text is required")
	ErrTextTooLong  = errors.New("text exceeds maximum length")
	ErrInvalidVoice = errors.New("unknown voice")
)

// ErrNotReady is returned when audio is requested for a generation that has
// not completed.
var ErrNotReady = errors.New("generation not ready")

// Store is the durable record store for generations.
// Satisfied by *db.DB.
type Store interface {
	CreateGeneration(ctx context.Context, gen *models.Generation) error
	GetGeneration(ctx context.Context, id uuid.UUID) (*models.Generation, error)
	ListGenerations(ctx context.Context) ([]models.Generation, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, storagePath, fileURL string, urlExpiresAt time.Time, title, description *string) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
	UpdateFileURL(ctx context.Context, id uuid.UUID, fileURL string, expiresAt time.Time) error
	DeleteGeneration(ctx context.Context, id uuid.UUID) error
}

// ObjectStore is the binary store for produced audio.
// Satisfied by *storage.Storage.
type ObjectStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	Download(ctx context.Context, path string) ([]byte, error)
	CreateSignedURL(ctx context.Context, path string, expiresIn time.Duration) (string, error)
	Delete(ctx context.Context, path string) error
}

// Worker is the generation job lifecycle manager. It creates jobs, runs their
// completion workflows in background goroutines, and serves concurrent status
// reads. All state lives in the store; terminal transitions are single atomic
// writes, so readers observe either the pre- or post-transition record and
// never a partial update.
type Worker struct {
	store     Store
	objects   ObjectStore
	tts       services.TTSService
	meta      services.MetadataService
	converter *services.FFmpegService

	maxTextLength int
	jobTimeout    time.Duration
}

func New(store Store, objects ObjectStore, tts services.TTSService, meta services.MetadataService, converter *services.FFmpegService, maxTextLength int, jobTimeout time.Duration) *Worker {
	if meta == nil {
		meta = services.FallbackMetadataService{}
	}
	return &Worker{
		store:         store,
		objects:       objects,
		tts:           tts,
		meta:          meta,
		converter:     converter,
		maxTextLength: maxTextLength,
		jobTimeout:    jobTimeout,
	}
}

// PlayPath returns the same-origin public player path for a generation.
func PlayPath(id uuid.UUID) string {
	return "/play/" + id.String()
}

// AudioPath returns the same-origin download path for a generation in the
// given format.
func AudioPath(id uuid.UUID, format string) string {
	return fmt.Sprintf("/api/audio/%s?format=%s", id, format)
}

// CreateJob validates the input, persists a processing record, and schedules
// the completion workflow. It returns as soon as the record exists — callers
// never block on generation.
func (w *Worker) CreateJob(ctx context.Context, text string, title *string, voice string) (*models.Generation, error) {
	text = models.NormalizeText(text)

	if text == "" {
		return nil, ErrEmptyText
	}
	if n := utf8.RuneCountInString(text); n > w.maxTextLength {
		return nil, fmt.Errorf("%w (max %d chars, got %d)", ErrTextTooLong, w.maxTextLength, n)
	}
	if voice == "" {
		voice = models.DefaultVoice
	}
	if !models.IsValidVoice(voice) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVoice, voice)
	}

	gen := &models.Generation{
		ID:          uuid.New(),
		Title:       title,
		TextContent: text,
		Voice:       voice,
		Status:      models.StatusProcessing,
	}

	if err := w.store.CreateGeneration(ctx, gen); err != nil {
		return nil, fmt.Errorf("failed to create generation record: %w", err)
	}

	// Detached from the request context: the workflow outlives the HTTP
	// response that created the job and reports back only through the store.
	go w.runCompletionWorkflow(gen.ID, text, voice)

	return gen, nil
}

// runCompletionWorkflow drives one generation to its terminal state: synthesize
// audio, generate metadata, store the result, and apply exactly one terminal
// transition. There are no retries — a failed generation is permanent.
func (w *Worker) runCompletionWorkflow(id uuid.UUID, text, voice string) {
	ctx, cancel := context.WithTimeout(context.Background(), w.jobTimeout)
	defer cancel()

	log.Printf("[Worker] Generation %s started (voice=%s, textLen=%d)", id, voice, len(text))

	// Synthesis and metadata run concurrently. Metadata is best-effort and
	// never contributes an error to the group.
	var (
		audio *services.TTSResponse
		meta  services.Metadata
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		resp, err := w.tts.GenerateSpeech(gctx, text, voice)
		if err != nil {
			return err
		}
		audio = resp
		return nil
	})

	g.Go(func() error {
		meta = w.meta.Describe(gctx, text)
		return nil
	})

	if err := g.Wait(); err != nil {
		w.fail(id, err.Error())
		return
	}

	path := storage.AudioObjectPath(id)

	if err := w.objects.Upload(ctx, path, audio.AudioData, "audio/mpeg"); err != nil {
		w.fail(id, fmt.Sprintf("failed to store audio: %v", err))
		return
	}

	fileURL, err := w.objects.CreateSignedURL(ctx, path, storage.SignedURLTTL)
	if err != nil {
		w.fail(id, fmt.Sprintf("failed to create retrieval URL: %v", err))
		return
	}

	expiresAt := time.Now().Add(storage.SignedURLTTL)

	// Generated metadata only fills gaps — an explicitly supplied title was
	// written at creation and the store keeps it.
	var title, description *string
	if meta.Title != "" {
		title = &meta.Title
	}
	if meta.Description != "" {
		description = &meta.Description
	}

	if err := w.store.MarkCompleted(ctx, id, path, fileURL, expiresAt, title, description); err != nil {
		log.Printf("[Worker] Generation %s: terminal update failed: %v", id, err)
		return
	}

	log.Printf("[Worker] Generation %s completed (%d bytes)", id, len(audio.AudioData))
}

func (w *Worker) fail(id uuid.UUID, message string) {
	// Terminal writes get their own context: the workflow context may already
	// be past its deadline, and a timed-out job must still settle to failed.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.store.MarkFailed(ctx, id, message); err != nil {
		log.Printf("[Worker] Generation %s: failed to record failure: %v", id, err)
		return
	}

	log.Printf("[Worker] Generation %s failed: %s", id, message)
}

// Status reads the current state of a generation. Safe to call concurrently
// with the background workflow; its only side effect is refreshing an expired
// signed URL. The play URL is always constructible from the id, so it is
// populated for every known generation regardless of status.
func (w *Worker) Status(ctx context.Context, id uuid.UUID) (*models.StatusResponse, error) {
	gen, err := w.store.GetGeneration(ctx, id)
	if err != nil {
		return nil, err
	}

	playURL := PlayPath(gen.ID)
	resp := &models.StatusResponse{
		Status:  gen.Status,
		PlayURL: &playURL,
	}

	switch gen.Status {
	case models.StatusCompleted:
		mp3URL := w.freshFileURL(ctx, gen)
		oggURL := AudioPath(gen.ID, "ogg")
		resp.MP3URL = &mp3URL
		resp.OggURL = &oggURL

	case models.StatusFailed:
		resp.Error = gen.Error
	}

	return resp, nil
}

// freshFileURL returns the cached signed URL, regenerating and re-caching it
// when it is missing or close to expiry.
func (w *Worker) freshFileURL(ctx context.Context, gen *models.Generation) string {
	stale := gen.FileURL == nil || gen.URLExpiresAt == nil ||
		time.Until(*gen.URLExpiresAt) < storage.RefreshSlack

	if !stale {
		return *gen.FileURL
	}

	if gen.StoragePath == nil {
		return ""
	}

	fileURL, err := w.objects.CreateSignedURL(ctx, *gen.StoragePath, storage.SignedURLTTL)
	if err != nil {
		log.Printf("[Worker] Generation %s: signed URL refresh failed: %v", gen.ID, err)
		if gen.FileURL != nil {
			return *gen.FileURL
		}
		return ""
	}

	expiresAt := time.Now().Add(storage.SignedURLTTL)
	if err := w.store.UpdateFileURL(ctx, gen.ID, fileURL, expiresAt); err != nil {
		log.Printf("[Worker] Generation %s: failed to cache refreshed URL: %v", gen.ID, err)
	}

	return fileURL
}

// Audio fetches the stored audio for a completed generation, converting to
// OGG/Opus on the fly when requested. The converted stream is never persisted.
// Returns the audio bytes and their content type.
func (w *Worker) Audio(ctx context.Context, id uuid.UUID, format string) ([]byte, string, error) {
	gen, err := w.store.GetGeneration(ctx, id)
	if err != nil {
		return nil, "", err
	}

	if gen.Status != models.StatusCompleted || gen.StoragePath == nil {
		return nil, "", ErrNotReady
	}

	mp3Bytes, err := w.objects.Download(ctx, *gen.StoragePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch stored audio: %w", err)
	}

	switch format {
	case "", "mp3":
		return mp3Bytes, "audio/mpeg", nil

	case "ogg":
		oggBytes, err := w.converter.ConvertMP3ToOggOpus(ctx, mp3Bytes)
		if err != nil {
			return nil, "", err
		}
		return oggBytes, "audio/ogg", nil

	default:
		return nil, "", fmt.Errorf("unsupported format %q", format)
	}
}

// Delete removes a generation record and its stored object. Object deletion is
// best-effort — a missing blob must not strand the row.
func (w *Worker) Delete(ctx context.Context, id uuid.UUID) error {
	gen, err := w.store.GetGeneration(ctx, id)
	if err != nil {
		return err
	}

	if gen.StoragePath != nil {
		if err := w.objects.Delete(ctx, *gen.StoragePath); err != nil {
			log.Printf("[Worker] Generation %s: object delete failed (continuing): %v", id, err)
		}
	}

	return w.store.DeleteGeneration(ctx, id)
}

// List returns playlist summaries, newest first.
func (w *Worker) List(ctx context.Context) ([]models.GenerationSummary, error) {
	gens, err := w.store.ListGenerations(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.GenerationSummary, 0, len(gens))
	for _, gen := range gens {
		summaries = append(summaries, models.GenerationSummary{
			ID:          gen.ID,
			Title:       gen.Title,
			Description: gen.Description,
			Status:      gen.Status,
			PlayURL:     PlayPath(gen.ID),
			Error:       gen.Error,
			CreatedAt:   gen.CreatedAt,
			CompletedAt: gen.CompletedAt,
		})
	}

	return summaries, nil
}

// Get returns the full generation record (used by the player page).
func (w *Worker) Get(ctx context.Context, id uuid.UUID) (*models.Generation, error) {
	return w.store.GetGeneration(ctx, id)
}

// PlayerURL returns a playable signed URL for a completed generation,
// refreshing the cached one when stale.
func (w *Worker) PlayerURL(ctx context.Context, gen *models.Generation) string {
	if gen.Status != models.StatusCompleted {
		return ""
	}
	return w.freshFileURL(ctx, gen)
}
