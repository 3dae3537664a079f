package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/readaloudhq/readaloud/internal/db"
	"github.com/readaloudhq/readaloud/internal/models"
	"github.com/readaloudhq/readaloud/internal/services"
	"github.com/readaloudhq/readaloud/internal/worker"
)

type Handler struct {
	worker      *worker.Worker
	playlistPIN string
}

func NewHandler(w *worker.Worker, playlistPIN string) *Handler {
	return &Handler{
		worker:      w,
		playlistPIN: playlistPIN,
	}
}

// Generate handles POST /api/generate
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	voice := models.DefaultVoice
	if req.Voice != nil && *req.Voice != "" {
		voice = *req.Voice
	}

	gen, err := h.worker.CreateJob(r.Context(), req.Text, req.Title, voice)
	if err != nil {
		switch {
		case errors.Is(err, worker.ErrEmptyText):
			respondError(w, http.StatusBadRequest, "Text is required")
		case errors.Is(err, worker.ErrTextTooLong):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, worker.ErrInvalidVoice):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "Failed to create generation")
		}
		return
	}

	// The workflow continues after this response — 202, not 200.
	respondJSON(w, http.StatusAccepted, models.GenerateResponse{
		JobID:  gen.ID,
		Status: gen.Status,
	})
}

// Status handles GET /api/status/{jobId}
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	status, err := h.worker.Status(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Generation not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to get status")
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// Audio handles GET /api/audio/{jobId}?format=mp3|ogg
func (h *Handler) Audio(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "mp3"
	}
	if format != "mp3" && format != "ogg" {
		respondError(w, http.StatusBadRequest, "Invalid format. Allowed: mp3, ogg")
		return
	}

	data, contentType, err := h.worker.Audio(r.Context(), jobID, format)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			respondError(w, http.StatusNotFound, "Generation not found")
		case errors.Is(err, worker.ErrNotReady):
			respondError(w, http.StatusNotFound, "Audio not ready")
		case errors.Is(err, services.ErrConversion):
			respondError(w, http.StatusInternalServerError, "Audio conversion failed")
		default:
			respondError(w, http.StatusInternalServerError, "Failed to fetch audio")
		}
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ListGenerations handles GET /api/generations
func (h *Handler) ListGenerations(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.worker.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list generations")
		return
	}

	respondJSON(w, http.StatusOK, models.ListGenerationsResponse{
		Generations: summaries,
		Total:       len(summaries),
	})
}

// DeleteGeneration handles DELETE /api/generations/{jobId}
func (h *Handler) DeleteGeneration(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	if err := h.worker.Delete(r.Context(), jobID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Generation not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to delete generation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
