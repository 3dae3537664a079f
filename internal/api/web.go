package api

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/readaloudhq/readaloud/internal/models"
)

// ---------------------------------------------------------------------------
// Web UI handlers — PIN-gated playlist with a paste form, plus the public
// player page. The PIN travels as a cookie once entered; /play/{id} is open.
// ---------------------------------------------------------------------------

const pinCookieName = "playlist_pin"

// checkPIN compares a candidate against the configured playlist PIN.
// An unconfigured PIN locks the UI entirely rather than leaving it open.
func (h *Handler) checkPIN(candidate string) bool {
	if h.playlistPIN == "" || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(h.playlistPIN)) == 1
}

func (h *Handler) pinFromRequest(r *http.Request) (string, bool) {
	if pin := r.URL.Query().Get("pin"); h.checkPIN(pin) {
		return pin, true
	}
	if cookie, err := r.Cookie(pinCookieName); err == nil && h.checkPIN(cookie.Value) {
		return cookie.Value, true
	}
	return "", false
}

// Home handles GET / — the playlist page with the paste form, or the PIN
// prompt when the visitor is not authenticated.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	pin, ok := h.pinFromRequest(r)
	if !ok {
		renderPage(w, pinPageTmpl, nil)
		return
	}

	// Refresh the cookie when the PIN arrived via query param
	if r.URL.Query().Get("pin") != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     pinCookieName,
			Value:    pin,
			Path:     "/",
			MaxAge:   86400 * 30, // 30 days
			HttpOnly: true,
		})
	}

	summaries, err := h.worker.List(r.Context())
	if err != nil {
		http.Error(w, "Failed to load playlist", http.StatusInternalServerError)
		return
	}

	renderPage(w, playlistPageTmpl, map[string]interface{}{
		"Generations": summaries,
		"Voices":      models.Voices(),
	})
}

// WebGenerate handles POST /generate — the playlist paste form.
func (h *Handler) WebGenerate(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.pinFromRequest(r); !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	voice := r.PostFormValue("voice")

	var title *string
	if t := r.PostFormValue("title"); t != "" {
		title = &t
	}

	if _, err := h.worker.CreateJob(r.Context(), r.PostFormValue("text"), title, voice); err != nil {
		// Form submissions get no error page — log and land back on the list,
		// matching the skill API's strictness only for API callers.
		log.Printf("[Web] Generation submit rejected: %v", err)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// WebDelete handles POST /delete/{jobId}.
func (h *Handler) WebDelete(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.pinFromRequest(r); !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "jobId"))
	if err == nil {
		if err := h.worker.Delete(r.Context(), jobID); err != nil {
			log.Printf("[Web] Delete failed for %s: %v", jobID, err)
		}
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Play handles GET /play/{jobId} — the public player page for one generation.
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobId"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	gen, err := h.worker.Get(r.Context(), jobID)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	// The player needs a live signed URL; the cached one may have expired
	fileURL := h.worker.PlayerURL(r.Context(), gen)

	renderPage(w, playerPageTmpl, map[string]interface{}{
		"Generation": gen,
		"FileURL":    fileURL,
	})
}
