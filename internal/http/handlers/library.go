package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type libraryItem struct {
	Path         string    `json:"path"`
	URL          string    `json:"url"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// LibrarySave handles POST /storage/save: stash one finished image in the
// shared library under a fresh key.
func (a *App) LibrarySave(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	data, _, err := readImageFile(r, "file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	key := fmt.Sprintf("library/shoe_%s.png", uuid.NewString())
	if _, err := a.Blobs.Put(r.Context(), key, data, "image/png"); err != nil {
		a.Logger.Error().Err(err).Str("blob_path", key).Msg("http: library save failed")
		a.error(w, http.StatusInternalServerError, "storage_failed", "could not store image")
		return
	}

	u, err := a.Blobs.SignedURL(r.Context(), key, signedURLTTL)
	if err != nil {
		a.Logger.Warn().Err(err).Str("blob_path", key).Msg("http: sign library url failed")
	}
	a.json(w, http.StatusCreated, map[string]string{"path": key, "url": u})
}

// LibraryList handles GET /storage/list, newest first.
func (a *App) LibraryList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	objects, err := a.Blobs.List(r.Context(), "library/")
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: library list failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not list library")
		return
	}

	items := make([]libraryItem, 0, len(objects))
	for _, obj := range objects {
		u, err := a.Blobs.SignedURL(r.Context(), obj.Key, signedURLTTL)
		if err != nil {
			a.Logger.Warn().Err(err).Str("blob_path", obj.Key).Msg("http: sign library url failed")
		}
		items = append(items, libraryItem{
			Path:         obj.Key,
			URL:          u,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
