package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/domain"
)

// CreateWorkflow handles POST /workflows: store the original sketch blob,
// then hand the catalog write to the worker via a CREATE_WORKFLOW event.
func (a *App) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}

	sketch, mime, err := readImageFile(r, "file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = "Untitled workflow"
	}

	id := uuid.NewString()
	blobPath := fmt.Sprintf("users/%s/workflows/%s/original_sketch.jpg", userID, id)
	if _, err := a.Blobs.Put(r.Context(), blobPath, sketch, mime); err != nil {
		a.Logger.Error().Err(err).Str("workflow_id", id).Msg("http: sketch upload failed")
		a.error(w, http.StatusInternalServerError, "storage_failed", "could not store sketch")
		return
	}

	now := time.Now().UTC()
	wf := domain.Workflow{
		ID:             id,
		UserID:         userID,
		Name:           name,
		SketchBlobPath: blobPath,
		Status:         domain.WorkflowStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.Publisher.PublishCreateWorkflow(r.Context(), wf); err != nil {
		// The blob exists and the client has its workflow; the catalog row
		// catches up on the next event for this id.
		a.Logger.Warn().Err(err).Str("workflow_id", id).Msg("http: create workflow publish failed")
	}

	a.signWorkflow(r, &wf)
	a.json(w, http.StatusCreated, wf)
}

// ListWorkflows handles GET /workflows.
func (a *App) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	workflows, err := a.Catalog.ListWorkflows(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: list workflows failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not list workflows")
		return
	}
	if workflows == nil {
		workflows = []domain.Workflow{}
	}
	for i := range workflows {
		a.signWorkflow(r, &workflows[i])
	}
	a.json(w, http.StatusOK, map[string]any{"workflows": workflows})
}

// LatestGenerations handles GET /workflows/latest-generation: each workflow
// flattened with its newest generation for the dashboard.
func (a *App) LatestGenerations(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	workflows, err := a.Catalog.ListWorkflows(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: list workflows failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not list workflows")
		return
	}

	items := make([]domain.WorkflowWithLatest, 0, len(workflows))
	for _, wf := range workflows {
		latest, err := a.Catalog.LatestGeneration(r.Context(), wf.ID)
		if err != nil {
			a.Logger.Error().Err(err).Str("workflow_id", wf.ID).Msg("http: latest generation lookup failed")
			a.error(w, http.StatusInternalServerError, "internal", "could not list workflows")
			return
		}
		a.signWorkflow(r, &wf)
		if latest != nil {
			a.signGeneration(r, latest)
		}
		items = append(items, domain.WorkflowWithLatest{Workflow: wf, LatestGeneration: latest})
	}
	a.json(w, http.StatusOK, map[string]any{"workflows": items})
}

// GetWorkflow handles GET /workflows/{id}: the workflow plus all its
// generations, newest first, with signed image URLs.
func (a *App) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")

	wf, err := a.Catalog.Workflow(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "workflow not found")
			return
		}
		a.Logger.Error().Err(err).Str("workflow_id", id).Msg("http: workflow lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not load workflow")
		return
	}

	generations, err := a.Catalog.WorkflowGenerations(r.Context(), wf.ID)
	if err != nil {
		a.Logger.Error().Err(err).Str("workflow_id", id).Msg("http: generations lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not load workflow")
		return
	}
	if generations == nil {
		generations = []domain.Generation{}
	}
	a.signWorkflow(r, &wf)
	for i := range generations {
		a.signGeneration(r, &generations[i])
	}
	a.json(w, http.StatusOK, map[string]any{"workflow": wf, "generations": generations})
}

// CloseWorkflow handles PATCH /workflows/{id}/close.
func (a *App) CloseWorkflow(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")

	wf, err := a.Catalog.CloseWorkflow(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "workflow not found")
			return
		}
		a.Logger.Error().Err(err).Str("workflow_id", id).Msg("http: close workflow failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not close workflow")
		return
	}
	a.signWorkflow(r, &wf)
	a.json(w, http.StatusOK, wf)
}

// DownloadURL handles GET /workflows/download-url/*: a signed URL with an
// attachment disposition for one blob the caller is allowed to read.
func (a *App) DownloadURL(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	blobPath := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if blobPath == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "blob path is required")
		return
	}
	if !strings.HasPrefix(blobPath, "users/"+userID+"/") && !strings.HasPrefix(blobPath, "library/") {
		a.error(w, http.StatusForbidden, "forbidden", "not your blob")
		return
	}

	u, err := a.Blobs.DownloadURL(r.Context(), blobPath, signedURLTTL)
	if err != nil {
		a.Logger.Error().Err(err).Str("blob_path", blobPath).Msg("http: download url failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not sign url")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"url":                u,
		"expires_in_seconds": int(signedURLTTL.Seconds()),
	})
}

// Signed URLs are best effort: a signing failure leaves the path visible and
// the URL empty rather than failing the whole listing.
func (a *App) signWorkflow(r *http.Request, wf *domain.Workflow) {
	if wf.SketchBlobPath == "" {
		return
	}
	u, err := a.Blobs.SignedURL(r.Context(), wf.SketchBlobPath, signedURLTTL)
	if err != nil {
		a.Logger.Warn().Err(err).Str("blob_path", wf.SketchBlobPath).Msg("http: sign sketch url failed")
		return
	}
	wf.SketchURL = u
}

func (a *App) signGeneration(r *http.Request, gen *domain.Generation) {
	if gen.ImageBlobPath == "" {
		return
	}
	u, err := a.Blobs.SignedURL(r.Context(), gen.ImageBlobPath, signedURLTTL)
	if err != nil {
		a.Logger.Warn().Err(err).Str("blob_path", gen.ImageBlobPath).Msg("http: sign image url failed")
		return
	}
	gen.ImageURL = u
}
