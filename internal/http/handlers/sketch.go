package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"server/internal/domain"
	"server/internal/generation"
)

const maxUploadBytes = 32 << 20

// SketchToShoe handles POST /sketch-to-image/shoe. It reads the multipart
// sketch (and optional material reference), runs the generation pipeline and
// streams the resulting PNG back while persistence continues asynchronously.
func (a *App) SketchToShoe(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	strategy, err := generation.ParseStrategy(r.Header.Get("X-Strategy"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}

	sketchBytes, sketchMIME, err := readImageFile(r, "file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	workflowID := strings.TrimSpace(r.FormValue("workflow_id"))
	if workflowID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "workflow_id is required")
		return
	}

	req := domain.GenerationRequest{
		UserID:      userID,
		WorkflowID:  workflowID,
		SketchBytes: sketchBytes,
		SketchMIME:  sketchMIME,
		MaterialID:  strings.TrimSpace(r.FormValue("material_id")),
	}
	if err := a.attachMaterial(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	// Detach from the client connection: an impatient client closing the
	// request must not cancel an in-flight provider call or the publish.
	ctx := context.WithoutCancel(r.Context())

	result, err := a.Generator.Generate(ctx, req, strategy)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrQuotaExceeded):
			a.error(w, http.StatusTooManyRequests, "quota_exceeded", "daily generation limit reached")
		default:
			a.Logger.Error().Err(err).Str("workflow_id", workflowID).Msg("http: generation failed")
			a.error(w, http.StatusInternalServerError, "generation_failed", "image generation failed")
		}
		return
	}

	usedStrategy := generation.StrategyPrimary
	if result.UsedFallback {
		usedStrategy = generation.StrategyFallback
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Strategy", string(usedStrategy))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.ImageBytes)
}

// attachMaterial fills the material fields from either an uploaded file or a
// server-side fetch of material_url. Absence of both is fine.
func (a *App) attachMaterial(r *http.Request, req *domain.GenerationRequest) error {
	data, mime, err := readImageFile(r, "material")
	if err == nil {
		req.MaterialBytes = data
		req.MaterialMIME = mime
		return nil
	}
	if !errors.Is(err, http.ErrMissingFile) {
		return err
	}

	materialURL := strings.TrimSpace(r.FormValue("material_url"))
	if materialURL == "" {
		return nil
	}
	data, mime, err = a.fetchImage(r.Context(), materialURL)
	if err != nil {
		return fmt.Errorf("fetch material_url: %w", err)
	}
	req.MaterialBytes = data
	req.MaterialMIME = mime
	return nil
}

func (a *App) fetchImage(ctx context.Context, rawURL string) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := a.httpClient().Do(httpReq)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUploadBytes))
	if err != nil {
		return nil, "", err
	}
	mime := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, "", errors.New("material_url does not point at an image")
	}
	return data, mime, nil
}

// readImageFile reads one multipart file field and enforces the image/*
// content type, sniffing the bytes when the part header is missing or vague.
func readImageFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("read %s: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", field, err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: %s is empty", domain.ErrInvalidUpload, field)
	}

	mime := partContentType(header)
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, "", fmt.Errorf("%w: %s must be an image", domain.ErrInvalidUpload, field)
	}
	return data, mime, nil
}

func partContentType(header *multipart.FileHeader) string {
	if header == nil {
		return ""
	}
	return header.Header.Get("Content-Type")
}
