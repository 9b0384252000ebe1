package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"server/internal/catalog"
	"server/internal/domain"
	"server/internal/generation"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/storage"
)

// signedURLTTL bounds every signed URL handed to clients.
const signedURLTTL = 15 * time.Minute

// Generator runs one sketch-to-image request.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest, strategy generation.Strategy) (domain.GenerationResult, error)
	DefaultStrategy() generation.Strategy
}

// WorkflowPublisher mirrors workflow creation onto the persistence queue.
type WorkflowPublisher interface {
	PublishCreateWorkflow(ctx context.Context, wf domain.Workflow) error
}

type App struct {
	Config    *infra.Config
	Logger    zerolog.Logger
	Generator Generator
	Publisher WorkflowPublisher
	Catalog   catalog.Catalog
	Blobs     storage.BlobStore

	// HTTPClient fetches material reference images given by URL.
	HTTPClient *http.Client
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}
