package worker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// Store is the slice of the catalog the worker writes to.
type Store interface {
	UpsertWorkflow(ctx context.Context, wf domain.Workflow) error
	SaveGeneration(ctx context.Context, gen domain.Generation) (bool, error)
}

// BlobWriter stores one blob under a key.
type BlobWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Worker applies queue events to the blob store and catalog. It is the only
// writer of generation records.
type Worker struct {
	store  Store
	blobs  BlobWriter
	logger zerolog.Logger
}

type Options struct {
	Store  Store
	Blobs  BlobWriter
	Logger zerolog.Logger
}

func New(opts Options) *Worker {
	return &Worker{
		store:  opts.Store,
		blobs:  opts.Blobs,
		logger: opts.Logger,
	}
}

// Handle processes one delivery. Failures are logged and swallowed so a
// malformed or unprocessable message never wedges the queue; the caller
// always acks afterwards.
func (w *Worker) Handle(ctx context.Context, body []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		w.logger.Error().Err(err).Msg("worker: undecodable message dropped")
		return
	}

	var err error
	switch env.Type {
	case domain.EventTypeCreateWorkflow:
		err = w.handleCreateWorkflow(ctx, env.Payload)
	case domain.EventTypeSaveGeneration:
		err = w.handleSaveGeneration(ctx, env.Payload)
	default:
		w.logger.Warn().Str("type", env.Type).Msg("worker: unknown event type dropped")
		return
	}
	if err != nil {
		w.logger.Error().Err(err).Str("type", env.Type).Msg("worker: event handling failed")
	}
}

func (w *Worker) handleCreateWorkflow(ctx context.Context, raw json.RawMessage) error {
	var payload domain.WorkflowPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode workflow payload: %w", err)
	}
	if payload.ID == "" || payload.UserID == "" {
		return fmt.Errorf("workflow payload missing id or user id")
	}

	wf := domain.Workflow{
		ID:               payload.ID,
		UserID:           payload.UserID,
		Name:             payload.Name,
		SketchBlobPath:   payload.SketchBlobPath,
		Status:           payload.Status,
		GenerationsCount: payload.GenerationsCount,
		CreatedAt:        parseStamp(payload.CreatedAt),
		UpdatedAt:        parseStamp(payload.UpdatedAt),
	}
	if wf.Status == "" {
		wf.Status = domain.WorkflowStatusActive
	}
	if err := w.store.UpsertWorkflow(ctx, wf); err != nil {
		return err
	}

	w.logger.Info().Str("workflow_id", wf.ID).Msg("worker: workflow upserted")
	return nil
}

func (w *Worker) handleSaveGeneration(ctx context.Context, raw json.RawMessage) error {
	var payload domain.SaveGenerationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode generation payload: %w", err)
	}
	if payload.GenerationID == "" || payload.UserID == "" || payload.WorkflowID == "" {
		return fmt.Errorf("generation payload missing identity fields")
	}

	image, err := base64.StdEncoding.DecodeString(payload.ImageBase64)
	if err != nil {
		return fmt.Errorf("decode image for generation %s: %w", payload.GenerationID, err)
	}

	blobPath := fmt.Sprintf("users/%s/workflows/%s/generations/%s.png",
		payload.UserID, payload.WorkflowID, payload.GenerationID)
	if _, err := w.blobs.Put(ctx, blobPath, image, "image/png"); err != nil {
		return fmt.Errorf("store image for generation %s: %w", payload.GenerationID, err)
	}

	inserted, err := w.store.SaveGeneration(ctx, domain.Generation{
		ID:            payload.GenerationID,
		WorkflowID:    payload.WorkflowID,
		ImageBlobPath: blobPath,
		MaterialID:    payload.MaterialID,
		Status:        domain.GenerationStatusConfirmed,
	})
	if err != nil {
		return fmt.Errorf("record generation %s: %w", payload.GenerationID, err)
	}
	if !inserted {
		w.logger.Info().
			Str("generation_id", payload.GenerationID).
			Msg("worker: redelivered generation absorbed")
		return nil
	}

	w.logger.Info().
		Str("generation_id", payload.GenerationID).
		Str("workflow_id", payload.WorkflowID).
		Int("image_bytes", len(image)).
		Msg("worker: generation persisted")
	return nil
}

func parseStamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}
