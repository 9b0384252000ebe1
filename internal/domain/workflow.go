package domain

import "time"

// Workflow statuses. A workflow starts active and is closed explicitly by
// its owner; closed workflows still list their generations.
const (
	WorkflowStatusActive = "active"
	WorkflowStatusClosed = "closed"
)

// GenerationStatusConfirmed marks a generation record the worker has fully
// persisted (blob written, row committed). Only the worker writes records,
// so this is the only status a stored row can carry.
const GenerationStatusConfirmed = "confirmed"

// Workflow is a user's named design session, anchored by one original
// sketch, accumulating zero or more generations.
type Workflow struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Name             string    `json:"name"`
	SketchBlobPath   string    `json:"sketch_blob_path"`
	Status           string    `json:"status"`
	GenerationsCount int       `json:"generations_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// SketchURL is a short-lived signed URL filled in by the HTTP layer;
	// it is never stored.
	SketchURL string `json:"sketch_url,omitempty"`
}

// Generation is one produced image artifact tied to a workflow, with its
// provenance. Rows are written exclusively by the persistence worker.
type Generation struct {
	ID            string    `json:"generation_id"`
	WorkflowID    string    `json:"workflow_id"`
	ImageBlobPath string    `json:"image_blob_path"`
	MaterialID    string    `json:"material_id,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`

	// ImageURL is a short-lived signed URL filled in by the HTTP layer.
	ImageURL string `json:"image_url,omitempty"`
}

// WorkflowWithLatest flattens a workflow with its most recent generation
// for the dashboard listing.
type WorkflowWithLatest struct {
	Workflow
	LatestGeneration *Generation `json:"latest_generation"`
}

// GenerationRequest carries one sketch-to-image call. Constructed per HTTP
// request, never persisted.
type GenerationRequest struct {
	UserID        string
	WorkflowID    string
	SketchBytes   []byte
	SketchMIME    string
	MaterialID    string
	MaterialBytes []byte
	MaterialMIME  string
}

// GenerationResult is handed back to the HTTP layer once image bytes exist,
// independent of whether the asynchronous persistence has completed.
type GenerationResult struct {
	ImageBytes   []byte
	UsedFallback bool
}
