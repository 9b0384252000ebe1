package domain

import "encoding/json"

// Queue event types dispatched by the persistence worker.
const (
	EventTypeCreateWorkflow = "CREATE_WORKFLOW"
	EventTypeSaveGeneration = "SAVE_GENERATION"
)

// Envelope wraps every queue message. The payload stays raw so the worker
// can dispatch on Type before committing to a payload shape.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SaveGenerationPayload asks the worker to persist one generated image.
// The generation id is minted by the publisher so redelivered messages can
// be deduplicated before any write. Timestamps are ISO-8601 strings.
type SaveGenerationPayload struct {
	GenerationID string `json:"generation_id"`
	UserID       string `json:"user_id"`
	WorkflowID   string `json:"workflow_id"`
	MaterialID   string `json:"material_id,omitempty"`
	ImageBase64  string `json:"image_base64"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// WorkflowPayload mirrors the workflow document for CREATE_WORKFLOW events.
type WorkflowPayload struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	Name             string `json:"name"`
	SketchBlobPath   string `json:"sketch_blob_path"`
	Status           string `json:"status"`
	GenerationsCount int    `json:"generations_count"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}
