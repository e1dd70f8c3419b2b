package model

import "encoding/json"

// Modality is the kind of content a batch item carries.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
)

// Valid reports whether m is a supported modality.
func (m Modality) Valid() bool {
	return m == ModalityText || m == ModalityImage
}

// ItemStatus is the outcome of processing a single batch item.
type ItemStatus string

const (
	ItemStatusCompleted ItemStatus = "completed"
	ItemStatusFailed    ItemStatus = "failed"
)

// BatchItem is one document within a submitted batch. Image content is
// base64 encoded; MediaType defaults to image/jpeg for images.
type BatchItem struct {
	SessionID string   `json:"sessionId"`
	FileID    string   `json:"fileId"`
	Modality  Modality `json:"modality"`
	Content   string   `json:"content"`
	MediaType string   `json:"mediaType,omitempty"`
}

// ItemResult is the per-item record delivered to the callback. Response is
// JSON null when the item failed.
type ItemResult struct {
	JobID     string          `json:"jobId"`
	SessionID string          `json:"sessionId"`
	FileID    string          `json:"fileId"`
	Status    ItemStatus      `json:"status"`
	Response  json.RawMessage `json:"response"`
	Error     string          `json:"error,omitempty"`
}

// BatchSummary tallies item outcomes for a finished batch.
type BatchSummary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
