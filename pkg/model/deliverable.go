package model

import "time"

// Content-type tags understood by the provisioning layer.
const (
	FileTypeText  = "text/plain"
	FileTypeTarGz = "application/tar-gzip"
	FileTypeBAM   = "application/bam"
	FileTypeCNN   = "application/cnn"
)

// Deliverable is a file registered for hand-off to downstream consumers.
type Deliverable struct {
	ID          string            `json:"id"`
	RunID       string            `json:"run_id"`
	Stage       string            `json:"stage"`
	Path        string            `json:"path"`
	Type        string            `json:"type"`
	Manual      bool              `json:"manual"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Destination string            `json:"destination,omitempty"`
	SizeBytes   int64             `json:"size_bytes"`
	CreatedAt   time.Time         `json:"created_at"`
}
