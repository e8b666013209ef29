package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
)

// Report is the persisted diagnosis report. The ID is assigned by the Store.
type Report struct {
	ID                    uint            `json:"id"`
	Diagnose              bool            `json:"diagnose"`
	Confidence            float64         `json:"confidence"`
	CameraType            string          `json:"camera_type"`
	Age                   int             `json:"age"`
	Gender                string          `json:"gender"`
	DiabetesHistory       string          `json:"diabetes_history"`
	FamilyDiabetesHistory string          `json:"family_diabetes_history"`
	Weight                float64         `json:"weight"`
	Height                float64         `json:"height"`
	ImageKey              string          `json:"image_key,omitempty"`
	StepHistory           json.RawMessage `json:"step_history,omitempty"`
	RetakeCount           int             `json:"retake_count"`
	Status                Status          `json:"status"`
	CreatedAt             time.Time       `json:"created_at"`
	CompletedAt           *time.Time      `json:"completed_at,omitempty"`
}

// Store persists report records. Create must hand out unique IDs under concurrent use.
type Store interface {
	Create(ctx context.Context, r *Report) (uint, error)
	Complete(ctx context.Context, id uint, imageKey string, completedAt time.Time) error
	Discard(ctx context.Context, id uint) error
}

// ArtifactStore keeps binary artifacts by key.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// ArtifactKey is the deterministic image key of a report.
func ArtifactKey(id uint, format string) string {
	if format == "" {
		format = "jpg"
	}
	return fmt.Sprintf("fundus_images/report_%d.%s", id, format)
}

// ContentType maps an artifact extension to a MIME type.
func ContentType(format string) string {
	switch format {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "bmp":
		return "image/bmp"
	default:
		return "image/jpeg"
	}
}
