package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TypeScaleUpload = "upload:scale"

// ScaleUploadPayload carries everything the worker needs to derive the
// variant set for one reference image.
type ScaleUploadPayload struct {
	UploadID    string    `json:"upload_id"`
	SourceType  string    `json:"source_type"`
	ObjectKey   string    `json:"object_key"`
	Name        string    `json:"name,omitempty"`
	WebhookURL  string    `json:"webhook_url,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewScaleUploadTask(payload ScaleUploadPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal scale payload: %w", err)
	}
	return asynq.NewTask(TypeScaleUpload, body), nil
}

func ParseScaleUploadPayload(task *asynq.Task) (ScaleUploadPayload, error) {
	var payload ScaleUploadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ScaleUploadPayload{}, fmt.Errorf("unmarshal scale payload: %w", err)
	}
	return payload, nil
}
