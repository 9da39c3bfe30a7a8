package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vrp/internal/store"
)

// Job lifecycle events delivered to callback URLs.
const (
	EventJobCompleted = "job.completed"
	EventJobFailed    = "job.failed"
)

type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// Emit queues one event for url. The event id is derived from the job and event type,
// so repeating an Emit for the same job does not deliver twice.
func (p *Publisher) Emit(ctx context.Context, jobID, eventType, url string, data any) (string, error) {
	if url == "" {
		return "", nil
	}
	payload := map[string]any{
		"id":     fmt.Sprintf("%s:%s", jobID, eventType),
		"type":   eventType,
		"job_id": jobID,
		"ts":     time.Now().UTC().Format(time.RFC3339),
		"data":   data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", eventType, err)
	}
	return p.Store.EnqueueWebhook(ctx, jobID, eventType, url, body)
}
