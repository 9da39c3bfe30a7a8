package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Delivery statuses.
const (
	DeliveryPending   = "pending"
	DeliveryRetry     = "retry"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

type WebhookDelivery struct {
	ID            string    `json:"id"`
	JobID         string    `json:"job_id"`
	EventType     string    `json:"event_type"`
	URL           string    `json:"url"`
	Payload       []byte    `json:"-"`
	Status        string    `json:"status"`
	Attempts      int       `json:"attempts"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	LastError     string    `json:"last_error,omitempty"`
	ResponseCode  int       `json:"response_code,omitempty"`
	LatencyMs     int       `json:"latency_ms,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// computeDedupKey uses the payload's "id" field when present, otherwise a short body hash.
func computeDedupKey(payload []byte) string {
	var env struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(payload, &env) == nil && env.ID != "" {
		return env.ID
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}
