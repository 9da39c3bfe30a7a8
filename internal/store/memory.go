package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"vrp/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu   sync.Mutex
	runs map[string]model.Run
	// Webhooks queue state
	deliveries map[string]*WebhookDelivery // id -> delivery state
	order      []string                    // delivery ids in enqueue order
	dedup      map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		runs:       map[string]model.Run{},
		deliveries: map[string]*WebhookDelivery{},
		dedup:      map[string]struct{}{},
	}
}

func (m *Memory) SaveRun(ctx context.Context, run model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return model.Run{}, ErrNotFound
	}
	return r, nil
}

// sortedRuns returns runs newest first.
func (m *Memory) sortedRuns() []model.Run {
	out := make([]model.Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ListRuns pages newest first; the cursor is the creation time (unix nanos) and id of the last item returned.
func (m *Memory) ListRuns(ctx context.Context, algorithm, cursor string, limit int) ([]model.Run, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit)
	var from *runCursor
	if cursor != "" {
		c, err := parseRunCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		from = &c
	}
	out := []model.Run{}
	for _, r := range m.sortedRuns() {
		if algorithm != "" && r.Algorithm != algorithm {
			continue
		}
		if from != nil && !from.after(r.CreatedAt.UnixNano(), r.ID) {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	next := ""
	if len(out) == limit {
		last := out[len(out)-1]
		next = runCursor{ns: last.CreatedAt.UnixNano(), id: last.ID}.String()
	}
	return out, next, nil
}

// LatestRuns returns the newest run per algorithm.
func (m *Memory) LatestRuns(ctx context.Context) (map[string]model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]model.Run{}
	for _, r := range m.sortedRuns() {
		if _, ok := out[r.Algorithm]; !ok {
			out[r.Algorithm] = r
		}
	}
	return out, nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, jobID, eventType, url string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dk := eventType + "|" + url + "|" + computeDedupKey(payload)
	if _, dup := m.dedup[dk]; dup {
		return "", nil
	}
	m.dedup[dk] = struct{}{}
	id := uuid.New().String()
	now := time.Now().UTC()
	m.deliveries[id] = &WebhookDelivery{ID: id, JobID: jobID, EventType: eventType, URL: url, Payload: payload, Status: DeliveryPending, NextAttemptAt: now, CreatedAt: now}
	m.order = append(m.order, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.order {
		d := m.deliveries[id]
		if (d.Status == DeliveryPending || d.Status == DeliveryRetry) && !d.NextAttemptAt.After(now) {
			out = append(out, *d)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = DeliveryDelivered
		d.LastError = ""
		return nil
	}
	d.Status = DeliveryRetry
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.NextAttemptAt = time.Now().Add(1 * time.Minute)
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = DeliveryFailed
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	return nil
}

// ListWebhookDeliveries pages in enqueue order; the cursor is the last id returned.
func (m *Memory) ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]WebhookDelivery, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit)
	start := 0
	if cursor != "" {
		start = -1
		for i, id := range m.order {
			if id == cursor {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, "", fmt.Errorf("%w: %q", ErrBadCursor, cursor)
		}
	}
	out := []WebhookDelivery{}
	for _, id := range m.order[start:] {
		d := m.deliveries[id]
		if status != "" && d.Status != status {
			continue
		}
		out = append(out, *d)
		if len(out) == limit {
			break
		}
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Status = DeliveryPending
	d.NextAttemptAt = time.Now()
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
func (m *Memory) Close() error                   { return nil }
