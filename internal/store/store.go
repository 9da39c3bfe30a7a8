package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"vrp/internal/model"
)

// Store is the persistence interface used by the API server. It holds run telemetry and
// the webhook queue only; vehicles and orders live for a single request and are never stored.
type Store interface {
	// Runs
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, error)
	ListRuns(ctx context.Context, algorithm, cursor string, limit int) ([]model.Run, string, error)
	LatestRuns(ctx context.Context) (map[string]model.Run, error)

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, jobID, eventType, url string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]WebhookDelivery, string, error)
	RetryWebhookDelivery(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}

var (
	ErrNotFound = errors.New("not found")
	// ErrBadCursor is returned for a paging cursor this store did not issue.
	ErrBadCursor = errors.New("invalid cursor")
)

// runCursor is the position of the last run on a page: creation time in unix nanos and id.
type runCursor struct {
	ns int64
	id string
}

func (c runCursor) String() string { return strconv.FormatInt(c.ns, 10) + ":" + c.id }

// after reports whether a run sorts after c in newest-first order.
func (c runCursor) after(ns int64, id string) bool {
	return ns < c.ns || (ns == c.ns && id < c.id)
}

func parseRunCursor(s string) (runCursor, error) {
	ns, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return runCursor{}, fmt.Errorf("%w: %q", ErrBadCursor, s)
	}
	n, err := strconv.ParseInt(ns, 10, 64)
	if err != nil {
		return runCursor{}, fmt.Errorf("%w: %q", ErrBadCursor, s)
	}
	return runCursor{ns: n, id: id}, nil
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// Open returns a Memory store for an empty DSN, and a SQL store otherwise.
func Open(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return NewMemory(), nil
	}
	return NewSQL(dsn)
}
