package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrp/internal/model"
)

func newSQLite(t *testing.T) *SQL {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := NewSQL(fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLite(t)) })
}

func TestRuns(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			algo := "greedy"
			if i%2 == 1 {
				algo = "simulated_annealing"
			}
			require.NoError(t, s.SaveRun(ctx, model.Run{
				ID:            fmt.Sprintf("run-%d", i),
				Source:        "sync",
				Algorithm:     algo,
				DistanceUnit:  "km",
				Vehicles:      2,
				Orders:        i + 1,
				TotalDistance: float64(i) * 1.5,
				Statistics:    map[string]any{"iterations_completed": float64(i * 100)},
				CreatedAt:     base.Add(time.Duration(i) * time.Minute),
			}))
		}

		r, err := s.GetRun(ctx, "run-3")
		require.NoError(t, err)
		assert.Equal(t, "simulated_annealing", r.Algorithm)
		assert.Equal(t, 4, r.Orders)
		assert.Equal(t, float64(300), r.Statistics["iterations_completed"])
		assert.True(t, r.CreatedAt.Equal(base.Add(3*time.Minute)))

		_, err = s.GetRun(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)

		page, next, err := s.ListRuns(ctx, "", "", 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "run-4", page[0].ID)
		assert.Equal(t, "run-3", page[1].ID)
		require.NotEmpty(t, next)

		page, _, err = s.ListRuns(ctx, "", next, 10)
		require.NoError(t, err)
		require.Len(t, page, 3)
		assert.Equal(t, "run-2", page[0].ID)

		greedy, _, err := s.ListRuns(ctx, "greedy", "", 10)
		require.NoError(t, err)
		assert.Len(t, greedy, 3)

		latest, err := s.LatestRuns(ctx)
		require.NoError(t, err)
		assert.Equal(t, "run-4", latest["greedy"].ID)
		assert.Equal(t, "run-3", latest["simulated_annealing"].ID)

		require.NoError(t, s.Ping(ctx))
	})
}

func TestRunsPageAcrossSharedTimestamp(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
		for _, id := range []string{"a", "b", "c", "d"} {
			require.NoError(t, s.SaveRun(ctx, model.Run{ID: id, Source: "sync", Algorithm: "greedy", DistanceUnit: "km", CreatedAt: at}))
		}
		var got []string
		cursor := ""
		for i := 0; i < 4; i++ {
			page, next, err := s.ListRuns(ctx, "", cursor, 1)
			require.NoError(t, err)
			for _, r := range page {
				got = append(got, r.ID)
			}
			if next == "" {
				break
			}
			cursor = next
		}
		assert.Equal(t, []string{"d", "c", "b", "a"}, got)
	})
}

func TestBadCursors(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, c := range []string{"garbage", "123", "x:run-1", ":"} {
			_, _, err := s.ListRuns(ctx, "", c, 10)
			assert.ErrorIs(t, err, ErrBadCursor, c)
		}
		_, _, err := s.ListWebhookDeliveries(ctx, "", "no-such-delivery", 10)
		assert.ErrorIs(t, err, ErrBadCursor)
	})
}

func TestWebhookQueue(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		id, err := s.EnqueueWebhook(ctx, "job-1", "job.completed", "http://example.test/hook", []byte(`{"id":"job-1:job.completed"}`))
		require.NoError(t, err)
		require.NotEmpty(t, id)

		dup, err := s.EnqueueWebhook(ctx, "job-1", "job.completed", "http://example.test/hook", []byte(`{"id":"job-1:job.completed","retry":true}`))
		require.NoError(t, err)
		assert.Empty(t, dup, "same event id is enqueued once")

		other, err := s.EnqueueWebhook(ctx, "job-2", "job.failed", "http://example.test/hook", []byte(`{"id":"job-2:job.failed"}`))
		require.NoError(t, err)

		due, err := s.FetchDueWebhookDeliveries(ctx, 50)
		require.NoError(t, err)
		require.Len(t, due, 2)
		assert.Equal(t, `{"id":"job-1:job.completed"}`, string(due[0].Payload))

		later := time.Now().Add(time.Hour)
		require.NoError(t, s.MarkWebhookDelivery(ctx, id, false, &later, "HTTP 500", 500, 12))
		require.NoError(t, s.MarkWebhookDelivery(ctx, other, true, nil, "", 204, 8))

		due, err = s.FetchDueWebhookDeliveries(ctx, 50)
		require.NoError(t, err)
		assert.Empty(t, due)

		retries, _, err := s.ListWebhookDeliveries(ctx, DeliveryRetry, "", 10)
		require.NoError(t, err)
		require.Len(t, retries, 1)
		assert.Equal(t, 1, retries[0].Attempts)
		assert.Equal(t, "HTTP 500", retries[0].LastError)
		assert.Equal(t, 500, retries[0].ResponseCode)

		require.NoError(t, s.RetryWebhookDelivery(ctx, id))
		due, err = s.FetchDueWebhookDeliveries(ctx, 50)
		require.NoError(t, err)
		require.Len(t, due, 1)

		require.NoError(t, s.FailWebhookDelivery(ctx, id, "gave up", 500, 3))
		failed, _, err := s.ListWebhookDeliveries(ctx, DeliveryFailed, "", 10)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, 2, failed[0].Attempts)

		first, next, err := s.ListWebhookDeliveries(ctx, "", "", 1)
		require.NoError(t, err)
		require.Len(t, first, 1)
		assert.Equal(t, id, first[0].ID)
		rest, _, err := s.ListWebhookDeliveries(ctx, "", next, 10)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, other, rest[0].ID)

		assert.ErrorIs(t, s.RetryWebhookDelivery(ctx, "missing"), ErrNotFound)
	})
}

func TestComputeDedupKeyFromID(t *testing.T) {
	got := computeDedupKey([]byte(`{"id":"evt_123","type":"x"}`))
	if got != "evt_123" {
		t.Fatalf("want evt_123, got %s", got)
	}
}

func TestComputeDedupKeyFromHash(t *testing.T) {
	got := computeDedupKey([]byte(`{"notId":"x"}`))
	// hex-encoded first 8 bytes -> 16 hex chars
	b, err := hex.DecodeString(got)
	if err != nil {
		t.Fatalf("invalid hex: %v", err)
	}
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
}

func TestRebind(t *testing.T) {
	q := `UPDATE t SET a=$2 WHERE id=$1 AND b=$10`
	assert.Equal(t, `UPDATE t SET a=?2 WHERE id=?1 AND b=?10`, rebind("sqlite", q))
	assert.Equal(t, q, rebind("pgx", q))
}

func TestOpenSelectsBackend(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
}
