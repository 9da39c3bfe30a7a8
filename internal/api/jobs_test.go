package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vrp/internal/model"
	"vrp/internal/opt"
	"vrp/internal/store"
)

// blockingSolve waits for release or cancellation.
func blockingSolve(release <-chan struct{}) SolveFunc {
	return func(ctx context.Context, req opt.Request) (opt.Outcome, error) {
		select {
		case <-release:
			return opt.Outcome{Algorithm: req.Algorithm, Routes: []model.Route{}, RouteCosts: []float64{}}, nil
		case <-ctx.Done():
			return opt.Outcome{}, ctx.Err()
		}
	}
}

func waitStatus(t *testing.T, jr *JobRunner, id, want string) model.JobStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := jr.Get(id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if st.Status == want {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, want)
	return model.JobStatus{}
}

func TestJobRunnerQueueFullAndCancel(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	done := map[string]string{}
	jr := NewJobRunner(1, 1, time.Hour, NewBroker(), blockingSolve(release), func(st model.JobStatus, _ *opt.Outcome, _ string) {
		mu.Lock()
		done[st.JobID] = st.Status
		mu.Unlock()
	})
	req := opt.Request{Algorithm: opt.AlgorithmGreedy}

	running, err := jr.Submit(req, "")
	if err != nil {
		t.Fatal(err)
	}
	waitStatus(t, jr, running.JobID, JobRunning)
	queued, err := jr.Submit(req, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := jr.Submit(req, ""); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("want ErrQueueFull, got %v", err)
	}

	st, err := jr.Cancel(queued.JobID)
	if err != nil || st.Status != JobCanceled {
		t.Fatalf("cancel queued: %+v %v", st, err)
	}
	if _, err := jr.Cancel(running.JobID); err != nil {
		t.Fatal(err)
	}
	waitStatus(t, jr, running.JobID, JobCanceled)

	counts := jr.Counts()
	if counts[JobCanceled] != 2 {
		t.Fatalf("counts: %v", counts)
	}
	if _, err := jr.Get("missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	close(release)
	if err := jr.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if done[running.JobID] != JobCanceled || done[queued.JobID] != JobCanceled {
		t.Fatalf("done hook: %v", done)
	}
}

func TestJobRunnerSucceedsAndEvicts(t *testing.T) {
	release := make(chan struct{})
	close(release)
	b := NewBroker()
	jr := NewJobRunner(2, 4, time.Minute, b, blockingSolve(release), nil)
	st, err := jr.Submit(opt.Request{Algorithm: opt.AlgorithmGreedy}, "")
	if err != nil {
		t.Fatal(err)
	}
	got := waitStatus(t, jr, st.JobID, JobSucceeded)
	if got.Result == nil || got.StartedAt == nil || got.FinishedAt == nil {
		t.Fatalf("finished job: %+v", got)
	}
	if n := jr.evict(time.Now()); n != 0 {
		t.Fatalf("evicted fresh job")
	}
	if n := jr.evict(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("want 1 evicted, got %d", n)
	}
	if _, err := jr.Get(st.JobID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("evicted job still visible")
	}
	if err := jr.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := jr.Submit(opt.Request{}, ""); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("submit after shutdown: %v", err)
	}
}

func TestJobRunnerShutdownCancelsOnDeadline(t *testing.T) {
	jr := NewJobRunner(1, 1, time.Minute, NewBroker(), blockingSolve(make(chan struct{})), nil)
	st, _ := jr.Submit(opt.Request{Algorithm: opt.AlgorithmGreedy}, "")
	waitStatus(t, jr, st.JobID, JobRunning)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := jr.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
	got, _ := jr.Get(st.JobID)
	if got.Status != JobCanceled {
		t.Fatalf("status after forced shutdown: %s", got.Status)
	}
}
