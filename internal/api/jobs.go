package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"vrp/internal/metrics"
	"vrp/internal/model"
	"vrp/internal/opt"
	"vrp/internal/store"
)

// Job statuses.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
	JobCanceled  = "canceled"
)

// progressReports is roughly how many progress events one annealing job emits.
const progressReports = 100

// SolveFunc runs one prepared request.
type SolveFunc func(ctx context.Context, req opt.Request) (opt.Outcome, error)

// DoneFunc observes a job reaching a terminal state.
type DoneFunc func(st model.JobStatus, out *opt.Outcome, callbackURL string)

type job struct {
	mu          sync.Mutex
	st          model.JobStatus
	req         opt.Request
	callbackURL string
	ctx         context.Context
	cancel      context.CancelFunc
}

func (j *job) snapshot() model.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	st := j.st
	if st.Progress != nil {
		p := *st.Progress
		st.Progress = &p
	}
	return st
}

func (j *job) terminal() bool {
	switch j.st.Status {
	case JobSucceeded, JobFailed, JobCanceled:
		return true
	}
	return false
}

// JobRunner is a fixed pool of workers fed from a bounded queue.
type JobRunner struct {
	solve  SolveFunc
	done   DoneFunc
	broker EventBroker
	retain time.Duration

	queue chan *job
	mu    sync.Mutex
	jobs  map[string]*job
	// closed stops Submit once Shutdown begins
	closed bool

	wg   sync.WaitGroup
	stop chan struct{}
}

func NewJobRunner(workers, queue int, retain time.Duration, broker EventBroker, solve SolveFunc, done DoneFunc) *JobRunner {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 1
	}
	jr := &JobRunner{
		solve:  solve,
		done:   done,
		broker: broker,
		retain: retain,
		queue:  make(chan *job, queue),
		jobs:   map[string]*job{},
		stop:   make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		jr.wg.Add(1)
		go jr.worker()
	}
	go jr.evictLoop()
	return jr
}

// Submit queues a prepared request. It fails with ErrQueueFull rather than block.
func (jr *JobRunner) Submit(req opt.Request, callbackURL string) (model.JobStatus, error) {
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		st: model.JobStatus{
			JobID:     uuid.New().String(),
			Status:    JobQueued,
			Algorithm: string(req.Algorithm),
			CreatedAt: time.Now().UTC(),
		},
		req:         req,
		callbackURL: callbackURL,
		ctx:         ctx,
		cancel:      cancel,
	}
	jr.mu.Lock()
	defer jr.mu.Unlock()
	if jr.closed {
		cancel()
		return model.JobStatus{}, fmt.Errorf("%w: shutting down", ErrQueueFull)
	}
	select {
	case jr.queue <- j:
	default:
		cancel()
		return model.JobStatus{}, fmt.Errorf("%w: %d jobs waiting", ErrQueueFull, cap(jr.queue))
	}
	jr.jobs[j.st.JobID] = j
	metrics.JobsInFlight.Inc()
	return j.st, nil
}

func (jr *JobRunner) lookup(id string) (*job, error) {
	jr.mu.Lock()
	defer jr.mu.Unlock()
	j, ok := jr.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	return j, nil
}

func (jr *JobRunner) Get(id string) (model.JobStatus, error) {
	j, err := jr.lookup(id)
	if err != nil {
		return model.JobStatus{}, err
	}
	return j.snapshot(), nil
}

// Cancel stops a queued or running job. Canceling a finished job is a no-op.
func (jr *JobRunner) Cancel(id string) (model.JobStatus, error) {
	j, err := jr.lookup(id)
	if err != nil {
		return model.JobStatus{}, err
	}
	j.mu.Lock()
	queued := j.st.Status == JobQueued
	if queued {
		jr.finishLocked(j, JobCanceled, nil, context.Canceled)
	}
	j.mu.Unlock()
	j.cancel()
	if queued {
		jr.notify(j, nil)
	}
	return j.snapshot(), nil
}

// Counts reports jobs per status.
func (jr *JobRunner) Counts() map[string]int {
	jr.mu.Lock()
	list := make([]*job, 0, len(jr.jobs))
	for _, j := range jr.jobs {
		list = append(list, j)
	}
	jr.mu.Unlock()
	out := map[string]int{JobQueued: 0, JobRunning: 0, JobSucceeded: 0, JobFailed: 0, JobCanceled: 0}
	for _, j := range list {
		out[j.snapshot().Status]++
	}
	return out
}

func (jr *JobRunner) worker() {
	defer jr.wg.Done()
	for j := range jr.queue {
		jr.run(j)
	}
}

func (jr *JobRunner) run(j *job) {
	j.mu.Lock()
	if j.st.Status != JobQueued {
		j.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	j.st.Status = JobRunning
	j.st.StartedAt = &now
	j.mu.Unlock()

	req := j.req
	if req.Algorithm == opt.AlgorithmSimulatedAnnealing {
		req.Anneal.ProgressEvery = max(1, req.Anneal.MaxIterations/progressReports)
		req.Anneal.Progress = func(p model.Progress) {
			j.mu.Lock()
			j.st.Progress = &p
			j.mu.Unlock()
			jr.broker.Publish(j.st.JobID, Event{Type: EventProgress, Data: map[string]any{
				"job_id":       j.st.JobID,
				"iteration":    p.Iteration,
				"temperature":  p.Temperature,
				"current_cost": p.CurrentCost,
				"best_cost":    p.BestCost,
				"accepted":     p.Accepted,
			}})
		}
	}

	out, err := jr.solve(j.ctx, req)
	status := JobSucceeded
	switch {
	case err != nil:
		status = JobFailed
		if errors.Is(err, context.Canceled) {
			status = JobCanceled
		}
	case j.ctx.Err() != nil:
		status = JobCanceled
	}
	j.cancel()
	var res *opt.Outcome
	if err == nil {
		res = &out
	}
	j.mu.Lock()
	jr.finishLocked(j, status, res, err)
	j.mu.Unlock()
	jr.notify(j, res)
}

func (jr *JobRunner) finishLocked(j *job, status string, out *opt.Outcome, err error) {
	now := time.Now().UTC()
	j.st.Status = status
	j.st.FinishedAt = &now
	if out != nil {
		resp := BuildResponse(*out)
		j.st.Result = &resp
	}
	if err != nil {
		j.st.Error = err.Error()
	}
	metrics.Jobs.WithLabelValues(status).Inc()
	metrics.JobsInFlight.Dec()
}

func (jr *JobRunner) notify(j *job, out *opt.Outcome) {
	st := j.snapshot()
	typ := EventCompleted
	data := map[string]any{"job_id": st.JobID, "status": st.Status}
	switch st.Status {
	case JobFailed:
		typ = EventFailed
		data["error"] = st.Error
	case JobCanceled:
		typ = EventCanceled
	}
	if st.Result != nil {
		data["result"] = st.Result
	}
	jr.broker.Publish(st.JobID, Event{Type: typ, Data: data})
	log.Printf("op=jobs.finish job=%s algo=%s status=%s", st.JobID, st.Algorithm, st.Status)
	if jr.done != nil {
		jr.done(st, out, j.callbackURL)
	}
}

func (jr *JobRunner) evictLoop() {
	interval := time.Minute
	if jr.retain > 0 && jr.retain < interval {
		interval = jr.retain
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-jr.stop:
			return
		case <-ticker.C:
			jr.evict(time.Now())
		}
	}
}

// evict drops finished jobs older than the retention window.
func (jr *JobRunner) evict(now time.Time) int {
	jr.mu.Lock()
	defer jr.mu.Unlock()
	n := 0
	for id, j := range jr.jobs {
		j.mu.Lock()
		old := j.terminal() && j.st.FinishedAt != nil && now.Sub(*j.st.FinishedAt) > jr.retain
		j.mu.Unlock()
		if old {
			delete(jr.jobs, id)
			n++
		}
	}
	return n
}

// Shutdown stops intake and waits for queued and running jobs. When ctx expires first,
// remaining jobs are canceled and still awaited.
func (jr *JobRunner) Shutdown(ctx context.Context) error {
	jr.mu.Lock()
	if jr.closed {
		jr.mu.Unlock()
		return nil
	}
	jr.closed = true
	close(jr.queue)
	jr.mu.Unlock()
	close(jr.stop)

	drained := make(chan struct{})
	go func() {
		jr.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		jr.mu.Lock()
		for _, j := range jr.jobs {
			j.cancel()
		}
		jr.mu.Unlock()
		<-drained
		return ctx.Err()
	}
}
