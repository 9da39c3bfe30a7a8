package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"vrp/internal/opt"
)

// stallWriter blocks the first progress write until gate is closed.
type stallWriter struct {
	*httptest.ResponseRecorder
	stalled chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (w *stallWriter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte(EventProgress)) {
		w.once.Do(func() {
			close(w.stalled)
			<-w.gate
		})
	}
	return w.ResponseRecorder.Write(p)
}

func TestJobEventsSlowClientStillGetsCompletion(t *testing.T) {
	s := newTestServer(t)
	old := s.Jobs
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = old.Shutdown(ctx)

	release := make(chan struct{})
	s.Jobs = NewJobRunner(1, 1, time.Hour, s.Broker, blockingSolve(release), nil)
	st, err := s.Jobs.Submit(opt.Request{Algorithm: opt.AlgorithmGreedy}, "")
	if err != nil {
		t.Fatal(err)
	}
	waitStatus(t, s.Jobs, st.JobID, JobRunning)

	w := &stallWriter{ResponseRecorder: httptest.NewRecorder(), stalled: make(chan struct{}), gate: make(chan struct{})}
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+st.JobID+"/events", nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Handler().ServeHTTP(w, req)
	}()

	broker := s.Broker.(*Broker)
	deadline := time.Now().Add(2 * time.Second)
	for broker.Subscribers(st.JobID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.Broker.Publish(st.JobID, Event{Type: EventProgress, Data: map[string]any{"iteration": 0}})
	select {
	case <-w.stalled:
	case <-time.After(2 * time.Second):
		t.Fatal("stream never wrote a progress event")
	}
	// the stalled stream leaves its whole buffer full of progress
	for i := 1; i <= 16; i++ {
		s.Broker.Publish(st.JobID, Event{Type: EventProgress, Data: map[string]any{"iteration": i}})
	}
	close(release)
	waitStatus(t, s.Jobs, st.JobID, JobSucceeded)
	close(w.gate)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("stream kept running after the job finished")
	}
	if !strings.Contains(w.Body.String(), "event: "+EventCompleted) {
		t.Fatalf("stream never sent %s:\n%s", EventCompleted, w.Body.String())
	}
}

func TestJobEventsHeartbeatNoticesFinishedJob(t *testing.T) {
	prev := heartbeatInterval
	heartbeatInterval = 20 * time.Millisecond
	t.Cleanup(func() { heartbeatInterval = prev })

	s := newTestServer(t)
	old := s.Jobs
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = old.Shutdown(ctx)

	// job events go to a broker the stream is not subscribed to
	release := make(chan struct{})
	s.Jobs = NewJobRunner(1, 1, time.Hour, NewBroker(), blockingSolve(release), nil)
	st, err := s.Jobs.Submit(opt.Request{Algorithm: opt.AlgorithmGreedy}, "")
	if err != nil {
		t.Fatal(err)
	}
	waitStatus(t, s.Jobs, st.JobID, JobRunning)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+st.JobID+"/events", nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Handler().ServeHTTP(rr, req)
	}()
	broker := s.Broker.(*Broker)
	deadline := time.Now().Add(2 * time.Second)
	for broker.Subscribers(st.JobID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(release)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("stream kept running after the job finished")
	}
	if !strings.Contains(rr.Body.String(), "event: "+EventCompleted) {
		t.Fatalf("stream never sent %s:\n%s", EventCompleted, rr.Body.String())
	}
}
