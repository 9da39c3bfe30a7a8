package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var heartbeatInterval = 15 * time.Second

// finalEvent renders a finished job as the event its subscribers would have received.
func (s *Server) finalEvent(id string) (Event, bool) {
	st, err := s.Jobs.Get(id)
	if err != nil {
		return Event{}, false
	}
	data := map[string]any{"job_id": st.JobID, "status": st.Status}
	switch st.Status {
	case JobSucceeded:
		data["result"] = st.Result
		return Event{Type: EventCompleted, Data: data}, true
	case JobFailed:
		data["error"] = st.Error
		return Event{Type: EventFailed, Data: data}, true
	case JobCanceled:
		if st.Result != nil {
			data["result"] = st.Result
		}
		return Event{Type: EventCanceled, Data: data}, true
	}
	return Event{}, false
}

func isFinal(evt Event) bool {
	return evt.Type == EventCompleted || evt.Type == EventFailed || evt.Type == EventCanceled
}

// JobEventsHandler streams job events as Server-Sent Events until the job finishes.
func (s *Server) JobEventsHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.Jobs.Get(id); err != nil {
		writeError(w, r, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	send := func(evt Event) {
		b, _ := json.Marshal(evt.Data)
		fmt.Fprintf(w, "event: %s\n", evt.Type)
		fmt.Fprintf(w, "data: %s\n\n", b)
		flusher.Flush()
	}
	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"job_id\":%q,\"ts\":%q}\n\n", id, time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()
	// the job may have finished before the subscription existed
	if evt, done := s.finalEvent(id); done {
		send(evt)
		return
	}
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				if evt, done := s.finalEvent(id); done {
					send(evt)
				}
				return
			}
			send(evt)
			if isFinal(evt) {
				return
			}
		case <-ticker.C:
			if evt, done := s.finalEvent(id); done {
				send(evt)
				return
			}
			heartbeat()
		}
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// wsMessage is one WebSocket frame in either direction.
type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JobWSHandler streams job events over a WebSocket. Clients may send "ping" and "cancel" frames.
func (s *Server) JobWSHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.Jobs.Get(id); err != nil {
		writeError(w, r, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}
	sendEvent := func(evt Event) error {
		payload, _ := json.Marshal(evt.Data)
		return write(wsMessage{Type: evt.Type, ID: id, Payload: payload})
	}

	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	// Read loop
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			switch msg.Type {
			case "ping":
				_ = write(wsMessage{Type: "pong", ID: id})
			case "cancel":
				if _, err := s.Jobs.Cancel(id); err != nil {
					_ = write(wsMessage{Type: "error", ID: id, Payload: []byte(`{"message":"cancel failed"}`)})
				}
			default:
				// ignore
			}
		}
	}()

	if err := write(wsMessage{Type: "connection_ack", ID: id}); err != nil {
		return
	}
	finish := func(evt Event) {
		if sendEvent(evt) == nil {
			_ = write(wsMessage{Type: "complete", ID: id})
		}
	}
	if evt, done := s.finalEvent(id); done {
		finish(evt)
		return
	}
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case evt, ok := <-ch:
			if !ok {
				if evt, done := s.finalEvent(id); done {
					finish(evt)
				}
				return
			}
			if err := sendEvent(evt); err != nil {
				return
			}
			if isFinal(evt) {
				_ = write(wsMessage{Type: "complete", ID: id})
				return
			}
		case <-ticker.C:
			if evt, done := s.finalEvent(id); done {
				finish(evt)
				return
			}
			wmu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			wmu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
