// Package main runs a demo WebSocket client that follows one annealing job.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	orders := flag.Int("orders", 60, "random orders to generate")
	vehicles := flag.Int("vehicles", 5, "random vehicles to generate")
	cancelAfter := flag.Int("cancel-after", 0, "send a cancel frame after this many progress events (0 never)")
	flag.Parse()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Random instance around Manhattan
	rng := rand.New(rand.NewSource(1))
	jitter := func(c float64) float64 { return c + (rng.Float64()-0.5)*0.1 }
	vs := make([]map[string]any, *vehicles)
	for i := range vs {
		vs[i] = map[string]any{"id": fmt.Sprintf("V%d", i+1), "current_lat": jitter(40.75), "current_lon": jitter(-73.98)}
	}
	ords := make([]map[string]any, *orders)
	for i := range ords {
		ords[i] = map[string]any{
			"id":          fmt.Sprintf("O%d", i+1),
			"pickup_lat":  jitter(40.75),
			"pickup_lon":  jitter(-73.98),
			"dropoff_lat": jitter(40.75),
			"dropoff_lon": jitter(-73.98),
		}
	}
	body, _ := json.Marshal(map[string]any{
		"vehicles":  vs,
		"orders":    ords,
		"algorithm": "simulated_annealing",
		"sa_params": map[string]any{"max_iterations": 50000, "cooling_rate": 0.9999, "initial_temp": 1000, "final_temp": 0.1},
	})
	resp, err := http.Post(base+"/v1/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var created struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil || created.JobID == "" {
		log.Fatalf("create job: status=%d err=%v", resp.StatusCode, err)
	}
	log.Printf("Job ID: %s", created.JobID)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/jobs/" + created.JobID + "/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	progress := 0
	for {
		var m wsMessage
		if err := c.ReadJSON(&m); err != nil {
			log.Printf("read: %v", err)
			return
		}
		switch m.Type {
		case "job.progress":
			progress++
			var p struct {
				Iteration int     `json:"iteration"`
				BestCost  float64 `json:"best_cost"`
			}
			_ = json.Unmarshal(m.Payload, &p)
			log.Printf("WS <- progress it=%d best=%.3f", p.Iteration, p.BestCost)
			if *cancelAfter > 0 && progress == *cancelAfter {
				log.Printf("WS -> cancel")
				if err := c.WriteJSON(wsMessage{Type: "cancel"}); err != nil {
					log.Fatal(err)
				}
			}
		case "complete":
			log.Printf("WS <- complete")
			return
		default:
			log.Printf("WS <- %s: %.200s", m.Type, string(m.Payload))
		}
	}
}
