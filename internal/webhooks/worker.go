package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"vrp/internal/metrics"
	"vrp/internal/obs"
	"vrp/internal/store"
)

type Worker struct {
	Store       store.Store
	HTTP        *http.Client
	Stop        chan struct{}
	MaxAttempts int
	// Secret signs bodies into X-Signature when set.
	Secret string

	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewWorker(s store.Store, maxAttempts int, secret string) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Worker{Store: s, HTTP: &http.Client{Timeout: 5 * time.Second}, Stop: make(chan struct{}), MaxAttempts: maxAttempts, Secret: secret}
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-w.Stop:
				return
			case <-ticker.C:
				w.processOnce()
			}
		}
	}()
}

// Shutdown stops the ticker loop and waits for an in-progress batch.
func (w *Worker) Shutdown() {
	w.stopOnce.Do(func() { close(w.Stop) })
	w.wg.Wait()
}

func (w *Worker) processOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	items, err := w.Store.FetchDueWebhookDeliveries(ctx, 50)
	if err != nil {
		log.Printf("op=webhooks.fetch err=%v", err)
		return
	}
	for _, it := range items {
		w.deliver(ctx, it)
	}
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
	success := false
	next := time.Now().Add(nextBackoff(it.Attempts))
	code := 0
	lastErr := ""
	start := time.Now()
	done := obs.Time("webhooks.post")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
	if err == nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Event-Type", it.EventType)
		req.Header.Set("X-Delivery-ID", it.ID)
		if w.Secret != "" {
			req.Header.Set("X-Signature", SignHMAC(w.Secret, it.Payload))
		}
		var resp *http.Response
		resp, err = w.HTTP.Do(req)
		if err == nil {
			code = resp.StatusCode
			_ = resp.Body.Close()
			success = code >= 200 && code < 300
		}
	}
	done(&err)
	latency := int(time.Since(start).Milliseconds())
	switch {
	case err != nil:
		lastErr = err.Error()
	case !success:
		lastErr = fmt.Sprintf("HTTP %d", code)
	}

	status := store.DeliveryDelivered
	if !success && it.Attempts+1 >= w.MaxAttempts {
		status = store.DeliveryFailed
		if err := w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency); err != nil {
			log.Printf("op=webhooks.fail id=%s err=%v", it.ID, err)
		}
	} else {
		if !success {
			status = store.DeliveryRetry
		}
		if err := w.Store.MarkWebhookDelivery(ctx, it.ID, success, &next, lastErr, code, latency); err != nil {
			log.Printf("op=webhooks.mark id=%s err=%v", it.ID, err)
		}
	}
	metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency))
	log.Printf("op=webhooks.deliver id=%s job=%s event=%s status=%s code=%s dur=%dms", it.ID, it.JobID, it.EventType, status, strconv.Itoa(code), latency)
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 12 {
		attempts = 12
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
