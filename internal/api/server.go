// Package api implements the HTTP surface of the route optimization service.
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vrp/internal/auth"
	"vrp/internal/config"
	"vrp/internal/metrics"
	"vrp/internal/model"
	"vrp/internal/obs"
	"vrp/internal/opt"
	"vrp/internal/store"
	"vrp/internal/webhooks"
)

type Server struct {
	Cfg     config.Config
	Store   store.Store
	Pub     *webhooks.Publisher
	Auth    *auth.Verifier
	Broker  EventBroker
	Jobs    *JobRunner
	limiter *ipLimiter
	proxies proxyTrust
	started time.Time
}

// NewServer wires the store, broker and job pool from cfg.
// An empty database URL selects the in-memory store; an empty Redis URL the in-process broker.
func NewServer(cfg config.Config) (*Server, error) {
	proxies, err := parseProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Storage.DatabaseURL)
	if err != nil {
		return nil, err
	}
	var broker EventBroker = NewBroker()
	if cfg.Broker.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.Broker.RedisURL); err == nil {
			broker = rb
		} else {
			log.Printf("op=server.broker redis unavailable, using in-process broker: %v", err)
		}
	}
	metrics.RegisterDefault()
	s := &Server{
		Cfg:     cfg,
		Store:   st,
		Pub:     webhooks.NewPublisher(st),
		Auth:    auth.NewVerifier(cfg.Auth.Mode, cfg.Auth.HMACSecret),
		Broker:  broker,
		proxies: proxies,
		started: time.Now(),
	}
	if cfg.Rate.RPS > 0 {
		s.limiter = newIPLimiter(cfg.Rate.RPS, cfg.Rate.Burst)
	}
	s.Jobs = NewJobRunner(cfg.Jobs.Workers, cfg.Jobs.Queue, cfg.Jobs.Retain, broker, s.optimize, s.jobDone)
	return s, nil
}

// Handler returns the routed handler with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.HealthHandler)
	mux.HandleFunc("GET /health", s.HealthHandler)
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.HandleFunc("GET /algorithms", s.AlgorithmsHandler)

	mux.HandleFunc("POST /solve", s.SolveHandler)
	mux.HandleFunc("POST /v1/solve", s.SolveHandler)

	mux.HandleFunc("POST /v1/jobs", s.CreateJobHandler)
	mux.HandleFunc("GET /v1/jobs/{id}", s.JobHandler)
	mux.HandleFunc("DELETE /v1/jobs/{id}", s.CancelJobHandler)
	mux.HandleFunc("GET /v1/jobs/{id}/events", s.JobEventsHandler)
	mux.HandleFunc("GET /v1/jobs/{id}/ws", s.JobWSHandler)

	mux.HandleFunc("GET /v1/runs", s.RunsHandler)
	mux.HandleFunc("GET /v1/runs/{id}", s.RunHandler)

	mux.HandleFunc("GET /v1/admin/run-metrics", s.requireAdmin(s.RunMetricsHandler))
	mux.HandleFunc("GET /v1/admin/webhook-deliveries", s.requireAdmin(s.WebhookDeliveriesHandler))
	mux.HandleFunc("POST /v1/admin/webhook-deliveries/{id}/retry", s.requireAdmin(s.WebhookDeliveryRetryHandler))
	mux.HandleFunc("GET /debug/vars", s.requireAdmin(s.DebugJSON))

	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("GET /openapi.json", s.OpenAPIJSONHandler)
	mux.HandleFunc("GET /docs", s.DocsHandler)

	return chain(mux,
		recoverMiddleware,
		s.loggingMiddleware,
		corsMiddleware(s.Cfg.Server.AllowOrigins),
		rateLimitMiddleware(s.limiter, s.proxies),
	)
}

// SweepLimiter drops idle rate-limit buckets until ctx ends.
func (s *Server) SweepLimiter(ctx context.Context) {
	if s.limiter == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.limiter.sweep(now, 10*time.Minute)
		}
	}
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Cfg.Webhooks.MaxAttempts, s.Cfg.Webhooks.Secret)
}

// Shutdown drains the job pool, then closes the broker and store.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Jobs.Shutdown(ctx)
	if cerr := s.Broker.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if cerr := s.Store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// optimize runs one prepared request and records solver metrics.
func (s *Server) optimize(ctx context.Context, req opt.Request) (out opt.Outcome, err error) {
	defer obs.Time("solve." + string(req.Algorithm))(&err)
	start := time.Now()
	out, err = opt.Optimize(ctx, req)
	algo := string(req.Algorithm)
	metrics.SolveDuration.WithLabelValues(algo).Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		metrics.Solves.WithLabelValues(algo, "ok").Inc()
		if out.Stats != nil {
			metrics.SAIterations.Observe(float64(out.Stats.IterationsCompleted))
			metrics.SolveImprovement.Observe(out.Stats.ImprovementPercentage)
		}
	case opt.ErrorKind(err) != "":
		metrics.Solves.WithLabelValues(algo, "invalid").Inc()
	default:
		metrics.Solves.WithLabelValues(algo, "error").Inc()
	}
	return out, err
}

// saveRun stores the telemetry of a finished solve. Failures are logged, not returned.
func (s *Server) saveRun(ctx context.Context, source, jobID string, resp model.SolveResponse, out opt.Outcome, dur time.Duration) string {
	stats := resp.Statistics
	if stats != nil {
		trimmed := make(map[string]any, len(stats))
		for k, v := range stats {
			if k == "trace" || k == "best_cost_history" {
				continue
			}
			trimmed[k] = v
		}
		stats = trimmed
	}
	run := model.Run{
		JobID:         jobID,
		Source:        source,
		Algorithm:     string(out.Algorithm),
		DistanceUnit:  string(out.Unit),
		Vehicles:      out.Summary.TotalVehicles,
		Orders:        out.Summary.TotalOrders,
		TotalDistance: resp.TotalDistance,
		DurationMs:    dur.Milliseconds(),
		Statistics:    stats,
		CreatedAt:     time.Now().UTC(),
	}
	run.ID = newID()
	done := obs.Time("store.save_run")
	err := s.Store.SaveRun(ctx, run)
	done(&err)
	if err != nil {
		log.Printf("op=runs.save source=%s err=%v", source, err)
		return ""
	}
	return run.ID
}

// jobDone persists a finished job and queues its callback.
func (s *Server) jobDone(st model.JobStatus, out *opt.Outcome, callbackURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if out != nil && st.Result != nil {
		var dur time.Duration
		if st.StartedAt != nil && st.FinishedAt != nil {
			dur = st.FinishedAt.Sub(*st.StartedAt)
		}
		s.saveRun(ctx, "job", st.JobID, *st.Result, *out, dur)
	}
	event := webhooks.EventJobCompleted
	if st.Status != JobSucceeded {
		event = webhooks.EventJobFailed
	}
	if _, err := s.Pub.Emit(ctx, st.JobID, event, callbackURL, st); err != nil {
		log.Printf("op=webhooks.emit job=%s err=%v", st.JobID, err)
	}
}
