package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"vrp/internal/buildinfo"
	"vrp/internal/model"
	"vrp/internal/opt"
)

func newID() string { return uuid.New().String() }

// HealthHandler serves /, /health and /healthz.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := model.HealthResponse{Status: "healthy", Message: "All systems operational", Version: buildinfo.Version}
	if r.URL.Path == "/" {
		resp = model.HealthResponse{Status: "online", Message: "Vehicle Routing Problem API is running", Version: buildinfo.Version}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// AlgorithmsHandler lists the solvers with their parameters and the configured defaults.
func (s *Server) AlgorithmsHandler(w http.ResponseWriter, r *http.Request) {
	d := s.Cfg.AnnealConfig()
	param := func(typ string, def any, desc, rng string) map[string]any {
		return map[string]any{"type": typ, "default": def, "description": desc, "range": rng}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"algorithms": []map[string]any{
			{
				"name":            string(opt.AlgorithmGreedy),
				"aliases":         []string{"nearest_neighbor"},
				"full_name":       "Greedy Nearest Neighbor",
				"description":     "Fast baseline algorithm that assigns nearest unassigned orders",
				"time_complexity": "O(v × o²)",
				"parameters":      map[string]any{},
			},
			{
				"name":            string(opt.AlgorithmSimulatedAnnealing),
				"aliases":         []string{"sa", "annealing"},
				"full_name":       "Simulated Annealing",
				"description":     "Metaheuristic that escapes local optima by occasionally accepting worse solutions",
				"time_complexity": "O(iterations × orders)",
				"parameters": map[string]any{
					"initial_temp":   param("float", d.InitialTemperature, "Starting temperature", "100-5000"),
					"final_temp":     param("float", d.FinalTemperature, "Ending temperature", "0.1-10"),
					"cooling_rate":   param("float", d.CoolingRate, "Temperature decrease rate", "0.90-0.999"),
					"max_iterations": param("int", d.MaxIterations, "Maximum iterations", fmt.Sprintf("1-%d", s.Cfg.Server.MaxIterations)),
					"seed":           param("int", 0, "Random seed, 0 seeds from the clock", "any"),
					"polish":         param("bool", false, "Apply 2-opt to each route after annealing", "true|false"),
					"warm_start":     param("bool", false, "Start from the greedy solution", "true|false"),
					"verbose":        param("bool", false, "Include the iteration trace", "true|false"),
				},
			},
		},
		"distance_units":  []string{"km", "miles", "meters", "feet"},
		"default_unit":    string(s.Cfg.Unit()),
		"solve_timeout_s": s.Cfg.Server.SolveTimeout.Seconds(),
		"job_timeout_s":   s.Cfg.Jobs.Timeout.Seconds(),
	})
}

func (s *Server) limits() Limits {
	return Limits{MaxVehicles: s.Cfg.Server.MaxVehicles, MaxOrders: s.Cfg.Server.MaxOrders, MaxIterations: s.Cfg.Server.MaxIterations}
}

// SolveHandler handles POST /solve and /v1/solve synchronously.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	var body model.SolveRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := PrepareRequest(body, s.Cfg.AnnealConfig(), s.limits())
	if err != nil {
		writeError(w, r, err)
		return
	}
	req.Anneal.TimeBudget = s.Cfg.Server.SolveTimeout
	start := time.Now()
	out, err := s.optimize(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := BuildResponse(out)
	resp.RunID = s.saveRun(r.Context(), "sync", "", resp, out, time.Since(start))
	writeJSON(w, http.StatusOK, resp)
}

// CreateJobHandler handles POST /v1/jobs.
func (s *Server) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	var body model.JobRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.CallbackURL != "" {
		u, err := url.Parse(body.CallbackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			writeError(w, r, fmt.Errorf("%w: callback_url must be an absolute http(s) URL", opt.ErrConfiguration))
			return
		}
	}
	req, err := PrepareRequest(body.SolveRequest, s.Cfg.AnnealConfig(), s.limits())
	if err != nil {
		writeError(w, r, err)
		return
	}
	req.Anneal.TimeBudget = s.Cfg.Jobs.Timeout
	st, err := s.Jobs.Submit(req, body.CallbackURL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/jobs/"+st.JobID)
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": st.JobID, "status": st.Status})
}

func (s *Server) JobHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.Jobs.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.Jobs.Cancel(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

// pageParams reads limit and cursor query parameters.
func pageParams(r *http.Request) (int, string, error) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, "", fmt.Errorf("%w: limit must be a non-negative integer", opt.ErrConfiguration)
		}
		limit = n
	}
	return limit, r.URL.Query().Get("cursor"), nil
}

// RunsHandler handles GET /v1/runs.
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	limit, cursor, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	algo := r.URL.Query().Get("algorithm")
	if algo != "" {
		a, err := opt.ParseAlgorithm(algo)
		if err != nil {
			writeError(w, r, err)
			return
		}
		algo = string(a)
	}
	items, next, err := s.Store.ListRuns(r.Context(), algo, cursor, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "next_cursor": next})
}

func (s *Server) RunHandler(w http.ResponseWriter, r *http.Request) {
	run, err := s.Store.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// RunMetricsHandler reports the latest run per algorithm, from the store or else from this process.
func (s *Server) RunMetricsHandler(w http.ResponseWriter, r *http.Request) {
	latest, err := s.Store.LatestRuns(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(latest) > 0 {
		writeJSON(w, http.StatusOK, map[string]any{"source": "store", "items": latest})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"source": "process", "items": opt.LastMetrics()})
}

// Admin: webhook deliveries list and retry
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	limit, cursor, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, next, err := s.Store.ListWebhookDeliveries(r.Context(), r.URL.Query().Get("status"), cursor, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "next_cursor": next})
}

func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.RetryWebhookDelivery(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": 1})
}
