package api

import (
	"net/http"
	"runtime"
	"time"

	"vrp/internal/buildinfo"
	"vrp/internal/sysinfo"
)

// DebugJSON reports build, config, host and job pool state.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	info := map[string]any{
		"build":      buildinfo.Info(),
		"time":       time.Now().UTC().Format(time.RFC3339),
		"uptime_s":   int64(time.Since(s.started).Seconds()),
		"config":     s.Cfg.Redacted(),
		"host":       sysinfo.Collect(),
		"jobs":       s.Jobs.Counts(),
		"goroutines": runtime.NumGoroutine(),
		"heap_bytes": ms.HeapAlloc,
	}
	if p, ok := principalFrom(r.Context()); ok {
		info["caller"] = p.Subject
	}
	writeJSON(w, http.StatusOK, info)
}
