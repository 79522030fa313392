package extractsvc

import (
	"encoding/json"
	"net/http"
)

// HealthStatus reports whether the pool is keeping up with submitted
// work, in the same "status/uptime/counters" shape the reference
// daemon exposes for its inference workers.
type HealthStatus struct {
	Status    string  `json:"status"` // "healthy", "degraded"
	UptimeS   float64 `json:"uptime_seconds"`
	Submitted uint64  `json:"jobs_submitted"`
	Completed uint64  `json:"jobs_completed"`
	Failed    uint64  `json:"jobs_failed"`
	Abandoned uint64  `json:"jobs_abandoned"`
}

// Health derives a HealthStatus from the pool's current counters.
// Status degrades once any job has failed or been abandoned.
func (p *Pool) Health() HealthStatus {
	s := p.Stats()
	status := "healthy"
	if s.Failed > 0 || s.Abandoned > 0 {
		status = "degraded"
	}
	return HealthStatus{
		Status:    status,
		UptimeS:   s.UptimeS,
		Submitted: s.Submitted,
		Completed: s.Completed,
		Failed:    s.Failed,
		Abandoned: s.Abandoned,
	}
}

// LivenessHandler serves a minimal liveness probe: 200 if this code
// can run at all.
func (p *Pool) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// ReadinessHandler serves the pool's HealthStatus. A degraded pool is
// still ready to accept work — it returns 200, same as the reference
// daemon's readiness handler treats a degraded-but-running service.
func (p *Pool) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	health := p.Health()
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}
