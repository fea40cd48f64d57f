package httpapi

import "net/http"

// handlePerfLatency reports windowed latency percentiles for the voice
// pipeline stages, independent of the Prometheus scrape.
func (s *Server) handlePerfLatency(w http.ResponseWriter, r *http.Request) {
	snapshot := s.metrics.StageSnapshot()
	if r.URL.Query().Get("reset") == "true" {
		s.metrics.ResetStages()
	}
	respondJSON(w, http.StatusOK, snapshot)
}
