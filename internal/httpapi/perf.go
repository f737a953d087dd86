package httpapi

import "net/http"

// handlePerfLatency reports recent per-question answer latency, answer
// sources and voice match rates.
func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.SnapshotLatency())
}
