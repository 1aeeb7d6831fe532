package api

import (
	"context"
	"net/http"
	"time"
)

// triggerSyncHandler runs one reconciliation cycle on demand. It shares the
// engine with the periodic runner; cycles are idempotent so overlap with a
// scheduled run only costs duplicate upstream calls.
func (s *Server) triggerSyncHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	result, err := s.reconciler.RunCycle(ctx)

	if err != nil {
		s.logger.Error("Manual sync cycle failed", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "Sync cycle failed")
		return
	}

	s.metrics.RecordCycle(result.Discovered, result.Deactivated, result.Cin7Failed, result.PrintavoFailed)

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    result,
	})
}
