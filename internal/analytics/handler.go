package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Stats serves the aggregator's current statistics, or a disabled marker
// when analytics are not running.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	var body any = map[string]string{"status": "disabled"}
	if h.aggregator != nil {
		body = h.aggregator.Stats()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
