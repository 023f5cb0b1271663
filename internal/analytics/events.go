// Package analytics records search telemetry. The Collector publishes events
// to Kafka from the request path; the Aggregator consumes them and serves
// rolling usage statistics.
package analytics

import "time"

type EventType string

const (
	EventSearch  EventType = "search"
	EventReindex EventType = "reindex"
)

// SearchFilters are the facet constraints and ordering a search ran with.
type SearchFilters struct {
	Category string `json:"category,omitempty"`
	Country  string `json:"country,omitempty"`
	Language string `json:"language,omitempty"`
	Source   string `json:"source,omitempty"`
	SortBy   string `json:"sort_by,omitempty"`
}

type SearchEvent struct {
	Type       EventType     `json:"type"`
	Query      string        `json:"query"`
	Terms      []string      `json:"terms"`
	Filters    SearchFilters `json:"filters"`
	Fuzzy      bool          `json:"fuzzy"`
	Total      int           `json:"total"`
	Returned   int           `json:"returned"`
	LatencyMs  int64         `json:"latency_ms"`
	CacheHit   bool          `json:"cache_hit"`
	Generation uint64        `json:"generation"`
	Timestamp  time.Time     `json:"timestamp"`
	RequestID  string        `json:"request_id"`
}

// ReindexEvent is emitted after the channel index is rebuilt.
type ReindexEvent struct {
	Type       EventType `json:"type"`
	Reason     string    `json:"reason"`
	Generation uint64    `json:"generation"`
	Channels   int       `json:"channels"`
	Terms      int       `json:"terms"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}
