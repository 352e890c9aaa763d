// Package analytics collects query and indexing telemetry, streams it
// through Kafka, and aggregates it into usage statistics.
package analytics

import "time"

// EventType classifies analytics events.
type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventCacheMiss  EventType = "cache_miss"
	EventIndexEntry EventType = "index_entry"
	EventZeroResult EventType = "zero_result"
)

// SearchEvent records one executed search query.
type SearchEvent struct {
	Type           EventType `json:"type"`
	Query          string    `json:"query"`
	Terms          []string  `json:"terms"`
	TotalHits      int       `json:"total_hits"`
	Returned       int       `json:"returned"`
	LatencyMs      int64     `json:"latency_ms"`
	CacheHit       bool      `json:"cache_hit"`
	PartitionCount int       `json:"partition_count"`
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id"`
}

// IndexEvent records one entry passing through the indexing pipeline.
type IndexEvent struct {
	Type       EventType `json:"type"`
	EntryID    string    `json:"entry_id"`
	Category   string    `json:"category"`
	Partition  int       `json:"partition"`
	TokenCount int       `json:"token_count"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}
