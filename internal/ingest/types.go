// Package ingest defines the request/response types and Kafka event schemas
// used by the entry ingestion pipeline.
package ingest

import "time"

// Request is the JSON body accepted by the ingestion HTTP endpoint.
type Request struct {
	Category       string   `json:"category"`
	Question       string   `json:"question"`
	Answer         string   `json:"answer"`
	CodeSample     string   `json:"code_sample,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
}

// Response is returned to the caller after an entry is accepted.
type Response struct {
	EntryID   string `json:"entry_id"`
	Status    string `json:"status"`
	Partition int    `json:"partition"`
}

// Event is the Kafka message payload produced after an entry is persisted
// and ready for indexing.
type Event struct {
	EntryID    string    `json:"entry_id"`
	Seq        int       `json:"seq"`
	Category   string    `json:"category"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	CodeSample string    `json:"code_sample,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Partition  int       `json:"partition"`
	IngestedAt time.Time `json:"ingested_at"`
}
