package audit

import (
	"context"
	"time"
)

// Operation names the gateway call that produced an entry.
type Operation string

const (
	OperationGetOrCreate   Operation = "get_or_create"
	OperationAskEnrichment Operation = "ask_enrichment"
)

// Entry records one successful observable resolution.
type Entry struct {
	ID           string    `json:"id"`
	Operation    Operation `json:"operation"`
	Status       string    `json:"status"`
	Kind         string    `json:"kind"`
	Value        string    `json:"value"`
	ObservableID string    `json:"observable_id"`
	EntityType   string    `json:"entity_type"`
	WorkID       string    `json:"work_id,omitempty"`
	ConnectorID  string    `json:"connector_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store defines operations for persisting resolution history.
type Store interface {
	// Append assigns ID and CreatedAt when they are empty and returns the
	// stored entry.
	Append(ctx context.Context, entry Entry) (Entry, error)
	// List returns at most limit entries, newest first.
	List(ctx context.Context, limit int) ([]Entry, error)
}
