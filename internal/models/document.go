package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus represents the local view of a document's ingestion
type DocumentStatus string

const (
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusSucceeded  DocumentStatus = "succeeded"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document is the local record of an ingested knowledge document. The
// remote document id is the join key into the remote service.
type Document struct {
	ID               uuid.UUID      `json:"id" db:"id"`
	OwnerID          string         `json:"owner_id" db:"owner_id"`
	RemoteDocumentID string         `json:"remote_document_id" db:"remote_document_id"`
	Name             string         `json:"name" db:"name"`
	Category         *string        `json:"category,omitempty" db:"category"`
	IndexState       string         `json:"index_state" db:"index_state"`
	Status           DocumentStatus `json:"status" db:"status"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// OrphanDocument is a ledger row for a document uploaded (and possibly
// indexed) remotely but never linked into the agent's configuration.
// The reconciler retries the link until it succeeds.
type OrphanDocument struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	RemoteDocumentID string     `json:"remote_document_id" db:"remote_document_id"`
	AgentID          string     `json:"agent_id" db:"agent_id"`
	Name             string     `json:"name" db:"name"`
	Attempts         int        `json:"attempts" db:"attempts"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	LastAttemptAt    *time.Time `json:"last_attempt_at,omitempty" db:"last_attempt_at"`
}
