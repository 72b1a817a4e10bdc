// Package document persists local document records and the orphan
// ledger. The local record is written only after a successful ingestion;
// the ledger tracks remote documents that were uploaded but never linked.
package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxture/voxture-backend/internal/models"
)

// Store errors
var (
	ErrDocumentNotFound = errors.New("document not found")
)

// Store handles document persistence
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a new document store
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Create persists a local document record
func (s *Store) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = time.Now().UTC()

	_, err := s.db.Exec(ctx, `
		INSERT INTO documents (id, owner_id, remote_document_id, name, category, index_state, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, doc.ID, doc.OwnerID, doc.RemoteDocumentID, doc.Name, doc.Category, doc.IndexState, doc.Status, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// GetByID returns a single document record
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRow(ctx, `
		SELECT id, owner_id, remote_document_id, name, category, index_state, status, created_at
		FROM documents WHERE id = $1
	`, id).Scan(&doc.ID, &doc.OwnerID, &doc.RemoteDocumentID, &doc.Name, &doc.Category,
		&doc.IndexState, &doc.Status, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// ListByOwner returns all document records for an owner, newest first
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, owner_id, remote_document_id, name, category, index_state, status, created_at
		FROM documents WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.OwnerID, &doc.RemoteDocumentID, &doc.Name, &doc.Category,
			&doc.IndexState, &doc.Status, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// RecordOrphan adds a ledger row for an uploaded-but-unlinked document
func (s *Store) RecordOrphan(ctx context.Context, remoteDocumentID, agentID, name string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO orphan_documents (id, remote_document_id, agent_id, name, attempts, created_at)
		VALUES ($1, $2, $3, $4, 0, NOW())
		ON CONFLICT (remote_document_id) DO NOTHING
	`, uuid.New(), remoteDocumentID, agentID, name)
	if err != nil {
		return fmt.Errorf("failed to record orphan: %w", err)
	}
	return nil
}

// ListOrphans returns up to limit ledger rows, oldest first
func (s *Store) ListOrphans(ctx context.Context, limit int) ([]*models.OrphanDocument, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, remote_document_id, agent_id, name, attempts, created_at, last_attempt_at
		FROM orphan_documents
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphans: %w", err)
	}
	defer rows.Close()

	var orphans []*models.OrphanDocument
	for rows.Next() {
		var o models.OrphanDocument
		if err := rows.Scan(&o.ID, &o.RemoteDocumentID, &o.AgentID, &o.Name,
			&o.Attempts, &o.CreatedAt, &o.LastAttemptAt); err != nil {
			return nil, fmt.Errorf("failed to scan orphan: %w", err)
		}
		orphans = append(orphans, &o)
	}
	return orphans, rows.Err()
}

// MarkOrphanAttempt bumps the attempt counter after a failed reconcile
func (s *Store) MarkOrphanAttempt(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE orphan_documents
		SET attempts = attempts + 1, last_attempt_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark orphan attempt: %w", err)
	}
	return nil
}

// ResolveOrphan removes a ledger row once the document is linked
func (s *Store) ResolveOrphan(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM orphan_documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to resolve orphan: %w", err)
	}
	return nil
}
