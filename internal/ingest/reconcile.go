package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxture/voxture-backend/internal/knowledge"
	"github.com/voxture/voxture-backend/internal/logging"
	"github.com/voxture/voxture-backend/internal/models"
	"github.com/voxture/voxture-backend/internal/monitoring"
)

const reconcileBatchSize = 50

// OrphanStore is the ledger access the reconciler needs
type OrphanStore interface {
	ListOrphans(ctx context.Context, limit int) ([]*models.OrphanDocument, error)
	MarkOrphanAttempt(ctx context.Context, id uuid.UUID) error
	ResolveOrphan(ctx context.Context, id uuid.UUID) error
}

// Reconciler periodically retries linking orphan documents into their
// agent's knowledge configuration. It never re-uploads: the remote
// document already exists, only the link is missing.
type Reconciler struct {
	client   knowledge.Client
	store    OrphanStore
	locks    Locker
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
	logger   zerolog.Logger
}

// NewReconciler creates an orphan reconciler
func NewReconciler(client knowledge.Client, store OrphanStore, locks Locker, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if locks == nil {
		locks = NoopLocker{}
	}
	return &Reconciler{
		client:   client,
		store:    store,
		locks:    locks,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logging.NewLogger("reconciler"),
	}
}

// Start begins the periodic reconciliation loop
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler already running")
	}
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(ctx)

	r.logger.Info().Dur("interval", r.interval).Msg("Orphan reconciler started")
	return nil
}

// Stop stops the reconciliation loop and waits for it to exit
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)
	r.wg.Wait()
	r.logger.Info().Msg("Orphan reconciler stopped")
}

func (r *Reconciler) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			if err := r.ReconcileOnce(ctx); err != nil {
				r.logger.Error().Err(err).Msg("Reconciliation pass failed")
			}
		}
	}
}

// ReconcileOnce runs a single reconciliation pass over the ledger
func (r *Reconciler) ReconcileOnce(ctx context.Context) error {
	orphans, err := r.store.ListOrphans(ctx, reconcileBatchSize)
	if err != nil {
		return err
	}
	if len(orphans) == 0 {
		return nil
	}

	r.logger.Info().Int("count", len(orphans)).Msg("Reconciling orphan documents")

	for _, orphan := range orphans {
		if err := r.reconcileOne(ctx, orphan); err != nil {
			r.logger.Warn().
				Err(err).
				Str("remote_document_id", orphan.RemoteDocumentID).
				Int("attempts", orphan.Attempts).
				Msg("Orphan link retry failed")
			if markErr := r.store.MarkOrphanAttempt(ctx, orphan.ID); markErr != nil {
				r.logger.Error().Err(markErr).Msg("Failed to mark orphan attempt")
			}
			continue
		}

		if err := r.store.ResolveOrphan(ctx, orphan.ID); err != nil {
			r.logger.Error().Err(err).Str("remote_document_id", orphan.RemoteDocumentID).Msg("Failed to resolve orphan")
			continue
		}
		monitoring.RecordOrphanReconciled()
		r.logger.Info().
			Str("remote_document_id", orphan.RemoteDocumentID).
			Msg("Orphan document linked")
	}

	return nil
}

// reconcileOne retries the fetch-merge-write for one orphan. Merge is
// idempotent by entry id, so linking an already-linked document is a
// safe no-op write.
func (r *Reconciler) reconcileOne(ctx context.Context, orphan *models.OrphanDocument) error {
	release, err := r.locks.Acquire(ctx, orphan.AgentID)
	if err != nil {
		return err
	}
	defer release()

	cfg, err := r.client.FetchAgentConfig(ctx, orphan.AgentID)
	if err != nil {
		return err
	}

	merged := knowledge.Merge(cfg, knowledge.NewFileEntry(orphan.RemoteDocumentID, orphan.Name))

	return r.client.PatchAgentConfig(ctx, orphan.AgentID, merged)
}
