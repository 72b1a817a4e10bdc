// Package ingest sequences the knowledge synchronization pipeline:
// upload raw content, drive the remote indexing job to a terminal state,
// then merge the new entry into the agent's shared knowledge
// configuration and write it back.
package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxture/voxture-backend/internal/config"
	"github.com/voxture/voxture-backend/internal/knowledge"
	"github.com/voxture/voxture-backend/internal/logging"
	"github.com/voxture/voxture-backend/internal/monitoring"
)

// Failure reasons surfaced to the caller
const (
	ReasonUpload = "upload"
	ReasonIndex  = "index"
	ReasonLink   = "link"
)

// Status of a completed ingestion
type Status string

const (
	// StatusProcessing means the document is linked and queryable but its
	// indexing job had not reached success when the pipeline returned.
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Request describes one document ingestion. Immutable; discarded after
// the pipeline completes.
type Request struct {
	OwnerID  string
	Name     string
	Content  string
	Category *string
}

// Result is the terminal output returned to the caller
type Result struct {
	DocumentID string
	Status     Status
	Reason     string
	IndexState knowledge.MonitorState
}

// OrphanLedger records documents that were uploaded remotely but never
// linked into the agent configuration.
type OrphanLedger interface {
	RecordOrphan(ctx context.Context, remoteDocumentID, agentID, name string) error
}

// Orchestrator runs the ingestion pipeline. Each call is one cooperative
// chain of remote operations; concurrent ingestions for different
// documents are fully independent.
//
// Two concurrent ingestions for the same agent race on the shared
// knowledge configuration unless a Locker is configured: the later
// config write wins and can silently drop the earlier entry.
type Orchestrator struct {
	client      knowledge.Client
	monitor     *knowledge.Monitor
	ledger      OrphanLedger
	locks       Locker
	agentID     string
	indexPolicy string
	logger      zerolog.Logger
}

// NewOrchestrator creates an ingestion orchestrator. ledger and locks
// may be nil: without a ledger orphans are only logged, and without
// locks ingestions for the same agent are unsynchronized.
func NewOrchestrator(client knowledge.Client, cfg *config.IngestionConfig, agentID string, ledger OrphanLedger, locks Locker) *Orchestrator {
	if locks == nil {
		locks = NoopLocker{}
	}
	return &Orchestrator{
		client:      client,
		monitor:     knowledge.NewMonitor(client, knowledge.DefaultEmbeddingModel, cfg.PollMaxAttempts, cfg.PollInterval),
		ledger:      ledger,
		locks:       locks,
		agentID:     agentID,
		indexPolicy: cfg.IndexPolicy,
		logger:      logging.NewLogger("ingest"),
	}
}

// Ingest runs the full pipeline for one document and returns its
// terminal result. The returned error, when non-nil, is the typed cause
// behind a Failed result; the Result is always populated.
func (o *Orchestrator) Ingest(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	release, err := o.locks.Acquire(ctx, o.agentID)
	if err != nil {
		monitoring.RecordIngestion(string(StatusFailed), ReasonLink, time.Since(start))
		return &Result{Status: StatusFailed, Reason: ReasonLink}, err
	}
	defer release()

	// Stage 1: upload. Failing here leaves no remote side effects.
	documentID, err := o.client.UploadDocument(ctx, req.OwnerID, req.Name, req.Content)
	if err != nil {
		o.logger.Error().Err(err).Str("name", req.Name).Msg("Document upload failed")
		monitoring.RecordIngestion(string(StatusFailed), ReasonUpload, time.Since(start))
		return &Result{Status: StatusFailed, Reason: ReasonUpload}, err
	}

	// Stage 2: trigger indexing and poll to a terminal state.
	indexState := knowledge.StateTimedOut
	monitorResult, err := o.monitor.Await(ctx, documentID)
	if err != nil {
		// The trigger itself failed; the document is uploaded but nothing
		// is indexing. Under the lenient policy we still try to link it.
		o.logger.Error().Err(err).Str("document_id", documentID).Msg("Indexing trigger failed")
		if o.indexPolicy == config.IndexPolicyStrict {
			o.recordOrphan(ctx, documentID, req.Name)
			monitoring.RecordIngestion(string(StatusFailed), ReasonIndex, time.Since(start))
			return &Result{DocumentID: documentID, Status: StatusFailed, Reason: ReasonIndex}, err
		}
	} else {
		indexState = monitorResult.State
	}

	if indexState != knowledge.StateSucceeded {
		// A partially indexed document can still answer simple queries, so
		// the default policy links it anyway.
		o.logger.Warn().
			Str("document_id", documentID).
			Str("index_state", string(indexState)).
			Msg("Indexing did not complete")
		if o.indexPolicy == config.IndexPolicyStrict {
			o.recordOrphan(ctx, documentID, req.Name)
			monitoring.RecordIngestion(string(StatusFailed), ReasonIndex, time.Since(start))
			return &Result{DocumentID: documentID, Status: StatusFailed, Reason: ReasonIndex, IndexState: indexState}, nil
		}
	}

	// Stage 3: link the document into the shared agent configuration.
	// There is no compensating delete on failure; the ledger keeps the
	// orphan visible for the reconciler.
	if err := o.link(ctx, documentID, req.Name); err != nil {
		o.logger.Error().Err(err).Str("document_id", documentID).Msg("Failed to link document")
		o.recordOrphan(ctx, documentID, req.Name)
		monitoring.RecordIngestion(string(StatusFailed), ReasonLink, time.Since(start))
		return &Result{DocumentID: documentID, Status: StatusFailed, Reason: ReasonLink, IndexState: indexState}, err
	}

	status := StatusSucceeded
	if indexState != knowledge.StateSucceeded {
		status = StatusProcessing
	}

	monitoring.RecordIngestion(string(status), "", time.Since(start))
	o.logger.Info().
		Str("document_id", documentID).
		Str("status", string(status)).
		Str("index_state", string(indexState)).
		Dur("latency", time.Since(start)).
		Msg("Document ingested")

	return &Result{DocumentID: documentID, Status: status, IndexState: indexState}, nil
}

// link performs the fetch-merge-write of the agent knowledge config.
// The write is always a superset of the entries read plus at most one
// new entry; freshness is only as good as the fetch-to-write window.
func (o *Orchestrator) link(ctx context.Context, documentID, name string) error {
	cfg, err := o.client.FetchAgentConfig(ctx, o.agentID)
	if err != nil {
		return err
	}

	merged := knowledge.Merge(cfg, knowledge.NewFileEntry(documentID, name))

	return o.client.PatchAgentConfig(ctx, o.agentID, merged)
}

func (o *Orchestrator) recordOrphan(ctx context.Context, documentID, name string) {
	monitoring.RecordOrphan()
	if o.ledger == nil {
		o.logger.Warn().Str("document_id", documentID).Msg("Orphan document not recorded: no ledger configured")
		return
	}
	if err := o.ledger.RecordOrphan(ctx, documentID, o.agentID, name); err != nil {
		o.logger.Error().Err(err).Str("document_id", documentID).Msg("Failed to record orphan document")
	}
}
