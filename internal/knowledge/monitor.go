package knowledge

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxture/voxture-backend/internal/logging"
	"github.com/voxture/voxture-backend/internal/monitoring"
)

// MonitorState is the indexing monitor's state machine position
type MonitorState string

const (
	StateTriggered MonitorState = "triggered"
	StatePolling   MonitorState = "polling"
	StateSucceeded MonitorState = "succeeded"
	StateFailed    MonitorState = "failed"
	StateTimedOut  MonitorState = "timed_out"
)

// Terminal reports whether no further transition occurs without an
// external re-trigger.
func (s MonitorState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateTimedOut
}

// Monitor polls an indexing job to a terminal state with a bounded
// attempt budget.
type Monitor struct {
	client         Client
	embeddingModel string
	maxAttempts    int
	interval       time.Duration
	logger         zerolog.Logger
}

// MonitorResult is the terminal outcome of one monitoring run
type MonitorResult struct {
	State    MonitorState
	Document *RemoteDocument
	Attempts int
}

// NewMonitor creates an indexing monitor. maxAttempts bounds the total
// number of status calls (default 20); interval is the fixed wait
// between them (default 3s), giving a 60s ceiling.
func NewMonitor(client Client, embeddingModel string, maxAttempts int, interval time.Duration) *Monitor {
	if maxAttempts <= 0 {
		maxAttempts = 20
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Monitor{
		client:         client,
		embeddingModel: embeddingModel,
		maxAttempts:    maxAttempts,
		interval:       interval,
		logger:         logging.NewLogger("indexing-monitor"),
	}
}

// Await triggers indexing for a document and polls until the job reaches
// a terminal state or the attempt budget runs out. The same remote
// endpoint both starts the job and reports its status, so every poll is
// a re-trigger the service treats as idempotent.
//
// Only a failure of the very first call is an error (the trigger itself
// never happened). A failed status check mid-poll counts as "try again".
// Cancellation mid-poll stops cleanly and reports TimedOut.
func (m *Monitor) Await(ctx context.Context, documentID string) (*MonitorResult, error) {
	start := time.Now()

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		doc, err := m.client.TriggerIndexing(ctx, documentID, m.embeddingModel)
		if err != nil {
			if attempt == 1 {
				// The trigger call itself failed; nothing is indexing.
				return nil, err
			}
			m.logger.Warn().
				Err(err).
				Str("document_id", documentID).
				Int("attempt", attempt).
				Msg("Status check failed, continuing to poll")
		} else {
			switch doc.IndexingStatus {
			case IndexingSucceeded:
				monitoring.RecordIndexOutcome(string(StateSucceeded), time.Since(start))
				return &MonitorResult{State: StateSucceeded, Document: doc, Attempts: attempt}, nil
			case IndexingFailed:
				monitoring.RecordIndexOutcome(string(StateFailed), time.Since(start))
				return &MonitorResult{State: StateFailed, Document: doc, Attempts: attempt}, nil
			}
			m.logger.Debug().
				Str("document_id", documentID).
				Str("status", string(doc.IndexingStatus)).
				Int("progress", doc.ProgressPercent).
				Int("attempt", attempt).
				Msg("Indexing in progress")
		}

		if attempt == m.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			monitoring.RecordIndexOutcome(string(StateTimedOut), time.Since(start))
			return &MonitorResult{State: StateTimedOut, Attempts: attempt}, nil
		case <-time.After(m.interval):
		}
	}

	monitoring.RecordIndexOutcome(string(StateTimedOut), time.Since(start))
	return &MonitorResult{State: StateTimedOut, Attempts: m.maxAttempts}, nil
}
