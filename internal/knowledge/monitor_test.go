package knowledge_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxture/voxture-backend/internal/knowledge"
)

// scriptedClient serves a fixed sequence of indexing statuses. A nil
// status slot with a non-nil error simulates a failed status call.
type scriptedClient struct {
	statuses []knowledge.IndexingStatus
	errs     []error
	calls    int
}

func (c *scriptedClient) UploadDocument(_ context.Context, _, _, _ string) (string, error) {
	return "", errors.New("not used")
}

func (c *scriptedClient) TriggerIndexing(_ context.Context, documentID, _ string) (*knowledge.RemoteDocument, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	status := knowledge.IndexingPending
	if i < len(c.statuses) {
		status = c.statuses[i]
	}
	return &knowledge.RemoteDocument{ID: documentID, IndexingStatus: status}, nil
}

func (c *scriptedClient) FetchAgentConfig(_ context.Context, _ string) (*knowledge.AgentKnowledgeConfig, error) {
	return nil, errors.New("not used")
}

func (c *scriptedClient) PatchAgentConfig(_ context.Context, _ string, _ *knowledge.AgentKnowledgeConfig) error {
	return errors.New("not used")
}

func newTestMonitor(client knowledge.Client, maxAttempts int) *knowledge.Monitor {
	return knowledge.NewMonitor(client, knowledge.DefaultEmbeddingModel, maxAttempts, time.Millisecond)
}

func TestAwaitTerminatesOnSuccess(t *testing.T) {
	client := &scriptedClient{
		statuses: []knowledge.IndexingStatus{
			knowledge.IndexingPending,
			knowledge.IndexingPending,
			knowledge.IndexingSucceeded,
		},
	}

	result, err := newTestMonitor(client, 20).Await(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != knowledge.StateSucceeded {
		t.Fatalf("expected succeeded, got %s", result.State)
	}
	if client.calls != 3 {
		t.Fatalf("expected exactly 3 poll calls, got %d", client.calls)
	}
	if result.Attempts != 3 {
		t.Fatalf("expected attempts=3, got %d", result.Attempts)
	}
}

func TestAwaitTerminatesOnFailure(t *testing.T) {
	client := &scriptedClient{
		statuses: []knowledge.IndexingStatus{
			knowledge.IndexingPending,
			knowledge.IndexingFailed,
		},
	}

	result, err := newTestMonitor(client, 20).Await(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != knowledge.StateFailed {
		t.Fatalf("expected failed, got %s", result.State)
	}
	if client.calls != 2 {
		t.Fatalf("expected 2 poll calls, got %d", client.calls)
	}
}

func TestAwaitTimesOutAfterBudget(t *testing.T) {
	// Every call reports pending; the budget is 20 calls.
	client := &scriptedClient{}

	result, err := newTestMonitor(client, 20).Await(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != knowledge.StateTimedOut {
		t.Fatalf("expected timed_out, got %s", result.State)
	}
	if client.calls != 20 {
		t.Fatalf("expected exactly 20 poll calls, got %d", client.calls)
	}
}

func TestAwaitTriggerFailureIsFatal(t *testing.T) {
	triggerErr := &knowledge.IndexTriggerError{DocumentID: "doc-1", Err: errors.New("status 500")}
	client := &scriptedClient{errs: []error{triggerErr}}

	result, err := newTestMonitor(client, 20).Await(context.Background(), "doc-1")
	if result != nil {
		t.Fatalf("expected no result, got %+v", result)
	}
	var typed *knowledge.IndexTriggerError
	if !errors.As(err, &typed) {
		t.Fatalf("expected IndexTriggerError, got %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("expected 1 call, got %d", client.calls)
	}
}

func TestAwaitStatusCheckFailureIsTryAgain(t *testing.T) {
	// The second call fails; polling continues and succeeds on the third.
	client := &scriptedClient{
		statuses: []knowledge.IndexingStatus{
			knowledge.IndexingPending,
			"",
			knowledge.IndexingSucceeded,
		},
		errs: []error{nil, errors.New("connection reset"), nil},
	}

	result, err := newTestMonitor(client, 20).Await(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != knowledge.StateSucceeded {
		t.Fatalf("expected succeeded, got %s", result.State)
	}
	if client.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", client.calls)
	}
}

func TestAwaitCancellationReportsTimedOut(t *testing.T) {
	client := &scriptedClient{}
	monitor := knowledge.NewMonitor(client, knowledge.DefaultEmbeddingModel, 20, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := monitor.Await(ctx, "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != knowledge.StateTimedOut {
		t.Fatalf("expected timed_out on cancellation, got %s", result.State)
	}
	if client.calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", client.calls)
	}
}
