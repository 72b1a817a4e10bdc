// Package knowledge talks to the remote knowledge service: document
// upload, indexing jobs and the shared agent knowledge configuration.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxture/voxture-backend/internal/config"
	"github.com/voxture/voxture-backend/internal/monitoring"
	"github.com/voxture/voxture-backend/internal/retry"
)

// Client is the typed façade over the four remote operations. Each
// operation is individually wrapped by the retry executor.
type Client interface {
	// UploadDocument uploads raw text content and returns the remote
	// document id.
	UploadDocument(ctx context.Context, ownerID, name, content string) (string, error)
	// TriggerIndexing starts the indexing job for a document, or reports
	// its current status if one is already running. The remote service
	// treats repeated calls as idempotent status checks.
	TriggerIndexing(ctx context.Context, documentID, embeddingModel string) (*RemoteDocument, error)
	// FetchAgentConfig reads the agent's current knowledge configuration.
	FetchAgentConfig(ctx context.Context, agentID string) (*AgentKnowledgeConfig, error)
	// PatchAgentConfig writes back the full knowledge configuration.
	PatchAgentConfig(ctx context.Context, agentID string, cfg *AgentKnowledgeConfig) error
}

// HTTPClient implements Client against the remote HTTP API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   retry.Executor
}

// NewHTTPClient creates a client for the remote knowledge service
func NewHTTPClient(cfg *config.KnowledgeConfig, ingCfg *config.IngestionConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		executor: retry.Executor{
			MaxAttempts:  ingCfg.RetryMaxAttempts,
			InitialDelay: ingCfg.RetryInitialDelay,
			OnRetry:      monitoring.RecordRetryAttempt,
		},
	}
}

type uploadRequest struct {
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// uploadResponse covers both id field spellings the service has been
// observed to return. There is no stable schema guarantee.
type uploadResponse struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
}

// UploadDocument uploads raw content and returns the remote document id
func (c *HTTPClient) UploadDocument(ctx context.Context, ownerID, name, content string) (string, error) {
	op := c.executor
	op.Operation = "upload"

	id, err := retry.Do(ctx, op, func(ctx context.Context) (string, error) {
		var resp uploadResponse
		err := c.doJSON(ctx, "upload", http.MethodPost, "/v1/knowledge/documents",
			&uploadRequest{OwnerID: ownerID, Name: name, Content: content}, &resp)
		if err != nil {
			return "", err
		}
		if resp.ID != "" {
			return resp.ID, nil
		}
		if resp.DocumentID != "" {
			return resp.DocumentID, nil
		}
		return "", fmt.Errorf("upload response contained no document id")
	})
	if err != nil {
		return "", &UploadError{StatusCode: statusOf(err), Err: err}
	}
	return id, nil
}

type indexRequest struct {
	EmbeddingModel string `json:"embedding_model"`
}

// TriggerIndexing starts or checks the indexing job for a document
func (c *HTTPClient) TriggerIndexing(ctx context.Context, documentID, embeddingModel string) (*RemoteDocument, error) {
	op := c.executor
	op.Operation = "index"

	doc, err := retry.Do(ctx, op, func(ctx context.Context) (*RemoteDocument, error) {
		var resp RemoteDocument
		err := c.doJSON(ctx, "index", http.MethodPost,
			fmt.Sprintf("/v1/knowledge/documents/%s/index", documentID),
			&indexRequest{EmbeddingModel: embeddingModel}, &resp)
		if err != nil {
			return nil, err
		}
		if resp.ID == "" {
			resp.ID = documentID
		}
		return &resp, nil
	})
	if err != nil {
		return nil, &IndexTriggerError{DocumentID: documentID, Err: err}
	}
	return doc, nil
}

// FetchAgentConfig reads the agent's current knowledge configuration
func (c *HTTPClient) FetchAgentConfig(ctx context.Context, agentID string) (*AgentKnowledgeConfig, error) {
	op := c.executor
	op.Operation = "fetch_config"

	cfg, err := retry.Do(ctx, op, func(ctx context.Context) (*AgentKnowledgeConfig, error) {
		var resp AgentKnowledgeConfig
		err := c.doJSON(ctx, "fetch_config", http.MethodGet,
			fmt.Sprintf("/v1/agents/%s/knowledge", agentID), nil, &resp)
		if err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		return nil, &ConfigFetchError{AgentID: agentID, Err: err}
	}
	return cfg, nil
}

// PatchAgentConfig writes back the full knowledge configuration
func (c *HTTPClient) PatchAgentConfig(ctx context.Context, agentID string, cfg *AgentKnowledgeConfig) error {
	op := c.executor
	op.Operation = "patch_config"

	_, err := retry.Do(ctx, op, func(ctx context.Context) (struct{}, error) {
		err := c.doJSON(ctx, "patch_config", http.MethodPatch,
			fmt.Sprintf("/v1/agents/%s/knowledge", agentID), cfg, nil)
		return struct{}{}, err
	})
	if err != nil {
		return &ConfigWriteError{AgentID: agentID, Err: err}
	}
	return nil
}

// statusError carries the HTTP status of a non-2xx response
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	return 0
}

// doJSON performs one HTTP round trip: marshals body, attaches the
// static credential, checks the status and decodes into out (when out is
// non-nil). Rate-limit and server-side failures come back marked
// retryable; other non-2xx statuses surface as-is.
func (c *HTTPClient) doJSON(ctx context.Context, operation, method, path string, body, out any) error {
	start := time.Now()

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		monitoring.RecordKnowledgeCall(operation, "error", time.Since(start))
		// Transport failures (resets, timeouts) are transient.
		return retry.MarkRetryable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		monitoring.RecordKnowledgeCall(operation, "error", time.Since(start))
		log.Error().
			Str("operation", operation).
			Int("status", resp.StatusCode).
			Str("body", string(raw)).
			Msg("Knowledge service error")

		sErr := &statusError{status: resp.StatusCode, body: string(raw)}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return retry.MarkRetryable(sErr)
		}
		return sErr
	}

	monitoring.RecordKnowledgeCall(operation, "success", time.Since(start))

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
