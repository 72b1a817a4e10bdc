package knowledge

import "fmt"

// UploadError reports a failed document upload. No remote side effects
// exist yet when this is returned.
type UploadError struct {
	StatusCode int
	Err        error
}

func (e *UploadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("document upload failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("document upload failed: %v", e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// IndexTriggerError reports a failed initial indexing trigger. The
// document is already uploaded remotely at this point.
type IndexTriggerError struct {
	DocumentID string
	Err        error
}

func (e *IndexTriggerError) Error() string {
	return fmt.Sprintf("failed to trigger indexing for document %s: %v", e.DocumentID, e.Err)
}

func (e *IndexTriggerError) Unwrap() error { return e.Err }

// ConfigFetchError reports a failed agent config read. Fatal to the
// ingestion: the document stays uploaded but unlinked.
type ConfigFetchError struct {
	AgentID string
	Err     error
}

func (e *ConfigFetchError) Error() string {
	return fmt.Sprintf("failed to fetch config for agent %s: %v", e.AgentID, e.Err)
}

func (e *ConfigFetchError) Unwrap() error { return e.Err }

// ConfigWriteError reports a failed agent config write. Fatal to the
// ingestion: the document stays uploaded but unlinked.
type ConfigWriteError struct {
	AgentID string
	Err     error
}

func (e *ConfigWriteError) Error() string {
	return fmt.Sprintf("failed to write config for agent %s: %v", e.AgentID, e.Err)
}

func (e *ConfigWriteError) Unwrap() error { return e.Err }
