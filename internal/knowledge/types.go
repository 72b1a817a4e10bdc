package knowledge

// IndexingStatus represents the remote indexing state of a document
type IndexingStatus string

const (
	IndexingPending   IndexingStatus = "pending"
	IndexingSucceeded IndexingStatus = "succeeded"
	IndexingFailed    IndexingStatus = "failed"
)

// RemoteDocument is the remote service's view of an uploaded document.
// Owned by the remote service; this system only reads and polls it.
type RemoteDocument struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	IndexingStatus  IndexingStatus `json:"status"`
	ProgressPercent int            `json:"progress_percent"`
}

// UsageMode controls how a knowledge entry is consumed by the agent
type UsageMode string

const (
	UsageModeFull      UsageMode = "full"
	UsageModeRetrieval UsageMode = "retrieval"
)

// KnowledgeEntry represents one document's membership in an agent's
// knowledge set
type KnowledgeEntry struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UsageMode UsageMode `json:"usage_mode"`
}

// AgentKnowledgeConfig is the shared mutable remote state: the agent's
// full knowledge entry list plus agent-wide retrieval settings. Every
// ingestion reads, mutates and rewrites the whole thing; the remote API
// exposes no version token.
type AgentKnowledgeConfig struct {
	Entries            []KnowledgeEntry `json:"entries"`
	RetrievalEnabled   bool             `json:"retrieval_enabled"`
	EmbeddingModel     string           `json:"embedding_model"`
	MaxDocumentsLength int              `json:"max_documents_length"`
}

// NewFileEntry builds the knowledge entry for a freshly uploaded document
func NewFileEntry(documentID, name string) KnowledgeEntry {
	return KnowledgeEntry{
		Type:      "file",
		ID:        documentID,
		Name:      name,
		UsageMode: UsageModeRetrieval,
	}
}
