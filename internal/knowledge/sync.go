package knowledge

// Pipeline-wide retrieval settings, re-asserted on every config write.
// Last writer wins for these agent-wide values, not just the entry list.
const (
	DefaultEmbeddingModel     = "e5-mistral-7b-instruct"
	DefaultMaxDocumentsLength = 300_000
)

// Merge appends entry to the agent's knowledge configuration and
// re-asserts the pipeline-wide retrieval settings. Appending an entry
// whose id is already present is a no-op on the entry list, so
// re-ingesting the same document is idempotent.
//
// The returned config never drops an existing entry: its entry list is
// always a superset of existing.Entries, with entry appended last when
// its id is new. Pure function; the caller owns fetching and writing.
func Merge(existing *AgentKnowledgeConfig, entry KnowledgeEntry) *AgentKnowledgeConfig {
	merged := &AgentKnowledgeConfig{
		Entries:            make([]KnowledgeEntry, 0, len(existing.Entries)+1),
		RetrievalEnabled:   true,
		EmbeddingModel:     DefaultEmbeddingModel,
		MaxDocumentsLength: DefaultMaxDocumentsLength,
	}

	present := false
	for _, e := range existing.Entries {
		merged.Entries = append(merged.Entries, e)
		if e.ID == entry.ID {
			present = true
		}
	}
	if !present {
		merged.Entries = append(merged.Entries, entry)
	}

	return merged
}
