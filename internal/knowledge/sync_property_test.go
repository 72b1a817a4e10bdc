package knowledge_test

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/voxture/voxture-backend/internal/knowledge"
)

// generateEntry generates a knowledge entry with a bounded id space so
// collisions with existing configs actually happen.
func generateEntry(t *rapid.T, label string) knowledge.KnowledgeEntry {
	id := fmt.Sprintf("doc-%d", rapid.IntRange(0, 30).Draw(t, label+"Id"))
	name := rapid.StringMatching(`[a-z]{3,12}\.(txt|md|pdf)`).Draw(t, label+"Name")
	mode := rapid.SampledFrom([]knowledge.UsageMode{
		knowledge.UsageModeFull,
		knowledge.UsageModeRetrieval,
	}).Draw(t, label+"Mode")
	return knowledge.KnowledgeEntry{Type: "file", ID: id, Name: name, UsageMode: mode}
}

// generateConfig generates an agent config whose entry ids are unique,
// matching the invariant the remote service maintains.
func generateConfig(t *rapid.T) *knowledge.AgentKnowledgeConfig {
	count := rapid.IntRange(0, 15).Draw(t, "entryCount")
	seen := make(map[string]bool)
	var entries []knowledge.KnowledgeEntry
	for i := 0; i < count; i++ {
		e := generateEntry(t, fmt.Sprintf("entry%d", i))
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		entries = append(entries, e)
	}
	return &knowledge.AgentKnowledgeConfig{
		Entries:            entries,
		RetrievalEnabled:   rapid.Bool().Draw(t, "retrievalEnabled"),
		EmbeddingModel:     rapid.StringMatching(`[a-z0-9-]{4,20}`).Draw(t, "embeddingModel"),
		MaxDocumentsLength: rapid.IntRange(0, 1_000_000).Draw(t, "maxDocsLen"),
	}
}

// Merging an entry whose id is already present never changes the entry
// set: re-ingesting the same document is a no-op append.
func TestMergeIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := generateConfig(t)
		entry := generateEntry(t, "new")

		once := knowledge.Merge(cfg, entry)
		twice := knowledge.Merge(once, entry)

		if len(twice.Entries) != len(once.Entries) {
			t.Fatalf("second merge changed entry count: %d -> %d", len(once.Entries), len(twice.Entries))
		}

		seen := make(map[string]int)
		for _, e := range twice.Entries {
			seen[e.ID]++
		}
		for id, n := range seen {
			if n > 1 {
				t.Fatalf("duplicate entry id %q after merge", id)
			}
		}
	})
}

// Merge never drops an entry: the result is always the existing entries
// in order, with the new entry appended last when its id is new.
func TestMergeOrderPreservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := generateConfig(t)
		entry := generateEntry(t, "new")

		merged := knowledge.Merge(cfg, entry)

		alreadyPresent := false
		for _, e := range cfg.Entries {
			if e.ID == entry.ID {
				alreadyPresent = true
			}
		}

		wantLen := len(cfg.Entries)
		if !alreadyPresent {
			wantLen++
		}
		if len(merged.Entries) != wantLen {
			t.Fatalf("expected %d entries, got %d", wantLen, len(merged.Entries))
		}

		for i, e := range cfg.Entries {
			if merged.Entries[i] != e {
				t.Fatalf("existing entry %d changed position or content: %+v -> %+v", i, e, merged.Entries[i])
			}
		}

		if !alreadyPresent && merged.Entries[len(merged.Entries)-1] != entry {
			t.Fatalf("new entry not appended last: %+v", merged.Entries[len(merged.Entries)-1])
		}
	})
}

// Every merge re-asserts the pipeline-wide retrieval settings no matter
// what the previous writer left behind.
func TestMergeReassertsGlobalSettings(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := generateConfig(t)
		merged := knowledge.Merge(cfg, generateEntry(t, "new"))

		if !merged.RetrievalEnabled {
			t.Fatal("merge must force retrieval_enabled = true")
		}
		if merged.EmbeddingModel != knowledge.DefaultEmbeddingModel {
			t.Fatalf("embedding model not re-asserted: %q", merged.EmbeddingModel)
		}
		if merged.MaxDocumentsLength != knowledge.DefaultMaxDocumentsLength {
			t.Fatalf("max documents length not re-asserted: %d", merged.MaxDocumentsLength)
		}
	})
}

// Merge must not mutate its input: the caller may retry with the
// original config after a failed write.
func TestMergeDoesNotMutateInput(t *testing.T) {
	cfg := &knowledge.AgentKnowledgeConfig{
		Entries: []knowledge.KnowledgeEntry{
			{Type: "file", ID: "doc-1", Name: "a.txt", UsageMode: knowledge.UsageModeFull},
		},
		RetrievalEnabled:   false,
		EmbeddingModel:     "legacy-model",
		MaxDocumentsLength: 7,
	}

	_ = knowledge.Merge(cfg, knowledge.NewFileEntry("doc-2", "b.txt"))

	if len(cfg.Entries) != 1 || cfg.RetrievalEnabled || cfg.EmbeddingModel != "legacy-model" || cfg.MaxDocumentsLength != 7 {
		t.Fatalf("input config mutated: %+v", cfg)
	}
}
