package domain

import "time"

// Chunk is the atomic retrieval unit produced by the ingestion pipeline.
// The engine only reads chunks; ingestion owns every write.
type Chunk struct {
	ID         string
	DocumentID string
	Text       string
	Embedding  []float32
	TermFreqs  map[string]int
	TermCount  int
	Metadata   map[string]string
	Position   int
	Page       int
	UpdatedAt  time.Time
}

// SearchSource identifies which retrieval path produced a hit.
type SearchSource string

const (
	SourceVector  SearchSource = "vector"
	SourceKeyword SearchSource = "keyword"
	SourceGraph   SearchSource = "graph"
)

// sourcePriority orders sources for deterministic tie-breaking:
// vector > keyword > graph.
var sourcePriority = map[SearchSource]int{
	SourceVector:  0,
	SourceKeyword: 1,
	SourceGraph:   2,
}

// Priority returns the tie-break rank of a source; lower wins.
func (s SearchSource) Priority() int {
	if p, ok := sourcePriority[s]; ok {
		return p
	}
	return len(sourcePriority)
}

// SearchHit is a per-searcher candidate, scoped to one query execution.
type SearchHit struct {
	ChunkID  string
	RawScore float64
	Source   SearchSource
}

// FusedResult is a deduplicated, normalized entry in the fused ranking.
// FusedScore lies in [0,1] and orders the list descending.
type FusedResult struct {
	ChunkID    string
	FusedScore float64
	Sources    []SearchSource
	Rank       int
}

// HasSource reports whether the given source contributed to this result.
func (r *FusedResult) HasSource(s SearchSource) bool {
	for _, src := range r.Sources {
		if src == s {
			return true
		}
	}
	return false
}
