// Package vectorindex provides thin read-only clients for the external
// approximate-nearest-neighbor index. Ingestion owns all writes; the
// engine only issues similarity queries.
package vectorindex

import (
	"context"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
)

// ScoredChunk pairs a chunk id with its similarity to the query vector.
// Higher is better; the backend returns cosine similarity in a bounded
// range.
type ScoredChunk struct {
	ChunkID string
	Score   float64
}

// Index is the similarity-query surface shared by all backends.
type Index interface {
	// Query returns up to topK chunks ranked by similarity, after
	// applying metadata filters and dropping scores below minScore.
	Query(ctx context.Context, vector []float32, topK int, filters []domain.Filter, minScore float64) ([]ScoredChunk, error)
	// SnapshotVersion identifies the index build. It is folded into
	// result-cache keys so a reindex invalidates cached rankings.
	SnapshotVersion() string
}
