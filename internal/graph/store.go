// Package graph provides read-only access to the externally maintained
// knowledge graph: entity neighborhoods and the entity-chunk mapping
// the expansion stage walks. Ingestion owns all writes.
package graph

import (
	"context"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
)

// Store is the neighbor-lookup surface shared by all backends.
type Store interface {
	// Neighbors returns outgoing edges of an entity, capped at
	// maxFanout, ordered by edge weight descending.
	Neighbors(ctx context.Context, entityID string, maxFanout int) ([]domain.GraphEdge, error)
	// EntitiesForChunk returns ids of entities mentioned in a chunk.
	EntitiesForChunk(ctx context.Context, chunkID string) ([]string, error)
	// ChunksForEntity returns ids of chunks mentioning an entity.
	ChunksForEntity(ctx context.Context, entityID string) ([]string, error)
	// LookupEntities resolves entity names to ids. Unknown names are
	// skipped, not errors.
	LookupEntities(ctx context.Context, names []string) ([]string, error)
}
