package search

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
	"github.com/Sand004/enterprise-rag-system/internal/embedding"
	"github.com/Sand004/enterprise-rag-system/internal/vectorindex"
)

// VectorSearcher runs the dense retrieval path: embed the query, then
// issue a similarity search against the external vector index.
// Transient backend failures are retried with exponential backoff; an
// exhausted retry budget surfaces as an error the engine downgrades to
// a degraded flag.
type VectorSearcher struct {
	index    vectorindex.Index
	embedder embedding.Provider
	retries  uint64
	logger   *logrus.Logger
}

// NewVectorSearcher wires the dense path. embedder is expected to be
// the cached provider so repeated queries skip the embedding API.
func NewVectorSearcher(idx vectorindex.Index, embedder embedding.Provider, retries uint64, logger *logrus.Logger) *VectorSearcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &VectorSearcher{index: idx, embedder: embedder, retries: retries, logger: logger}
}

// Search returns similarity hits for the plan's query. Scores are the
// backend's similarity values, higher is better.
func (s *VectorSearcher) Search(ctx context.Context, plan domain.SearchPlan) ([]domain.SearchHit, error) {
	vector, err := s.embedder.Embed(ctx, plan.Query)
	if err != nil {
		return nil, domain.TransientBackend("embedding", err)
	}

	var scored []vectorindex.ScoredChunk
	operation := func() error {
		var qerr error
		scored, qerr = s.index.Query(ctx, vector, plan.TopK, plan.Filters, plan.MinScore)
		return qerr
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.retries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		s.logger.WithError(err).Warn("vector index query failed after retries")
		return nil, domain.TransientBackend("vector_index", err)
	}

	hits := make([]domain.SearchHit, 0, len(scored))
	for _, sc := range scored {
		hits = append(hits, domain.SearchHit{
			ChunkID:  sc.ChunkID,
			RawScore: sc.Score,
			Source:   domain.SourceVector,
		})
	}
	return hits, nil
}
