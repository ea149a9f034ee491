package search

import (
	"context"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
	"github.com/Sand004/enterprise-rag-system/internal/index"
)

// KeywordSearcher runs the lexical retrieval path over the in-memory
// inverted index. Scoring is CPU-bound; the context is only checked so
// a cancelled query stops before scoring.
type KeywordSearcher struct {
	index *index.Keyword
}

// NewKeywordSearcher wires the lexical path.
func NewKeywordSearcher(idx *index.Keyword) *KeywordSearcher {
	return &KeywordSearcher{index: idx}
}

// Search tokenizes the plan's query with the indexing tokenizer and
// returns BM25-ranked hits. Raw scores are unbounded, higher is better.
func (s *KeywordSearcher) Search(ctx context.Context, plan domain.SearchPlan) ([]domain.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches := s.index.Search(index.Tokenize(plan.Query), plan.TopK, plan.Filters)
	hits := make([]domain.SearchHit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, domain.SearchHit{
			ChunkID:  m.ChunkID,
			RawScore: m.Score,
			Source:   domain.SourceKeyword,
		})
	}
	return hits, nil
}
