package vectorindex

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
)

// PGVector serves similarity queries from the chunks table when no
// dedicated vector service is deployed. Cosine similarity is computed
// as 1 - cosine distance, so scores land in [-1,1].
type PGVector struct {
	pool    *pgxpool.Pool
	version string
}

// NewPGVector creates a pgvector-backed index over the given pool.
func NewPGVector(pool *pgxpool.Pool, version string) *PGVector {
	return &PGVector{pool: pool, version: version}
}

func (p *PGVector) Query(ctx context.Context, vector []float32, topK int, filters []domain.Filter, minScore float64) ([]ScoredChunk, error) {
	query := `
		SELECT id, 1 - (embedding <=> $1) AS score
		FROM chunks
		WHERE embedding IS NOT NULL`
	args := []interface{}{pgvector.NewVector(vector)}

	for _, f := range filters {
		clause, clauseArgs, err := filterClause(f, len(args)+1)
		if err != nil {
			return nil, err
		}
		query += " AND " + clause
		args = append(args, clauseArgs...)
	}
	if minScore > 0 {
		query += fmt.Sprintf(" AND 1 - (embedding <=> $1) >= $%d", len(args)+1)
		args = append(args, minScore)
	}

	query += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args)+1)
	args = append(args, topK)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]ScoredChunk, 0, topK)
	for rows.Next() {
		var sc ScoredChunk
		if err := rows.Scan(&sc.ChunkID, &sc.Score); err != nil {
			return nil, err
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}

// SnapshotVersion reports the configured index snapshot tag.
func (p *PGVector) SnapshotVersion() string {
	return p.version
}

// filterClause renders one metadata predicate against the JSONB
// metadata column. Key and bound are both bound parameters; numeric
// comparisons cast when the bound parses as a number.
func filterClause(f domain.Filter, arg int) (string, []interface{}, error) {
	switch f.Op {
	case domain.FilterOpEq:
		return fmt.Sprintf("metadata->>$%d = $%d", arg, arg+1),
			[]interface{}{f.Key, f.Value}, nil
	case domain.FilterOpGte, domain.FilterOpLte:
		op := ">="
		if f.Op == domain.FilterOpLte {
			op = "<="
		}
		if n, err := strconv.ParseFloat(f.Value, 64); err == nil {
			return fmt.Sprintf("(metadata->>$%d)::numeric %s $%d", arg, op, arg+1),
				[]interface{}{f.Key, n}, nil
		}
		return fmt.Sprintf("metadata->>$%d %s $%d", arg, op, arg+1),
			[]interface{}{f.Key, f.Value}, nil
	default:
		return "", nil, fmt.Errorf("unsupported filter op %q", f.Op)
	}
}
