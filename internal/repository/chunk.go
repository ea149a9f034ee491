package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
)

type ChunkRepository struct {
	pool *pgxpool.Pool
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

const chunkColumns = `id, document_id, content, embedding, term_freqs, term_count, metadata, position, page, updated_at`

func scanChunk(row pgx.Row) (domain.Chunk, error) {
	var c domain.Chunk
	var emb *pgvector.Vector
	err := row.Scan(&c.ID, &c.DocumentID, &c.Text, &emb, &c.TermFreqs, &c.TermCount, &c.Metadata, &c.Position, &c.Page, &c.UpdatedAt)
	if err != nil {
		return domain.Chunk{}, err
	}
	if emb != nil {
		c.Embedding = emb.Slice()
	}
	return c, nil
}

func (r *ChunkRepository) Create(ctx context.Context, c *domain.Chunk) error {
	var emb *pgvector.Vector
	if len(c.Embedding) > 0 {
		v := pgvector.NewVector(c.Embedding)
		emb = &v
	}
	freqs := c.TermFreqs
	if freqs == nil {
		freqs = map[string]int{}
	}
	metadata := c.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chunks (id, document_id, content, embedding, term_freqs, term_count, metadata, position, page, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   document_id = EXCLUDED.document_id,
		   content = EXCLUDED.content,
		   embedding = EXCLUDED.embedding,
		   term_freqs = EXCLUDED.term_freqs,
		   term_count = EXCLUDED.term_count,
		   metadata = EXCLUDED.metadata,
		   position = EXCLUDED.position,
		   page = EXCLUDED.page,
		   updated_at = EXCLUDED.updated_at`,
		c.ID, c.DocumentID, c.Text, emb, freqs, c.TermCount, metadata, c.Position, c.Page, c.UpdatedAt,
	)
	return err
}

func (r *ChunkRepository) GetByID(ctx context.Context, id string) (*domain.Chunk, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id = $1`,
		id,
	)
	c, err := scanChunk(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChunkNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetByIDs fetches the given chunks in one round trip. Missing ids are
// simply absent from the result map.
func (r *ChunkRepository) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Chunk, error) {
	if len(ids) == 0 {
		return map[string]domain.Chunk{}, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks := make(map[string]domain.Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks[c.ID] = c
	}
	return chunks, rows.Err()
}

func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE document_id = $1 ORDER BY position ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ForEach streams every chunk through fn in id order, fetching batchSize
// rows per round trip. Used to warm the in-memory keyword index at startup.
func (r *ChunkRepository) ForEach(ctx context.Context, batchSize int, fn func(domain.Chunk) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	cursor := ""
	for {
		rows, err := r.pool.Query(ctx,
			`SELECT `+chunkColumns+` FROM chunks WHERE id > $1 ORDER BY id ASC LIMIT $2`,
			cursor, batchSize,
		)
		if err != nil {
			return err
		}
		batch := make([]domain.Chunk, 0, batchSize)
		for rows.Next() {
			c, err := scanChunk(rows)
			if err != nil {
				rows.Close()
				return err
			}
			batch = append(batch, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, c := range batch {
			if err := fn(c); err != nil {
				return err
			}
		}
		if len(batch) < batchSize {
			return nil
		}
		cursor = batch[len(batch)-1].ID
	}
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
