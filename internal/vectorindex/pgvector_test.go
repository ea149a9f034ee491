//go:build integration

package vectorindex

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
	"github.com/Sand004/enterprise-rag-system/internal/repository"
	"github.com/Sand004/enterprise-rag-system/internal/testutil"
)

func axisVector(axis int, magnitude float32) []float32 {
	v := make([]float32, 1536)
	v[axis] = magnitude
	return v
}

func seedChunk(ctx context.Context, t *testing.T, repo *repository.ChunkRepository, axis int, metadata map[string]string) string {
	t.Helper()
	id := uuid.NewString()
	require.NoError(t, repo.Create(ctx, &domain.Chunk{
		ID:         id,
		DocumentID: "doc-" + id,
		Text:       "seed chunk",
		Embedding:  axisVector(axis, 1),
		Metadata:   metadata,
		UpdatedAt:  time.Now().UTC(),
	}))
	return id
}

func TestPGVector_QueryRanksByCosineSimilarity(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := repository.NewChunkRepository(pool)
	aligned := seedChunk(ctx, t, repo, 0, nil)
	orthogonal := seedChunk(ctx, t, repo, 1, nil)

	idx := NewPGVector(pool, "1")
	results, err := idx.Query(ctx, axisVector(0, 1), 10, nil, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, aligned, results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-4)
	assert.Equal(t, orthogonal, results[1].ChunkID)
	assert.Less(t, results[1].Score, results[0].Score)
}

func TestPGVector_QueryMinScoreCutsOrthogonal(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := repository.NewChunkRepository(pool)
	aligned := seedChunk(ctx, t, repo, 0, nil)
	seedChunk(ctx, t, repo, 1, nil)

	idx := NewPGVector(pool, "1")
	results, err := idx.Query(ctx, axisVector(0, 1), 10, nil, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, aligned, results[0].ChunkID)
}

func TestPGVector_QueryMetadataFilters(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := repository.NewChunkRepository(pool)
	wiki := seedChunk(ctx, t, repo, 0, map[string]string{"source": "wiki", "year": "2024"})
	seedChunk(ctx, t, repo, 0, map[string]string{"source": "blog", "year": "2018"})

	idx := NewPGVector(pool, "1")

	results, err := idx.Query(ctx, axisVector(0, 1), 10, []domain.Filter{
		{Key: "source", Op: domain.FilterOpEq, Value: "wiki"},
	}, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, wiki, results[0].ChunkID)

	results, err = idx.Query(ctx, axisVector(0, 1), 10, []domain.Filter{
		{Key: "year", Op: domain.FilterOpGte, Value: "2020"},
	}, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, wiki, results[0].ChunkID)
}

func TestPGVector_TopKLimit(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := repository.NewChunkRepository(pool)
	for i := 0; i < 5; i++ {
		seedChunk(ctx, t, repo, 0, nil)
	}

	idx := NewPGVector(pool, "1")
	results, err := idx.Query(ctx, axisVector(0, 1), 3, nil, 0)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}
