package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
	"github.com/Sand004/enterprise-rag-system/internal/graph"
)

func fusedSeed(ids ...string) []domain.FusedResult {
	fused := make([]domain.FusedResult, len(ids))
	for i, id := range ids {
		fused[i] = domain.FusedResult{ChunkID: id, FusedScore: 1.0 / float64(i+1), Rank: i + 1}
	}
	return fused
}

func TestExpander_Expand(t *testing.T) {
	ctx := context.Background()

	t.Run("collects chunks of reached entities with depth decay", func(t *testing.T) {
		g := graph.NewMemory()
		g.AddNode(domain.GraphNode{ID: "e1", Name: "Seed"})
		g.AddNode(domain.GraphNode{ID: "e2", Name: "Hop1"})
		g.AddNode(domain.GraphNode{ID: "e3", Name: "Hop2"})
		g.AddEdge(domain.GraphEdge{SourceID: "e1", TargetID: "e2", Weight: 1})
		g.AddEdge(domain.GraphEdge{SourceID: "e2", TargetID: "e3", Weight: 1})
		g.Link("seed-chunk", "e1")
		g.Link("near-chunk", "e2")
		g.Link("far-chunk", "e3")

		e := NewExpander(g, ExpanderConfig{MaxDepth: 2, MaxFanout: 10, SeedCount: 10, BaseWeight: 1.0}, nil)
		hits, err := e.Expand(ctx, "plain lowercase query", fusedSeed("seed-chunk"))
		require.NoError(t, err)

		byID := make(map[string]domain.SearchHit)
		for _, h := range hits {
			byID[h.ChunkID] = h
			assert.Equal(t, domain.SourceGraph, h.Source)
		}
		// The seed chunk itself is not re-emitted.
		assert.NotContains(t, byID, "seed-chunk")
		require.Contains(t, byID, "near-chunk")
		require.Contains(t, byID, "far-chunk")
		assert.Equal(t, 0.5, byID["near-chunk"].RawScore)
		assert.Equal(t, 0.25, byID["far-chunk"].RawScore)
	})

	t.Run("terminates on cycles", func(t *testing.T) {
		g := graph.NewMemory()
		g.AddNode(domain.GraphNode{ID: "a", Name: "A"})
		g.AddNode(domain.GraphNode{ID: "b", Name: "B"})
		g.AddEdge(domain.GraphEdge{SourceID: "a", TargetID: "b", Weight: 1})
		g.AddEdge(domain.GraphEdge{SourceID: "b", TargetID: "a", Weight: 1})
		g.Link("c-seed", "a")
		g.Link("c-b", "b")

		e := NewExpander(g, ExpanderConfig{MaxDepth: 5, MaxFanout: 10, SeedCount: 10, BaseWeight: 1.0}, nil)
		hits, err := e.Expand(ctx, "query", fusedSeed("c-seed"))
		require.NoError(t, err)

		// Finite output: the cycle a->b->a is walked once.
		require.Len(t, hits, 1)
		assert.Equal(t, "c-b", hits[0].ChunkID)
	})

	t.Run("respects max depth", func(t *testing.T) {
		g := graph.NewMemory()
		for _, id := range []string{"e1", "e2", "e3", "e4"} {
			g.AddNode(domain.GraphNode{ID: id, Name: id})
		}
		g.AddEdge(domain.GraphEdge{SourceID: "e1", TargetID: "e2", Weight: 1})
		g.AddEdge(domain.GraphEdge{SourceID: "e2", TargetID: "e3", Weight: 1})
		g.AddEdge(domain.GraphEdge{SourceID: "e3", TargetID: "e4", Weight: 1})
		g.Link("s", "e1")
		g.Link("deep", "e4")

		e := NewExpander(g, ExpanderConfig{MaxDepth: 2, MaxFanout: 10, SeedCount: 10, BaseWeight: 1.0}, nil)
		hits, err := e.Expand(ctx, "query", fusedSeed("s"))
		require.NoError(t, err)

		for _, h := range hits {
			assert.NotEqual(t, "deep", h.ChunkID, "entities past max depth must not contribute")
		}
	})

	t.Run("caps fan-out per hop", func(t *testing.T) {
		g := graph.NewMemory()
		g.AddNode(domain.GraphNode{ID: "hub", Name: "Hub"})
		g.Link("hub-chunk", "hub")
		for i := 0; i < 20; i++ {
			id := string(rune('a' + i))
			g.AddNode(domain.GraphNode{ID: id, Name: id})
			g.AddEdge(domain.GraphEdge{SourceID: "hub", TargetID: id, Weight: float64(20 - i)})
			g.Link("chunk-"+id, id)
		}

		e := NewExpander(g, ExpanderConfig{MaxDepth: 1, MaxFanout: 3, SeedCount: 10, BaseWeight: 1.0}, nil)
		hits, err := e.Expand(ctx, "query", fusedSeed("hub-chunk"))
		require.NoError(t, err)
		assert.Len(t, hits, 3)
	})

	t.Run("seeds from entity names in the query", func(t *testing.T) {
		g := graph.NewMemory()
		g.AddNode(domain.GraphNode{ID: "acme", Name: "Acme Corp"})
		g.Link("acme-chunk", "acme")

		e := NewExpander(g, ExpanderConfig{MaxDepth: 2, MaxFanout: 10, SeedCount: 10, BaseWeight: 1.0}, nil)
		hits, err := e.Expand(ctx, `what does "Acme Corp" sell`, nil)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "acme-chunk", hits[0].ChunkID)
	})

	t.Run("no seeds yields no hits", func(t *testing.T) {
		e := NewExpander(graph.NewMemory(), ExpanderConfig{}, nil)
		hits, err := e.Expand(ctx, "nothing known here", fusedSeed("unknown-chunk"))
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestExtractEntityNames(t *testing.T) {
	t.Run("quoted phrases", func(t *testing.T) {
		names := ExtractEntityNames(`tell me about "error budgets" please`)
		assert.Equal(t, []string{"error budgets"}, names)
	})

	t.Run("capitalized runs", func(t *testing.T) {
		names := ExtractEntityNames("compare the Acme Widget against competitors")
		assert.Equal(t, []string{"Acme Widget"}, names)
	})

	t.Run("leading sentence capital alone is not an entity", func(t *testing.T) {
		assert.Empty(t, ExtractEntityNames("What is the best approach"))
	})

	t.Run("deduplicates case-insensitively", func(t *testing.T) {
		names := ExtractEntityNames(`"acme" and Acme`)
		assert.Len(t, names, 1)
	})
}
