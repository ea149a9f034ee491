//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
	"github.com/Sand004/enterprise-rag-system/internal/search"
)

func searchResponse(t *testing.T, resp *APIResponse) *search.Response {
	t.Helper()
	var out search.Response
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	return &out
}

func TestE2E_Validation(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	status, resp, err := env.Post("/search", map[string]interface{}{"query": "   "})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.ErrCodeValidation, resp.Code)

	status, resp, err = env.Post("/search", map[string]interface{}{"query": "q", "top_k": 5000})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.ErrCodeValidation, resp.Code)

	status, resp, err = env.Post("/search", map[string]interface{}{
		"query":       "valid question",
		"search_type": "keyword",
		"filters":     []map[string]string{{"key": "rating", "value": "5"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.ErrCodeValidation, resp.Code)
}

func TestE2E_KeywordSearch(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	env.SeedChunk("doc-caching", "the cache manager coalesces identical lookups", map[string]string{"source": "wiki"})
	env.SeedChunk("doc-fusion", "reciprocal rank fusion merges ranked lists", map[string]string{"source": "blog"})

	// Wait for the consumer to index the seeded documents.
	require.Eventually(t, func() bool {
		status, resp, err := env.Post("/search", map[string]interface{}{
			"query":       "rank fusion merges",
			"search_type": "keyword",
		})
		if err != nil || status != http.StatusOK {
			return false
		}
		return searchResponse(t, resp).TotalResults > 0
	}, 5*time.Second, 100*time.Millisecond)

	status, resp, err := env.Post("/search", map[string]interface{}{
		"query":            "rank fusion merges",
		"search_type":      "keyword",
		"include_metadata": true,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	out := searchResponse(t, resp)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "keyword", out.SearchType)
	assert.Empty(t, out.DegradedFlags)
	assert.Equal(t, map[string]string{"source": "blog"}, out.Results[0].Metadata)
	assert.NotEmpty(t, out.Results[0].Highlights)

	for _, h := range out.Results[0].Highlights {
		assert.Equal(t, h.Term, out.Results[0].Content[h.Start:h.End])
	}
}

func TestE2E_HybridDegradesWithoutVectorBackend(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	env.SeedChunk("doc-a", "graph expansion walks entity neighborhoods", nil)

	require.Eventually(t, func() bool {
		status, resp, err := env.Post("/search", map[string]interface{}{
			"query": "graph expansion walks entity neighborhoods",
		})
		if err != nil || status != http.StatusOK {
			return false
		}
		return searchResponse(t, resp).TotalResults > 0
	}, 5*time.Second, 100*time.Millisecond)

	status, resp, err := env.Post("/search", map[string]interface{}{
		"query": "graph expansion walks entity neighborhoods",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	out := searchResponse(t, resp)
	assert.Equal(t, "hybrid", out.SearchType)
	assert.Contains(t, out.DegradedFlags, domain.DegradedVector)
	assert.NotEmpty(t, out.Results)
}

func TestE2E_MetadataFilters(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	wiki := env.SeedChunk("doc-w", "retrieval latency budget analysis", map[string]string{"source": "wiki"})
	env.SeedChunk("doc-b", "retrieval latency budget analysis", map[string]string{"source": "blog"})

	require.Eventually(t, func() bool {
		status, resp, err := env.Post("/search", map[string]interface{}{
			"query":       "latency budget",
			"search_type": "keyword",
		})
		if err != nil || status != http.StatusOK {
			return false
		}
		return searchResponse(t, resp).TotalResults == 2
	}, 5*time.Second, 100*time.Millisecond)

	status, resp, err := env.Post("/search", map[string]interface{}{
		"query":       "latency budget",
		"search_type": "keyword",
		"filters":     []map[string]string{{"key": "source", "value": "wiki"}},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	out := searchResponse(t, resp)
	require.Len(t, out.Results, 1)
	assert.Equal(t, wiki, out.Results[0].ChunkID)
}

func TestE2E_DocumentDeleteDropsResults(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	env.SeedChunk("doc-gone", "ephemeral content slated for removal", nil)

	require.Eventually(t, func() bool {
		status, resp, err := env.Post("/search", map[string]interface{}{
			"query":       "ephemeral content removal",
			"search_type": "keyword",
		})
		if err != nil || status != http.StatusOK {
			return false
		}
		return searchResponse(t, resp).TotalResults > 0
	}, 5*time.Second, 100*time.Millisecond)

	status, resp, err := env.Post("/events", map[string]string{
		"document_id": "doc-gone",
		"type":        "deleted",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, status)

	var ev struct {
		EventID int64 `json:"event_id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &ev))
	assert.Positive(t, ev.EventID)

	require.Eventually(t, func() bool {
		status, resp, err := env.Post("/search", map[string]interface{}{
			"query":       "ephemeral content removal",
			"search_type": "keyword",
		})
		if err != nil || status != http.StatusOK {
			return false
		}
		return searchResponse(t, resp).TotalResults == 0
	}, 5*time.Second, 100*time.Millisecond)
}
