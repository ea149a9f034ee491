package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
)

// QdrantConfig holds connection settings for a Qdrant collection.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	// Version tags the index snapshot for result-cache keys.
	Version string
}

// Qdrant queries a Qdrant collection over its HTTP API.
type Qdrant struct {
	config     QdrantConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewQdrant creates a Qdrant-backed index client.
func NewQdrant(cfg QdrantConfig, logger *logrus.Logger) (*Qdrant, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant URL is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Qdrant{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// HealthCheck verifies the server is reachable. The root endpoint is
// used because newer Qdrant versions dropped /health.
func (q *Qdrant) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.config.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if q.config.APIKey != "" {
		req.Header.Set("api-key", q.config.APIKey)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy status: %d", resp.StatusCode)
	}
	return nil
}

// scoredPoint mirrors a Qdrant search result. Point ids may be strings
// or integers depending on how ingestion wrote them.
type scoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

func (p scoredPoint) id() string {
	switch v := p.ID.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return fmt.Sprint(v)
	}
}

// Query issues a similarity search against the collection.
func (q *Qdrant) Query(ctx context.Context, vector []float32, topK int, filters []domain.Filter, minScore float64) ([]ScoredChunk, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if minScore > 0 {
		reqBody["score_threshold"] = minScore
	}
	if filter := buildQdrantFilter(filters); filter != nil {
		reqBody["filter"] = filter
	}

	path := fmt.Sprintf("/collections/%s/points/search", q.config.Collection)
	respBody, err := q.doRequest(ctx, http.MethodPost, path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var response struct {
		Result []scoredPoint `json:"result"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return pointsToChunks(response.Result), nil
}

// QueryBatch runs multiple similarity searches in one request.
func (q *Qdrant) QueryBatch(ctx context.Context, vectors [][]float32, topK int, filters []domain.Filter, minScore float64) ([][]ScoredChunk, error) {
	searches := make([]map[string]any, len(vectors))
	for i, vector := range vectors {
		search := map[string]any{
			"vector":       vector,
			"limit":        topK,
			"with_payload": true,
		}
		if minScore > 0 {
			search["score_threshold"] = minScore
		}
		if filter := buildQdrantFilter(filters); filter != nil {
			search["filter"] = filter
		}
		searches[i] = search
	}

	path := fmt.Sprintf("/collections/%s/points/search/batch", q.config.Collection)
	respBody, err := q.doRequest(ctx, http.MethodPost, path, map[string]any{"searches": searches})
	if err != nil {
		return nil, fmt.Errorf("failed to batch search: %w", err)
	}

	var response struct {
		Result [][]scoredPoint `json:"result"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	results := make([][]ScoredChunk, len(response.Result))
	for i, points := range response.Result {
		results[i] = pointsToChunks(points)
	}
	return results, nil
}

// SnapshotVersion reports the configured index snapshot tag.
func (q *Qdrant) SnapshotVersion() string {
	return q.config.Version
}

func (q *Qdrant) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	url := strings.TrimSuffix(q.config.URL, "/") + path

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.config.APIKey != "" {
		req.Header.Set("api-key", q.config.APIKey)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// buildQdrantFilter translates metadata predicates into Qdrant's
// must-condition filter grammar.
func buildQdrantFilter(filters []domain.Filter) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	must := make([]map[string]any, 0, len(filters))
	for _, f := range filters {
		switch f.Op {
		case domain.FilterOpEq:
			must = append(must, map[string]any{
				"key":   f.Key,
				"match": map[string]any{"value": f.Value},
			})
		case domain.FilterOpGte, domain.FilterOpLte:
			bound := any(f.Value)
			if n, err := strconv.ParseFloat(f.Value, 64); err == nil {
				bound = n
			}
			must = append(must, map[string]any{
				"key":   f.Key,
				"range": map[string]any{string(f.Op): bound},
			})
		}
	}
	return map[string]any{"must": must}
}

func pointsToChunks(points []scoredPoint) []ScoredChunk {
	chunks := make([]ScoredChunk, 0, len(points))
	for _, p := range points {
		id := p.id()
		// Chunk ids round-trip through the payload when points use
		// numeric ids.
		if cid, ok := p.Payload["chunk_id"].(string); ok && cid != "" {
			id = cid
		}
		chunks = append(chunks, ScoredChunk{ChunkID: id, Score: p.Score})
	}
	return chunks
}
