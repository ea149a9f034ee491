package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
)

// Reranker scores (query, candidate) pairs with an absolute relevance
// model. Implementations return one score per candidate, in order.
type Reranker interface {
	Score(ctx context.Context, query string, candidates []string) ([]float64, error)
}

// RerankerConfig configures the cross-encoder HTTP client.
type RerankerConfig struct {
	Endpoint  string
	Model     string
	APIKey    string
	Timeout   time.Duration
	BatchSize int
}

// CrossEncoderReranker calls an external cross-encoder scoring service.
type CrossEncoderReranker struct {
	cfg        RerankerConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewCrossEncoderReranker creates the HTTP reranker client.
func NewCrossEncoderReranker(cfg RerankerConfig, logger *logrus.Logger) (*CrossEncoderReranker, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("reranker endpoint is required")
	}
	if cfg.Model == "" {
		cfg.Model = "BAAI/bge-reranker-v2-m3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &CrossEncoderReranker{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// Score returns one relevance score per candidate. Candidates are sent
// in batches; any batch failure fails the whole call so the engine can
// skip the stage cleanly instead of mixing scored and unscored items.
func (r *CrossEncoderReranker) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	scores := make([]float64, 0, len(candidates))
	for start := 0; start < len(candidates); start += r.cfg.BatchSize {
		end := start + r.cfg.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch, err := r.scoreBatch(ctx, query, candidates[start:end])
		if err != nil {
			return nil, domain.TransientBackend("reranker", err)
		}
		scores = append(scores, batch...)
	}
	if len(scores) != len(candidates) {
		return nil, domain.TransientBackend("reranker",
			fmt.Errorf("got %d scores for %d candidates", len(scores), len(candidates)))
	}
	return scores, nil
}

func (r *CrossEncoderReranker) scoreBatch(ctx context.Context, query string, candidates []string) ([]float64, error) {
	pairs := make([][2]string, len(candidates))
	for i, candidate := range candidates {
		pairs[i] = [2]string{query, candidate}
	}

	jsonBody, err := json.Marshal(map[string]interface{}{
		"model": r.cfg.Model,
		"pairs": pairs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("reranker returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Scores) != len(candidates) {
		return nil, fmt.Errorf("got %d scores for %d pairs", len(result.Scores), len(candidates))
	}
	return result.Scores, nil
}
