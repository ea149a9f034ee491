// Package search implements the retrieval pipeline: planning, the
// dense and lexical searchers, rank fusion, graph expansion, cross
// encoder reranking, and response assembly, orchestrated by Engine.
package search

import (
	"fmt"
	"strings"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
	"github.com/Sand004/enterprise-rag-system/internal/index"
)

// Request is the decoded search request handed to the engine.
type Request struct {
	Query           string
	TopK            int
	SearchType      string
	Filters         []domain.Filter
	IncludeMetadata bool
	Rerank          bool
	MinScore        float64
}

// PlannerConfig bounds and defaults applied during plan construction.
type PlannerConfig struct {
	MaxTopK     int
	DefaultTopK int
	// FilterKeys is the allow-list of metadata keys.
	FilterKeys []string
	// GraphEnabled reflects whether a graph store is configured.
	GraphEnabled bool
	// RerankEnabled reflects whether a reranker is configured.
	RerankEnabled bool
}

// Planner validates a request and classifies it into an immutable
// SearchPlan. It never touches the cache or any backend.
type Planner struct {
	cfg        PlannerConfig
	filterKeys map[string]struct{}
}

// NewPlanner creates a planner with the given bounds.
func NewPlanner(cfg PlannerConfig) *Planner {
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 100
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 10
	}
	keys := make(map[string]struct{}, len(cfg.FilterKeys))
	for _, k := range cfg.FilterKeys {
		keys[k] = struct{}{}
	}
	return &Planner{cfg: cfg, filterKeys: keys}
}

// Plan validates the request and emits a SearchPlan. Validation
// failures return a VALIDATION_ERROR domain error and are never
// retried.
func (p *Planner) Plan(req Request) (domain.SearchPlan, error) {
	if strings.TrimSpace(req.Query) == "" {
		return domain.SearchPlan{}, domain.ErrEmptyQuery
	}

	topK := req.TopK
	if topK == 0 {
		topK = p.cfg.DefaultTopK
	}
	if topK < 0 {
		return domain.SearchPlan{}, domain.ErrInvalidTopK
	}
	if topK > p.cfg.MaxTopK {
		return domain.SearchPlan{}, domain.ErrTopKTooLarge
	}

	for _, f := range req.Filters {
		if _, ok := p.filterKeys[f.Key]; !ok {
			return domain.SearchPlan{}, fmt.Errorf("%w: %q", domain.ErrUnknownFilterKey, f.Key)
		}
		switch f.Op {
		case domain.FilterOpEq, domain.FilterOpGte, domain.FilterOpLte:
		default:
			return domain.SearchPlan{}, fmt.Errorf("%w: %q", domain.ErrInvalidFilterOp, f.Op)
		}
	}

	searchType, err := p.classify(req)
	if err != nil {
		return domain.SearchPlan{}, err
	}

	plan := domain.SearchPlan{
		Query:           strings.TrimSpace(req.Query),
		SearchType:      searchType,
		TopK:            topK,
		Filters:         req.Filters,
		RerankEnabled:   req.Rerank && p.cfg.RerankEnabled,
		IncludeMetadata: req.IncludeMetadata,
		MinScore:        req.MinScore,
	}
	if p.cfg.GraphEnabled && plan.RunsVector() {
		plan.GraphExpandEnabled = true
	}
	return plan, nil
}

// classify picks the retrieval paths. An explicit override wins; very
// short queries lean lexical since a one-or-two-term query is usually a
// lookup, not a semantic question; everything else runs hybrid.
func (p *Planner) classify(req Request) (domain.SearchType, error) {
	switch req.SearchType {
	case string(domain.SearchTypeVector):
		return domain.SearchTypeVector, nil
	case string(domain.SearchTypeKeyword):
		return domain.SearchTypeKeyword, nil
	case string(domain.SearchTypeHybrid):
		return domain.SearchTypeHybrid, nil
	case "":
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidSearchType, req.SearchType)
	}

	if len(index.Tokenize(req.Query)) <= 2 && len(req.Filters) > 0 {
		return domain.SearchTypeKeyword, nil
	}
	return domain.SearchTypeHybrid, nil
}
