package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Sand004/enterprise-rag-system/internal/api"
	"github.com/Sand004/enterprise-rag-system/internal/domain"
	"github.com/Sand004/enterprise-rag-system/internal/search"
)

type SearchService interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type FilterRequest struct {
	Key   string `json:"key"`
	Op    string `json:"op,omitempty"`
	Value string `json:"value"`
}

type SearchRequest struct {
	Query           string          `json:"query"`
	TopK            int             `json:"top_k,omitempty"`
	SearchType      string          `json:"search_type,omitempty"`
	Filters         []FilterRequest `json:"filters,omitempty"`
	IncludeMetadata bool            `json:"include_metadata,omitempty"`
	Rerank          bool            `json:"rerank,omitempty"`
	MinScore        float64         `json:"min_score,omitempty"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	filters := make([]domain.Filter, 0, len(req.Filters))
	for _, f := range req.Filters {
		op := f.Op
		if op == "" {
			op = string(domain.FilterOpEq)
		}
		filters = append(filters, domain.Filter{
			Key:   f.Key,
			Op:    domain.FilterOp(op),
			Value: f.Value,
		})
	}

	resp, err := h.svc.Search(r.Context(), search.Request{
		Query:           req.Query,
		TopK:            req.TopK,
		SearchType:      req.SearchType,
		Filters:         filters,
		IncludeMetadata: req.IncludeMetadata,
		Rerank:          req.Rerank,
		MinScore:        req.MinScore,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, resp)
}
