package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Sand004/enterprise-rag-system/internal/api/handlers"
	"github.com/Sand004/enterprise-rag-system/internal/domain"
	"github.com/Sand004/enterprise-rag-system/internal/search"
)

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*search.Response), args.Error(1)
}

type MockEventRecorder struct {
	mock.Mock
}

func (m *MockEventRecorder) Record(ctx context.Context, documentID string, typ domain.DocumentEventType) (int64, error) {
	args := m.Called(ctx, documentID, typ)
	return args.Get(0).(int64), args.Error(1)
}

func testRouter(svc *MockSearchService, recorder *MockEventRecorder, apiKey string) http.Handler {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewRouter(RouterConfig{
		SearchHandler: handlers.NewSearchHandler(svc),
		EventsHandler: handlers.NewEventsHandler(recorder),
		APIKey:        apiKey,
		Logger:        logger,
	})
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_SearchSuccess(t *testing.T) {
	svc := new(MockSearchService)
	svc.On("Search", mock.Anything, mock.MatchedBy(func(req search.Request) bool {
		return req.Query == "hybrid retrieval" && req.TopK == 5
	})).Return(&search.Response{
		Query:         "hybrid retrieval",
		Results:       []search.Result{{ChunkID: "c1", Content: "text", Score: 1.0, Highlights: []search.Highlight{}}},
		TotalResults:  1,
		SearchType:    "hybrid",
		DegradedFlags: []string{},
	}, nil)

	router := testRouter(svc, new(MockEventRecorder), "")
	rec := postJSON(t, router, "/search", map[string]interface{}{
		"query": "hybrid retrieval",
		"top_k": 5,
	}, "")

	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data search.Response `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "hybrid retrieval", envelope.Data.Query)
	assert.Len(t, envelope.Data.Results, 1)
	svc.AssertExpectations(t)
}

func TestRouter_SearchFilterMapping(t *testing.T) {
	svc := new(MockSearchService)
	svc.On("Search", mock.Anything, mock.MatchedBy(func(req search.Request) bool {
		if len(req.Filters) != 2 {
			return false
		}
		// Omitted op defaults to eq.
		return req.Filters[0] == domain.Filter{Key: "source", Op: domain.FilterOpEq, Value: "wiki"} &&
			req.Filters[1] == domain.Filter{Key: "year", Op: domain.FilterOpGte, Value: "2020"}
	})).Return(&search.Response{DegradedFlags: []string{}}, nil)

	router := testRouter(svc, new(MockEventRecorder), "")
	rec := postJSON(t, router, "/search", map[string]interface{}{
		"query": "filtered",
		"filters": []map[string]string{
			{"key": "source", "value": "wiki"},
			{"key": "year", "op": "gte", "value": "2020"},
		},
	}, "")

	require.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestRouter_SearchValidationError(t *testing.T) {
	svc := new(MockSearchService)
	svc.On("Search", mock.Anything, mock.Anything).Return(nil, &domain.DomainError{
		Code:    domain.ErrCodeValidation,
		Message: "query must not be empty",
	})

	router := testRouter(svc, new(MockEventRecorder), "")
	rec := postJSON(t, router, "/search", map[string]interface{}{"query": ""}, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.ErrCodeValidation, body.Code)
}

func TestRouter_SearchPipelineFailure(t *testing.T) {
	svc := new(MockSearchService)
	svc.On("Search", mock.Anything, mock.Anything).Return(nil, domain.ErrAllRetrievalFailed)

	router := testRouter(svc, new(MockEventRecorder), "")
	rec := postJSON(t, router, "/search", map[string]interface{}{"query": "anything"}, "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRouter_SearchMalformedBody(t *testing.T) {
	router := testRouter(new(MockSearchService), new(MockEventRecorder), "")

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_AuthRequired(t *testing.T) {
	router := testRouter(new(MockSearchService), new(MockEventRecorder), "secret")

	rec := postJSON(t, router, "/search", map[string]interface{}{"query": "q"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, router, "/search", map[string]interface{}{"query": "q"}, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_AuthAccepted(t *testing.T) {
	svc := new(MockSearchService)
	svc.On("Search", mock.Anything, mock.Anything).Return(&search.Response{DegradedFlags: []string{}}, nil)

	router := testRouter(svc, new(MockEventRecorder), "secret")
	rec := postJSON(t, router, "/search", map[string]interface{}{"query": "q"}, "secret")

	assert.Equal(t, http.StatusOK, rec.Code)
}

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(context.Context) error { return p.err }

func TestRouter_HealthReportsDatabase(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	newHealthRouter := func(p handlers.Pinger) http.Handler {
		return NewRouter(RouterConfig{
			SearchHandler: handlers.NewSearchHandler(new(MockSearchService)),
			EventsHandler: handlers.NewEventsHandler(new(MockEventRecorder)),
			HealthHandler: handlers.NewHealthHandler(p),
			Logger:        logger,
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	newHealthRouter(&stubPinger{}).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	newHealthRouter(&stubPinger{err: errors.New("connection refused")}).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_HealthOpenWithoutAuth(t *testing.T) {
	router := testRouter(new(MockSearchService), new(MockEventRecorder), "secret")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router := testRouter(new(MockSearchService), new(MockEventRecorder), "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "fixed-id", rec.Header().Get("X-Request-ID"))
}

func TestRouter_EventAccepted(t *testing.T) {
	recorder := new(MockEventRecorder)
	recorder.On("Record", mock.Anything, "doc-1", domain.DocumentUpdated).Return(int64(42), nil)

	router := testRouter(new(MockSearchService), recorder, "")
	rec := postJSON(t, router, "/events", map[string]string{
		"document_id": "doc-1",
		"type":        "updated",
	}, "")

	require.Equal(t, http.StatusAccepted, rec.Code)

	var envelope struct {
		Data struct {
			EventID int64 `json:"event_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, int64(42), envelope.Data.EventID)
	recorder.AssertExpectations(t)
}

func TestRouter_EventRejectsUnknownType(t *testing.T) {
	router := testRouter(new(MockSearchService), new(MockEventRecorder), "")

	rec := postJSON(t, router, "/events", map[string]string{
		"document_id": "doc-1",
		"type":        "archived",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/events", map[string]string{"type": "updated"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
