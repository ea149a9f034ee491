//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/Sand004/enterprise-rag-system/internal/api/handlers"
	"github.com/Sand004/enterprise-rag-system/internal/cache"
	"github.com/Sand004/enterprise-rag-system/internal/domain"
	"github.com/Sand004/enterprise-rag-system/internal/index"
	"github.com/Sand004/enterprise-rag-system/internal/ingestion"
	"github.com/Sand004/enterprise-rag-system/internal/jobs"
	"github.com/Sand004/enterprise-rag-system/internal/repository"
	"github.com/Sand004/enterprise-rag-system/internal/search"
	"github.com/Sand004/enterprise-rag-system/internal/server"
	"github.com/Sand004/enterprise-rag-system/internal/testutil"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	Pool       *pgxpool.Pool
	ChunkRepo  *repository.ChunkRepository
	EventRepo  *repository.EventRepository
	Server     *httptest.Server
	HTTPClient *http.Client

	worker *jobs.Worker
}

// APIResponse is a decoded response envelope
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Code  string          `json:"code"`
}

// SetupE2EEnv creates a full keyword-search environment: a Postgres
// container, migrations, a warmed engine behind an in-process HTTP
// server, and the background event consumer on a short poll interval.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	chunkRepo := repository.NewChunkRepository(pool)
	eventRepo := repository.NewEventRepository(pool)

	metrics := cache.NewMetrics(prometheus.NewRegistry())
	manager, err := cache.NewManager(128, nil, metrics, logger)
	if err != nil {
		t.Fatalf("failed to create cache manager: %v", err)
	}

	keywordIndex := index.NewKeyword(0, 0)
	if err := ingestion.Warm(ctx, chunkRepo, keywordIndex, logger); err != nil {
		t.Fatalf("failed to warm keyword index: %v", err)
	}

	planner := search.NewPlanner(search.PlannerConfig{
		MaxTopK:     100,
		DefaultTopK: 10,
		FilterKeys:  []string{"source", "year"},
	})
	fuser := search.NewFuser(search.DefaultRRFConstant, nil)
	engine := search.NewEngine(
		planner, nil, search.NewKeywordSearcher(keywordIndex), fuser,
		nil, nil, search.NewAssembler(0), chunkRepo, manager,
		search.EngineConfig{IndexVersion: "1", ModelVersion: "none"},
		logger,
	)

	consumer := ingestion.NewConsumer(eventRepo, chunkRepo, keywordIndex, manager, logger)
	if err := consumer.SeedCursor(ctx); err != nil {
		t.Fatalf("failed to seed event cursor: %v", err)
	}
	worker := jobs.NewWorker(consumer, 50*time.Millisecond, logger)
	go worker.Start(ctx)

	router := server.NewRouter(server.RouterConfig{
		SearchHandler: handlers.NewSearchHandler(engine),
		EventsHandler: handlers.NewEventsHandler(eventRepo),
		HealthHandler: handlers.NewHealthHandler(pool),
		Logger:        logger,
	})
	srv := httptest.NewServer(router)

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		Pool:       pool,
		ChunkRepo:  chunkRepo,
		EventRepo:  eventRepo,
		Server:     srv,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		worker:     worker,
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	e.worker.Stop()
	if e.Server != nil {
		e.Server.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// SeedChunk stores a chunk and signals the update through the event
// feed so the consumer picks it up.
func (e *E2ETestEnv) SeedChunk(documentID, text string, metadata map[string]string) string {
	e.T.Helper()

	freqs, count := index.TermFrequencies(text)
	id := uuid.NewString()
	err := e.ChunkRepo.Create(e.Ctx, &domain.Chunk{
		ID:         id,
		DocumentID: documentID,
		Text:       text,
		TermFreqs:  freqs,
		TermCount:  count,
		Metadata:   metadata,
		UpdatedAt:  time.Now().UTC(),
	})
	if err != nil {
		e.T.Fatalf("failed to seed chunk: %v", err)
	}

	if _, err := e.EventRepo.Record(e.Ctx, documentID, domain.DocumentUpdated); err != nil {
		e.T.Fatalf("failed to record seed event: %v", err)
	}
	return id
}

// Post sends a JSON POST request and decodes the response envelope
func (e *E2ETestEnv) Post(path string, body interface{}) (int, *APIResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}

	resp, err := e.HTTPClient.Post(e.Server.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	var decoded APIResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("decode response %q: %w", string(raw), err)
	}
	return resp.StatusCode, &decoded, nil
}
