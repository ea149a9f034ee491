package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sand004/enterprise-rag-system/internal/api/handlers"
	"github.com/Sand004/enterprise-rag-system/internal/cache"
	"github.com/Sand004/enterprise-rag-system/internal/config"
	"github.com/Sand004/enterprise-rag-system/internal/database"
	"github.com/Sand004/enterprise-rag-system/internal/domain"
	"github.com/Sand004/enterprise-rag-system/internal/embedding"
	"github.com/Sand004/enterprise-rag-system/internal/graph"
	"github.com/Sand004/enterprise-rag-system/internal/index"
	"github.com/Sand004/enterprise-rag-system/internal/ingestion"
	"github.com/Sand004/enterprise-rag-system/internal/jobs"
	"github.com/Sand004/enterprise-rag-system/internal/repository"
	"github.com/Sand004/enterprise-rag-system/internal/search"
	"github.com/Sand004/enterprise-rag-system/internal/server"
	"github.com/Sand004/enterprise-rag-system/internal/telemetry"
	"github.com/Sand004/enterprise-rag-system/internal/vectorindex"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the retrieval API server",
		Long:  "Start the hybrid retrieval API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func newLogger(debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.Debug)

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			logger.WithError(err).Warn("telemetry init failed, continuing without tracing")
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	chunkRepo := repository.NewChunkRepository(pool)
	eventRepo := repository.NewEventRepository(pool)

	// Cache: in-process L1, optional shared Redis L2.
	var l2 cache.Store
	if cfg.HasRedis() {
		redisStore, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		l2 = redisStore
		logger.Info("redis cache tier connected")
	}

	metrics := cache.NewMetrics(prometheus.DefaultRegisterer)
	manager, err := cache.NewManager(cfg.CacheSize, l2, metrics, logger)
	if err != nil {
		return fmt.Errorf("failed to create cache manager: %w", err)
	}

	// Embedding provider, wrapped in the embedding cache.
	var embedder embedding.Provider
	modelVersion := "none"
	if cfg.HasOpenAI() {
		provider := embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.EmbeddingModel,
		})
		embedder = embedding.NewCachedProvider(provider, manager, cfg.EmbeddingCacheTTL)
		modelVersion = provider.ModelVersion()
	}

	// Vector index backend.
	var vector search.Searcher
	if embedder != nil {
		var idx vectorindex.Index
		switch cfg.VectorBackend {
		case "qdrant":
			qdrant, err := vectorindex.NewQdrant(vectorindex.QdrantConfig{
				URL:        cfg.QdrantURL,
				APIKey:     cfg.QdrantAPIKey,
				Collection: cfg.QdrantCollection,
				Version:    cfg.IndexVersion,
			}, logger)
			if err != nil {
				return fmt.Errorf("failed to create qdrant client: %w", err)
			}
			if err := qdrant.HealthCheck(ctx); err != nil {
				return fmt.Errorf("qdrant unreachable: %w", err)
			}
			idx = qdrant
			logger.Info("qdrant vector backend ready")
		case "pgvector":
			idx = vectorindex.NewPGVector(pool, cfg.IndexVersion)
			logger.Info("pgvector vector backend ready")
		default:
			return fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
		}
		vector = search.NewVectorSearcher(idx, embedder, cfg.BackendRetries, logger)
	} else {
		logger.Warn("no embedding provider configured, vector search disabled")
	}

	// Keyword index, warmed from the chunk store.
	keywordIndex := index.NewKeyword(cfg.BM25K1, cfg.BM25B)
	if err := ingestion.Warm(ctx, chunkRepo, keywordIndex, logger); err != nil {
		return fmt.Errorf("failed to warm keyword index: %w", err)
	}
	keyword := search.NewKeywordSearcher(keywordIndex)

	// Optional graph expansion over Neo4j.
	var expander *search.Expander
	if cfg.HasNeo4j() {
		neo, err := graph.NewNeo4j(ctx, graph.Neo4jConfig{
			URI:      cfg.Neo4jURI,
			Username: cfg.Neo4jUser,
			Password: cfg.Neo4jPassword,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to neo4j: %w", err)
		}
		defer neo.Close(ctx)
		expander = search.NewExpander(neo, search.ExpanderConfig{
			MaxDepth:   cfg.GraphMaxDepth,
			MaxFanout:  cfg.GraphMaxFanout,
			SeedCount:  cfg.GraphSeedCount,
			BaseWeight: cfg.GraphWeight,
		}, logger)
		logger.Info("graph expansion enabled")
	}

	// Optional cross-encoder reranking.
	var reranker search.Reranker
	if cfg.HasReranker() {
		reranker, err = search.NewCrossEncoderReranker(search.RerankerConfig{
			Endpoint: cfg.RerankerEndpoint,
			Model:    cfg.RerankerModel,
			Timeout:  cfg.RerankerTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create reranker: %w", err)
		}
		logger.Info("cross-encoder reranking enabled")
	}

	planner := search.NewPlanner(search.PlannerConfig{
		MaxTopK:       cfg.MaxTopK,
		DefaultTopK:   cfg.DefaultTopK,
		FilterKeys:    cfg.FilterKeys,
		GraphEnabled:  expander != nil,
		RerankEnabled: reranker != nil,
	})

	fuser := search.NewFuser(cfg.RRFConstant, map[domain.SearchSource]float64{
		domain.SourceVector:  cfg.VectorWeight,
		domain.SourceKeyword: cfg.KeywordWeight,
		domain.SourceGraph:   cfg.GraphWeight,
	})

	engine := search.NewEngine(
		planner, vector, keyword, fuser, expander, reranker,
		search.NewAssembler(0), chunkRepo, manager,
		search.EngineConfig{
			RetrievalTimeout: cfg.RetrievalTimeout,
			GraphTimeout:     cfg.GraphTimeout,
			RerankDepth:      cfg.RerankDepth,
			ResultCacheTTL:   cfg.ResultCacheTTL,
			IndexVersion:     cfg.IndexVersion,
			ModelVersion:     modelVersion,
		},
		logger,
	)

	// Background loops: event consumer and cache sweeper.
	consumer := ingestion.NewConsumer(eventRepo, chunkRepo, keywordIndex, manager, logger)
	if err := consumer.SeedCursor(ctx); err != nil {
		return fmt.Errorf("failed to seed event cursor: %w", err)
	}
	consumerWorker := jobs.NewWorker(consumer, cfg.EventPollInterval, logger)
	go consumerWorker.Start(ctx)

	sweepWorker := jobs.NewWorker(ingestion.NewSweepTask(manager), cfg.CacheSweepInterval, logger)
	go sweepWorker.Start(ctx)

	router := server.NewRouter(server.RouterConfig{
		SearchHandler: handlers.NewSearchHandler(engine),
		EventsHandler: handlers.NewEventsHandler(eventRepo),
		HealthHandler: handlers.NewHealthHandler(pool),
		APIKey:        cfg.APIKey,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	consumerWorker.Stop()
	sweepWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	if err := manager.Flush(shutdownCtx); err != nil {
		logger.WithError(err).Warn("cache flush failed")
	}

	logger.Info("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
