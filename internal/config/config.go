package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// APIKey guards /search and /events when set. Empty leaves the
	// API open for local deployments.
	APIKey string `envconfig:"API_KEY"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Vector index backend: "qdrant" or "pgvector".
	VectorBackend    string `envconfig:"VECTOR_BACKEND" default:"pgvector"`
	QdrantURL        string `envconfig:"QDRANT_URL" default:"http://localhost:6333"`
	QdrantAPIKey     string `envconfig:"QDRANT_API_KEY"`
	QdrantCollection string `envconfig:"QDRANT_COLLECTION" default:"enterprise_docs"`

	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-ada-002"`

	RerankerEndpoint string        `envconfig:"RERANKER_ENDPOINT"`
	RerankerModel    string        `envconfig:"RERANKER_MODEL" default:"BAAI/bge-reranker-v2-m3"`
	RerankerTimeout  time.Duration `envconfig:"RERANKER_TIMEOUT" default:"5s"`
	RerankDepth      int           `envconfig:"RERANK_DEPTH" default:"20"`

	Neo4jURI      string `envconfig:"NEO4J_URI"`
	Neo4jUser     string `envconfig:"NEO4J_USER" default:"neo4j"`
	Neo4jPassword string `envconfig:"NEO4J_PASSWORD"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Retrieval tuning.
	MaxTopK        int     `envconfig:"MAX_TOP_K" default:"100"`
	DefaultTopK    int     `envconfig:"DEFAULT_TOP_K" default:"10"`
	BM25K1         float64 `envconfig:"BM25_K1" default:"1.2"`
	BM25B          float64 `envconfig:"BM25_B" default:"0.75"`
	RRFConstant    float64 `envconfig:"RRF_CONSTANT" default:"60"`
	VectorWeight   float64 `envconfig:"VECTOR_WEIGHT" default:"1.0"`
	KeywordWeight  float64 `envconfig:"KEYWORD_WEIGHT" default:"1.0"`
	GraphWeight    float64 `envconfig:"GRAPH_WEIGHT" default:"0.5"`
	GraphMaxDepth  int     `envconfig:"GRAPH_MAX_DEPTH" default:"2"`
	GraphMaxFanout int     `envconfig:"GRAPH_MAX_FANOUT" default:"10"`
	GraphSeedCount int     `envconfig:"GRAPH_SEED_COUNT" default:"10"`

	// FilterKeys lists the metadata keys queries may filter on.
	FilterKeys []string `envconfig:"FILTER_KEYS" default:"source,author,year,lang,page"`

	// Per-query budgets.
	RetrievalTimeout time.Duration `envconfig:"RETRIEVAL_TIMEOUT" default:"2s"`
	GraphTimeout     time.Duration `envconfig:"GRAPH_TIMEOUT" default:"1s"`
	BackendRetries   uint64        `envconfig:"BACKEND_RETRIES" default:"3"`

	// Cache manager.
	CacheSize          int           `envconfig:"CACHE_SIZE" default:"4096"`
	EmbeddingCacheTTL  time.Duration `envconfig:"EMBEDDING_CACHE_TTL" default:"24h"`
	ResultCacheTTL     time.Duration `envconfig:"RESULT_CACHE_TTL" default:"5m"`
	CacheSweepInterval time.Duration `envconfig:"CACHE_SWEEP_INTERVAL" default:"1m"`

	// EventPollInterval is how often the ingestion consumer drains the
	// document event feed.
	EventPollInterval time.Duration `envconfig:"EVENT_POLL_INTERVAL" default:"5s"`

	// IndexVersion tags result-cache keys; bumped by reindexing so stale
	// entries miss without a manual purge.
	IndexVersion string `envconfig:"INDEX_VERSION" default:"1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("RAG", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasNeo4j() bool {
	return c.Neo4jURI != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}

func (c *Config) HasReranker() bool {
	return c.RerankerEndpoint != ""
}
