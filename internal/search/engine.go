package search

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sand004/enterprise-rag-system/internal/cache"
	"github.com/Sand004/enterprise-rag-system/internal/domain"
)

// ChunkReader resolves chunk ids to full chunk records for reranking
// and response assembly.
type ChunkReader interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Chunk, error)
}

// Searcher is one primary retrieval path.
type Searcher interface {
	Search(ctx context.Context, plan domain.SearchPlan) ([]domain.SearchHit, error)
}

// EngineConfig holds the per-query budgets and stage depths.
type EngineConfig struct {
	// RetrievalTimeout is the shared deadline for the concurrent
	// vector and keyword sub-tasks.
	RetrievalTimeout time.Duration
	// GraphTimeout bounds the expansion stage.
	GraphTimeout time.Duration
	// RerankDepth is how many fused results the reranker rescores.
	RerankDepth int
	// ResultCacheTTL governs the query-result cache.
	ResultCacheTTL time.Duration
	// IndexVersion tags result-cache keys.
	IndexVersion string
	// ModelVersion tags result-cache keys with the embedding model.
	ModelVersion string
}

// Engine runs the full pipeline: Plan, then vector and keyword
// retrieval in parallel, then fusion, optional graph expansion,
// optional reranking, and assembly. Degradation of any single stage is
// reported through flags; the query only fails when every primary
// retrieval path fails or the plan is invalid.
type Engine struct {
	planner   *Planner
	vector    Searcher
	keyword   Searcher
	fuser     *Fuser
	expander  *Expander
	reranker  Reranker
	assembler *Assembler
	chunks    ChunkReader
	cache     *cache.Manager
	cfg       EngineConfig
	logger    *logrus.Logger
}

// NewEngine wires the pipeline. vector, expander, and reranker may be
// nil when the corresponding backend is not configured; the engine
// degrades the affected stages.
func NewEngine(planner *Planner, vector Searcher, keyword Searcher, fuser *Fuser, expander *Expander, reranker Reranker, assembler *Assembler, chunks ChunkReader, manager *cache.Manager, cfg EngineConfig, logger *logrus.Logger) *Engine {
	if cfg.RetrievalTimeout <= 0 {
		cfg.RetrievalTimeout = 2 * time.Second
	}
	if cfg.GraphTimeout <= 0 {
		cfg.GraphTimeout = time.Second
	}
	if cfg.RerankDepth <= 0 {
		cfg.RerankDepth = 20
	}
	if cfg.ResultCacheTTL <= 0 {
		cfg.ResultCacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		planner:   planner,
		vector:    vector,
		keyword:   keyword,
		fuser:     fuser,
		expander:  expander,
		reranker:  reranker,
		assembler: assembler,
		chunks:    chunks,
		cache:     manager,
		cfg:       cfg,
		logger:    logger,
	}
}

// errDegraded carries a degraded response out of the cache compute
// callback so it is returned to the caller without being cached.
type errDegraded struct {
	payload []byte
}

func (e *errDegraded) Error() string { return "degraded search result" }

// Search executes one query end to end. Identical concurrent queries
// coalesce on the result cache; only fully healthy responses are
// cached, so a transient backend outage never pins a degraded ranking
// for the TTL.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	plan, err := e.planner.Plan(req)
	if err != nil {
		return nil, err
	}

	key := e.resultKey(plan)
	payload, err := e.cache.GetOrComputeTracked(ctx, key, e.cfg.ResultCacheTTL, func(ctx context.Context) ([]byte, []string, error) {
		response, docIDs, perr := e.runPipeline(ctx, plan)
		if perr != nil {
			return nil, nil, perr
		}
		encoded, merr := json.Marshal(response)
		if merr != nil {
			return nil, nil, merr
		}
		if len(response.DegradedFlags) > 0 {
			return nil, nil, &errDegraded{payload: encoded}
		}
		return encoded, docIDs, nil
	})
	if err != nil {
		var degraded *errDegraded
		if errors.As(err, &degraded) {
			payload = degraded.payload
		} else {
			return nil, err
		}
	}

	var response Response
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (e *Engine) resultKey(plan domain.SearchPlan) string {
	parts := []string{
		"result",
		e.cfg.IndexVersion,
		e.cfg.ModelVersion,
		plan.Query,
		string(plan.SearchType),
	}
	parts = append(parts, planFingerprint(plan)...)
	return cache.Key(parts...)
}

// planFingerprint serializes the plan fields that change the result so
// they participate in the cache key.
func planFingerprint(plan domain.SearchPlan) []string {
	parts := []string{
		strconv.Itoa(plan.TopK),
		strconv.FormatBool(plan.RerankEnabled),
		strconv.FormatBool(plan.GraphExpandEnabled),
		strconv.FormatBool(plan.IncludeMetadata),
		strconv.FormatFloat(plan.MinScore, 'g', -1, 64),
	}
	filters := append([]domain.Filter(nil), plan.Filters...)
	sort.Slice(filters, func(i, j int) bool {
		if filters[i].Key != filters[j].Key {
			return filters[i].Key < filters[j].Key
		}
		return filters[i].Op < filters[j].Op
	})
	for _, f := range filters {
		parts = append(parts, f.Key+string(f.Op)+f.Value)
	}
	return parts
}

// runPipeline executes every stage after planning. It returns the
// response plus the document ids behind its results, used to register
// the cache entry for ingestion-driven invalidation.
func (e *Engine) runPipeline(ctx context.Context, plan domain.SearchPlan) (*Response, []string, error) {
	start := time.Now()
	var flags []string

	vectorHits, keywordHits, retrievalFlags, err := e.retrieve(ctx, plan)
	if err != nil {
		return nil, nil, err
	}
	flags = append(flags, retrievalFlags...)

	fused := e.fuser.Fuse(vectorHits, keywordHits)

	if plan.GraphExpandEnabled && e.expander != nil && len(fused) > 0 {
		graphCtx, cancel := context.WithTimeout(ctx, e.cfg.GraphTimeout)
		graphHits, gerr := e.expander.Expand(graphCtx, plan.Query, fused)
		cancel()
		if gerr != nil {
			e.logger.WithError(gerr).Warn("graph expansion skipped")
			flags = append(flags, domain.DegradedGraph)
		} else if len(graphHits) > 0 {
			fused = e.fuser.Fuse(vectorHits, keywordHits, graphHits)
		}
	}

	totalCandidates := len(fused)

	ranked := make([]RankedChunk, 0, len(fused))
	for _, fr := range fused {
		ranked = append(ranked, RankedChunk{ChunkID: fr.ChunkID, Score: fr.FusedScore})
	}

	// Fetch every chunk the rerank or assembly stages may need.
	fetchCount := plan.TopK
	if plan.RerankEnabled && e.cfg.RerankDepth > fetchCount {
		fetchCount = e.cfg.RerankDepth
	}
	if fetchCount > len(ranked) {
		fetchCount = len(ranked)
	}
	ids := make([]string, 0, fetchCount)
	for _, rc := range ranked[:fetchCount] {
		ids = append(ids, rc.ChunkID)
	}
	chunks, err := e.chunks.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, domain.TransientBackend("chunk_store", err)
	}

	if plan.RerankEnabled && e.reranker != nil {
		reranked, ok := e.rerank(ctx, plan, ranked, chunks)
		if ok {
			ranked = reranked
		} else {
			flags = append(flags, domain.DegradedRerank)
		}
	}

	if len(ranked) > plan.TopK {
		ranked = ranked[:plan.TopK]
	}

	sort.Strings(flags)
	response := e.assembler.Assemble(plan, ranked, chunks, flags, totalCandidates, time.Since(start))

	docIDs := make([]string, 0, len(response.Results))
	seen := make(map[string]struct{})
	for _, r := range response.Results {
		if chunk, ok := chunks[r.ChunkID]; ok {
			if _, dup := seen[chunk.DocumentID]; !dup {
				seen[chunk.DocumentID] = struct{}{}
				docIDs = append(docIDs, chunk.DocumentID)
			}
		}
	}
	return response, docIDs, nil
}

// retrieve fans out the primary paths under a shared deadline. A path
// timing out or failing does not abort its sibling; only both primary
// paths failing is fatal.
func (e *Engine) retrieve(ctx context.Context, plan domain.SearchPlan) (vectorHits, keywordHits []domain.SearchHit, flags []string, err error) {
	retrievalCtx, cancel := context.WithTimeout(ctx, e.cfg.RetrievalTimeout)
	defer cancel()

	var vectorErr, keywordErr error
	done := make(chan struct{}, 2)

	runVector := plan.RunsVector() && e.vector != nil
	runKeyword := plan.RunsKeyword() && e.keyword != nil

	if runVector {
		go func() {
			vectorHits, vectorErr = e.vector.Search(retrievalCtx, plan)
			done <- struct{}{}
		}()
	}
	if runKeyword {
		go func() {
			keywordHits, keywordErr = e.keyword.Search(retrievalCtx, plan)
			done <- struct{}{}
		}()
	}

	started := 0
	if runVector {
		started++
	}
	if runKeyword {
		started++
	}
	for i := 0; i < started; i++ {
		<-done
	}

	if plan.RunsVector() && (e.vector == nil || vectorErr != nil) {
		if vectorErr != nil {
			e.logger.WithError(vectorErr).Warn("vector retrieval degraded")
		}
		flags = append(flags, domain.DegradedVector)
		vectorHits = nil
	}
	if plan.RunsKeyword() && (e.keyword == nil || keywordErr != nil) {
		if keywordErr != nil {
			e.logger.WithError(keywordErr).Warn("keyword retrieval degraded")
		}
		flags = append(flags, domain.DegradedKeyword)
		keywordHits = nil
	}

	vectorOK := plan.RunsVector() && e.vector != nil && vectorErr == nil
	keywordOK := plan.RunsKeyword() && e.keyword != nil && keywordErr == nil
	if !vectorOK && !keywordOK {
		return nil, nil, nil, domain.ErrAllRetrievalFailed
	}
	return vectorHits, keywordHits, flags, nil
}

// rerank rescores the top of the ranking with the cross-encoder.
// Returns ok=false when the stage must be skipped; the ranking is then
// left untouched. The reranked prefix's scores are min-max normalized
// so the response scores stay in [0,1].
func (e *Engine) rerank(ctx context.Context, plan domain.SearchPlan, ranked []RankedChunk, chunks map[string]domain.Chunk) ([]RankedChunk, bool) {
	depth := e.cfg.RerankDepth
	if depth > len(ranked) {
		depth = len(ranked)
	}
	if depth == 0 {
		return ranked, true
	}

	prefix := make([]RankedChunk, depth)
	copy(prefix, ranked[:depth])

	candidates := make([]string, depth)
	for i, rc := range prefix {
		chunk, ok := chunks[rc.ChunkID]
		if !ok {
			// A candidate vanished mid-query; skip the stage rather
			// than score a partial batch.
			return nil, false
		}
		candidates[i] = chunk.Text
	}

	scores, err := e.reranker.Score(ctx, plan.Query, candidates)
	if err != nil {
		e.logger.WithError(err).Warn("rerank skipped")
		return nil, false
	}
	if len(scores) != len(candidates) {
		e.logger.WithFields(logrus.Fields{
			"candidates": len(candidates),
			"scores":     len(scores),
		}).Warn("rerank skipped: score count mismatch")
		return nil, false
	}

	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	for i := range prefix {
		if hi == lo {
			prefix[i].Score = 1.0
		} else {
			prefix[i].Score = (scores[i] - lo) / (hi - lo)
		}
	}
	sort.SliceStable(prefix, func(i, j int) bool {
		return prefix[i].Score > prefix[j].Score
	})

	out := make([]RankedChunk, 0, len(ranked))
	out = append(out, prefix...)
	out = append(out, ranked[depth:]...)
	return out, true
}
