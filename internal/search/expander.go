package search

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
	"github.com/Sand004/enterprise-rag-system/internal/graph"
)

// ExpanderConfig bounds the graph traversal.
type ExpanderConfig struct {
	MaxDepth   int
	MaxFanout  int
	SeedCount  int
	BaseWeight float64
}

// Expander pulls in chunks related to the top fused results through
// the knowledge graph. The walk is breadth-first, cycle-safe via a
// visited set, and bounded in both depth and per-hop fan-out.
type Expander struct {
	store  graph.Store
	cfg    ExpanderConfig
	logger *logrus.Logger
}

// NewExpander creates a graph expander over the given store.
func NewExpander(store graph.Store, cfg ExpanderConfig, logger *logrus.Logger) *Expander {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 2
	}
	if cfg.MaxFanout <= 0 {
		cfg.MaxFanout = 10
	}
	if cfg.SeedCount <= 0 {
		cfg.SeedCount = 10
	}
	if cfg.BaseWeight <= 0 {
		cfg.BaseWeight = 1.0
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Expander{store: store, cfg: cfg, logger: logger}
}

// Expand seeds from the top fused chunks plus entity names mentioned
// in the query, walks outward up to the depth bound, and emits the
// chunks of reached entities as graph hits with a depth-decayed
// weight. Chunks already in the fused list are not re-emitted.
func (e *Expander) Expand(ctx context.Context, query string, fused []domain.FusedResult) ([]domain.SearchHit, error) {
	seen := make(map[string]struct{}, len(fused))
	seeds := make([]string, 0, e.cfg.SeedCount)

	for i, result := range fused {
		if i >= e.cfg.SeedCount {
			break
		}
		seen[result.ChunkID] = struct{}{}
		entities, err := e.store.EntitiesForChunk(ctx, result.ChunkID)
		if err != nil {
			return nil, domain.TransientBackend("graph_store", err)
		}
		seeds = append(seeds, entities...)
	}

	if names := ExtractEntityNames(query); len(names) > 0 {
		ids, err := e.store.LookupEntities(ctx, names)
		if err != nil {
			return nil, domain.TransientBackend("graph_store", err)
		}
		seeds = append(seeds, ids...)
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	type frontierEntry struct {
		entityID string
		depth    int
	}

	visited := make(map[string]struct{}, len(seeds))
	frontier := make([]frontierEntry, 0, len(seeds))
	for _, id := range seeds {
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}
		frontier = append(frontier, frontierEntry{entityID: id})
	}

	var hits []domain.SearchHit
	emitted := make(map[string]struct{})

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, domain.TransientBackend("graph_store", err)
		}
		current := frontier[0]
		frontier = frontier[1:]

		weight := e.cfg.BaseWeight / math.Pow(2, float64(current.depth))
		chunks, err := e.store.ChunksForEntity(ctx, current.entityID)
		if err != nil {
			return nil, domain.TransientBackend("graph_store", err)
		}
		for _, chunkID := range chunks {
			if _, ok := seen[chunkID]; ok {
				continue
			}
			if _, ok := emitted[chunkID]; ok {
				continue
			}
			emitted[chunkID] = struct{}{}
			hits = append(hits, domain.SearchHit{
				ChunkID:  chunkID,
				RawScore: weight,
				Source:   domain.SourceGraph,
			})
		}

		if current.depth >= e.cfg.MaxDepth {
			continue
		}
		edges, err := e.store.Neighbors(ctx, current.entityID, e.cfg.MaxFanout)
		if err != nil {
			return nil, domain.TransientBackend("graph_store", err)
		}
		for _, edge := range edges {
			if _, ok := visited[edge.TargetID]; ok {
				continue
			}
			visited[edge.TargetID] = struct{}{}
			frontier = append(frontier, frontierEntry{entityID: edge.TargetID, depth: current.depth + 1})
		}
	}

	return hits, nil
}

var quotedPhrase = regexp.MustCompile(`"([^"]+)"`)

// ExtractEntityNames pulls candidate entity names from query text:
// quoted phrases and runs of capitalized words. A cheap heuristic that
// avoids an NLP dependency on the hot path.
func ExtractEntityNames(query string) []string {
	var names []string
	seen := make(map[string]struct{})
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		names = append(names, name)
	}

	for _, m := range quotedPhrase.FindAllStringSubmatch(query, -1) {
		add(m[1])
	}

	stripped := quotedPhrase.ReplaceAllString(query, " ")
	words := strings.Fields(stripped)
	var run []string
	flush := func() {
		if len(run) > 0 {
			add(strings.Join(run, " "))
			run = run[:0]
		}
	}
	for i, word := range words {
		trimmed := strings.Trim(word, ".,;:!?()[]")
		if trimmed == "" {
			flush()
			continue
		}
		first := rune(trimmed[0])
		// The sentence-leading word is skipped unless it continues a
		// run; plain English capitalization is not evidence there.
		if first >= 'A' && first <= 'Z' && (i > 0 || len(run) > 0) {
			run = append(run, trimmed)
			continue
		}
		flush()
	}
	flush()

	return names
}
