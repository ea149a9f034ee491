package graph

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
)

// Memory is an in-process graph store for tests and single-node
// deployments without a graph database.
type Memory struct {
	mu          sync.RWMutex
	nodes       map[string]domain.GraphNode
	edges       map[string][]domain.GraphEdge
	byName      map[string]string
	chunkToEnts map[string][]string
	entToChunks map[string][]string
}

// NewMemory creates an empty in-memory graph.
func NewMemory() *Memory {
	return &Memory{
		nodes:       make(map[string]domain.GraphNode),
		edges:       make(map[string][]domain.GraphEdge),
		byName:      make(map[string]string),
		chunkToEnts: make(map[string][]string),
		entToChunks: make(map[string][]string),
	}
}

// AddNode registers an entity.
func (m *Memory) AddNode(node domain.GraphNode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[node.ID] = node
	m.byName[strings.ToLower(node.Name)] = node.ID
}

// AddEdge registers a directed relation between two entities.
func (m *Memory) AddEdge(edge domain.GraphEdge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges[edge.SourceID] = append(m.edges[edge.SourceID], edge)
}

// Link associates a chunk with an entity mentioned in it.
func (m *Memory) Link(chunkID, entityID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunkToEnts[chunkID] = append(m.chunkToEnts[chunkID], entityID)
	m.entToChunks[entityID] = append(m.entToChunks[entityID], chunkID)
}

func (m *Memory) Neighbors(ctx context.Context, entityID string, maxFanout int) ([]domain.GraphEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	edges := append([]domain.GraphEdge(nil), m.edges[entityID]...)
	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].Weight > edges[j].Weight
	})
	if maxFanout > 0 && len(edges) > maxFanout {
		edges = edges[:maxFanout]
	}
	return edges, nil
}

func (m *Memory) EntitiesForChunk(ctx context.Context, chunkID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.chunkToEnts[chunkID]...), nil
}

func (m *Memory) ChunksForEntity(ctx context.Context, entityID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.entToChunks[entityID]...), nil
}

func (m *Memory) LookupEntities(ctx context.Context, names []string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(names))
	for _, name := range names {
		if id, ok := m.byName[strings.ToLower(name)]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
