package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
)

// Neo4jConfig holds connection settings for the graph database.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
}

// Neo4j reads the knowledge graph from a Neo4j database. Entities are
// (:Entity {id, type, name}) nodes, relations are [:RELATES_TO
// {relation, weight}] edges, and chunk membership is [:MENTIONED_IN]
// edges to (:Chunk {id}) nodes.
type Neo4j struct {
	driver neo4j.DriverWithContext
}

// NewNeo4j connects to Neo4j and verifies reachability.
func NewNeo4j(ctx context.Context, cfg Neo4jConfig) (*Neo4j, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	return &Neo4j{driver: driver}, nil
}

func (s *Neo4j) Neighbors(ctx context.Context, entityID string, maxFanout int) ([]domain.GraphEdge, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, `
		MATCH (a:Entity {id: $id})-[r:RELATES_TO]->(b:Entity)
		RETURN b.id AS target, r.relation AS relation, r.weight AS weight
		ORDER BY r.weight DESC
		LIMIT $limit`,
		map[string]any{"id": entityID, "limit": maxFanout},
		neo4j.EagerResultTransformer)
	if err != nil {
		return nil, err
	}

	edges := make([]domain.GraphEdge, 0, len(result.Records))
	for _, record := range result.Records {
		edge := domain.GraphEdge{SourceID: entityID, Weight: 1.0}
		if target, ok := record.Get("target"); ok {
			edge.TargetID, _ = target.(string)
		}
		if relation, ok := record.Get("relation"); ok {
			edge.Relation, _ = relation.(string)
		}
		if weight, ok := record.Get("weight"); ok {
			if w, isFloat := weight.(float64); isFloat {
				edge.Weight = w
			}
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

func (s *Neo4j) EntitiesForChunk(ctx context.Context, chunkID string) ([]string, error) {
	return s.queryIDs(ctx, `
		MATCH (e:Entity)-[:MENTIONED_IN]->(c:Chunk {id: $id})
		RETURN e.id AS id`,
		map[string]any{"id": chunkID})
}

func (s *Neo4j) ChunksForEntity(ctx context.Context, entityID string) ([]string, error) {
	return s.queryIDs(ctx, `
		MATCH (e:Entity {id: $id})-[:MENTIONED_IN]->(c:Chunk)
		RETURN c.id AS id`,
		map[string]any{"id": entityID})
}

func (s *Neo4j) LookupEntities(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return s.queryIDs(ctx, `
		MATCH (e:Entity)
		WHERE toLower(e.name) IN $names
		RETURN e.id AS id`,
		map[string]any{"names": lowercased(names)})
}

func (s *Neo4j) queryIDs(ctx context.Context, query string, params map[string]any) ([]string, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(result.Records))
	for _, record := range result.Records {
		if value, ok := record.Get("id"); ok {
			if id, isString := value.(string); isString {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// Close releases the driver's connection pool.
func (s *Neo4j) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func lowercased(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToLower(n)
	}
	return out
}
