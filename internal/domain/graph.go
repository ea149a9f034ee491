package domain

// GraphNode is an entity in the externally maintained knowledge graph.
// Nodes are addressed by stable string ids; the engine never holds
// direct references between them.
type GraphNode struct {
	ID   string
	Type string
	Name string
}

// GraphEdge is a weighted, typed relation between two entities.
type GraphEdge struct {
	SourceID string
	TargetID string
	Relation string
	Weight   float64
}
