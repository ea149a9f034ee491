package domain

// SearchType selects which retrieval paths a query runs.
type SearchType string

const (
	SearchTypeVector  SearchType = "vector"
	SearchTypeKeyword SearchType = "keyword"
	SearchTypeHybrid  SearchType = "hybrid"
)

// FilterOp is the comparison applied by a metadata filter.
type FilterOp string

const (
	FilterOpEq  FilterOp = "eq"
	FilterOpGte FilterOp = "gte"
	FilterOpLte FilterOp = "lte"
)

// Filter is a single metadata predicate applied at the index boundary.
type Filter struct {
	Key   string
	Op    FilterOp
	Value string
}

// SearchPlan is constructed once per query and immutable for the
// query's lifetime.
type SearchPlan struct {
	Query              string
	SearchType         SearchType
	TopK               int
	Filters            []Filter
	RerankEnabled      bool
	GraphExpandEnabled bool
	IncludeMetadata    bool
	MinScore           float64
}

// RunsVector reports whether the plan includes the dense retrieval path.
func (p SearchPlan) RunsVector() bool {
	return p.SearchType == SearchTypeVector || p.SearchType == SearchTypeHybrid
}

// RunsKeyword reports whether the plan includes the lexical retrieval path.
func (p SearchPlan) RunsKeyword() bool {
	return p.SearchType == SearchTypeKeyword || p.SearchType == SearchTypeHybrid
}

// Degraded-stage flags surfaced in the search response. A flag means the
// named stage was skipped or returned partial results; the query itself
// still completed.
const (
	DegradedVector  = "vector"
	DegradedKeyword = "keyword"
	DegradedGraph   = "graph"
	DegradedRerank  = "rerank"
)
