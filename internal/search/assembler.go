package search

import (
	"strings"
	"time"
	"unicode"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
	"github.com/Sand004/enterprise-rag-system/internal/index"
)

// Highlight marks a query-term occurrence inside a result's content.
// Offsets are byte positions into Content.
type Highlight struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Term  string `json:"term"`
}

// Result is one entry of the final response payload.
type Result struct {
	ChunkID    string            `json:"chunk_id"`
	Content    string            `json:"content"`
	Score      float64           `json:"score"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Highlights []Highlight       `json:"highlights"`
}

// Response is the engine's final output.
type Response struct {
	Query         string   `json:"query"`
	Results       []Result `json:"results"`
	TotalResults  int      `json:"total_results"`
	SearchTimeMs  int64    `json:"search_time_ms"`
	SearchType    string   `json:"search_type"`
	DegradedFlags []string `json:"degraded_flags"`
}

// RankedChunk is the engine's final ordering handed to the assembler.
type RankedChunk struct {
	ChunkID string
	Score   float64
}

const defaultSnippetLen = 300

// Assembler builds the response payload: snippets, highlight spans,
// metadata, and pipeline timing.
type Assembler struct {
	snippetLen int
}

// NewAssembler creates an assembler producing snippets of at most
// snippetLen bytes.
func NewAssembler(snippetLen int) *Assembler {
	if snippetLen <= 0 {
		snippetLen = defaultSnippetLen
	}
	return &Assembler{snippetLen: snippetLen}
}

// Assemble builds the final response. Chunks missing from the chunks
// map (deleted since retrieval) are dropped. totalCandidates is the
// fused candidate count before truncation to top_k.
func (a *Assembler) Assemble(plan domain.SearchPlan, ranked []RankedChunk, chunks map[string]domain.Chunk, flags []string, totalCandidates int, elapsed time.Duration) *Response {
	queryStems := stemSet(plan.Query)

	results := make([]Result, 0, len(ranked))
	for _, rc := range ranked {
		chunk, ok := chunks[rc.ChunkID]
		if !ok {
			continue
		}

		snippet := makeSnippet(chunk.Text, queryStems, a.snippetLen)
		result := Result{
			ChunkID:    chunk.ID,
			Content:    snippet,
			Score:      rc.Score,
			Highlights: findHighlights(snippet, queryStems),
		}
		if plan.IncludeMetadata {
			result.Metadata = chunk.Metadata
		}
		results = append(results, result)
	}

	if flags == nil {
		flags = []string{}
	}
	return &Response{
		Query:         plan.Query,
		Results:       results,
		TotalResults:  totalCandidates,
		SearchTimeMs:  elapsed.Milliseconds(),
		SearchType:    string(plan.SearchType),
		DegradedFlags: flags,
	}
}

func stemSet(query string) map[string]struct{} {
	stems := make(map[string]struct{})
	for _, tok := range index.Tokenize(query) {
		stems[tok] = struct{}{}
	}
	return stems
}

// makeSnippet returns a window of at most maxLen bytes around the
// first query-term match, cut at word boundaries. Without a match the
// head of the text is used.
func makeSnippet(text string, queryStems map[string]struct{}, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}

	start := 0
	if hl := findHighlights(text, queryStems); len(hl) > 0 {
		// Center the window on the first match.
		start = hl[0].Start - maxLen/3
		if start < 0 {
			start = 0
		}
	}
	end := start + maxLen
	if end > len(text) {
		end = len(text)
		start = end - maxLen
	}

	// Snap to word boundaries.
	if start > 0 {
		if idx := strings.IndexFunc(text[start:end], unicode.IsSpace); idx >= 0 {
			start += idx + 1
		}
	}
	if end < len(text) {
		if idx := strings.LastIndexFunc(text[start:end], unicode.IsSpace); idx > 0 {
			end = start + idx
		}
	}

	snippet := strings.TrimSpace(text[start:end])
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(text) {
		snippet += "…"
	}
	return snippet
}

// findHighlights scans text for words whose stem matches a query stem,
// recording byte offsets. Matching is verbatim-or-stemmed, so a query
// for "searching" highlights "searches" too.
func findHighlights(text string, queryStems map[string]struct{}) []Highlight {
	if len(queryStems) == 0 {
		return nil
	}

	var highlights []Highlight
	wordStart := -1
	flush := func(end int) {
		if wordStart < 0 {
			return
		}
		word := text[wordStart:end]
		stem := index.Stem(strings.ToLower(word))
		if _, ok := queryStems[stem]; ok {
			highlights = append(highlights, Highlight{Start: wordStart, End: end, Term: word})
		}
		wordStart = -1
	}

	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if wordStart < 0 {
				wordStart = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))

	return highlights
}
