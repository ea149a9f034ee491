package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
)

func TestTokenize(t *testing.T) {
	t.Run("lowercases and splits on punctuation", func(t *testing.T) {
		tokens := Tokenize("Hybrid-Retrieval, Ranking!")
		assert.Equal(t, []string{"hybrid", "retrieval", "rank"}, tokens)
	})

	t.Run("drops stopwords and single characters", func(t *testing.T) {
		tokens := Tokenize("the quick fox is in a box")
		assert.Equal(t, []string{"quick", "fox", "box"}, tokens)
	})

	t.Run("stems query and document forms to the same term", func(t *testing.T) {
		assert.Equal(t, Tokenize("searching"), Tokenize("searches"))
	})

	t.Run("keeps numbers", func(t *testing.T) {
		tokens := Tokenize("error 404 handling")
		assert.Equal(t, []string{"error", "404", "handl"}, tokens)
	})

	t.Run("empty input yields no tokens", func(t *testing.T) {
		assert.Empty(t, Tokenize("  ,.! "))
	})
}

func TestStem(t *testing.T) {
	cases := map[string]string{
		"running":  "runn",
		"databases": "databas",
		"queried":  "queri",
		"graph":    "graph",
		"ing":      "ing",
	}
	for input, want := range cases {
		assert.Equal(t, want, Stem(input), "stem(%q)", input)
	}
}

func chunk(id, docID, text string, metadata map[string]string) domain.Chunk {
	freqs, count := TermFrequencies(text)
	return domain.Chunk{
		ID:         id,
		DocumentID: docID,
		Text:       text,
		TermFreqs:  freqs,
		TermCount:  count,
		Metadata:   metadata,
	}
}

func TestKeyword_Search(t *testing.T) {
	newIndex := func(t *testing.T) *Keyword {
		t.Helper()
		idx := NewKeyword(DefaultK1, DefaultB)
		idx.Add(chunk("c1", "d1", "vector databases store dense embeddings", map[string]string{"source": "docs", "year": "2024"}))
		idx.Add(chunk("c2", "d1", "keyword search ranks documents with lexical statistics", map[string]string{"source": "docs", "year": "2023"}))
		idx.Add(chunk("c3", "d2", "vector search and keyword search combine into hybrid retrieval", map[string]string{"source": "blog", "year": "2025"}))
		return idx
	}

	t.Run("ranks the chunk matching more query terms first", func(t *testing.T) {
		idx := newIndex(t)
		matches := idx.Search(Tokenize("hybrid retrieval"), 10, nil)
		require.NotEmpty(t, matches)
		assert.Equal(t, "c3", matches[0].ChunkID)
	})

	t.Run("rarer terms outweigh common ones", func(t *testing.T) {
		idx := newIndex(t)
		// "embeddings" appears only in c1; "search" in c2 and c3.
		matches := idx.Search(Tokenize("embeddings"), 10, nil)
		require.Len(t, matches, 1)
		assert.Equal(t, "c1", matches[0].ChunkID)
	})

	t.Run("scores are positive and descending", func(t *testing.T) {
		idx := newIndex(t)
		matches := idx.Search(Tokenize("vector keyword search"), 10, nil)
		require.True(t, len(matches) >= 2)
		for i, m := range matches {
			assert.Greater(t, m.Score, 0.0)
			if i > 0 {
				assert.GreaterOrEqual(t, matches[i-1].Score, m.Score)
			}
		}
	})

	t.Run("truncates to topK", func(t *testing.T) {
		idx := newIndex(t)
		matches := idx.Search(Tokenize("search vector keyword"), 1, nil)
		assert.Len(t, matches, 1)
	})

	t.Run("unknown terms match nothing", func(t *testing.T) {
		idx := newIndex(t)
		assert.Empty(t, idx.Search(Tokenize("zebra"), 10, nil))
	})

	t.Run("eq filter restricts candidates", func(t *testing.T) {
		idx := newIndex(t)
		matches := idx.Search(Tokenize("search"), 10, []domain.Filter{
			{Key: "source", Op: domain.FilterOpEq, Value: "blog"},
		})
		require.Len(t, matches, 1)
		assert.Equal(t, "c3", matches[0].ChunkID)
	})

	t.Run("numeric range filters compare numerically", func(t *testing.T) {
		idx := newIndex(t)
		matches := idx.Search(Tokenize("search"), 10, []domain.Filter{
			{Key: "year", Op: domain.FilterOpGte, Value: "2024"},
		})
		require.Len(t, matches, 1)
		assert.Equal(t, "c3", matches[0].ChunkID)
	})

	t.Run("missing metadata key excludes the chunk", func(t *testing.T) {
		idx := newIndex(t)
		idx.Add(chunk("c4", "d3", "search without metadata", nil))
		matches := idx.Search(Tokenize("search"), 10, []domain.Filter{
			{Key: "source", Op: domain.FilterOpEq, Value: "docs"},
		})
		for _, m := range matches {
			assert.NotEqual(t, "c4", m.ChunkID)
		}
	})
}

func TestKeyword_Lifecycle(t *testing.T) {
	t.Run("re-adding a chunk replaces its entry", func(t *testing.T) {
		idx := NewKeyword(0, 0)
		idx.Add(chunk("c1", "d1", "alpha beta", nil))
		idx.Add(chunk("c1", "d1", "gamma delta", nil))

		assert.Equal(t, 1, idx.Size())
		assert.Empty(t, idx.Search(Tokenize("alpha"), 10, nil))
		assert.Len(t, idx.Search(Tokenize("gamma"), 10, nil), 1)
	})

	t.Run("removing a document drops all its chunks", func(t *testing.T) {
		idx := NewKeyword(0, 0)
		idx.Add(chunk("c1", "d1", "alpha beta", nil))
		idx.Add(chunk("c2", "d1", "beta gamma", nil))
		idx.Add(chunk("c3", "d2", "beta delta", nil))

		assert.Equal(t, 2, idx.RemoveDocument("d1"))
		assert.Equal(t, 1, idx.Size())

		matches := idx.Search(Tokenize("beta"), 10, nil)
		require.Len(t, matches, 1)
		assert.Equal(t, "c3", matches[0].ChunkID)
	})

	t.Run("derives term statistics when the chunk carries none", func(t *testing.T) {
		idx := NewKeyword(0, 0)
		idx.Add(domain.Chunk{ID: "c1", DocumentID: "d1", Text: "fallback tokenization path"})
		assert.Len(t, idx.Search(Tokenize("tokenization"), 10, nil), 1)
	})
}

func TestKeyword_BM25Scoring(t *testing.T) {
	// Hand-checked BM25 over a two-document corpus. With n=2 and the
	// term in one document, idf = ln(1 + (2-1+0.5)/(1+0.5)) = ln 2.
	idx := NewKeyword(1.2, 0.75)
	idx.Add(chunk("c1", "d1", "apple banana", nil))
	idx.Add(chunk("c2", "d2", "apple apple cherry durian", nil))

	t.Run("term frequency saturates, not dominates", func(t *testing.T) {
		matches := idx.Search([]string{"apple"}, 10, nil)
		require.Len(t, matches, 2)
		// c2 has tf=2 but is twice as long; both score within the
		// saturation envelope (tf*(k1+1))/(tf+k1*norm) * idf < idf*(k1+1).
		for _, m := range matches {
			assert.Less(t, m.Score, ln2*(1.2+1))
		}
	})

	t.Run("unique term in shorter document scores higher than shared term", func(t *testing.T) {
		banana := idx.Search([]string{"banana"}, 10, nil)
		require.Len(t, banana, 1)
		apple := idx.Search([]string{"apple"}, 10, nil)
		require.NotEmpty(t, apple)
		assert.Greater(t, banana[0].Score, apple[len(apple)-1].Score)
	})

	t.Run("ties break on chunk id for determinism", func(t *testing.T) {
		tie := NewKeyword(1.2, 0.75)
		tie.Add(chunk("b", "d1", "same text", nil))
		tie.Add(chunk("a", "d2", "same text", nil))
		matches := tie.Search([]string{"same"}, 10, nil)
		require.Len(t, matches, 2)
		assert.Equal(t, "a", matches[0].ChunkID)
		assert.Equal(t, "b", matches[1].ChunkID)
	})
}

// ln 2, the IDF of a term present in exactly one of two documents.
const ln2 = 0.6931471805599453
