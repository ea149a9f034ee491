package index

import (
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
)

const (
	// DefaultK1 controls term-frequency saturation.
	DefaultK1 = 1.2
	// DefaultB controls document-length normalization strength.
	DefaultB = 0.75
)

// Posting records a single chunk's occurrence data for a term.
type Posting struct {
	ChunkID   string
	Frequency int
}

// docEntry holds per-chunk statistics used for relevance scoring and
// filter evaluation.
type docEntry struct {
	documentID string
	length     int
	terms      map[string]int
	metadata   map[string]string
}

// Match pairs a chunk id with its BM25 score.
type Match struct {
	ChunkID string
	Score   float64
}

// Keyword is a concurrent in-memory inverted index. Ingestion events
// drive Add and RemoveDocument; Search only reads.
type Keyword struct {
	mu       sync.RWMutex
	postings map[string][]Posting
	docs     map[string]docEntry
	byDoc    map[string][]string
	totalLen int

	k1 float64
	b  float64
}

// NewKeyword creates an empty index with the given BM25 parameters.
// Non-positive parameters fall back to the defaults.
func NewKeyword(k1, b float64) *Keyword {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b <= 0 {
		b = DefaultB
	}
	return &Keyword{
		postings: make(map[string][]Posting),
		docs:     make(map[string]docEntry),
		byDoc:    make(map[string][]string),
		k1:       k1,
		b:        b,
	}
}

// Add indexes a chunk using its precomputed term statistics. When the
// chunk carries no statistics they are derived from its text. Re-adding
// an existing chunk id replaces the previous entry.
func (k *Keyword) Add(chunk domain.Chunk) {
	freqs := chunk.TermFreqs
	length := chunk.TermCount
	if len(freqs) == 0 {
		freqs, length = TermFrequencies(chunk.Text)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	k.removeLocked(chunk.ID)

	k.docs[chunk.ID] = docEntry{
		documentID: chunk.DocumentID,
		length:     length,
		terms:      freqs,
		metadata:   chunk.Metadata,
	}
	k.byDoc[chunk.DocumentID] = append(k.byDoc[chunk.DocumentID], chunk.ID)
	k.totalLen += length

	for term, freq := range freqs {
		k.postings[term] = append(k.postings[term], Posting{ChunkID: chunk.ID, Frequency: freq})
	}
}

// RemoveDocument drops every chunk of the given document. Returns the
// number of chunks removed.
func (k *Keyword) RemoveDocument(documentID string) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	ids := k.byDoc[documentID]
	for _, id := range ids {
		k.removeLocked(id)
	}
	delete(k.byDoc, documentID)
	return len(ids)
}

func (k *Keyword) removeLocked(chunkID string) {
	entry, ok := k.docs[chunkID]
	if !ok {
		return
	}
	delete(k.docs, chunkID)
	k.totalLen -= entry.length

	for term := range entry.terms {
		list := k.postings[term]
		for i, p := range list {
			if p.ChunkID == chunkID {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(k.postings, term)
		} else {
			k.postings[term] = list
		}
	}

	ids := k.byDoc[entry.documentID]
	for i, id := range ids {
		if id == chunkID {
			k.byDoc[entry.documentID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// Size reports the number of indexed chunks.
func (k *Keyword) Size() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.docs)
}

// Search scores the tokenized query against the index with BM25 and
// returns up to topK matches ordered by score descending. Filters are
// evaluated against chunk metadata before scoring.
func (k *Keyword) Search(terms []string, topK int, filters []domain.Filter) []Match {
	if len(terms) == 0 || topK <= 0 {
		return nil
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	n := len(k.docs)
	if n == 0 {
		return nil
	}
	avgLen := float64(k.totalLen) / float64(n)

	scores := make(map[string]float64)
	for _, term := range terms {
		list := k.postings[term]
		if len(list) == 0 {
			continue
		}
		idf := math.Log(1 + (float64(n)-float64(len(list))+0.5)/(float64(len(list))+0.5))
		for _, p := range list {
			entry := k.docs[p.ChunkID]
			if !matchesFilters(entry.metadata, filters) {
				continue
			}
			tf := float64(p.Frequency)
			norm := 1 - k.b + k.b*(float64(entry.length)/avgLen)
			scores[p.ChunkID] += idf * (tf * (k.k1 + 1)) / (tf + k.k1*norm)
		}
	}

	matches := make([]Match, 0, len(scores))
	for id, score := range scores {
		matches = append(matches, Match{ChunkID: id, Score: score})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// matchesFilters evaluates metadata predicates. Range operators compare
// numerically when both sides parse as numbers, lexically otherwise.
func matchesFilters(metadata map[string]string, filters []domain.Filter) bool {
	for _, f := range filters {
		value, ok := metadata[f.Key]
		if !ok {
			return false
		}
		switch f.Op {
		case domain.FilterOpEq:
			if value != f.Value {
				return false
			}
		case domain.FilterOpGte:
			if compareValues(value, f.Value) < 0 {
				return false
			}
		case domain.FilterOpLte:
			if compareValues(value, f.Value) > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func compareValues(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
