package search

import (
	"sort"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
)

// DefaultRRFConstant damps the dominance of rank 1 in reciprocal rank
// fusion.
const DefaultRRFConstant = 60

// Fuser merges ranked hit lists from heterogeneous sources into one
// deduplicated ranking using weighted reciprocal rank fusion.
type Fuser struct {
	k       float64
	weights map[domain.SearchSource]float64
}

// NewFuser creates a fuser with the given RRF constant and per-source
// weights. Missing weights default to 1.0.
func NewFuser(k float64, weights map[domain.SearchSource]float64) *Fuser {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &Fuser{k: k, weights: weights}
}

func (f *Fuser) weight(source domain.SearchSource) float64 {
	if w, ok := f.weights[source]; ok && w > 0 {
		return w
	}
	return 1.0
}

// Fuse merges the given lists. Each input list must already be ordered
// by its own raw score descending. The output is ordered by fused
// score descending with chunk ids pairwise distinct; a chunk present
// in several lists accumulates each list's contribution, so it always
// outranks the score it would get from any single list. Ties break on
// the first-seen source's priority, then on chunk id.
func (f *Fuser) Fuse(lists ...[]domain.SearchHit) []domain.FusedResult {
	type accumulator struct {
		result    domain.FusedResult
		firstSeen domain.SearchSource
	}
	acc := make(map[string]*accumulator)

	for _, list := range lists {
		normalized := normalize(list)
		for rank, hit := range normalized {
			contribution := f.weight(hit.Source) / (float64(rank+1) + f.k)

			a, ok := acc[hit.ChunkID]
			if !ok {
				a = &accumulator{
					result:    domain.FusedResult{ChunkID: hit.ChunkID},
					firstSeen: hit.Source,
				}
				acc[hit.ChunkID] = a
			} else if hit.Source.Priority() < a.firstSeen.Priority() {
				a.firstSeen = hit.Source
			}
			a.result.FusedScore += contribution
			if !a.result.HasSource(hit.Source) {
				a.result.Sources = append(a.result.Sources, hit.Source)
			}
		}
	}

	fused := make([]domain.FusedResult, 0, len(acc))
	order := make(map[string]domain.SearchSource, len(acc))
	for id, a := range acc {
		fused = append(fused, a.result)
		order[id] = a.firstSeen
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].FusedScore != fused[j].FusedScore {
			return fused[i].FusedScore > fused[j].FusedScore
		}
		pi, pj := order[fused[i].ChunkID].Priority(), order[fused[j].ChunkID].Priority()
		if pi != pj {
			return pi < pj
		}
		return fused[i].ChunkID < fused[j].ChunkID
	})
	for i := range fused {
		fused[i].Rank = i + 1
	}
	return fused
}

// normalize min-max scales a list's raw scores to [0,1] over the
// list's own range. A single-hit list normalizes to 1.0, as does a
// list whose scores are all equal. Ordering is preserved.
func normalize(list []domain.SearchHit) []domain.SearchHit {
	if len(list) == 0 {
		return list
	}

	lo, hi := list[0].RawScore, list[0].RawScore
	for _, hit := range list[1:] {
		if hit.RawScore < lo {
			lo = hit.RawScore
		}
		if hit.RawScore > hi {
			hi = hit.RawScore
		}
	}

	out := make([]domain.SearchHit, len(list))
	copy(out, list)
	if hi == lo {
		for i := range out {
			out[i].RawScore = 1.0
		}
		return out
	}
	for i := range out {
		out[i].RawScore = (out[i].RawScore - lo) / (hi - lo)
	}
	return out
}
