// Package search provides the retrieval facade and hybrid result fusion.
package search

import "sort"

// Candidate is one scored id from a single retrieval component. Seq is the
// entry's insertion sequence and breaks ties between equal fused scores.
type Candidate struct {
	ID    string
	Score float64
	Seq   int64
}

// FusedResult holds an entry ID and its fused vector/keyword scores.
type FusedResult struct {
	ID           string
	Score        float64
	VectorScore  float64
	KeywordScore float64

	seq int64
}

// NormalizeScores min-max normalizes component scores to [0,1]. When every
// score is equal they map to 1 if positive and 0 otherwise. Only the first
// occurrence of a repeated id counts.
func NormalizeScores(candidates []Candidate) map[string]float64 {
	normalized := make(map[string]float64, len(candidates))
	if len(candidates) == 0 {
		return normalized
	}
	minScore, maxScore := candidates[0].Score, candidates[0].Score
	for _, c := range candidates {
		minScore = min(minScore, c.Score)
		maxScore = max(maxScore, c.Score)
	}
	spread := maxScore - minScore
	for _, c := range candidates {
		if _, seen := normalized[c.ID]; seen {
			continue
		}
		switch {
		case spread > 0:
			normalized[c.ID] = (c.Score - minScore) / spread
		case maxScore > 0:
			normalized[c.ID] = 1
		default:
			normalized[c.ID] = 0
		}
	}
	return normalized
}

// Fuse merges vector and keyword candidates as alpha*vector + (1-alpha)*keyword
// over normalized scores. A candidate absent from one component scores 0 there.
// Results are sorted by descending score; ties go to the lower Seq, then to
// first-seen order.
func Fuse(vectorCands, keywordCands []Candidate, alpha float64) ([]FusedResult, error) {
	if err := ValidateAlpha(alpha); err != nil {
		return nil, err
	}
	vecScores := NormalizeScores(vectorCands)
	kwScores := NormalizeScores(keywordCands)

	order := make([]Candidate, 0, len(vecScores)+len(kwScores))
	seen := make(map[string]struct{}, cap(order))
	for _, list := range [][]Candidate{vectorCands, keywordCands} {
		for _, c := range list {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			order = append(order, c)
		}
	}

	results := make([]FusedResult, len(order))
	for i, c := range order {
		v, k := vecScores[c.ID], kwScores[c.ID]
		results[i] = FusedResult{
			ID:           c.ID,
			Score:        alpha*v + (1-alpha)*k,
			VectorScore:  v,
			KeywordScore: k,
			seq:          c.Seq,
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].seq < results[j].seq
	})
	return results, nil
}
