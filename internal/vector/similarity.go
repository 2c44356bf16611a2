package vector

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/hyperjump/ragstore/pkg/utils"
)

// Scored is a candidate position and its cosine similarity to the query.
type Scored struct {
	Pos   int
	Score float64
}

// Rank scores every vector against query and returns the best k by descending
// cosine similarity. Equal scores keep their input order, so callers that pass
// vectors in insertion order get insertion-order tie breaking. k <= 0 returns nil.
func Rank(query []float32, vectors [][]float32, k int) []Scored {
	if k <= 0 || len(vectors) == 0 {
		return nil
	}
	scores := make([]Scored, len(vectors))
	for i, v := range vectors {
		scores[i] = Scored{Pos: i, Score: utils.Cosine(query, v)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores[:min(k, len(scores))]
}

// Encode packs a vector as little-endian float32s.
func Encode(v []float32) []byte {
	const size = 4
	out := make([]byte, len(v)*size)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*size:], math.Float32bits(f))
	}
	return out
}

// Decode unpacks little-endian float32s. Trailing bytes that do not form a whole float are ignored.
func Decode(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size:]))
	}
	return out
}
