package db

import (
	"encoding/binary"
	"math"
)

// ScorerBM25 is the RediSearch scorer used for lexical retrieval.
const ScorerBM25 = "BM25STD"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Field        string // vector field; "vector" when empty
	Vector       []float32
	K            int
	ReturnFields []string
}

// WeightedTerm is one disjunct of a text query. Weight 0 or 1 means unweighted.
type WeightedTerm struct {
	Text   string
	Weight float64
}

// TextQuery is the input for BM25 text search.
// Terms are OR-ed; each may carry a query-time weight.
type TextQuery struct {
	IndexName    string
	Field        string // text field; "content" when empty
	Terms        []WeightedTerm
	TopK         int
	Scorer       string // ScorerBM25 when empty
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// EncodeVector packs v as little-endian FLOAT32, the layout VECTOR fields expect.
func EncodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
