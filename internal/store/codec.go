package store

import (
	"encoding/binary"
	"encoding/json"
	"math"
)

// encodeEmbedding packs a float32 vector as contiguous little-endian bytes,
// the BLOB layout the spec mandates for the embedding column.
func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeEmbedding unpacks a BLOB into a float32 vector. It returns nil,false
// when the blob length doesn't match a whole number of dim-sized float32
// vectors with the requested dim — the spec's "mismatch -> treat as absent"
// rule, checked by the caller against the configured dimension.
func decodeEmbedding(b []byte, dim int) ([]float32, bool) {
	if len(b) == 0 {
		return nil, true
	}
	if dim <= 0 || len(b) != dim*4 {
		return nil, false
	}
	v := make([]float32, dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, true
}

func encodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func decodeTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil
	}
	return tags
}
