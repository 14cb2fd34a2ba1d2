package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerializeDeserializeVector(t *testing.T) {
	vec := []float32{0.5, -1.25, 3.75, 0}
	blob := SerializeVector(vec)
	assert.Len(t, blob, len(vec)*4)
	assert.Equal(t, vec, DeserializeVector(blob))
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0.0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSimilarityMapping(t *testing.T) {
	// similarity = 1 - distance/2 with distance = 1 - cosine
	cos := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	distance := 1.0 - cos
	similarity := 1.0 - distance/2.0
	assert.InDelta(t, 0.5, similarity, 1e-9, "orthogonal vectors land mid-scale")
}

func TestSanitizeFTSQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "install server", "install server"},
		{"quotes", `say "hello"`, `say \"hello\"`},
		{"wildcard", "conf*", `conf\*`},
		{"boolean operators", "cats AND dogs OR birds", `cats \AND dogs \OR birds`},
		{"parens", "(grouped)", `\(grouped\)`},
		{"lowercase and untouched", "cats and dogs", "cats and dogs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFTSQuery(tt.input))
		})
	}
}
