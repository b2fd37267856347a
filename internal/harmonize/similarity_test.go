package harmonize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Edad_Años", "edadanos"},
		{"  AGE ", "age"},
		{"código-postal", "codigopostal"},
		{"Q1.2", "q12"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("age", "Age"))
	assert.Equal(t, 1.0, Similarity("", "--"))
	assert.Equal(t, 0.75, Similarity("age", "ages"))
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
	assert.InDelta(t, Similarity("province", "provincia"), Similarity("provincia", "province"), 1e-12)
}
