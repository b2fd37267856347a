package core

// PruneParams configures NaN-ratio column pruning.
type PruneParams struct {
	// NaNThreshold drops a column whose missing ratio exceeds it.
	NaNThreshold float64 `json:"nan_threshold" yaml:"nan_threshold" validate:"gte=0,lte=1"`
	// SampleFraction enables sampling when non-zero.
	SampleFraction float64 `json:"sample_fraction,omitempty" yaml:"sample_fraction" validate:"omitempty,gt=0,lte=1"`
}

// Sampling reports whether the missing ratio is estimated from a sample.
func (p PruneParams) Sampling() bool { return p.SampleFraction > 0 && p.SampleFraction < 1 }

// MergeParams configures similarity-based vertical merge.
type MergeParams struct {
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold" validate:"gte=0,lte=1"`
}

// SelectParams configures category/key row selection.
type SelectParams struct {
	Categories []string `json:"categories" yaml:"categories" validate:"min=1,dive,required"`
	KeyColumn  string   `json:"key_column,omitempty" yaml:"key_column"`
	KeyValues  []string `json:"key_values,omitempty" yaml:"key_values"`
}
