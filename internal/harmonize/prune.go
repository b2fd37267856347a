package harmonize

import (
	"math"
	"math/rand/v2"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// PruneNaN drops, per dataset, every column whose missing ratio exceeds
// params.NaNThreshold. When sampling is enabled the ratio is estimated on
// ceil(fraction x rows) rows drawn without replacement from rng; the same
// row sample is used for every column of a dataset. A nil rng is
// time-seeded.
//
// One dataset is returned per input, in order. Datasets that lose all
// their columns are retained.
func PruneNaN(datasets []*core.Dataset, params core.PruneParams, rng *rand.Rand) ([]*core.Dataset, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	out := make([]*core.Dataset, len(datasets))
	for i, ds := range datasets {
		rows := sampleRows(ds.NumRows(), params, rng)
		var drop []string
		for _, c := range ds.Columns() {
			if MissingRatio(c, rows) > params.NaNThreshold {
				drop = append(drop, c.Name)
			}
		}
		out[i] = ds.DropColumns(drop...)
	}
	return out, nil
}

// MissingRatio returns the fraction of missing values in c over the given
// row indices, or over every row when rows is nil. An empty column has
// ratio 0.
func MissingRatio(c *core.Column, rows []int) float64 {
	if rows == nil {
		if c.Len() == 0 {
			return 0
		}
		return float64(c.MissingCount()) / float64(c.Len())
	}
	if len(rows) == 0 {
		return 0
	}
	missing := 0
	for _, r := range rows {
		if c.Values[r].IsMissing() {
			missing++
		}
	}
	return float64(missing) / float64(len(rows))
}

// sampleRows returns nil when the full column should be read.
func sampleRows(n int, params core.PruneParams, rng *rand.Rand) []int {
	if !params.Sampling() || n == 0 {
		return nil
	}
	k := int(math.Ceil(params.SampleFraction * float64(n)))
	if k >= n {
		return nil
	}
	perm := rng.Perm(n)
	return perm[:k]
}
