package harmonize

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// VerticalMerge stacks datasets whose column sets are similar enough.
//
// Datasets are visited in input order. Each one is matched against every
// group built so far: column pairs scoring at least the threshold are
// paired greedily by descending score, and the group affinity is the
// number of paired columns over the wider of the two schemas. The dataset
// joins the group with the highest affinity at or above the threshold,
// preferring the earliest group on ties, or starts a new group.
//
// Joining unions the schemas: paired columns stack, unpaired columns are
// appended and padded with missing values. When dict is non-nil, group
// columns whose normalized name matches a dictionary variable_name take
// the dictionary spelling.
func VerticalMerge(datasets []*core.Dataset, dict *core.Dataset, params core.MergeParams) ([]*core.Dataset, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	threshold := params.SimilarityThreshold

	var groups []*group
	for _, ds := range datasets {
		best, bestAffinity := -1, -1.0
		var bestPairs []pair
		for gi, g := range groups {
			pairs := g.match(ds, threshold)
			affinity := g.affinity(ds, len(pairs))
			if affinity < threshold {
				continue
			}
			if len(pairs) == 0 && !(len(g.cols) == 0 && ds.NumCols() == 0) {
				continue
			}
			if affinity > bestAffinity {
				best, bestAffinity, bestPairs = gi, affinity, pairs
			}
		}
		if best < 0 {
			groups = append(groups, newGroup(ds))
			continue
		}
		groups[best].join(ds, bestPairs)
	}

	canonical := canonicalNames(dict)
	out := make([]*core.Dataset, 0, len(groups))
	for _, g := range groups {
		ds, err := g.dataset(canonical)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}

type groupColumn struct {
	name   string
	norm   string
	values []core.Value
}

type group struct {
	name string
	cols []*groupColumn
	rows int
}

// pair links column d of a dataset to column g of a group.
type pair struct {
	g, d  int
	score float64
}

func newGroup(ds *core.Dataset) *group {
	g := &group{name: ds.Name(), rows: ds.NumRows()}
	for _, c := range ds.Columns() {
		values := make([]core.Value, len(c.Values))
		copy(values, c.Values)
		g.cols = append(g.cols, &groupColumn{name: c.Name, norm: NormalizeName(c.Name), values: values})
	}
	return g
}

func (g *group) match(ds *core.Dataset, threshold float64) []pair {
	var candidates []pair
	for di, c := range ds.Columns() {
		dn := NormalizeName(c.Name)
		for gi, gc := range g.cols {
			if s := normalizedSimilarity(gc.norm, dn); s >= threshold {
				candidates = append(candidates, pair{g: gi, d: di, score: s})
			}
		}
	}
	slices.SortFunc(candidates, func(a, b pair) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.g, b.g); c != 0 {
			return c
		}
		return cmp.Compare(a.d, b.d)
	})

	usedG := make(map[int]bool)
	usedD := make(map[int]bool)
	var pairs []pair
	for _, p := range candidates {
		if usedG[p.g] || usedD[p.d] {
			continue
		}
		usedG[p.g], usedD[p.d] = true, true
		pairs = append(pairs, p)
	}
	return pairs
}

func (g *group) affinity(ds *core.Dataset, matched int) float64 {
	wider := max(len(g.cols), ds.NumCols())
	if wider == 0 {
		return 1
	}
	return float64(matched) / float64(wider)
}

func (g *group) join(ds *core.Dataset, pairs []pair) {
	n := ds.NumRows()
	byGroup := make(map[int]int, len(pairs))
	paired := make(map[int]bool, len(pairs))
	for _, p := range pairs {
		byGroup[p.g] = p.d
		paired[p.d] = true
	}

	cols := ds.Columns()
	for gi, gc := range g.cols {
		if di, ok := byGroup[gi]; ok {
			gc.values = append(gc.values, cols[di].Values...)
		} else {
			gc.values = append(gc.values, missing(n)...)
		}
	}
	for di, c := range cols {
		if paired[di] {
			continue
		}
		values := append(missing(g.rows), c.Values...)
		g.cols = append(g.cols, &groupColumn{name: g.uniqueName(c.Name), norm: NormalizeName(c.Name), values: values})
	}
	g.rows += n
}

func (g *group) uniqueName(name string) string {
	taken := func(s string) bool {
		return slices.ContainsFunc(g.cols, func(c *groupColumn) bool { return c.name == s })
	}
	if !taken(name) {
		return name
	}
	for i := 2; ; i++ {
		if s := fmt.Sprintf("%s_%d", name, i); !taken(s) {
			return s
		}
	}
}

func (g *group) dataset(canonical map[string]string) (*core.Dataset, error) {
	names := make(map[string]bool, len(g.cols))
	for _, c := range g.cols {
		names[c.name] = true
	}
	cols := make([]*core.Column, len(g.cols))
	for i, c := range g.cols {
		name := c.name
		if spelled, ok := canonical[c.norm]; ok && spelled != name && !names[spelled] {
			delete(names, name)
			names[spelled] = true
			name = spelled
		}
		cols[i] = core.NewColumn(name, c.values...)
	}
	return core.NewDataset(g.name, cols...)
}

func canonicalNames(dict *core.Dataset) map[string]string {
	if dict == nil {
		return nil
	}
	c := dict.Column(core.FieldVariableName)
	if c == nil {
		return nil
	}
	out := make(map[string]string, c.Len())
	for _, v := range c.Values {
		if v.IsMissing() {
			continue
		}
		s := v.String()
		n := NormalizeName(s)
		if _, seen := out[n]; !seen {
			out[n] = s
		}
	}
	return out
}

func missing(n int) []core.Value {
	return make([]core.Value, n)
}
