package harmonize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName folds a column name for comparison: accents are stripped,
// letters lower-cased, and everything that is not a letter or digit
// dropped. "Edad_Años" and "edad anos" both normalize to "edadanos".
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = foldCase(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Similarity scores two column names in [0,1] as one minus the Levenshtein
// distance of their normalized forms divided by the longer length. Names
// that normalize to the same string score 1.
func Similarity(a, b string) float64 {
	return normalizedSimilarity(NormalizeName(a), NormalizeName(b))
}

func normalizedSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}

// foldCase lower-cases s. Casers carry state, so one is built per call.
func foldCase(s string) string {
	return cases.Lower(language.Und).String(s)
}
