package assembly

import (
	"math"
	"strings"
	"unicode"

	"github.com/stemsi/exstem-assembly/internal/model"
)

// Tokenize lowercases text, splits on anything that is not a letter or digit
// and keeps tokens longer than two characters.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 2 {
			out = append(out, f)
		}
	}
	return out
}

type tokenSet map[string]struct{}

func newTokenSet(text string) tokenSet {
	toks := Tokenize(text)
	set := make(tokenSet, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}

// jaccard is |a ∩ b| / |a ∪ b|; two empty sets are unrelated, not identical.
func jaccard(a, b tokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// TokenOverlap is the Jaccard ratio of the two texts' token sets.
func TokenOverlap(a, b string) float64 {
	return jaccard(newTokenSet(a), newTokenSet(b))
}

// Cosine returns the cosine similarity of two equal-length vectors and
// false when the vectors are unusable.
func Cosine(a, b []float64) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

// Similarity compares two questions: cosine of their semantic vectors when
// both have one, token overlap of their texts otherwise.
func Similarity(a, b *model.Question) float64 {
	if sim, ok := Cosine(a.SemanticVector, b.SemanticVector); ok {
		return sim
	}
	return TokenOverlap(a.Text, b.Text)
}
