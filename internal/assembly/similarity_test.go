package assembly

import (
	"testing"

	"github.com/stemsi/exstem-assembly/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t,
		[]string{"what", "the", "output", "for", "loop", "runs"},
		Tokenize("What is the output? A for-loop runs 3x."),
	)
	assert.Empty(t, Tokenize("a an is of"))
}

func TestTokenOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, TokenOverlap("Define a loop invariant", "define LOOP invariant!"), 1e-9)
	// {define, loop, invariant} vs {define, loop, variant}: 2 / 4
	assert.InDelta(t, 0.5, TokenOverlap("define loop invariant", "define loop variant"), 1e-9)
	assert.Zero(t, TokenOverlap("", ""))
	assert.Zero(t, TokenOverlap("recursion depth", "array index"))
}

func TestCosine(t *testing.T) {
	sim, ok := Cosine([]float64{1, 0}, []float64{1, 0})
	assert.True(t, ok)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, ok = Cosine([]float64{1, 0}, []float64{0, 1})
	assert.True(t, ok)
	assert.InDelta(t, 0.0, sim, 1e-9)

	_, ok = Cosine([]float64{1, 0}, []float64{1, 0, 0})
	assert.False(t, ok)
	_, ok = Cosine([]float64{0, 0}, []float64{1, 0})
	assert.False(t, ok)
	_, ok = Cosine(nil, nil)
	assert.False(t, ok)
}

func TestSimilarity_PrefersVectors(t *testing.T) {
	a := model.Question{Text: "same words here", SemanticVector: []float64{1, 0}}
	b := model.Question{Text: "same words here", SemanticVector: []float64{0, 1}}
	assert.InDelta(t, 0.0, Similarity(&a, &b), 1e-9)

	b.SemanticVector = nil
	assert.InDelta(t, 1.0, Similarity(&a, &b), 1e-9)
}

func TestEliminate_FirstSeenWins(t *testing.T) {
	first := model.Question{Text: "explain how a while loop terminates"}
	second := model.Question{Text: "explain how a while loop terminates early"}
	other := model.Question{Text: "define recursion base case"}

	kept, rejected := Eliminate([]model.Question{first, second, other}, nil, 0.75)
	assert.Equal(t, []model.Question{first, other}, kept)
	if assert.Len(t, rejected, 1) {
		assert.Equal(t, ReasonRedundant, rejected[0].Reason)
		assert.Equal(t, second.Text, rejected[0].Question.Text)
		assert.Greater(t, *rejected[0].Similarity, 0.75)
	}

	// Reversed order keeps the other one.
	kept, _ = Eliminate([]model.Question{second, first}, nil, 0.75)
	assert.Equal(t, []model.Question{second}, kept)
}

func TestEliminate_ChecksGlobalAcceptedSet(t *testing.T) {
	accepted := []model.Question{{Text: "explain how a while loop terminates"}}
	kept, rejected := Eliminate([]model.Question{{Text: "Explain how a WHILE loop terminates."}}, accepted, 0.75)
	assert.Empty(t, kept)
	assert.Len(t, rejected, 1)
}

func TestEliminate_ThresholdIsStrict(t *testing.T) {
	// Overlap is exactly 0.5: not above tau, so both survive.
	kept, _ := Eliminate([]model.Question{
		{Text: "define loop invariant"},
		{Text: "define loop variant"},
	}, nil, 0.5)
	assert.Len(t, kept, 2)
}
