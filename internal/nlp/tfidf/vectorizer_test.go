package tfidf

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharWBNgrams(t *testing.T) {
	assert.Equal(t, []string{" hi", "hi ", " hi "}, charWBNgrams("hi", 3, 5))
	assert.Equal(t, []string{" a "}, charWBNgrams("a", 3, 5))
	assert.Equal(t, []string{" ca", "cat", "at ", " cat", "cat ", " cat "}, charWBNgrams("cat", 3, 5))
}

func TestFit_WordAnalyzerDropsStopWords(t *testing.T) {
	v, err := Fit([]string{"How do I cancel my order?", "What is the refund policy?"}, Options{
		Analyzer:  AnalyzerWord,
		StopWords: true,
	})
	require.NoError(t, err)

	assert.Contains(t, v.Vocabulary, "cancel")
	assert.Contains(t, v.Vocabulary, "refund")
	assert.NotContains(t, v.Vocabulary, "the")
	assert.NotContains(t, v.Vocabulary, "how")
	assert.Equal(t, len(v.Vocabulary), v.Dim())
}

func TestFit_EmptyVocabulary(t *testing.T) {
	_, err := Fit([]string{"the a an", ""}, Options{Analyzer: AnalyzerWord, StopWords: true})
	assert.ErrorIs(t, err, ErrEmptyVocabulary)
}

func TestFit_MinDFAndMaxFeatures(t *testing.T) {
	docs := []string{"refund refund order", "refund order", "order shipping"}

	v, err := Fit(docs, Options{Analyzer: AnalyzerWord, MinDF: 2})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"order", "refund"}, keys(v.Vocabulary))

	v, err = Fit(docs, Options{Analyzer: AnalyzerWord, MaxFeatures: 1})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"order"}, keys(v.Vocabulary))
}

func TestTransform_IsUnitLength(t *testing.T) {
	v, err := Fit([]string{"track my order", "cancel my order", "refund please"}, Options{
		Analyzer:  AnalyzerCharWB,
		MinN:      3,
		MaxN:      5,
		Sublinear: true,
	})
	require.NoError(t, err)

	vec := v.Transform("track order")
	assert.InDelta(t, 1.0, math.Sqrt(Dot(vec, vec)), 1e-9)

	assert.Empty(t, v.Transform("zzzz"))
}

func TestDot_IdenticalDocumentsScoreOne(t *testing.T) {
	v, err := Fit([]string{"how do i return an item", "when will my package arrive"}, Options{
		Analyzer:  AnalyzerWord,
		StopWords: true,
	})
	require.NoError(t, err)

	a := v.Transform("How do I return an item?")
	b := v.Transform("how do i return an item")
	c := v.Transform("when will my package arrive")

	assert.InDelta(t, 1.0, Dot(a, b), 1e-9)
	assert.InDelta(t, 0.0, Dot(a, c), 1e-9)
}

func TestVectorizer_JSONRoundTripKeepsTransform(t *testing.T) {
	v, err := Fit([]string{"payment options", "refund status"}, Options{Analyzer: AnalyzerWord})
	require.NoError(t, err)

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var loaded Vectorizer
	require.NoError(t, json.Unmarshal(data, &loaded))

	assert.Equal(t, v.Transform("refund payment"), loaded.Transform("refund payment"))
}

func TestVector_DotDense(t *testing.T) {
	vec := Vector{0: 0.5, 2: 1, 7: 3}
	assert.InDelta(t, 0.5*2+1*4, vec.DotDense([]float64{2, 0, 4}), 1e-9)
}

func keys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestDot_BitIdenticalAcrossCalls(t *testing.T) {
	docs := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		docs = append(docs, fmt.Sprintf("question %d about order shipping refund item %d", i, i%7))
	}
	v, err := Fit(docs, Options{Analyzer: AnalyzerWord, MaxN: 2})
	require.NoError(t, err)

	query := v.Transform("refund for order shipping item question 3")
	doc := v.Transform(docs[3])
	want := Dot(query, doc)
	wantNorm := Dot(doc, doc)

	for i := 0; i < 500; i++ {
		require.Equal(t, want, Dot(query, v.Transform(docs[3])))
		require.Equal(t, wantNorm, Dot(doc, doc))
	}
}

func TestVector_Indices(t *testing.T) {
	assert.Equal(t, []int{0, 2, 7, 40}, Vector{40: 1, 7: 1, 0: 1, 2: 1}.Indices())
	assert.Empty(t, Vector{}.Indices())
}
