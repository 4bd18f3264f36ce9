package faq

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecom-support/chatbot/internal/storage/artifact"
)

var testCorpus = []Entry{
	{Question: "How do I cancel my order?", Answer: "Go to My Orders and press Cancel."},
	{Question: "What is your return policy?", Answer: "Returns are accepted within 30 days."},
	{Question: "How long does shipping take?", Answer: "Standard shipping takes 3-5 business days."},
	{Question: "What is your return policy?", Answer: "duplicate answer"},
	{Question: "", Answer: "skipped"},
}

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Build(testCorpus)
	require.NoError(t, err)
	return ix
}

func TestBuild_SkipsIncompleteRows(t *testing.T) {
	ix := buildTestIndex(t)
	assert.Len(t, ix.Corpus, 4)
	assert.Len(t, ix.Vectors, 4)
}

func TestBuild_EmptyCorpus(t *testing.T) {
	_, err := Build([]Entry{{Question: "q"}})
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestMatcher_HitReturnsStoredAnswer(t *testing.T) {
	m := NewMatcher(buildTestIndex(t), 0.30)

	res := m.Match("How can I cancel my purchase order?")
	require.True(t, res.Hit)
	assert.Equal(t, "Go to My Orders and press Cancel.", res.Answer)
	assert.Greater(t, res.Score, 0.30)
}

func TestMatcher_TieGoesToFirstEntry(t *testing.T) {
	m := NewMatcher(buildTestIndex(t), 0.30)

	res := m.Match("what is your return policy")
	require.True(t, res.Hit)
	assert.Equal(t, "Returns are accepted within 30 days.", res.Answer)
}

func TestMatcher_DuplicateQuestionsAlwaysPickFirst(t *testing.T) {
	var entries []Entry
	for i := 0; i < 24; i++ {
		entries = append(entries, Entry{
			Question: fmt.Sprintf("how do I %s my %s number %d", []string{"track", "return", "cancel"}[i%3], []string{"order", "parcel", "refund", "gift card"}[i%4], i),
			Answer:   fmt.Sprintf("filler%d", i),
		})
	}
	dup := "how long does international express delivery take for my parcel"
	entries = append(entries,
		Entry{Question: dup, Answer: "FIRST"},
		Entry{Question: dup, Answer: "SECOND"},
		Entry{Question: dup, Answer: "THIRD"},
	)

	ix, err := Build(entries)
	require.NoError(t, err)
	m := NewMatcher(ix, 0.30)

	for i := 0; i < 2000; i++ {
		res := m.Match("How long does international express delivery take for my parcel?")
		require.True(t, res.Hit)
		require.Equal(t, "FIRST", res.Answer, "iteration %d", i)
	}
}

func TestMatcher_NonASCIIQuestions(t *testing.T) {
	ix, err := Build([]Entry{
		{Question: "Сколько стоит доставка?", Answer: "Доставка бесплатная."},
		{Question: "Как вернуть товар?", Answer: "Оформите возврат в личном кабинете."},
		{Question: "¿Cuánto tarda el envío?", Answer: "Entre 3 y 5 días."},
	})
	require.NoError(t, err)
	m := NewMatcher(ix, 0.30)

	res := m.Match("сколько стоит доставка")
	require.True(t, res.Hit)
	assert.Equal(t, "Доставка бесплатная.", res.Answer)

	res = m.Match("cuánto tarda el envío")
	require.True(t, res.Hit)
	assert.Equal(t, "Entre 3 y 5 días.", res.Answer)
}

func TestMatcher_NoMatch(t *testing.T) {
	m := NewMatcher(buildTestIndex(t), 0.30)

	res := m.Match("hi there")
	assert.False(t, res.Hit)
	assert.Empty(t, res.Answer)
}

func TestMatcher_ThresholdIsStrict(t *testing.T) {
	ix := buildTestIndex(t)
	query := "shipping time for my parcel"
	best := ix.Best(query)
	require.Greater(t, best.Score, 0.0)

	assert.False(t, NewMatcher(ix, best.Score).Match(query).Hit)
	assert.True(t, NewMatcher(ix, best.Score-0.01).Match(query).Hit)
}

func TestMatcher_NilIndex(t *testing.T) {
	m := NewMatcher(nil, 0.3)
	assert.False(t, m.Match("anything").Hit)
}

func TestMatcher_SwapDuringReads(t *testing.T) {
	m := NewMatcher(buildTestIndex(t), 0.30)
	replacement, err := Build([]Entry{{Question: "Do you ship abroad?", Answer: "Yes, to 40 countries."}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Match("cancel my order")
			}
		}()
	}
	m.Swap(replacement)
	wg.Wait()

	res := m.Match("do you ship abroad")
	require.True(t, res.Hit)
	assert.Equal(t, "Yes, to 40 countries.", res.Answer)
}

func TestLoadOrBuild(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "faqs.csv")
	indexPath := filepath.Join(dir, "models", "faq_index.json")
	require.NoError(t, os.WriteFile(csvPath, []byte("question,answer\nHow do I reset my password?,Use the Forgot password link.\n"), 0o644))

	_, err := LoadIndex(indexPath)
	require.ErrorIs(t, err, artifact.ErrArtifactMissing)

	built, err := LoadOrBuild(indexPath, csvPath)
	require.NoError(t, err)
	assert.NotEmpty(t, built.Version)
	assert.True(t, artifact.Exists(indexPath))

	loaded, err := LoadOrBuild(indexPath, filepath.Join(dir, "missing.csv"))
	require.NoError(t, err)
	assert.Equal(t, built.Version, loaded.Version)

	res := NewMatcher(loaded, 0.3).Match("reset password")
	require.True(t, res.Hit)
	assert.Equal(t, "Use the Forgot password link.", res.Answer)
}
