package faq

import (
	"sync/atomic"
)

type Result struct {
	Answer   string
	Question string
	Score    float64
	Hit      bool
}

// Matcher answers from the FAQ corpus when the best similarity is strictly
// above the threshold. The index can be swapped while requests are served.
type Matcher struct {
	index     atomic.Pointer[Index]
	threshold float64
}

func NewMatcher(ix *Index, threshold float64) *Matcher {
	m := &Matcher{threshold: threshold}
	m.index.Store(ix)
	return m
}

func (m *Matcher) Threshold() float64 {
	return m.threshold
}

func (m *Matcher) Match(text string) Result {
	ix := m.index.Load()
	if ix == nil || len(ix.Corpus) == 0 {
		return Result{}
	}

	best := ix.Best(text)
	if best.Position < 0 || best.Score <= m.threshold {
		return Result{Score: max(best.Score, 0)}
	}

	return Result{
		Answer:   best.Entry.Answer,
		Question: best.Entry.Question,
		Score:    best.Score,
		Hit:      true,
	}
}

// Swap publishes a rebuilt index. In-flight matches keep the index they
// loaded.
func (m *Matcher) Swap(ix *Index) {
	m.index.Store(ix)
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
