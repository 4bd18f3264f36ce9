// Package tfidf implements the bag-of-terms vectorizer shared by the FAQ
// index and the intent classifier. Vectors are sparse and l2-normalized, so
// cosine similarity is a plain dot product.
package tfidf

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ecom-support/chatbot/internal/nlp/textproc"
)

type Analyzer string

const (
	// AnalyzerWord splits on word tokens and optionally drops English stop words.
	AnalyzerWord Analyzer = "word"
	// AnalyzerCharWB builds character n-grams inside word boundaries, each word
	// padded with one space on either side.
	AnalyzerCharWB Analyzer = "char_wb"
)

var ErrEmptyVocabulary = errors.New("empty vocabulary")

type Options struct {
	Analyzer    Analyzer `json:"analyzer"`
	MinN        int      `json:"min_n"`
	MaxN        int      `json:"max_n"`
	StopWords   bool     `json:"stop_words"`
	Sublinear   bool     `json:"sublinear_tf"`
	MinDF       int      `json:"min_df"`
	MaxDF       float64  `json:"max_df"`
	MaxFeatures int      `json:"max_features"`
}

// Vector is a sparse term-weight vector keyed by vocabulary index. Sums over
// a vector run in ascending index order so equal vectors score equally.
type Vector map[int]float64

// Indices returns the vector's indices in ascending order.
func (vec Vector) Indices() []int {
	idx := make([]int, 0, len(vec))
	for i := range vec {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

type Vectorizer struct {
	Options    Options        `json:"options"`
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
}

// Fit learns the vocabulary and smoothed inverse document frequencies from
// docs.
func Fit(docs []string, opts Options) (*Vectorizer, error) {
	opts = withDefaults(opts)

	df := make(map[string]int)
	totals := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, term := range analyze(doc, opts) {
			totals[term]++
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	maxDocCount := int(math.Floor(opts.MaxDF * float64(len(docs))))
	if opts.MaxDF >= 1 {
		maxDocCount = len(docs)
	}

	terms := make([]string, 0, len(df))
	for term, count := range df {
		if count < opts.MinDF || count > maxDocCount {
			continue
		}
		terms = append(terms, term)
	}

	if opts.MaxFeatures > 0 && len(terms) > opts.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if totals[terms[i]] != totals[terms[j]] {
				return totals[terms[i]] > totals[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:opts.MaxFeatures]
	}

	if len(terms) == 0 {
		return nil, fmt.Errorf("fit over %d documents: %w", len(docs), ErrEmptyVocabulary)
	}

	sort.Strings(terms)

	v := &Vectorizer{
		Options:    opts,
		Vocabulary: make(map[string]int, len(terms)),
		IDF:        make([]float64, len(terms)),
	}
	n := float64(len(docs))
	for i, term := range terms {
		v.Vocabulary[term] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	return v, nil
}

// Dim is the size of the feature space.
func (v *Vectorizer) Dim() int {
	return len(v.IDF)
}

// Transform maps doc into the fitted feature space. Terms outside the
// vocabulary are ignored; a document with no known terms yields an empty
// vector.
func (v *Vectorizer) Transform(doc string) Vector {
	counts := make(Vector)
	for _, term := range analyze(doc, v.Options) {
		if idx, ok := v.Vocabulary[term]; ok {
			counts[idx]++
		}
	}

	var norm float64
	for _, idx := range counts.Indices() {
		tf := counts[idx]
		if v.Options.Sublinear {
			tf = 1 + math.Log(tf)
		}
		w := tf * v.IDF[idx]
		counts[idx] = w
		norm += w * w
	}

	if norm == 0 {
		return Vector{}
	}

	norm = math.Sqrt(norm)
	for idx := range counts {
		counts[idx] /= norm
	}
	return counts
}

// Dot returns the inner product of two sparse vectors.
func Dot(a, b Vector) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for _, idx := range a.Indices() {
		sum += a[idx] * b[idx]
	}
	return sum
}

// DotDense returns the inner product of a sparse vector and dense weights.
func (vec Vector) DotDense(weights []float64) float64 {
	var sum float64
	for _, idx := range vec.Indices() {
		if idx < len(weights) {
			sum += vec[idx] * weights[idx]
		}
	}
	return sum
}

func withDefaults(opts Options) Options {
	if opts.Analyzer == "" {
		opts.Analyzer = AnalyzerWord
	}
	if opts.MinN <= 0 {
		opts.MinN = 1
	}
	if opts.MaxN < opts.MinN {
		opts.MaxN = opts.MinN
	}
	if opts.MinDF <= 0 {
		opts.MinDF = 1
	}
	if opts.MaxDF <= 0 {
		opts.MaxDF = 1
	}
	return opts
}

func analyze(doc string, opts Options) []string {
	doc = textproc.Normalize(doc)

	switch opts.Analyzer {
	case AnalyzerCharWB:
		return charWBNgrams(doc, opts.MinN, opts.MaxN)
	default:
		tokens := textproc.Tokenize(doc)
		if opts.StopWords {
			kept := tokens[:0]
			for _, tok := range tokens {
				if !textproc.IsStopWord(tok) {
					kept = append(kept, tok)
				}
			}
			tokens = kept
		}
		return wordNgrams(tokens, opts.MinN, opts.MaxN)
	}
}

func wordNgrams(tokens []string, minN, maxN int) []string {
	if minN == 1 && maxN == 1 {
		return tokens
	}
	var out []string
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

func charWBNgrams(doc string, minN, maxN int) []string {
	var out []string
	for _, word := range strings.Fields(doc) {
		w := []rune(" " + word + " ")
		for n := minN; n <= maxN; n++ {
			offset := 0
			out = append(out, string(w[offset:min(offset+n, len(w))]))
			for offset+n < len(w) {
				offset++
				out = append(out, string(w[offset:min(offset+n, len(w))]))
			}
			if offset == 0 {
				// A word shorter than n contributes once.
				break
			}
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
