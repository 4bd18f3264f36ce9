// Package faq holds the similarity index over the static FAQ corpus and the
// matcher that queries it ahead of intent classification.
package faq

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ecom-support/chatbot/internal/nlp/tfidf"
	"github.com/ecom-support/chatbot/internal/storage/artifact"
	"github.com/ecom-support/chatbot/internal/storage/tabular"
	"github.com/ecom-support/chatbot/pkg/logger"
	"github.com/ecom-support/chatbot/pkg/utils"
)

var ErrEmptyCorpus = errors.New("faq corpus is empty")

type Entry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Index is the combined (vectorizer_state, vectors, corpus) artifact. It is
// never mutated after Build or LoadIndex returns.
type Index struct {
	Version    string            `json:"version"`
	BuiltAt    time.Time         `json:"built_at"`
	Vectorizer *tfidf.Vectorizer `json:"vectorizer"`
	Vectors    []tfidf.Vector    `json:"vectors"`
	Corpus     []Entry           `json:"corpus"`
}

type Candidate struct {
	Entry    Entry
	Position int
	Score    float64
}

func vectorizerOptions() tfidf.Options {
	return tfidf.Options{
		Analyzer:  tfidf.AnalyzerWord,
		MinN:      1,
		MaxN:      1,
		StopWords: true,
	}
}

// Build fits the vectorizer on the corpus questions and precomputes one vector
// per entry. Rows with an empty question or answer are skipped.
func Build(entries []Entry) (*Index, error) {
	corpus := make([]Entry, 0, len(entries))
	questions := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Question == "" || e.Answer == "" {
			continue
		}
		corpus = append(corpus, e)
		questions = append(questions, e.Question)
	}
	if len(corpus) == 0 {
		return nil, ErrEmptyCorpus
	}

	vectorizer, err := tfidf.Fit(questions, vectorizerOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to fit faq vectorizer: %w", err)
	}

	vectors := make([]tfidf.Vector, len(questions))
	for i, q := range questions {
		vectors[i] = vectorizer.Transform(q)
	}

	return &Index{
		BuiltAt:    time.Now().UTC(),
		Vectorizer: vectorizer,
		Vectors:    vectors,
		Corpus:     corpus,
	}, nil
}

// BuildFromCSV reads a question,answer table and builds an index from it.
func BuildFromCSV(path string) (*Index, error) {
	rows, err := tabular.ReadCSV(path, "question", "answer")
	if err != nil {
		return nil, fmt.Errorf("failed to load faq corpus: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{Question: row["question"], Answer: row["answer"]})
	}

	ix, err := Build(entries)
	if err != nil {
		return nil, err
	}

	if version, err := utils.HashFile(path); err == nil {
		ix.Version = version
	}

	logger.Info("FAQ index built",
		zap.String("source", path),
		zap.Int("entries", len(ix.Corpus)),
		zap.Int("terms", ix.Vectorizer.Dim()),
	)
	return ix, nil
}

func (ix *Index) Save(path string) error {
	if err := artifact.WriteJSON(path, ix); err != nil {
		return fmt.Errorf("failed to save faq index: %w", err)
	}
	logger.Info("FAQ index saved", zap.String("path", path), zap.String("version", ix.Version))
	return nil
}

func LoadIndex(path string) (*Index, error) {
	var ix Index
	if err := artifact.ReadJSON(path, &ix); err != nil {
		return nil, err
	}
	if ix.Vectorizer == nil || len(ix.Vectors) != len(ix.Corpus) {
		return nil, fmt.Errorf("faq index %s is inconsistent: %d vectors for %d entries", path, len(ix.Vectors), len(ix.Corpus))
	}
	return &ix, nil
}

// LoadOrBuild loads the index at indexPath, building and saving it from
// csvPath when the artifact does not exist yet.
func LoadOrBuild(indexPath, csvPath string) (*Index, error) {
	ix, err := LoadIndex(indexPath)
	if err == nil {
		return ix, nil
	}
	if !errors.Is(err, artifact.ErrArtifactMissing) {
		return nil, err
	}

	logger.Warn("FAQ index not found, building from corpus", zap.String("path", indexPath))
	ix, err = BuildFromCSV(csvPath)
	if err != nil {
		return nil, err
	}
	if err := ix.Save(indexPath); err != nil {
		return nil, err
	}
	return ix, nil
}

// Best returns the highest scoring corpus entry for text. Ties go to the
// entry that occurs first in the corpus.
func (ix *Index) Best(text string) Candidate {
	query := ix.Vectorizer.Transform(text)

	best := Candidate{Position: -1, Score: -1}
	for i, vec := range ix.Vectors {
		score := tfidf.Dot(query, vec)
		if score > best.Score {
			best = Candidate{Entry: ix.Corpus[i], Position: i, Score: score}
		}
	}
	return best
}
