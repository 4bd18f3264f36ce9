package intent

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/ecom-support/chatbot/internal/nlp/tfidf"
	"github.com/ecom-support/chatbot/internal/storage/artifact"
	"github.com/ecom-support/chatbot/internal/storage/tabular"
	"github.com/ecom-support/chatbot/pkg/logger"
)

var ErrEmptyDataset = errors.New("intent dataset has no usable rows")

type Sample struct {
	Query  string
	Intent Intent
}

type TrainOptions struct {
	MinNgram    int
	MaxNgram    int
	MinDF       int
	MaxDF       float64
	MaxFeatures int
	// MaxIterations caps L-BFGS major iterations per label.
	MaxIterations int
	// Tolerance is the absolute loss change treated as converged.
	Tolerance float64
	// C is the inverse regularization strength.
	C float64
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		MinNgram:      3,
		MaxNgram:      5,
		MinDF:         1,
		MaxDF:         0.9,
		MaxFeatures:   10000,
		MaxIterations: 200,
		Tolerance:     1e-8,
		C:             10,
	}
}

// Model is the (vectorizer_state, classifier_state) scoring artifact: one
// logistic regression per label over char n-gram tf-idf features.
type Model struct {
	Version    string            `json:"version"`
	TrainedAt  time.Time         `json:"trained_at"`
	Labels     []Intent          `json:"labels"`
	Vectorizer *tfidf.Vectorizer `json:"vectorizer"`
	Weights    [][]float64       `json:"weights"`
	Bias       []float64         `json:"bias"`
}

// LoadDataset reads a query,intent table. Rows with an empty query or a label
// outside the known set are skipped.
func LoadDataset(path string) ([]Sample, error) {
	rows, err := tabular.ReadCSV(path, "query", "intent")
	if err != nil {
		return nil, fmt.Errorf("failed to load intent dataset: %w", err)
	}

	samples := make([]Sample, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		label, err := Parse(row["intent"])
		if err != nil || row["query"] == "" {
			skipped++
			continue
		}
		samples = append(samples, Sample{Query: row["query"], Intent: label})
	}

	if skipped > 0 {
		logger.Warn("Skipped intent dataset rows", zap.String("path", path), zap.Int("skipped", skipped))
	}
	if len(samples) == 0 {
		return nil, ErrEmptyDataset
	}
	return samples, nil
}

// Train fits the vectorizer and a balanced one-vs-rest logistic regression.
func Train(samples []Sample, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyDataset
	}
	if opts.MaxIterations <= 0 || opts.Tolerance <= 0 || opts.C <= 0 {
		return nil, fmt.Errorf("invalid training options: %+v", opts)
	}

	docs := make([]string, len(samples))
	classCounts := make(map[Intent]int)
	for i, s := range samples {
		docs[i] = s.Query
		classCounts[s.Intent]++
	}

	vectorizer, err := tfidf.Fit(docs, tfidf.Options{
		Analyzer:    tfidf.AnalyzerCharWB,
		MinN:        opts.MinNgram,
		MaxN:        opts.MaxNgram,
		Sublinear:   true,
		MinDF:       opts.MinDF,
		MaxDF:       opts.MaxDF,
		MaxFeatures: opts.MaxFeatures,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fit intent vectorizer: %w", err)
	}

	features := make([]tfidf.Vector, len(docs))
	for i, doc := range docs {
		features[i] = vectorizer.Transform(doc)
	}

	var labels []Intent
	for _, label := range Labels() {
		if classCounts[label] > 0 {
			labels = append(labels, label)
		}
	}

	n := float64(len(samples))
	sampleWeights := make([]float64, len(samples))
	for i, s := range samples {
		sampleWeights[i] = n / (float64(len(labels)) * float64(classCounts[s.Intent]))
	}

	model := &Model{
		TrainedAt:  time.Now().UTC(),
		Labels:     labels,
		Vectorizer: vectorizer,
		Weights:    make([][]float64, len(labels)),
		Bias:       make([]float64, len(labels)),
	}

	lambda := 1 / (opts.C * n)
	for c, label := range labels {
		targets := make([]float64, len(samples))
		for i, s := range samples {
			if s.Intent == label {
				targets[i] = 1
			}
		}
		w, b, err := fitBinary(features, targets, sampleWeights, vectorizer.Dim(), lambda, opts)
		if err != nil {
			return nil, fmt.Errorf("label %s: %w", label, err)
		}
		model.Weights[c], model.Bias[c] = w, b
	}

	return model, nil
}

// fitBinary minimizes the L2-regularized, sample-weighted log loss of one
// label with L-BFGS. The last parameter is the bias.
func fitBinary(x []tfidf.Vector, y, sw []float64, dim int, lambda float64, opts TrainOptions) ([]float64, float64, error) {
	n := float64(len(x))
	margins := make([]float64, len(x))

	margin := func(theta []float64) {
		w, b := theta[:dim], theta[dim]
		for i, xi := range x {
			margins[i] = xi.DotDense(w) + b
		}
	}

	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			margin(theta)
			w := theta[:dim]
			loss := 0.5 * lambda * floats.Dot(w, w)
			for i, z := range margins {
				loss += sw[i] * (softplus(z) - y[i]*z) / n
			}
			return loss
		},
		Grad: func(grad, theta []float64) {
			margin(theta)
			w := theta[:dim]
			for j := range w {
				grad[j] = lambda * w[j]
			}
			grad[dim] = 0
			for i, xi := range x {
				residual := sw[i] * (sigmoid(margins[i]) - y[i]) / n
				for _, idx := range xi.Indices() {
					grad[idx] += residual * xi[idx]
				}
				grad[dim] += residual
			}
		},
	}

	settings := &optimize.Settings{
		MajorIterations: opts.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   opts.Tolerance,
			Iterations: 20,
		},
	}

	res, err := optimize.Minimize(problem, make([]float64, dim+1), settings, &optimize.LBFGS{})
	if res == nil {
		return nil, 0, fmt.Errorf("failed to fit logistic regression: %w", err)
	}
	if err != nil {
		// The best location found so far is still usable.
		logger.Warn("Logistic regression stopped early",
			zap.String("status", res.Status.String()),
			zap.Error(err),
		)
	}

	theta := res.X
	w := make([]float64, dim)
	copy(w, theta[:dim])
	return w, theta[dim], nil
}

// Predict scores text against every label. Per-label sigmoid outputs are
// normalized to sum to one; labels absent from training score zero.
func (m *Model) Predict(text string) Result {
	x := m.Vectorizer.Transform(text)

	raw := make([]float64, len(m.Labels))
	var total float64
	for c := range m.Labels {
		raw[c] = sigmoid(x.DotDense(m.Weights[c]) + m.Bias[c])
		total += raw[c]
	}

	scores := make(map[Intent]float64, len(Labels()))
	for _, label := range Labels() {
		scores[label] = 0
	}
	for c, label := range m.Labels {
		if total > 0 {
			scores[label] = raw[c] / total
		}
	}

	res := Result{Intent: Uncertain, Scores: scores}
	for _, label := range Labels() {
		if s := scores[label]; s > res.Confidence {
			res.Intent = label
			res.Confidence = s
		}
	}
	res.Confidence = clamp01(res.Confidence)
	return res
}

func (m *Model) Save(path string) error {
	if err := artifact.WriteJSON(path, m); err != nil {
		return fmt.Errorf("failed to save intent model: %w", err)
	}
	return nil
}

func LoadModel(path string) (*Model, error) {
	var m Model
	if err := artifact.ReadJSON(path, &m); err != nil {
		return nil, err
	}
	if m.Vectorizer == nil || len(m.Labels) == 0 || len(m.Weights) != len(m.Labels) || len(m.Bias) != len(m.Labels) {
		return nil, fmt.Errorf("intent model %s is inconsistent", path)
	}
	return &m, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus is log(1+e^z) without overflow.
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
