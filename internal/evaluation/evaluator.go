// Package evaluation scores the trained artifacts against labeled data so a
// retrained model can be checked before it is deployed.
package evaluation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ecom-support/chatbot/internal/faq"
	"github.com/ecom-support/chatbot/internal/intent"
	"github.com/ecom-support/chatbot/pkg/logger"
)

// Predictor is satisfied by *intent.Model.
type Predictor interface {
	Predict(text string) intent.Result
}

// FAQMatcher is satisfied by *faq.Matcher.
type FAQMatcher interface {
	Match(text string) faq.Result
}

type Evaluator struct {
	threshold float64
}

// NewEvaluator scores predictions against the same confidence gate the
// pipeline applies.
func NewEvaluator(intentThreshold float64) *Evaluator {
	return &Evaluator{threshold: intentThreshold}
}

type LabelStats struct {
	Intent    intent.Intent
	Support   int
	Predicted int
	Correct   int
}

func (s LabelStats) Precision() float64 {
	if s.Predicted == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Predicted)
}

func (s LabelStats) Recall() float64 {
	if s.Support == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Support)
}

type Miss struct {
	Query      string
	Expected   intent.Intent
	Got        intent.Intent
	Confidence float64
}

type IntentReport struct {
	Total         int
	Correct       int
	Uncertain     int
	AvgConfidence float64
	Labels        []LabelStats
	Misses        []Miss
}

func (r *IntentReport) Accuracy() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Total)
}

func (r *IntentReport) UncertainRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Uncertain) / float64(r.Total)
}

// EvaluateIntents gates every prediction at the threshold and compares it to
// the label. A gated prediction counts as wrong.
func (e *Evaluator) EvaluateIntents(ctx context.Context, p Predictor, samples []intent.Sample) (*IntentReport, error) {
	logger.Info("Running intent evaluation", zap.Int("samples", len(samples)))

	stats := make(map[intent.Intent]*LabelStats)
	stat := func(i intent.Intent) *LabelStats {
		s, ok := stats[i]
		if !ok {
			s = &LabelStats{Intent: i}
			stats[i] = s
		}
		return s
	}

	report := &IntentReport{Total: len(samples)}
	var totalConfidence float64

	for _, sample := range samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res := p.Predict(sample.Query)
		got := res.Intent
		if res.Confidence < e.threshold {
			got = intent.Uncertain
			report.Uncertain++
		}
		totalConfidence += res.Confidence

		stat(sample.Intent).Support++
		if got != intent.Uncertain {
			stat(got).Predicted++
		}
		if got == sample.Intent {
			report.Correct++
			stat(got).Correct++
			continue
		}
		report.Misses = append(report.Misses, Miss{
			Query:      sample.Query,
			Expected:   sample.Intent,
			Got:        got,
			Confidence: res.Confidence,
		})
	}

	if report.Total > 0 {
		report.AvgConfidence = totalConfidence / float64(report.Total)
	}
	for _, s := range stats {
		report.Labels = append(report.Labels, *s)
	}
	sort.Slice(report.Labels, func(i, j int) bool { return report.Labels[i].Intent < report.Labels[j].Intent })

	logger.Info("Intent evaluation completed",
		zap.Int("total", report.Total),
		zap.Float64("accuracy", report.Accuracy()),
		zap.Int("uncertain", report.Uncertain),
	)
	return report, nil
}

type FAQReport struct {
	Total    int
	Hits     int
	SelfHits int
	AvgScore float64
	Misses   []string
}

// EvaluateFAQ asks every corpus question back to the matcher. A self hit is
// a hit whose matched question is the one asked.
func (e *Evaluator) EvaluateFAQ(ctx context.Context, m FAQMatcher, entries []faq.Entry) (*FAQReport, error) {
	report := &FAQReport{Total: len(entries)}
	var totalScore float64

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res := m.Match(entry.Question)
		totalScore += res.Score
		if !res.Hit {
			report.Misses = append(report.Misses, entry.Question)
			continue
		}
		report.Hits++
		if res.Question == entry.Question {
			report.SelfHits++
		}
	}

	if report.Total > 0 {
		report.AvgScore = totalScore / float64(report.Total)
	}

	logger.Info("FAQ evaluation completed",
		zap.Int("total", report.Total),
		zap.Int("hits", report.Hits),
		zap.Int("self_hits", report.SelfHits),
	)
	return report, nil
}

func (e *Evaluator) GenerateReport(ir *IntentReport, fr *FAQReport) string {
	var b strings.Builder

	b.WriteString("Evaluation Report\n=================\n")

	if ir != nil {
		fmt.Fprintf(&b, "\nIntent classifier (threshold %.2f)\n", e.threshold)
		fmt.Fprintf(&b, "- Samples: %d\n", ir.Total)
		fmt.Fprintf(&b, "- Accuracy: %.1f%%\n", ir.Accuracy()*100)
		fmt.Fprintf(&b, "- Below threshold: %d (%.1f%%)\n", ir.Uncertain, ir.UncertainRate()*100)
		fmt.Fprintf(&b, "- Mean confidence: %.3f\n", ir.AvgConfidence)
		b.WriteString("\n  intent            support  precision  recall\n")
		for _, s := range ir.Labels {
			fmt.Fprintf(&b, "  %-16s  %7d  %9.2f  %6.2f\n", s.Intent, s.Support, s.Precision(), s.Recall())
		}
		if len(ir.Misses) > 0 {
			b.WriteString("\n  Misses:\n")
			for _, m := range ir.Misses {
				fmt.Fprintf(&b, "  - %q expected %s, got %s (%.2f)\n", m.Query, m.Expected, m.Got, m.Confidence)
			}
		}
	}

	if fr != nil {
		b.WriteString("\nFAQ matcher\n")
		fmt.Fprintf(&b, "- Questions: %d\n", fr.Total)
		fmt.Fprintf(&b, "- Hits: %d\n", fr.Hits)
		fmt.Fprintf(&b, "- Self hits: %d\n", fr.SelfHits)
		fmt.Fprintf(&b, "- Mean score: %.3f\n", fr.AvgScore)
		for _, q := range fr.Misses {
			fmt.Fprintf(&b, "  - missed %q\n", q)
		}
	}

	return b.String()
}
