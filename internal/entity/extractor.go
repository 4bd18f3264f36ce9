package entity

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ecom-support/chatbot/internal/metrics"
	"github.com/ecom-support/chatbot/pkg/circuitbreaker"
	"github.com/ecom-support/chatbot/pkg/logger"
)

// Extraction paths, also used as metric labels.
const (
	PathModel       = "model"
	PathNoModel     = "fallback_no_model"
	PathModelFailed = "fallback_model_failed"
	PathModelEmpty  = "fallback_model_empty"
	PathBreakerOpen = "fallback_breaker_open"
)

// Extractor runs the tagger when one is configured and falls back to the
// rules whenever it is missing, fails, or finds nothing.
type Extractor struct {
	tagger  atomic.Pointer[taggerRef]
	dir     string
	breaker *circuitbreaker.Breaker
}

type taggerRef struct {
	Tagger
}

// NewExtractor builds an extractor around tagger. A nil tagger means rules
// only.
func NewExtractor(tagger Tagger) *Extractor {
	e := &Extractor{
		breaker: circuitbreaker.New("entity-tagger", circuitbreaker.Config{
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
			Logger:           logger.GetLogger(),
			OnStateChange: func(name string, _, to circuitbreaker.State) {
				metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			},
		}),
	}
	e.SetTagger(tagger)
	return e
}

// SetTagger swaps the tagger used by later calls. nil switches to rules
// only.
func (e *Extractor) SetTagger(tagger Tagger) {
	if tagger == nil {
		e.tagger.Store(nil)
		return
	}
	e.tagger.Store(&taggerRef{Tagger: tagger})
}

// NewExtractorFromDir loads the model in dir, or falls back to rules only when
// it cannot be loaded.
func NewExtractorFromDir(dir string) *Extractor {
	e := NewExtractor(nil)
	e.dir = dir
	if dir == "" {
		return e
	}

	if err := e.load("disk"); err != nil {
		logger.Warn("Entity model unavailable, using rule fallback", zap.String("path", dir), zap.Error(err))
	}
	return e
}

// Reload reads the model directory again. On failure the current tagger
// stays in place.
func (e *Extractor) Reload() error {
	if e.dir == "" {
		return nil
	}
	return e.load("reload")
}

func (e *Extractor) load(origin string) error {
	tagger, err := LoadProseTagger(e.dir)
	if err != nil {
		return err
	}

	e.SetTagger(tagger)
	e.breaker.Reset()
	metrics.ArtifactLoads.WithLabelValues("entity_model", origin).Inc()
	logger.Info("Entity model loaded", zap.String("path", e.dir), zap.String("origin", origin))
	return nil
}

func (e *Extractor) Extract(ctx context.Context, text string) []Entity {
	entities, path := e.extract(ctx, text)
	metrics.EntityExtractions.WithLabelValues(path).Inc()
	return entities
}

func (e *Extractor) extract(ctx context.Context, text string) ([]Entity, string) {
	ref := e.tagger.Load()
	if ref == nil {
		return Fallback(text), PathNoModel
	}

	entities, err := e.runTagger(ctx, ref.Tagger, text)
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen), errors.Is(err, circuitbreaker.ErrTrialInFlight):
		return Fallback(text), PathBreakerOpen
	case err != nil:
		logger.Debug("Entity tagger failed, using rule fallback", zap.Error(err))
		return Fallback(text), PathModelFailed
	case len(entities) == 0:
		return Fallback(text), PathModelEmpty
	}
	return entities, PathModel
}

func (e *Extractor) runTagger(ctx context.Context, tagger Tagger, text string) (entities []Entity, err error) {
	defer func() {
		if r := recover(); r != nil {
			entities = nil
			err = fmt.Errorf("entity tagger panicked: %v", r)
		}
	}()

	err = e.breaker.Execute(ctx, func(context.Context) error {
		var tagErr error
		entities, tagErr = tagger.Tag(text)
		return tagErr
	})
	return entities, err
}
