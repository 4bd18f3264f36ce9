package intent

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ecom-support/chatbot/internal/metrics"
	"github.com/ecom-support/chatbot/internal/storage/artifact"
	"github.com/ecom-support/chatbot/pkg/logger"
	"github.com/ecom-support/chatbot/pkg/utils"
)

// Classifier serves predictions from a model artifact loaded once per
// process. The first Classify call loads the artifact, or trains and saves
// one when it does not exist yet; concurrent first callers wait on that single
// bootstrap.
type Classifier struct {
	modelPath   string
	datasetPath string
	opts        TrainOptions

	model atomic.Pointer[Model]
	group singleflight.Group
}

func NewClassifier(modelPath, datasetPath string, opts TrainOptions) *Classifier {
	return &Classifier{
		modelPath:   modelPath,
		datasetPath: datasetPath,
		opts:        opts,
	}
}

// NewStaticClassifier serves a model that is already in memory.
func NewStaticClassifier(m *Model) *Classifier {
	c := &Classifier{}
	c.model.Store(m)
	return c
}

func (c *Classifier) Classify(ctx context.Context, text string) (Result, error) {
	m, err := c.ensureModel(ctx)
	if err != nil {
		return Result{}, err
	}

	res := m.Predict(text)
	metrics.IntentConfidence.Observe(res.Confidence)
	return res, nil
}

// Warm runs the bootstrap ahead of the first turn.
func (c *Classifier) Warm(ctx context.Context) error {
	_, err := c.ensureModel(ctx)
	return err
}

// Reload reads the artifact from disk again and swaps it in. Turns already
// classifying keep the previous model.
func (c *Classifier) Reload() error {
	if c.modelPath == "" {
		return nil
	}
	m, err := LoadModel(c.modelPath)
	if err != nil {
		return fmt.Errorf("failed to reload intent model: %w", err)
	}
	c.model.Store(m)
	metrics.ArtifactLoads.WithLabelValues("intent_model", "reload").Inc()
	logger.Info("Intent model reloaded", zap.String("version", m.Version))
	return nil
}

func (c *Classifier) Model() *Model {
	return c.model.Load()
}

func (c *Classifier) ensureModel(ctx context.Context) (*Model, error) {
	if m := c.model.Load(); m != nil {
		return m, nil
	}

	ch := c.group.DoChan("bootstrap", func() (interface{}, error) {
		if m := c.model.Load(); m != nil {
			return m, nil
		}
		m, err := c.loadOrTrain()
		if err != nil {
			return nil, err
		}
		c.model.Store(m)
		return m, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Model), nil
	}
}

func (c *Classifier) loadOrTrain() (*Model, error) {
	if c.modelPath == "" {
		return nil, fmt.Errorf("no intent model configured: %w", artifact.ErrArtifactMissing)
	}

	m, err := LoadModel(c.modelPath)
	if err == nil {
		metrics.ArtifactLoads.WithLabelValues("intent_model", "disk").Inc()
		logger.Info("Intent model loaded", zap.String("path", c.modelPath), zap.String("version", m.Version))
		return m, nil
	}
	if !errors.Is(err, artifact.ErrArtifactMissing) {
		return nil, err
	}

	logger.Warn("Intent model not found, training a new one",
		zap.String("path", c.modelPath),
		zap.String("dataset", c.datasetPath),
	)
	return TrainFromDataset(c.datasetPath, c.modelPath, c.opts)
}

// TrainFromDataset trains on the CSV at datasetPath and atomically writes
// the artifact to modelPath.
func TrainFromDataset(datasetPath, modelPath string, opts TrainOptions) (*Model, error) {
	samples, err := LoadDataset(datasetPath)
	if err != nil {
		return nil, err
	}

	m, err := Train(samples, opts)
	if err != nil {
		return nil, err
	}
	if version, err := utils.HashFile(datasetPath); err == nil {
		m.Version = version
	}

	if err := m.Save(modelPath); err != nil {
		return nil, err
	}

	metrics.ArtifactLoads.WithLabelValues("intent_model", "trained").Inc()
	logger.Info("Intent model trained",
		zap.String("path", modelPath),
		zap.Int("samples", len(samples)),
		zap.Int("labels", len(m.Labels)),
		zap.Int("features", m.Vectorizer.Dim()),
	)
	return m, nil
}
