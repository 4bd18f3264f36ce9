// Package ingestion builds the scoring artifacts the server loads: the FAQ
// index, the intent model and the entity model. It also pushes the profiles
// file into redis for deployments that use the redis profile source.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ecom-support/chatbot/internal/entity"
	"github.com/ecom-support/chatbot/internal/faq"
	"github.com/ecom-support/chatbot/internal/intent"
	"github.com/ecom-support/chatbot/internal/profile"
	"github.com/ecom-support/chatbot/pkg/config"
	"github.com/ecom-support/chatbot/pkg/logger"
)

// ProfileWriter stores one profile hash per user.
type ProfileWriter interface {
	SetProfile(ctx context.Context, userID string, fields map[string]string) error
}

type Processor struct {
	data      config.DataConfig
	artifacts config.ArtifactsConfig
	opts      intent.TrainOptions
}

func NewProcessor(cfg *config.Config) *Processor {
	return &Processor{
		data:      cfg.Data,
		artifacts: cfg.Artifacts,
		opts:      IntentOptions(cfg.Classifier),
	}
}

// IntentOptions maps the classifier config section onto training options.
// Zero values keep the defaults.
func IntentOptions(c config.ClassifierConfig) intent.TrainOptions {
	opts := intent.DefaultTrainOptions()
	if c.MinNgram > 0 {
		opts.MinNgram = c.MinNgram
	}
	if c.MaxNgram > 0 {
		opts.MaxNgram = c.MaxNgram
	}
	if c.MinDF > 0 {
		opts.MinDF = c.MinDF
	}
	if c.MaxDF > 0 {
		opts.MaxDF = c.MaxDF
	}
	if c.MaxFeatures > 0 {
		opts.MaxFeatures = c.MaxFeatures
	}
	if c.MaxIterations > 0 {
		opts.MaxIterations = c.MaxIterations
	}
	if c.Tolerance > 0 {
		opts.Tolerance = c.Tolerance
	}
	if c.C > 0 {
		opts.C = c.C
	}
	return opts
}

func (p *Processor) BuildFAQIndex(ctx context.Context) (*faq.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	ix, err := faq.BuildFromCSV(p.data.FAQPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build faq index: %w", err)
	}
	if err := ix.Save(p.artifacts.FAQIndexPath); err != nil {
		return nil, err
	}

	logger.Info("FAQ index built",
		zap.String("path", p.artifacts.FAQIndexPath),
		zap.Int("entries", len(ix.Corpus)),
		zap.String("version", ix.Version),
		zap.Duration("took", time.Since(start)),
	)
	return ix, nil
}

func (p *Processor) TrainIntentModel(ctx context.Context) (*intent.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m, err := intent.TrainFromDataset(p.data.IntentsPath, p.artifacts.IntentModelPath, p.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to train intent model: %w", err)
	}
	return m, nil
}

// TrainEntityModel trains the NER model from examplesPath, or from the
// built-in examples when examplesPath is empty.
func (p *Processor) TrainEntityModel(ctx context.Context, examplesPath string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	examples := entity.SeedExamples()
	if examplesPath != "" {
		loaded, err := entity.LoadExamples(examplesPath)
		if err != nil {
			return 0, err
		}
		examples = loaded
	}

	if _, err := entity.TrainProseModel(examples, p.artifacts.EntityModelDir); err != nil {
		return 0, fmt.Errorf("failed to train entity model: %w", err)
	}

	logger.Info("Entity model trained",
		zap.String("dir", p.artifacts.EntityModelDir),
		zap.Int("examples", len(examples)),
	)
	return len(examples), nil
}

// SyncProfiles writes every profile from the profiles file to w.
func (p *Processor) SyncProfiles(ctx context.Context, w ProfileWriter) (int, error) {
	profiles, err := profile.ReadFile(p.data.ProfilesPath)
	if err != nil {
		return 0, err
	}

	n := 0
	for userID, prof := range profiles {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		fields := map[string]string{}
		if prof.Name != "" {
			fields["name"] = prof.Name
		}
		if prof.PreferredProduct != "" {
			fields["preferred_product"] = prof.PreferredProduct
		}
		if prof.RecentOrder != "" {
			fields["recent_order"] = prof.RecentOrder
		}
		if len(fields) == 0 {
			continue
		}
		if err := w.SetProfile(ctx, userID, fields); err != nil {
			return n, fmt.Errorf("failed to sync profile %q: %w", userID, err)
		}
		n++
	}

	logger.Info("Profiles synced", zap.Int("count", n))
	return n, nil
}

// BuildAll rebuilds every artifact. The first failure stops the run.
func (p *Processor) BuildAll(ctx context.Context) error {
	if _, err := p.BuildFAQIndex(ctx); err != nil {
		return err
	}
	if _, err := p.TrainIntentModel(ctx); err != nil {
		return err
	}
	if _, err := p.TrainEntityModel(ctx, ""); err != nil {
		return err
	}
	return nil
}
