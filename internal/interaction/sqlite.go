package interaction

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ecom-support/chatbot/internal/storage/models"
	"github.com/ecom-support/chatbot/internal/storage/sqlite"
	"github.com/ecom-support/chatbot/pkg/logger"
	"github.com/ecom-support/chatbot/pkg/retry"
)

// InteractionWriter is the subset of the sqlite client the sink needs.
type InteractionWriter interface {
	InsertInteraction(ctx context.Context, record *models.InteractionRecord) error
}

// SQLiteSink stores interactions in the interactions table. Writes that hit
// a locked database are retried with backoff.
type SQLiteSink struct {
	db    InteractionWriter
	retry retry.Config
}

func NewSQLiteSink(db InteractionWriter) *SQLiteSink {
	cfg := retry.DefaultConfig()
	cfg.InitialDelay = 20 * time.Millisecond
	cfg.MaxDelay = 500 * time.Millisecond
	cfg.RetryableErrors = []error{sqlite.ErrBusy}
	cfg.Logger = logger.GetLogger().With(zap.String("sink", "sqlite"))

	return &SQLiteSink{db: db, retry: cfg}
}

func (s *SQLiteSink) Record(ctx context.Context, rec models.InteractionRecord) error {
	return retry.Do(ctx, s.retry, func(ctx context.Context) error {
		r := rec
		return s.db.InsertInteraction(ctx, &r)
	})
}
