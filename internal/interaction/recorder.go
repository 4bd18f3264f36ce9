package interaction

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ecom-support/chatbot/internal/metrics"
	"github.com/ecom-support/chatbot/internal/storage/models"
	"github.com/ecom-support/chatbot/pkg/logger"
)

// Log tags recorded in place of an intent name.
const (
	TagFAQ           = "faq"
	TagLowConfidence = "low_confidence"
	TagError         = "error"
)

// Recorder appends one interaction per completed turn.
type Recorder interface {
	Record(ctx context.Context, rec models.InteractionRecord) error
}

type namedRecorder struct {
	name string
	rec  Recorder
}

// Multi fans each record out to every sink. A failing sink does not stop
// the others.
type Multi struct {
	sinks []namedRecorder
}

func NewMulti() *Multi {
	return &Multi{}
}

func (m *Multi) Add(name string, r Recorder) *Multi {
	m.sinks = append(m.sinks, namedRecorder{name: name, rec: r})
	return m
}

func (m *Multi) Record(ctx context.Context, rec models.InteractionRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.rec.Record(ctx, rec); err != nil {
			metrics.LogWriteErrors.WithLabelValues(s.name).Inc()
			logger.Error("Failed to record interaction",
				zap.String("sink", s.name),
				zap.String("turn_id", rec.TurnID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
