package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecom-support/chatbot/internal/entity"
	"github.com/ecom-support/chatbot/internal/faq"
	"github.com/ecom-support/chatbot/internal/intent"
	"github.com/ecom-support/chatbot/internal/interaction"
	"github.com/ecom-support/chatbot/internal/metrics"
	"github.com/ecom-support/chatbot/internal/personalize"
	"github.com/ecom-support/chatbot/internal/recovery"
	"github.com/ecom-support/chatbot/internal/storage/models"
	"github.com/ecom-support/chatbot/pkg/config"
	"github.com/ecom-support/chatbot/pkg/logger"
)

const (
	GreetingReply      = "Hi there! 😊 How can I help you today?"
	GoodbyeReply       = "Goodbye! 👋 Have a great day!"
	ClarificationReply = "I'm not sure I understood that. Could you rephrase or share a bit more detail?"
	ApologyReply       = "⚠️ Sorry, something went wrong on my end."
)

// Reply sources, used for metrics and the API.
const (
	SourceFAQ           = "faq"
	SourceCanned        = "canned"
	SourceClarification = "clarification"
	SourceIntent        = "intent"
	SourceError         = "error"
)

// Stage labels written to the error log.
const (
	StageFAQ         = "faq_match"
	StageClassify    = "intent_classify"
	StageExtract     = "entity_extract"
	StageContext     = "context_update"
	StagePersonalize = "personalize"
	StagePipeline    = "pipeline"
)

type FAQMatcher interface {
	Match(text string) faq.Result
}

type IntentClassifier interface {
	Classify(ctx context.Context, text string) (intent.Result, error)
}

type EntityExtractor interface {
	Extract(ctx context.Context, text string) []entity.Entity
}

type ContextUpdater interface {
	Update(userID string, in intent.Intent, entities []entity.Entity)
}

type Personalizer interface {
	Render(ctx context.Context, userID string, in intent.Intent, base string) string
}

type ErrorSink interface {
	Write(ctx context.Context, rec models.ErrorRecord) error
}

type Deps struct {
	FAQ          FAQMatcher
	Classifier   IntentClassifier
	Extractor    EntityExtractor
	Context      ContextUpdater
	Personalizer Personalizer
	Recorder     interaction.Recorder
	Errors       ErrorSink
}

type Options struct {
	IntentThreshold float64
	FAQPolicy       string
}

type Utterance struct {
	UserID string
	Text   string
}

// Reply is the answer to one turn. Confidence is always the classifier
// probability, zero when the classifier did not run. FAQScore is the cosine
// similarity of an FAQ hit and is set only when Source is "faq".
type Reply struct {
	TurnID     string          `json:"turn_id"`
	Text       string          `json:"response"`
	Intent     intent.Intent   `json:"intent"`
	LogTag     string          `json:"log_tag"`
	Confidence float64         `json:"confidence"`
	FAQScore   float64         `json:"faq_score,omitempty"`
	Source     string          `json:"source"`
	Entities   []entity.Entity `json:"entities,omitempty"`
}

// Orchestrator turns one utterance into one reply. Respond never fails: a
// broken stage produces the apology reply and an error record.
type Orchestrator struct {
	deps Deps
	opts Options
	now  func() time.Time
}

func New(deps Deps, opts Options) *Orchestrator {
	if opts.FAQPolicy == "" {
		opts.FAQPolicy = config.FAQPolicyFAQFirst
	}
	return &Orchestrator{deps: deps, opts: opts, now: time.Now}
}

type turn struct {
	id    string
	start time.Time
	utt   Utterance
}

func (o *Orchestrator) Respond(ctx context.Context, u Utterance) (reply Reply) {
	t := turn{id: uuid.New().String(), start: o.now(), utt: u}

	logger.Debug("Processing turn",
		zap.String("turn_id", t.id),
		zap.String("user_id", u.UserID),
	)

	defer func() {
		if v := recover(); v != nil {
			res := recovery.Panicked[struct{}](StagePipeline, v)
			reply = o.fail(ctx, t, res.ErrorRecord(t.id, o.now()))
		}
	}()

	reply = o.decide(ctx, t)
	o.finish(ctx, t, reply)
	return reply
}

func (o *Orchestrator) decide(ctx context.Context, t turn) Reply {
	text := t.utt.Text

	if o.opts.FAQPolicy == config.FAQPolicyFAQFirst {
		hit, ok, rec := o.matchFAQ(t, 0)
		if rec != nil {
			return o.failed(ctx, t, *rec)
		}
		if ok {
			return hit
		}
	}

	cls := recovery.Guard(StageClassify, func() (intent.Result, error) {
		return o.deps.Classifier.Classify(ctx, text)
	})
	if !cls.OK() {
		return o.failed(ctx, t, cls.ErrorRecord(t.id, o.now()))
	}
	res := cls.Value

	if res.Confidence < o.opts.IntentThreshold {
		if o.opts.FAQPolicy == config.FAQPolicyIntentFirst {
			hit, ok, rec := o.matchFAQ(t, res.Confidence)
			if rec != nil {
				return o.failed(ctx, t, *rec)
			}
			if ok {
				return hit
			}
		}
		metrics.IntentPredictions.WithLabelValues(intent.Uncertain.String()).Inc()
		return Reply{
			TurnID:     t.id,
			Text:       ClarificationReply,
			Intent:     intent.Uncertain,
			LogTag:     interaction.TagLowConfidence,
			Confidence: res.Confidence,
			Source:     SourceClarification,
		}
	}

	metrics.IntentPredictions.WithLabelValues(res.Intent.String()).Inc()

	switch res.Intent {
	case intent.Greeting:
		return o.canned(t, res, GreetingReply)
	case intent.Goodbye:
		return o.canned(t, res, GoodbyeReply)
	}

	ents := recovery.Guard(StageExtract, func() ([]entity.Entity, error) {
		return o.deps.Extractor.Extract(ctx, text), nil
	})
	if !ents.OK() {
		logger.Warn("Entity extraction failed, using rule fallback",
			zap.String("turn_id", t.id),
			zap.Error(ents.Err),
		)
		ents = recovery.Recovered(StageExtract, entity.Fallback(text), ents.Err)
	}

	upd := recovery.Guard(StageContext, func() (struct{}, error) {
		o.deps.Context.Update(t.utt.UserID, res.Intent, ents.Value)
		return struct{}{}, nil
	})
	if !upd.OK() {
		return o.failed(ctx, t, upd.ErrorRecord(t.id, o.now()))
	}

	out := recovery.Guard(StagePersonalize, func() (string, error) {
		return o.deps.Personalizer.Render(ctx, t.utt.UserID, res.Intent, personalize.BaseReply(res.Intent)), nil
	})
	if !out.OK() {
		return o.failed(ctx, t, out.ErrorRecord(t.id, o.now()))
	}

	return Reply{
		TurnID:     t.id,
		Text:       out.Value,
		Intent:     res.Intent,
		LogTag:     res.Intent.String(),
		Confidence: res.Confidence,
		Source:     SourceIntent,
		Entities:   ents.Value,
	}
}

// matchFAQ returns the FAQ reply on a hit, or the error record when the
// matcher itself failed. confidence is the classifier probability when the
// classifier already ran.
func (o *Orchestrator) matchFAQ(t turn, confidence float64) (Reply, bool, *models.ErrorRecord) {
	m := recovery.Guard(StageFAQ, func() (faq.Result, error) {
		return o.deps.FAQ.Match(t.utt.Text), nil
	})
	if !m.OK() {
		rec := m.ErrorRecord(t.id, o.now())
		return Reply{}, false, &rec
	}

	if !m.Value.Hit {
		metrics.FAQLookups.WithLabelValues("miss").Inc()
		return Reply{}, false, nil
	}

	metrics.FAQLookups.WithLabelValues("hit").Inc()
	return Reply{
		TurnID:     t.id,
		Text:       m.Value.Answer,
		Intent:     intent.Uncertain,
		LogTag:     interaction.TagFAQ,
		Confidence: confidence,
		FAQScore:   m.Value.Score,
		Source:     SourceFAQ,
	}, true, nil
}

func (o *Orchestrator) canned(t turn, res intent.Result, text string) Reply {
	return Reply{
		TurnID:     t.id,
		Text:       text,
		Intent:     res.Intent,
		LogTag:     res.Intent.String(),
		Confidence: res.Confidence,
		Source:     SourceCanned,
	}
}

// failed writes the error record and builds the apology reply. The caller
// still logs the turn through finish.
func (o *Orchestrator) failed(ctx context.Context, t turn, rec models.ErrorRecord) Reply {
	logger.Error("Pipeline stage failed",
		zap.String("turn_id", t.id),
		zap.String("stage", rec.Stage),
		zap.String("kind", rec.Kind),
		zap.String("error", rec.Message),
	)

	if o.deps.Errors != nil {
		// The error sink reports its own write failures.
		_ = o.deps.Errors.Write(ctx, rec)
	}

	return Reply{
		TurnID: t.id,
		Text:   ApologyReply,
		Intent: intent.Uncertain,
		LogTag: interaction.TagError,
		Source: SourceError,
	}
}

// fail is failed plus finish, for panics that escaped decide or finish.
func (o *Orchestrator) fail(ctx context.Context, t turn, rec models.ErrorRecord) Reply {
	reply := o.failed(ctx, t, rec)
	func() {
		defer func() {
			if v := recover(); v != nil {
				logger.Error("Interaction recorder panicked", zap.String("turn_id", t.id), zap.Any("panic", v))
			}
		}()
		o.finish(ctx, t, reply)
	}()
	return reply
}

func (o *Orchestrator) finish(ctx context.Context, t turn, reply Reply) {
	latency := o.now().Sub(t.start)

	if o.deps.Recorder != nil {
		rec := models.InteractionRecord{
			TurnID:     t.id,
			Timestamp:  o.now(),
			UserID:     t.utt.UserID,
			Query:      t.utt.Text,
			Response:   reply.Text,
			Intent:     reply.LogTag,
			Confidence: reply.Confidence,
			FAQScore:   reply.FAQScore,
			LatencyMS:  latency.Milliseconds(),
		}
		// Sinks log their own failures; a lost log row never changes the reply.
		_ = o.deps.Recorder.Record(ctx, rec)
	}

	metrics.TurnsTotal.WithLabelValues(reply.Source).Inc()
	metrics.TurnDuration.WithLabelValues(reply.Source).Observe(latency.Seconds())

	logger.Info("Turn processed",
		zap.String("turn_id", t.id),
		zap.String("user_id", t.utt.UserID),
		zap.String("source", reply.Source),
		zap.String("log_tag", reply.LogTag),
		zap.Float64("confidence", reply.Confidence),
		zap.Float64("faq_score", reply.FAQScore),
		zap.Duration("latency", latency),
	)
}
