package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportbot_turns_total",
			Help: "Total number of chat turns by reply source",
		},
		[]string{"source"},
	)

	TurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supportbot_turn_duration_seconds",
			Help:    "End-to-end turn processing duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"source"},
	)

	StageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportbot_stage_failures_total",
			Help: "Stage results that were not successful",
		},
		[]string{"stage", "outcome"},
	)

	FAQLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportbot_faq_lookups_total",
			Help: "FAQ matcher lookups by result",
		},
		[]string{"result"},
	)

	IntentConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "supportbot_intent_confidence",
			Help:    "Classifier confidence per classified turn",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	IntentPredictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportbot_intent_predictions_total",
			Help: "Intents returned after the confidence gate",
		},
		[]string{"intent"},
	)

	EntityExtractions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportbot_entity_extractions_total",
			Help: "Entity extraction runs by path taken",
		},
		[]string{"path"},
	)

	ProfileLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportbot_profile_lookups_total",
			Help: "Profile lookups by result",
		},
		[]string{"result"},
	)

	ArtifactLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportbot_artifact_loads_total",
			Help: "Scoring artifact loads by artifact and origin",
		},
		[]string{"artifact", "origin"},
	)

	LogWriteErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportbot_log_write_errors_total",
			Help: "Failed interaction or error log writes by sink",
		},
		[]string{"sink"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "supportbot_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	ContextRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "supportbot_context_records",
			Help: "User context records currently held in memory",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(TurnsTotal)
		prometheus.MustRegister(TurnDuration)
		prometheus.MustRegister(StageFailures)
		prometheus.MustRegister(FAQLookups)
		prometheus.MustRegister(IntentConfidence)
		prometheus.MustRegister(IntentPredictions)
		prometheus.MustRegister(EntityExtractions)
		prometheus.MustRegister(ProfileLookups)
		prometheus.MustRegister(ArtifactLoads)
		prometheus.MustRegister(LogWriteErrors)
		prometheus.MustRegister(BreakerState)
		prometheus.MustRegister(ContextRecords)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
