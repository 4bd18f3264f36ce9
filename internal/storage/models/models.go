package models

import "time"

// InteractionRecord is one completed chat turn. Intent holds the log tag:
// an intent name, "faq", "low_confidence" or "error". Confidence is the
// classifier probability; FAQScore is the similarity of an FAQ hit.
type InteractionRecord struct {
	ID         int64     `json:"id,omitempty"`
	TurnID     string    `json:"turn_id"`
	Timestamp  time.Time `json:"timestamp"`
	UserID     string    `json:"user_id"`
	Query      string    `json:"query"`
	Response   string    `json:"response"`
	Intent     string    `json:"intent"`
	Confidence float64   `json:"confidence"`
	FAQScore   float64   `json:"faq_score"`
	LatencyMS  int64     `json:"latency_ms"`
}

type ErrorRecord struct {
	ID         int64     `json:"id,omitempty"`
	TurnID     string    `json:"turn_id"`
	Timestamp  time.Time `json:"timestamp"`
	Stage      string    `json:"stage"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	StackTrace string    `json:"stack_trace"`
}
