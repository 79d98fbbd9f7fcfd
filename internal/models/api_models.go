package models

import "github.com/spacesedan/emotiflow/internal/emotion"

type ClassifyRequest struct {
	Sentence string `json:"sentence" validate:"required"`
	// StopEarly ends a streamed classification as soon as a label is readable.
	StopEarly bool `json:"stop_early,omitempty"`
}

type ClassifyBatchRequest struct {
	Sentences []string `json:"sentences" validate:"required,min=1"`
}

type ClassifyBatchResponse struct {
	RequestID string                 `json:"request_id"`
	Results   []ClassificationResult `json:"results"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Breaker string `json:"breaker,omitempty"`
}

// StreamTokenEvent is sent for every piece of model output on /classify/stream.
type StreamTokenEvent struct {
	Token string `json:"token"`
}

// StreamDoneEvent closes a /classify/stream response.
type StreamDoneEvent struct {
	Sentence         string        `json:"sentence"`
	PredictedEmotion emotion.Label `json:"predicted_emotion"`
	DoneReason       string        `json:"done_reason"`
}
