package kafka_client

import "time"

const (
	KAFKA_TOPIC_EMOTION_REQUESTS = "emotion-requests" // sentences waiting to be classified
	KAFKA_TOPIC_EMOTION_RESULTS  = "emotion-results"  // one classification response per request
)

// HEADER_API_KEY optionally carries the model credential on a request message.
const HEADER_API_KEY = "x-api-key"

const (
	MAX_RETRIES   = 5
	RETRY_DELAY   = 2 * time.Second
	POLL_TIMEOUT  = 500 * time.Millisecond
	FLUSH_TIMEOUT = 5000 // ms

	SEEK_TIMEOUT_MS = 5000
)
