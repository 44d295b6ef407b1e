package kafka_client

import "time"

const (
	KAFKA_TOPIC_FEEDBACK_UPLOAD = "feedback-upload"
	KAFKA_TOPIC_ASPECT_RESULTS  = "aspect-results"
)

const (
	MAX_RETRIES    = 5
	RETRY_DELAY    = 2 * time.Second
	PUBLISH_TRIES  = 3
	FLUSH_TIMEOUT  = 5000
	POLL_TIMEOUT   = 100 * time.Millisecond
	PRODUCER_TX_ID = "aspectflow-producer-1"
)
