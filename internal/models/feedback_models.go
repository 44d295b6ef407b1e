package models

import "time"

// FeedbackItem is created at ingestion and never mutated afterwards.
type FeedbackItem struct {
	ID        string    `json:"id" dynamodbav:"item_id"`
	Text      string    `json:"text" dynamodbav:"text"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp,unixtime"`
	BatchID   string    `json:"batch_id" dynamodbav:"batch_id"`
}

type Batch struct {
	ID    string         `json:"batch_id"`
	Items []FeedbackItem `json:"items"`
}

// UploadRequest is the raw upload as it arrives over HTTP or Kafka.
type UploadRequest struct {
	BatchID  string   `json:"batch_id,omitempty"`
	Feedback []string `json:"feedback"`
}
