package models

import "time"

type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunDegraded  RunStatus = "degraded"
	RunFailed    RunStatus = "failed"
)

type AspectContext struct {
	Aspect  string         `json:"aspect"`
	Query   string         `json:"query"`
	Similar []FeedbackItem `json:"similar"`
}

type ActionItem struct {
	Priority           Priority `json:"priority"`
	Aspect             string   `json:"aspect"`
	Action             string   `json:"action"`
	Impact             string   `json:"impact"`
	NegativePercentage float64  `json:"negative_percentage"`
	MentionCount       int      `json:"mention_count"`
}

type Report struct {
	Summary  string          `json:"summary,omitempty"`
	Insights []string        `json:"insights"`
	Actions  []ActionItem    `json:"actions"`
	Context  []AspectContext `json:"context,omitempty"`
}

// AspectExamples keeps a few raw mentions per aspect for the report layer.
type AspectExamples struct {
	Aspect   string   `json:"aspect"`
	Contexts []string `json:"contexts"`
}

// AnalysisRun is a single analysis of one batch. Runs are append-only.
type AnalysisRun struct {
	RunID             string           `json:"run_id"`
	BatchID           string           `json:"batch_id"`
	CreatedAt         time.Time        `json:"created_at"`
	Status            RunStatus        `json:"status"`
	Result            *AnalysisResult  `json:"result,omitempty"`
	Partial           bool             `json:"partial"`
	SkippedCount      int              `json:"skipped_count"`
	ItemCount         int              `json:"item_count"`
	RetrievalDegraded bool             `json:"retrieval_degraded"`
	FailedStage       string           `json:"failed_stage,omitempty"`
	Error             string           `json:"error,omitempty"`
	Report            *Report          `json:"report,omitempty"`
	Examples          []AspectExamples `json:"examples,omitempty"`
	Emotions          *EmotionSummary  `json:"emotions,omitempty"`
	Topics            *TopicResult     `json:"topics,omitempty"`
}

// AspectRecord is one persisted aspect row of a run, used by the
// time-window and history queries.
type AspectRecord struct {
	RunID     string    `json:"run_id"`
	BatchID   string    `json:"batch_id"`
	CreatedAt time.Time `json:"created_at"`
	AspectSummary
	// position of the aspect inside its run
	Order int `json:"-"`
}

// RunRecord marks one analysis run that produced a result, including runs
// that found no aspects.
type RunRecord struct {
	RunID       string    `json:"run_id"`
	BatchID     string    `json:"batch_id"`
	CreatedAt   time.Time `json:"created_at"`
	Status      RunStatus `json:"status"`
	ItemCount   int       `json:"item_count"`
	AspectCount int       `json:"aspect_count"`
}

// Statistics counts stored batches, the feedback items in their latest
// runs and every recorded analysis.
type Statistics struct {
	TotalBatches  int `json:"total_batches"`
	TotalFeedback int `json:"total_feedback"`
	TotalAnalyses int `json:"total_analyses"`
}

type UploadResponse struct {
	BatchID  string      `json:"batch_id"`
	Accepted int         `json:"accepted"`
	Rejected []Rejection `json:"rejected"`
	Run      AnalysisRun `json:"run"`
}

type Rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}
