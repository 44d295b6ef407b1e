package errs

import (
	"errors"
	"fmt"
)

var (
	ErrBatchBusy     = errors.New("[Pipeline] batch already has an active analysis")
	ErrBatchNotFound = errors.New("[Pipeline] batch not found")
	ErrBatchExists   = errors.New("[Pipeline] batch id already exists")
)

// ValidationError rejects one feedback entry at ingestion.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[Validation] item %d: %s", e.Index, e.Reason)
}

// ClassificationError is item scoped and never fatal to a batch.
type ClassificationError struct {
	ItemID string
	Err    error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("[Classification] item %s: %v", e.ItemID, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

type RetrievalError struct {
	Query string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("[Retrieval] query %q: %v", e.Query, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// AggregationInvariantError signals a bug: counts no longer add up.
type AggregationInvariantError struct {
	Aspect       string
	MentionCount int
	Sum          int
}

func (e *AggregationInvariantError) Error() string {
	return fmt.Sprintf("[Aggregation] invariant violated for %s: mention_count=%d breakdown_sum=%d",
		e.Aspect, e.MentionCount, e.Sum)
}

type FormatError struct {
	Aspect string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Aspect == "" {
		return fmt.Sprintf("[Format] %s", e.Reason)
	}
	return fmt.Sprintf("[Format] aspect %q: %s", e.Aspect, e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

// StageError names the pipeline stage a fatal error came from.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("[Pipeline] stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
