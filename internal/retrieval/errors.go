package retrieval

import (
	"fmt"
	"time"
)

// StageError reports a pipeline run aborted by a stage that failed after its
// retries were exhausted. Partial holds the metrics of every stage that
// completed before the failure, so callers can tell "no matches" apart from
// "pipeline broke".
type StageError struct {
	Stage   StageName
	Partial []StageMetrics
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("retrieval: stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// TimeoutError reports the overall query deadline elapsing before a critical
// stage or the final scoring step completed. It is classified separately from
// StageError so callers can apply different backoff and user messaging.
type TimeoutError struct {
	Elapsed time.Duration
	Partial []StageMetrics
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("retrieval: query deadline exceeded after %s: %v", e.Elapsed, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }
