package job

// Status is the lifecycle state of a job.
type Status string

const (
	// StatusPending is the initial state, set at creation by the coordinator.
	StatusPending Status = "PENDING"
	// StatusProcessing means a worker has claimed the job.
	StatusProcessing Status = "PROCESSING"
	// StatusCompleted means a verdict has been persisted. Terminal.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed means an unrecoverable error has been persisted. Terminal.
	StatusFailed Status = "FAILED"
	// StatusCached is a response-only pseudo-state returned when a prior
	// completed job for the same fingerprint is reused. It is never written
	// onto the reused job's own record.
	StatusCached Status = "CACHED"
)

// IsTerminal reports whether s admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from one status to another is legal.
// PROCESSING -> PROCESSING is allowed so that a duplicate delivery can
// re-enter processing idempotently; terminal states admit nothing.
func CanTransition(from, to Status) bool {
	switch to {
	case StatusProcessing:
		return from == StatusPending || from == StatusProcessing
	case StatusCompleted, StatusFailed:
		return from == StatusProcessing
	default:
		return false
	}
}

// TransitionSources returns the set of statuses from which a transition
// into to is legal. Store implementations use this as the compare-and-set
// guard on status updates.
func TransitionSources(to Status) []Status {
	switch to {
	case StatusProcessing:
		return []Status{StatusPending, StatusProcessing}
	case StatusCompleted, StatusFailed:
		return []Status{StatusProcessing}
	default:
		return nil
	}
}
