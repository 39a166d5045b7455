package jobqueue

import "time"

// State is the internal lifecycle state of a job. Internal states are
// finer grained than the public statuses the HTTP layer reports; see
// PublicStatus for the projection.
type State string

const (
	StatePending    State = "pending"
	StateStarted    State = "started"
	StateProcessing State = "processing"
	StateRetry      State = "retry"
	StateRevoked    State = "revoked"
	StateSuccess    State = "success"
	StateFailure    State = "failure"
)

// Terminal reports whether a state admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateFailure, StateRevoked:
		return true
	default:
		return false
	}
}

// Public statuses reported by the HTTP layer.
const (
	StatusSubmitted  = "submitted"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
	StatusUnknown    = "unknown"
)

// PublicStatus projects an internal state onto the public status set.
//
// The mapping is a closed switch with an explicit unknown arm: a state
// this code has never heard of degrades to "unknown" instead of taking
// the status endpoint down.
func PublicStatus(s State) string {
	switch s {
	case StatePending:
		return StatusSubmitted
	case StateStarted, StateProcessing, StateRetry:
		return StatusProcessing
	case StateSuccess:
		return StatusDone
	case StateFailure, StateRevoked:
		return StatusError
	default:
		return StatusUnknown
	}
}

// Recognized algorithm names. Only infomap is implemented; the others are
// accepted at submission and terminate in a failure explaining that the
// algorithm is not supported.
const (
	AlgorithmInfomap = "infomap"
	AlgorithmLouvain = "louvain"
)

// AlgorithmSupported reports whether the service can actually run the
// named algorithm.
func AlgorithmSupported(name string) bool {
	return name == AlgorithmInfomap
}

// Job is one community detection request and its lifecycle record.
type Job struct {
	ID          string
	Algorithm   string
	Directed    bool
	RootNetwork string

	State   State
	Message string

	// Result holds the canonical edge-list string once the job has
	// succeeded. It is carried inline on the final transition; the job
	// directory is already gone by the time a caller can observe it.
	Result string

	CreatedAt time.Time
	EndedAt   *time.Time
}

// Instrumentation receives lifecycle events. Implementations must be safe
// for concurrent use. A nil Instrumentation disables reporting.
type Instrumentation interface {
	JobSubmitted()
	JobStarted()
	JobFinished(publicStatus string)
}
