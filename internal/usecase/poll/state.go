package poll

import "time"

// State is the phase the scheduler is in.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateProcessing
	StateSummaryDue
	StateNotifying
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateFetching:
		return "FETCHING"
	case StateProcessing:
		return "PROCESSING"
	case StateSummaryDue:
		return "SUMMARY_DUE"
	case StateNotifying:
		return "NOTIFYING"
	case StateSleeping:
		return "SLEEPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Status is a point-in-time view of the scheduler for the ops endpoints.
type Status struct {
	State               string     `json:"state"`
	Cycle               int64      `json:"cycle"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Degraded            bool       `json:"degraded"`
	Tracked             int        `json:"tracked_products"`
	StartedAt           time.Time  `json:"started_at"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	LastAlert           *time.Time `json:"last_alert,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	NextSummary         time.Time  `json:"next_summary"`
	NextWake            *time.Time `json:"next_wake,omitempty"`
	AlertsSent          int        `json:"alerts_sent"`
}
