package entity

import "time"

// maxNotableEvents bounds the notable list kept between two summaries.
const maxNotableEvents = 20

// NotableEvent is a one-line record listed in the next summary.
type NotableEvent struct {
	At        time.Time
	Kind      ChangeKind
	ProductID string
	Name      string
	Note      string
}

// CycleSummary accumulates activity between two summary flushes.
type CycleSummary struct {
	Since  time.Time
	Cycles int

	New            int
	Restocked      int
	WentOutOfStock int
	Updated        int
	Removed        int
	Unchanged      int
	Checked        int
	Skipped        int

	FetchFailures    int
	AlertsSent       int
	FailedDeliveries int
	Deferred         int

	Notable        []NotableEvent
	DroppedNotable int

	LastAlertAt time.Time
}

// NewCycleSummary returns an empty summary window starting at since.
func NewCycleSummary(since time.Time) *CycleSummary {
	return &CycleSummary{Since: since}
}

// AddNotable appends an event, counting the overflow once the list is full.
func (s *CycleSummary) AddNotable(ev NotableEvent) {
	if len(s.Notable) >= maxNotableEvents {
		s.DroppedNotable++
		return
	}
	s.Notable = append(s.Notable, ev)
}

// Count records a classified change.
func (s *CycleSummary) Count(kind ChangeKind, updated bool) {
	switch kind {
	case ChangeNew:
		s.New++
	case ChangeRestocked:
		s.Restocked++
	case ChangeWentOutOfStock:
		s.WentOutOfStock++
	case ChangeStillAvailable:
		s.Updated++
		return
	case ChangeRemoved:
		s.Removed++
	case ChangeUnchanged:
		s.Unchanged++
	}
	if updated {
		s.Updated++
	}
}

// Reset clears the window, keeping the last alert time for staleness checks.
func (s *CycleSummary) Reset(since time.Time) {
	last := s.LastAlertAt
	*s = CycleSummary{Since: since, LastAlertAt: last}
}
