package entity

import "time"

// NotifiedState records which alert the user last received for a product.
type NotifiedState int

const (
	NotifiedNone NotifiedState = iota
	NotifiedNew
	NotifiedRestock
	NotifiedOutOfStock
)

var notifiedStateNames = map[NotifiedState]string{
	NotifiedNone:       "NONE",
	NotifiedNew:        "NOTIFIED_NEW",
	NotifiedRestock:    "NOTIFIED_RESTOCK",
	NotifiedOutOfStock: "NOTIFIED_OUT_OF_STOCK",
}

func (s NotifiedState) String() string {
	if name, ok := notifiedStateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseNotifiedState converts a stored state name back into a NotifiedState.
// Unknown names map to NotifiedNone.
func ParseNotifiedState(name string) NotifiedState {
	for state, n := range notifiedStateNames {
		if n == name {
			return state
		}
	}
	return NotifiedNone
}

// SnapshotEntry is the last known state of one product plus notification bookkeeping.
type SnapshotEntry struct {
	Product   Product
	FirstSeen time.Time
	LastSeen  time.Time

	// LastSeenCycle is the number of the last successful cycle that returned the product.
	LastSeenCycle int64

	Notified NotifiedState
}
