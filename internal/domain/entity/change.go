package entity

// ChangeKind classifies what happened to a product between two cycles.
type ChangeKind int

const (
	ChangeUnchanged ChangeKind = iota
	ChangeNew
	ChangeRestocked
	ChangeStillAvailable
	ChangeWentOutOfStock
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeUnchanged:
		return "UNCHANGED"
	case ChangeNew:
		return "NEW"
	case ChangeRestocked:
		return "RESTOCKED"
	case ChangeStillAvailable:
		return "STILL_AVAILABLE"
	case ChangeWentOutOfStock:
		return "WENT_OUT_OF_STOCK"
	case ChangeRemoved:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

// Alertable reports whether the kind can produce an immediate alert.
func (k ChangeKind) Alertable() bool {
	return k == ChangeNew || k == ChangeRestocked
}

// TargetState is the notification state an alert of this kind moves the product to.
func (k ChangeKind) TargetState() NotifiedState {
	switch k {
	case ChangeNew:
		return NotifiedNew
	case ChangeRestocked:
		return NotifiedRestock
	case ChangeWentOutOfStock:
		return NotifiedOutOfStock
	default:
		return NotifiedNone
	}
}

// ChangeEvent is produced once per cycle for each product that is not unchanged.
type ChangeEvent struct {
	ProductID string
	Kind      ChangeKind
	Previous  *Product
	Current   Product

	// PartialVariant marks a restock where only some sizes came back.
	PartialVariant bool

	// Updated marks non-availability field changes riding along with the event.
	Updated       bool
	ChangedFields []string
}
