// Package detect classifies products against the snapshot.
package detect

import (
	"time"

	"shein-verse-bot/internal/domain/entity"
)

// SnapshotWriter is the part of the snapshot store the detector mutates.
type SnapshotWriter interface {
	Upsert(p entity.Product, now time.Time, cycle int64) (entity.SnapshotEntry, bool)
	Sweep(now time.Time, cycle int64, graceCycles int) []entity.SnapshotEntry
}

// Result is the outcome of one detection pass.
type Result struct {
	// Events holds every change that is not UNCHANGED, in fetch order, followed
	// by REMOVED events ordered by id.
	Events []entity.ChangeEvent

	Checked    int
	Unchanged  int
	Duplicates int
}

// Detector compares fetched products with the snapshot.
type Detector struct {
	store       SnapshotWriter
	graceCycles int
}

// NewDetector creates a Detector. graceCycles is the number of consecutive
// successful cycles a product may be missing before it is reported REMOVED.
func NewDetector(store SnapshotWriter, graceCycles int) *Detector {
	if graceCycles < 1 {
		graceCycles = 1
	}
	return &Detector{store: store, graceCycles: graceCycles}
}

// Detect classifies products, updates the snapshot and sweeps missing ids.
// It must only be called for a successful fetch.
func (d *Detector) Detect(products []entity.Product, cycle int64, now time.Time) Result {
	var res Result

	// Pagination overlap: the last occurrence of an id wins.
	last := make(map[string]int, len(products))
	for i, p := range products {
		last[p.ID] = i
	}

	for i, p := range products {
		if last[p.ID] != i {
			res.Duplicates++
			continue
		}
		res.Checked++

		prev, existed := d.store.Upsert(p, now, cycle)
		if !existed {
			if p.Available {
				res.Events = append(res.Events, entity.ChangeEvent{
					ProductID: p.ID,
					Kind:      entity.ChangeNew,
					Current:   p,
				})
			}
			continue
		}

		if ev, ok := pendingAlert(prev, p); ok {
			res.Events = append(res.Events, ev)
			continue
		}

		ev, changed := classify(prev.Product, p)
		if !changed {
			res.Unchanged++
			continue
		}
		res.Events = append(res.Events, ev)
	}

	for _, e := range d.store.Sweep(now, cycle, d.graceCycles) {
		gone := e.Product
		res.Events = append(res.Events, entity.ChangeEvent{
			ProductID: gone.ID,
			Kind:      entity.ChangeRemoved,
			Previous:  &gone,
			Current:   gone,
		})
	}

	return res
}

// classify returns the change between two sightings of the same product.
// The availability transition decides the kind; other differences ride along
// as the Updated flag.
func classify(old, cur entity.Product) (entity.ChangeEvent, bool) {
	fields := cur.DiffFields(old)
	ev := entity.ChangeEvent{
		ProductID:     cur.ID,
		Previous:      &old,
		Current:       cur,
		ChangedFields: fields,
		Updated:       hasNonVariantChange(fields),
	}

	switch {
	case !old.Available && cur.Available:
		ev.Kind = entity.ChangeRestocked
	case old.Available && !cur.Available:
		ev.Kind = entity.ChangeWentOutOfStock
	case !old.Available && !cur.Available:
		return entity.ChangeEvent{}, false
	case len(fields) == 0:
		return entity.ChangeEvent{}, false
	case old.VariantSignature != "" && cur.VariantSignature != old.VariantSignature && len(cur.AddedVariants(old)) > 0:
		ev.Kind = entity.ChangeRestocked
		ev.PartialVariant = true
	default:
		ev.Kind = entity.ChangeStillAvailable
		ev.Updated = true
	}
	return ev, true
}

// pendingAlert re-raises the alert for a product that stayed available but
// whose NEW or RESTOCKED alert was never attempted, e.g. when the process
// stopped in the middle of a notification batch. The snapshot already holds
// the available state, so classify alone would report nothing.
func pendingAlert(prev entity.SnapshotEntry, cur entity.Product) (entity.ChangeEvent, bool) {
	if !prev.Product.Available || !cur.Available {
		return entity.ChangeEvent{}, false
	}
	fields := cur.DiffFields(prev.Product)
	ev := entity.ChangeEvent{
		ProductID:     cur.ID,
		Current:       cur,
		ChangedFields: fields,
		Updated:       hasNonVariantChange(fields),
	}
	switch prev.Notified {
	case entity.NotifiedNone:
		ev.Kind = entity.ChangeNew
	case entity.NotifiedOutOfStock:
		old := prev.Product
		ev.Kind = entity.ChangeRestocked
		ev.Previous = &old
	default:
		return entity.ChangeEvent{}, false
	}
	return ev, true
}

func hasNonVariantChange(fields []string) bool {
	for _, f := range fields {
		if f != "variants" {
			return true
		}
	}
	return false
}
