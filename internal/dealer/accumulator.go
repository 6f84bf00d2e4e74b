package dealer

import (
	"time"

	"github.com/sells-group/locator-cli/internal/model"
)

// Accumulator is the keyed store of aggregates: the dedup/merge engine.
// It is only ever touched by the single control loop, so it carries no
// locking.
type Accumulator struct {
	byID  map[string]*model.Aggregate
	order []string
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{byID: make(map[string]*model.Aggregate)}
}

// Ingest consumes one ZIP query's batch of normalized records. Each record
// is matched by identity and either creates a new aggregate or merges into
// the existing one. Returns the records processed and the aggregates
// newly created.
func (a *Accumulator) Ingest(records []model.NormalizedDealer, zipCode string, observedAt time.Time, runRef string) (total, created int) {
	for _, rec := range records {
		total++
		id := Identity(rec)
		if agg, ok := a.byID[id]; ok {
			Merge(agg, rec, zipCode, observedAt, runRef)
			continue
		}
		a.byID[id] = NewAggregate(id, rec, zipCode, observedAt, runRef)
		a.order = append(a.order, id)
		created++
	}
	return total, created
}

// LoadSnapshot pre-seeds the accumulator from persisted aggregates. Used
// only at resume, before any Ingest call in the new run; entries are
// keyed by their stored dealer_id, bypassing identity recomputation.
func (a *Accumulator) LoadSnapshot(snapshot []map[string]any) error {
	for _, raw := range snapshot {
		agg, err := FromSnapshot(raw)
		if err != nil {
			return err
		}
		if _, ok := a.byID[agg.DealerID]; !ok {
			a.order = append(a.order, agg.DealerID)
		}
		a.byID[agg.DealerID] = agg
	}
	return nil
}

// ToList exports all aggregates in creation/insertion order.
func (a *Accumulator) ToList() []model.Aggregate {
	out := make([]model.Aggregate, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, *a.byID[id])
	}
	return out
}

// Len reports the count of distinct dealer ids.
func (a *Accumulator) Len() int {
	return len(a.byID)
}
