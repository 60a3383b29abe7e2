package catalog

import "sync"

// Aggregator folds rows into a key-indexed record map. It is safe for
// concurrent use; pages processed in parallel may fold into it freely because
// the per-key merge is commutative and associative.
type Aggregator struct {
	mu      sync.Mutex
	records map[string]*Record
	order   []string
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{records: make(map[string]*Record)}
}

// Fold merges the rows into the aggregate. The first occurrence of a key sets
// both year bounds to the row's year; later occurrences only widen the range.
func (a *Aggregator) Fold(rows []Row) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, row := range rows {
		rec, ok := a.records[row.Key]
		if !ok {
			a.records[row.Key] = &Record{
				Key:     row.Key,
				Title:   row.Title,
				MinYear: row.Year,
				MaxYear: row.Year,
			}
			a.order = append(a.order, row.Key)
			continue
		}
		if row.Year < rec.MinYear {
			rec.MinYear = row.Year
		}
		if row.Year > rec.MaxYear {
			rec.MaxYear = row.Year
		}
	}
}

// Snapshot returns the aggregated records in first-seen order. The returned
// slice is a copy; callers may retain it across further folds.
func (a *Aggregator) Snapshot() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Record, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, *a.records[key])
	}
	return out
}

// Len reports the number of distinct keys folded so far.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.order)
}
