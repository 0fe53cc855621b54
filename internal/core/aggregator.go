package core

import "sync"

type slotKind uint8

const (
	slotPending slotKind = iota
	slotExcluded
	slotHigh
	slotLow
	slotUnmatched
	slotDropped
)

type slot struct {
	kind        slotKind
	materialize func() OutputRecord
}

// Aggregator collects per-row outcomes by original row position.
//
// Each row owns its slot, so settle callbacks touching different indices do
// not contend. Diagnostics are appended in settle order under a mutex.
type Aggregator struct {
	slots []slot

	mu      sync.Mutex
	missing []MissingEntry
}

// NewAggregator creates an Aggregator for n rows.
func NewAggregator(n int) *Aggregator {
	return &Aggregator{slots: make([]slot, n)}
}

// Exclude marks row i as outside the conversion.
func (a *Aggregator) Exclude(i int) {
	a.slots[i] = slot{kind: slotExcluded}
}

// Settle records the outcome for row i. Fatal outcomes are not recorded; the
// batch is discarded by the caller.
func (a *Aggregator) Settle(i int, q NormalizedQuery, o Outcome) {
	switch o.Kind {
	case OutcomeResolved:
		kind := slotHigh
		if o.Confidence == ConfidenceLow {
			kind = slotLow
		}
		card := o.Card
		a.slots[i] = slot{kind: kind, materialize: func() OutputRecord { return Materialize(q, card) }}
	case OutcomeUnmatched:
		a.slots[i] = slot{kind: slotUnmatched}
	default:
		return
	}

	entry, ok := o.Missing(q)
	if !ok {
		if o.Kind == OutcomeUnmatched {
			a.slots[i].kind = slotDropped
		}
		return
	}
	a.mu.Lock()
	a.missing = append(a.missing, entry)
	a.mu.Unlock()
}

// Records flattens resolved rows in ascending row order.
func (a *Aggregator) Records() []OutputRecord {
	records := make([]OutputRecord, 0, len(a.slots))
	for _, s := range a.slots {
		if s.materialize != nil {
			records = append(records, s.materialize())
		}
	}
	return records
}

// Missing returns the diagnostics in the order rows settled.
func (a *Aggregator) Missing() []MissingEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]MissingEntry(nil), a.missing...)
}

// Stats counts row dispositions.
func (a *Aggregator) Stats() Stats {
	st := Stats{Rows: len(a.slots)}
	for _, s := range a.slots {
		switch s.kind {
		case slotExcluded:
			st.Excluded++
		case slotHigh:
			st.High++
		case slotLow:
			st.Low++
		case slotUnmatched:
			st.Missing++
		case slotDropped:
			st.Dropped++
		}
	}
	return st
}

// Result assembles the published batch result.
func (a *Aggregator) Result() BatchResult {
	return BatchResult{
		Records: a.Records(),
		Missing: a.Missing(),
		Stats:   a.Stats(),
	}
}
