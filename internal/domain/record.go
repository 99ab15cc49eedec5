package domain

import "time"

// AnnotatedRecord is one persisted (message, ticker) row with the baseline
// price and the price at each forward offset. Unavailable prices are
// normalized to 0 before the record is built; downstream percent-change
// arithmetic treats 0 as "no data".
// Corresponds to the annotated_records table.
type AnnotatedRecord struct {
	SenderID      *int64
	Symbol        string // uppercase canonical ticker
	MessageTime   time.Time
	GroupName     string
	BaselinePrice float64
	OffsetPrices  map[Offset]float64 // keyed by the seven forward offsets
}

// PriceAt returns the stored price for a forward offset, 0 if absent.
func (r *AnnotatedRecord) PriceAt(o Offset) float64 {
	return r.OffsetPrices[o]
}

// Clone returns a deep copy of the record.
func (r *AnnotatedRecord) Clone() *AnnotatedRecord {
	cp := *r
	cp.OffsetPrices = make(map[Offset]float64, len(r.OffsetPrices))
	for k, v := range r.OffsetPrices {
		cp.OffsetPrices[k] = v
	}
	return &cp
}

// AggregatedRecord is one (sender, ticker, timeframe) percent-change row
// produced by aggregation. Timeframe is never the baseline offset.
type AggregatedRecord struct {
	SenderID      *int64
	Symbol        string
	Timeframe     Offset
	PercentChange float64
}

// AggregatedSnapshot is a persisted aggregation result for a group,
// written so the dashboard can reload past runs.
// Corresponds to the aggregate_snapshots table.
type AggregatedSnapshot struct {
	GroupName     string    `json:"group"`
	ComputedAt    time.Time `json:"computed_at"`
	SenderID      *int64    `json:"sender_id"`
	Symbol        string    `json:"symbol"`
	Timeframe     Offset    `json:"timeframe"`
	PercentChange float64   `json:"percent_change"`
}
