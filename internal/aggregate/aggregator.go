// Package aggregate reshapes annotated records into per-sender,
// per-ticker, per-timeframe percent-change rows for visualization.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"tickerpulse/internal/domain"
)

// Params control one aggregation pass.
type Params struct {
	// TimeframeFilter selects the timeframe whose percent change is
	// compared against MinPercentChange. An invalid or baseline offset
	// disables row filtering.
	TimeframeFilter domain.Offset

	// MinPercentChange keeps only rows whose filtered-timeframe change
	// is >= this threshold.
	MinPercentChange float64

	// AllowList is a comma-separated symbol list. Entries are trimmed
	// and uppercased; a single empty entry disables the allow-list.
	AllowList string

	// DenyList is a comma-separated symbol list, always applied,
	// regardless of the allow-list outcome.
	DenyList string

	// DistinguishMentions keeps separate rows per mention event by
	// suffixing the symbol with the message timestamp before grouping.
	// Used by the heatmap path, where repeated calls on the same ticker
	// must stay visible as distinct rows.
	DistinguishMentions bool
}

// row is one record's percent changes across all timeframes (wide form).
type row struct {
	senderID    *int64
	symbol      string
	messageTime string // RFC3339, used for mention disambiguation
	changes     map[domain.Offset]float64
}

// Aggregate converts annotated records into averaged percent-change rows.
// Output is deterministic: sorted by sender, symbol, then timeframe.
func Aggregate(records []*domain.AnnotatedRecord, p Params) []*domain.AggregatedRecord {
	rows := computeChanges(records)

	// The same filter is applied once per timeframe pass. With a single
	// (timeframe, threshold) pair the passes are equivalent to one
	// filter, but the sequential narrowing is kept so a per-timeframe
	// parameterization can slot in without changing row-set semantics.
	for range domain.ForwardOffsets() {
		rows = filterRows(rows, p.TimeframeFilter, p.MinPercentChange)
	}

	grouped := groupAndAverage(melt(rows, p.DistinguishMentions))

	allow, allowActive := parseSymbolList(p.AllowList)
	deny, _ := parseSymbolList(p.DenyList)

	var result []*domain.AggregatedRecord
	for _, r := range grouped {
		base := baseSymbol(r.Symbol)
		if allowActive && !allow[base] {
			continue
		}
		// Deny-list wins even over an allow-listed symbol.
		if deny[base] {
			continue
		}
		result = append(result, r)
	}

	sortRecords(result)
	return result
}

// computeChanges converts stored prices into percent change relative to
// baseline. A zero or missing price at an offset, or a zero baseline,
// yields 0: aggregation arithmetic must stay well-defined.
func computeChanges(records []*domain.AnnotatedRecord) []row {
	rows := make([]row, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		r := row{
			senderID:    rec.SenderID,
			symbol:      strings.ToUpper(rec.Symbol),
			messageTime: rec.MessageTime.UTC().Format("2006-01-02T15:04:05Z07:00"),
			changes:     make(map[domain.Offset]float64, len(domain.ForwardOffsets())),
		}
		for _, off := range domain.ForwardOffsets() {
			r.changes[off] = percentChange(rec.BaselinePrice, rec.PriceAt(off))
		}
		rows = append(rows, r)
	}
	return rows
}

// percentChange returns ((price-baseline)/baseline)*100, or 0 when the
// offset price is absent or the baseline would divide by zero.
func percentChange(baseline, price float64) float64 {
	if price <= 0 || baseline == 0 {
		return 0
	}
	return ((price - baseline) / baseline) * 100
}

func filterRows(rows []row, timeframe domain.Offset, minChange float64) []row {
	if !timeframe.Valid() || timeframe == domain.OffsetBaseline {
		return rows
	}

	kept := rows[:0]
	for _, r := range rows {
		if r.changes[timeframe] >= minChange {
			kept = append(kept, r)
		}
	}
	return kept
}

// longRow is one (sender, symbol key, timeframe) observation.
type longRow struct {
	senderID  *int64
	symbolKey string
	timeframe domain.Offset
	change    float64
}

// melt reshapes wide rows to long form: one row per timeframe. With
// distinguish set, the symbol key carries the message timestamp so
// repeated mentions survive the group-by as separate rows.
func melt(rows []row, distinguish bool) []longRow {
	var long []longRow
	for _, r := range rows {
		key := r.symbol
		if distinguish {
			key = r.symbol + "_" + r.messageTime
		}
		for _, off := range domain.ForwardOffsets() {
			long = append(long, longRow{
				senderID:  r.senderID,
				symbolKey: key,
				timeframe: off,
				change:    r.changes[off],
			})
		}
	}
	return long
}

// groupAndAverage collapses duplicate (sender, symbol key, timeframe)
// rows to their arithmetic mean.
func groupAndAverage(long []longRow) []*domain.AggregatedRecord {
	type bucket struct {
		senderID *int64
		sum      float64
		count    int
	}

	buckets := make(map[string]*bucket)
	keys := make(map[string]longRow)
	for _, lr := range long {
		key := fmt.Sprintf("%s|%s|%s", senderKey(lr.senderID), lr.symbolKey, lr.timeframe)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{senderID: lr.senderID}
			buckets[key] = b
			keys[key] = lr
		}
		b.sum += lr.change
		b.count++
	}

	result := make([]*domain.AggregatedRecord, 0, len(buckets))
	for key, b := range buckets {
		lr := keys[key]
		result = append(result, &domain.AggregatedRecord{
			SenderID:      b.senderID,
			Symbol:        lr.symbolKey,
			Timeframe:     lr.timeframe,
			PercentChange: b.sum / float64(b.count),
		})
	}
	return result
}

// parseSymbolList splits a comma-separated list, trimming and
// uppercasing entries. The boolean reports whether the list is active:
// a single empty entry means "no list supplied".
func parseSymbolList(list string) (map[string]bool, bool) {
	parts := strings.Split(list, ",")
	symbols := make(map[string]bool, len(parts))
	for _, part := range parts {
		sym := strings.ToUpper(strings.TrimSpace(part))
		if sym != "" {
			symbols[sym] = true
		}
	}
	return symbols, len(symbols) > 0
}

// baseSymbol strips the mention-timestamp suffix, if any, so list
// filters match the plain ticker.
func baseSymbol(symbolKey string) string {
	if i := strings.IndexByte(symbolKey, '_'); i >= 0 {
		return symbolKey[:i]
	}
	return symbolKey
}

// timeframeRank orders timeframes for deterministic output.
var timeframeRank = func() map[domain.Offset]int {
	rank := make(map[domain.Offset]int)
	for i, off := range domain.ForwardOffsets() {
		rank[off] = i
	}
	return rank
}()

func sortRecords(records []*domain.AggregatedRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if ka, kb := senderKey(a.SenderID), senderKey(b.SenderID); ka != kb {
			return ka < kb
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return timeframeRank[a.Timeframe] < timeframeRank[b.Timeframe]
	})
}

func senderKey(id *int64) string {
	if id == nil {
		return "null"
	}
	return fmt.Sprintf("%020d", *id)
}
