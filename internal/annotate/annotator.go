// Package annotate turns batches of raw messages into persisted
// annotated records: one row per (message, valid ticker) with the
// baseline price and the price at each forward offset.
package annotate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"tickerpulse/internal/catalog"
	"tickerpulse/internal/domain"
	"tickerpulse/internal/extract"
	"tickerpulse/internal/observability"
	"tickerpulse/internal/storage"
)

// PriceResolver resolves a (mention, offset) pair to a price.
// Implementations return an error for unavailable prices; the annotator
// records those as 0 and never fails the batch on them.
type PriceResolver interface {
	Resolve(ctx context.Context, m domain.Mention, off domain.Offset) (float64, error)
}

// Default configuration values.
const (
	DefaultWorkers      = 4
	DefaultBatchTimeout = 10 * time.Minute
)

// Annotator orchestrates extraction, price resolution and persistence.
type Annotator struct {
	catalogs     *catalog.Catalog
	resolver     PriceResolver
	store        storage.AnnotatedStore
	workers      int
	batchTimeout time.Duration
	logger       *log.Logger
}

// Options contains configuration for creating an Annotator.
type Options struct {
	Catalogs     *catalog.Catalog
	Resolver     PriceResolver
	Store        storage.AnnotatedStore
	Workers      int           // Default: 4 concurrent mentions
	BatchTimeout time.Duration // Default: 10m overall deadline per batch
	Logger       *log.Logger
}

// New creates a new Annotator.
func New(opts Options) *Annotator {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	batchTimeout := opts.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = DefaultBatchTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Annotator{
		catalogs:     opts.Catalogs,
		resolver:     opts.Resolver,
		store:        opts.Store,
		workers:      workers,
		batchTimeout: batchTimeout,
		logger:       logger,
	}
}

// Annotate processes one batch of messages for a group.
//
// With resetExisting=true prior records for the group are cleared first,
// making the call idempotent for a given batch. With false the call is
// additive; no dedup key is enforced and the caller controls reset timing.
//
// Price resolution fans out across mentions on a bounded worker pool;
// the batch deadline fails the remaining lookups to unavailable rather
// than aborting rows that already resolved.
func (a *Annotator) Annotate(ctx context.Context, messages []domain.RawMessage, group string, resetExisting bool) ([]*domain.AnnotatedRecord, error) {
	if group == "" {
		return nil, errors.New("group name is required")
	}

	if resetExisting {
		if err := a.store.ClearGroup(ctx, group); err != nil {
			return nil, fmt.Errorf("clear group before annotate: %w", err)
		}
	}

	start := time.Now()

	mentions := a.expandMentions(messages)
	if len(mentions) == 0 {
		return nil, nil
	}

	// The deadline bounds price resolution only: lookups still pending
	// when it fires degrade to unavailable, and the resolved subset is
	// persisted on the caller's context.
	resolveCtx, cancel := context.WithTimeout(ctx, a.batchTimeout)
	defer cancel()

	records := a.resolveAll(resolveCtx, mentions, group)

	if err := a.store.InsertBatch(ctx, records, group); err != nil {
		return nil, fmt.Errorf("persist annotated records: %w", err)
	}

	observability.RecordAnnotateBatch(len(records), time.Since(start).Seconds())
	a.logger.Printf("annotated %d mentions from %d messages for group %s", len(records), len(messages), group)
	return records, nil
}

// expandMentions drops invalid messages and expands the rest to one
// mention per (message, valid ticker). Dropping is silent: null-text and
// no-ticker messages are the expected high-frequency case.
func (a *Annotator) expandMentions(messages []domain.RawMessage) []domain.Mention {
	var mentions []domain.Mention
	dropped := 0
	for _, msg := range messages {
		if msg.Text == "" {
			dropped++
			continue
		}

		valid, err := extract.FilterValid(extract.Tickers(msg.Text), a.catalogs)
		if err != nil {
			dropped++
			continue
		}

		for _, sym := range valid {
			mentions = append(mentions, domain.Mention{
				Message: msg,
				Symbol:  strings.ToUpper(sym),
			})
		}
	}
	observability.RecordMessagesDropped(dropped)
	return mentions
}

// resolveAll fans mentions out to the worker pool and collects one
// record per mention, preserving mention order in the result.
func (a *Annotator) resolveAll(ctx context.Context, mentions []domain.Mention, group string) []*domain.AnnotatedRecord {
	records := make([]*domain.AnnotatedRecord, len(mentions))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < a.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				records[i] = a.resolveMention(ctx, mentions[i], group)
			}
		}()
	}

	for i := range mentions {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return records
}

// resolveMention builds one record: baseline plus the seven forward
// offsets. Unavailable prices are normalized to 0 at this boundary.
func (a *Annotator) resolveMention(ctx context.Context, m domain.Mention, group string) *domain.AnnotatedRecord {
	record := &domain.AnnotatedRecord{
		SenderID:     m.Message.SenderID,
		Symbol:       m.Symbol,
		MessageTime:  m.Message.Timestamp,
		GroupName:    group,
		OffsetPrices: make(map[domain.Offset]float64, len(domain.ForwardOffsets())),
	}

	record.BaselinePrice = a.resolvePrice(ctx, m, domain.OffsetBaseline)
	for _, off := range domain.ForwardOffsets() {
		record.OffsetPrices[off] = a.resolvePrice(ctx, m, off)
	}
	return record
}

func (a *Annotator) resolvePrice(ctx context.Context, m domain.Mention, off domain.Offset) float64 {
	price, err := a.resolver.Resolve(ctx, m, off)
	if err != nil {
		return 0
	}
	return price
}
