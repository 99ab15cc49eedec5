package jobs

import (
	"context"
	"errors"
	"log"
	"time"

	"tickerpulse/internal/annotate"
	"tickerpulse/internal/domain"
	"tickerpulse/internal/observability"
)

// DefaultFlushInterval is how often buffered live messages are annotated.
const DefaultFlushInterval = 30 * time.Second

// Follower consumes a live message stream and annotates it in periodic
// batches. Flushes are additive: the stream has no notion of a reset,
// the caller clears the group beforehand if it wants one.
type Follower struct {
	annotator *annotate.Annotator
	interval  time.Duration
	logger    *log.Logger
}

// FollowerOptions contains configuration for creating a Follower.
type FollowerOptions struct {
	Annotator *annotate.Annotator
	Interval  time.Duration // Default: 30s between flushes
	Logger    *log.Logger
}

// NewFollower creates a live-stream follower.
func NewFollower(opts FollowerOptions) *Follower {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Follower{
		annotator: opts.Annotator,
		interval:  interval,
		logger:    logger,
	}
}

// Run buffers messages from the channel and flushes an annotate batch
// every interval. It returns when the channel closes or the context is
// cancelled, flushing the remaining buffer first. Flush failures are
// logged and the affected buffer is dropped; the stream keeps going.
func (f *Follower) Run(ctx context.Context, messages <-chan domain.RawMessage, group string) error {
	if group == "" {
		return errors.New("group name is required")
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	var buffer []domain.RawMessage
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				f.flush(ctx, buffer, group)
				return nil
			}
			buffer = append(buffer, msg)

		case <-ticker.C:
			f.flush(ctx, buffer, group)
			buffer = nil

		case <-ctx.Done():
			f.flush(context.WithoutCancel(ctx), buffer, group)
			return ctx.Err()
		}
	}
}

func (f *Follower) flush(ctx context.Context, buffer []domain.RawMessage, group string) {
	if len(buffer) == 0 {
		return
	}

	observability.RecordMessagesFetched(len(buffer))
	records, err := f.annotator.Annotate(ctx, buffer, group, false)
	if err != nil {
		f.logger.Printf("flush %d live messages for group %s failed: %v", len(buffer), group, err)
		return
	}
	f.logger.Printf("flushed %d live messages for group %s: %d records", len(buffer), group, len(records))
}
