// Package main runs one ingestion-and-annotation batch and prints a
// summary. Messages come from the relay API or from a JSON file. With
// -follow it instead tails the relay websocket stream and annotates
// messages in periodic batches until interrupted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"tickerpulse/internal/annotate"
	"tickerpulse/internal/catalog"
	"tickerpulse/internal/config"
	"tickerpulse/internal/domain"
	"tickerpulse/internal/jobs"
	"tickerpulse/internal/oracle"
	"tickerpulse/internal/resolve"
	"tickerpulse/internal/source"
	"tickerpulse/internal/storage"
	"tickerpulse/internal/storage/memory"
	pgstore "tickerpulse/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", os.Getenv("TICKERPULSE_CONFIG"), "Path to YAML config file")
	group := flag.String("group", "", "Group name to ingest (required)")
	sourceID := flag.String("source", "", "Source/channel identifier to fetch from")
	file := flag.String("file", "", "JSON file with raw messages (bypasses the relay)")
	limit := flag.Int("limit", 500, "Maximum number of messages to fetch")
	reset := flag.Bool("reset", false, "Clear existing records for the group first")
	useMemory := flag.Bool("memory", false, "Use an in-memory store (dry run)")
	follow := flag.Bool("follow", false, "Tail the relay websocket stream instead of a one-shot batch")
	flush := flag.Duration("flush", jobs.DefaultFlushInterval, "Batch flush interval in follow mode")
	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags)

	if *group == "" {
		logger.Fatal("-group is required")
	}
	if *follow && *file != "" {
		logger.Fatal("-follow cannot be combined with -file")
	}
	if *sourceID == "" && *file == "" {
		logger.Fatal("one of -source or -file is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Configuration error: %v", err)
	}
	if *useMemory {
		cfg.Database.Memory = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := runOptions{
		group:    *group,
		sourceID: *sourceID,
		file:     *file,
		limit:    *limit,
		reset:    *reset,
		follow:   *follow,
		flush:    *flush,
	}
	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Fatalf("Ingest error: %v", err)
	}
}

type runOptions struct {
	group    string
	sourceID string
	file     string
	limit    int
	reset    bool
	follow   bool
	flush    time.Duration
}

func run(ctx context.Context, cfg *config.Config, opts runOptions, logger *log.Logger) error {
	catalogs, err := catalog.Load(cfg.Catalogs.SolanaPath, cfg.Catalogs.EthereumPath)
	if err != nil {
		return err
	}

	var client oracle.Client = oracle.NewHTTPClient(cfg.Oracle.APIKey,
		oracle.WithTimeout(cfg.Oracle.Timeout))
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		client = oracle.NewCachedClient(oracle.CacheOptions{Inner: client, Redis: rdb, Logger: logger})
	}

	var store storage.AnnotatedStore
	if cfg.Database.Memory {
		store = memory.NewAnnotatedStore()
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.Database.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = pgstore.NewAnnotatedStore(pool)
	}

	annotator := annotate.New(annotate.Options{
		Catalogs:     catalogs,
		Resolver:     resolve.New(catalogs, client),
		Store:        store,
		Workers:      cfg.Annotate.Workers,
		BatchTimeout: cfg.Annotate.BatchTimeout,
		Logger:       logger,
	})

	if opts.follow {
		return followStream(ctx, cfg, opts, annotator, store, logger)
	}

	messages, err := loadMessages(ctx, cfg, opts.sourceID, opts.file, opts.limit, logger)
	if err != nil {
		return err
	}
	logger.Printf("Fetched %d messages", len(messages))

	records, err := annotator.Annotate(ctx, messages, opts.group, opts.reset)
	if err != nil {
		return err
	}

	fmt.Printf("Annotated %d records for group %s (reset=%v)\n", len(records), opts.group, opts.reset)
	return nil
}

// followStream tails the relay websocket and flushes annotate batches
// until the context is cancelled. Batches are additive; -reset clears
// the group once before the stream starts.
func followStream(ctx context.Context, cfg *config.Config, opts runOptions, annotator *annotate.Annotator, store storage.AnnotatedStore, logger *log.Logger) error {
	if cfg.Source.WSURL == "" {
		return fmt.Errorf("follow mode requires source.ws_url in the config")
	}
	if opts.reset {
		if err := store.ClearGroup(ctx, opts.group); err != nil {
			return fmt.Errorf("clear group %s: %w", opts.group, err)
		}
	}

	feed, err := source.NewWSFeed(ctx, cfg.Source.WSURL, opts.sourceID, nil, logger)
	if err != nil {
		return err
	}
	defer feed.Close()

	follower := jobs.NewFollower(jobs.FollowerOptions{
		Annotator: annotator,
		Interval:  opts.flush,
		Logger:    logger,
	})

	logger.Printf("Following %s (source %s, flush %s)", cfg.Source.WSURL, opts.sourceID, opts.flush)
	if err := follower.Run(ctx, feed.Messages(), opts.group); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func loadMessages(ctx context.Context, cfg *config.Config, sourceID, file string, limit int, logger *log.Logger) ([]domain.RawMessage, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read messages file: %w", err)
		}
		var messages []domain.RawMessage
		if err := json.Unmarshal(data, &messages); err != nil {
			return nil, fmt.Errorf("parse messages file %s: %w", file, err)
		}
		src := &source.StaticSource{Messages: messages}
		return src.FetchMessages(ctx, sourceID, limit)
	}

	src := source.NewHTTPSource(cfg.Source.BaseURL, source.WithLogger(logger))
	return src.FetchMessages(ctx, sourceID, limit)
}
