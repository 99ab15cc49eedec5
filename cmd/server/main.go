// Package main runs the HTTP API that the dashboard layer talks to:
// - POST /api/ingest   schedule background ingestion-and-annotation
// - GET  /api/jobs     observe job completion
// - GET  /api/aggregate compute percent-change aggregates on demand
// - GET  /api/snapshots read persisted aggregation runs
// - GET  /metrics, /health
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"tickerpulse/internal/aggregate"
	"tickerpulse/internal/annotate"
	"tickerpulse/internal/catalog"
	"tickerpulse/internal/config"
	"tickerpulse/internal/domain"
	"tickerpulse/internal/jobs"
	"tickerpulse/internal/observability"
	"tickerpulse/internal/oracle"
	"tickerpulse/internal/resolve"
	"tickerpulse/internal/source"
	"tickerpulse/internal/storage"
	chstore "tickerpulse/internal/storage/clickhouse"
	"tickerpulse/internal/storage/memory"
	pgstore "tickerpulse/internal/storage/postgres"
)

// Server holds all wired components.
type Server struct {
	cfg      *config.Config
	store    storage.AnnotatedStore
	snaps    storage.SnapshotStore
	jobs     *jobs.Runner
	logger   *log.Logger
	started  time.Time
	shutdown []func()
}

func main() {
	configPath := flag.String("config", os.Getenv("TICKERPULSE_CONFIG"), "Path to YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	useMemory := flag.Bool("memory", false, "Use in-memory stores instead of Postgres/ClickHouse")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	cfg, err := loadConfig(*configPath, *useMemory)
	if err != nil {
		logger.Fatalf("Configuration error: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := buildServer(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Startup error: %v", err)
	}
	defer srv.close()

	if err := srv.serve(ctx); err != nil {
		logger.Fatalf("Server error: %v", err)
	}
}

func loadConfig(path string, useMemory bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if useMemory {
		cfg.Database.Memory = true
	}
	return cfg, nil
}

// buildServer wires catalogs, oracle, stores and the job runner.
func buildServer(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Server, error) {
	catalogs, err := catalog.Load(cfg.Catalogs.SolanaPath, cfg.Catalogs.EthereumPath)
	if err != nil {
		return nil, err
	}
	sol, eth := catalogs.Size()
	logger.Printf("Loaded catalogs: %d solana, %d ethereum tickers", sol, eth)

	srv := &Server{
		cfg:     cfg,
		logger:  logger,
		started: time.Now().UTC(),
	}

	var oracleOpts []oracle.ClientOption
	if cfg.Oracle.BaseURL != "" {
		oracleOpts = append(oracleOpts, oracle.WithBaseURL(cfg.Oracle.BaseURL))
	}
	oracleOpts = append(oracleOpts, oracle.WithTimeout(cfg.Oracle.Timeout))

	var client oracle.Client = oracle.NewHTTPClient(cfg.Oracle.APIKey, oracleOpts...)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		srv.shutdown = append(srv.shutdown, func() { rdb.Close() })
		client = oracle.NewCachedClient(oracle.CacheOptions{
			Inner:  client,
			Redis:  rdb,
			Logger: logger,
		})
		logger.Printf("Price cache enabled at %s", cfg.Redis.Addr)
	}

	if cfg.Database.Memory {
		srv.store = memory.NewAnnotatedStore()
		srv.snaps = memory.NewSnapshotStore()
		logger.Println("Using in-memory stores")
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.Database.PostgresDSN)
		if err != nil {
			return nil, err
		}
		srv.shutdown = append(srv.shutdown, pool.Close)
		srv.store = pgstore.NewAnnotatedStore(pool)

		if cfg.Database.ClickhouseDSN != "" {
			conn, err := chstore.NewConn(ctx, cfg.Database.ClickhouseDSN)
			if err != nil {
				return nil, err
			}
			srv.shutdown = append(srv.shutdown, func() { conn.Close() })
			srv.snaps = chstore.NewSnapshotStore(conn)
		}
	}

	annotator := annotate.New(annotate.Options{
		Catalogs:     catalogs,
		Resolver:     resolve.New(catalogs, client),
		Store:        srv.store,
		Workers:      cfg.Annotate.Workers,
		BatchTimeout: cfg.Annotate.BatchTimeout,
		Logger:       logger,
	})

	srv.jobs = jobs.NewRunner(jobs.Options{
		Annotator: annotator,
		Source:    source.NewHTTPSource(cfg.Source.BaseURL, source.WithLogger(logger)),
		Logger:    logger,
	})

	return srv, nil
}

func (s *Server) close() {
	for i := len(s.shutdown) - 1; i >= 0; i-- {
		s.shutdown[i]()
	}
}

func (s *Server) serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("POST /api/ingest", s.handleIngest)
	mux.HandleFunc("GET /api/jobs", s.handleJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleJob)
	mux.HandleFunc("GET /api/aggregate", s.handleAggregate)
	mux.HandleFunc("GET /api/snapshots", s.handleSnapshots)

	httpServer := &http.Server{
		Addr:    s.cfg.Server.Addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("Listening on %s", s.cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.jobs.Wait()
	return nil
}

// ingestRequest is the body of POST /api/ingest.
type ingestRequest struct {
	Group  string `json:"group"`
	Source string `json:"source"`
	Limit  int    `json:"limit"`
	Reset  bool   `json:"reset"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Group == "" || req.Source == "" {
		writeError(w, http.StatusBadRequest, "group and source are required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = 500
	}

	// The job outlives this request; detach it from the request context.
	job := s.jobs.Start(context.Background(), req.Group, req.Source, req.Limit, req.Reset)
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobs.List())
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	group := q.Get("group")
	if group == "" {
		writeError(w, http.StatusBadRequest, "group is required")
		return
	}

	limit := 500
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	timeframe := domain.Offset(q.Get("timeframe"))
	if timeframe == "" {
		timeframe = domain.Offset24Hr
	}

	records, err := s.store.QueryRecent(r.Context(), group, limit)
	if err != nil {
		s.logger.Printf("query recent for %s: %v", group, err)
		writeError(w, http.StatusInternalServerError, "storage query failed")
		return
	}

	result := aggregate.Aggregate(records, aggregate.Params{
		TimeframeFilter:     timeframe,
		MinPercentChange:    config.ParseMinChange(q.Get("min_change")),
		AllowList:           q.Get("allow"),
		DenyList:            q.Get("deny"),
		DistinguishMentions: q.Get("distinguish") == "true",
	})
	observability.RecordAggregation()

	if q.Get("persist") == "true" && s.snaps != nil {
		if err := s.persistSnapshot(r.Context(), group, result); err != nil {
			s.logger.Printf("persist snapshot for %s: %v", group, err)
		}
	}

	writeJSON(w, http.StatusOK, toAggregateResponse(result))
}

func (s *Server) persistSnapshot(ctx context.Context, group string, records []*domain.AggregatedRecord) error {
	computedAt := time.Now().UTC()
	snaps := make([]*domain.AggregatedSnapshot, 0, len(records))
	for _, rec := range records {
		snaps = append(snaps, &domain.AggregatedSnapshot{
			GroupName:     group,
			ComputedAt:    computedAt,
			SenderID:      rec.SenderID,
			Symbol:        rec.Symbol,
			Timeframe:     rec.Timeframe,
			PercentChange: rec.PercentChange,
		})
	}
	if err := s.snaps.InsertBatch(ctx, snaps); err != nil {
		return err
	}
	observability.RecordSnapshotsStored(len(snaps))
	return nil
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.snaps == nil {
		writeError(w, http.StatusNotImplemented, "snapshot store not configured")
		return
	}

	group := r.URL.Query().Get("group")
	if group == "" {
		writeError(w, http.StatusBadRequest, "group is required")
		return
	}

	snaps, err := s.snaps.GetByGroup(r.Context(), group)
	if err != nil {
		s.logger.Printf("query snapshots for %s: %v", group, err)
		writeError(w, http.StatusInternalServerError, "storage query failed")
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

// aggregateRow is the JSON shape of one aggregated record.
type aggregateRow struct {
	SenderID      *int64  `json:"sender_id"`
	Symbol        string  `json:"symbol"`
	Timeframe     string  `json:"timeframe"`
	PercentChange float64 `json:"percent_change"`
}

func toAggregateResponse(records []*domain.AggregatedRecord) []aggregateRow {
	rows := make([]aggregateRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, aggregateRow{
			SenderID:      rec.SenderID,
			Symbol:        rec.Symbol,
			Timeframe:     string(rec.Timeframe),
			PercentChange: rec.PercentChange,
		})
	}
	return rows
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
