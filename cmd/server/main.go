// Package main runs the unified trading service: the Telegram front end,
// the swap execution engine, the curve migration watcher, the periodic
// reconciliation loop, and the health/metrics HTTP endpoints.
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
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"solsniper/internal/bot"
	"solsniper/internal/ledger"
	"solsniper/internal/observability"
	"solsniper/internal/quote"
	"solsniper/internal/solana"
	"solsniper/internal/storage"
	chstore "solsniper/internal/storage/clickhouse"
	"solsniper/internal/storage/memory"
	"solsniper/internal/storage/migrations"
	pgstore "solsniper/internal/storage/postgres"
	"solsniper/internal/trade"
	"solsniper/internal/txbuilder"
	"solsniper/internal/venue"
)

// Server holds all components of the unified service.
type Server struct {
	engine  *trade.Engine
	bot     *bot.Bot
	watcher *venue.MigrationWatcher
	metrics *observability.Metrics
	logger  *log.Logger

	reconcileInterval time.Duration

	mu               sync.Mutex
	started          time.Time
	lastReconcileRun time.Time
	reconcileRuns    int
	recordsSettled   int
}

type stores struct {
	records   storage.ExecutionRecordStore
	users     storage.UserStore
	positions storage.PositionStore
	events    storage.TradeEventStore
}

func main() {
	// A .env file supplies defaults; real env vars win.
	_ = godotenv.Load()

	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint")
	telegramToken := flag.String("telegram-token", os.Getenv("TELEGRAM_BOT_TOKEN"), "Telegram bot token")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	httpAddr := flag.String("http-addr", ":9090", "Health/metrics HTTP address")
	reconcileInterval := flag.Duration("reconcile-interval", 30*time.Second, "Reconciliation loop interval")
	toleranceCeiling := flag.Float64("tolerance-ceiling", 0.50, "Maximum allowed slippage tolerance")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if *wsEndpoint == "" {
		logger.Fatal("--ws-endpoint is required")
	}
	if *telegramToken == "" {
		logger.Fatal("--telegram-token is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down", sig)
		cancel()

		sig = <-sigCh
		logger.Printf("received second signal %v, forcing exit", sig)
		os.Exit(1)
	}()

	st, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("")
	rpc := solana.NewHTTPClient(*rpcEndpoint)

	led := ledger.New(st.records, st.positions, st.events, log.New(os.Stdout, "[ledger] ", log.LstdFlags))
	reconciler := ledger.NewReconciler(led, st.records, st.users, rpc,
		log.New(os.Stdout, "[reconcile] ", log.LstdFlags), 0)
	submitter := txbuilder.NewSubmitter(rpc, txbuilder.Config{},
		log.New(os.Stdout, "[submit] ", log.LstdFlags))

	engine := trade.NewEngine(
		venue.NewResolver(rpc),
		quote.NewEngine(quote.Config{}),
		led, reconciler, submitter,
		st.users, rpc, metrics,
		log.New(os.Stdout, "[trade] ", log.LstdFlags),
		*toleranceCeiling,
	)

	tgBot, err := bot.New(*telegramToken, engine, st.users, st.positions, st.events, rpc,
		log.New(os.Stdout, "[bot] ", log.LstdFlags))
	if err != nil {
		logger.Fatalf("create bot: %v", err)
	}

	ws, err := solana.NewWSClient(ctx, *wsEndpoint, nil)
	if err != nil {
		logger.Fatalf("create websocket client: %v", err)
	}
	defer ws.Close()

	watcher := venue.NewMigrationWatcher(ws,
		log.New(os.Stdout, "[watcher] ", log.LstdFlags),
		func(signature string) {
			metrics.MigrationHints.Inc()
		})

	server := &Server{
		engine:            engine,
		bot:               tgBot,
		watcher:           watcher,
		metrics:           metrics,
		logger:            logger,
		reconcileInterval: *reconcileInterval,
		started:           time.Now(),
	}

	go server.startHTTPServer(*httpAddr)

	if err := server.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("server error: %v", err)
	}
	logger.Println("shutdown complete")
}

// createStores builds the storage layer, running migrations for the
// durable backends.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*stores, func(), error) {
	if useMemory {
		return &stores{
			records:   memory.NewExecutionRecordStore(),
			users:     memory.NewUserStore(),
			positions: memory.NewPositionStore(),
			events:    memory.NewTradeEventStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
		conn.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	st := &stores{
		records:   pgstore.NewExecutionRecordStore(pool),
		users:     pgstore.NewUserStore(pool),
		positions: pgstore.NewPositionStore(pool),
		events:    chstore.NewTradeEventStore(conn),
	}
	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return st, cleanup, nil
}

// Run starts all components and blocks until the context is canceled or a
// component fails.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("starting unified server")

	// Settle anything a previous run left behind before accepting trades.
	if settled, err := s.engine.Reconcile(ctx); err != nil {
		s.logger.Printf("startup reconciliation: %v", err)
	} else if settled > 0 {
		s.logger.Printf("startup reconciliation settled %d records", settled)
	}

	s.bot.Start()
	defer s.bot.Stop()

	errCh := make(chan error, 2)

	go func() {
		if err := s.watcher.Run(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("migration watcher: %w", err)
		}
	}()

	go func() {
		if err := s.runReconcileLoop(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("reconcile loop: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runReconcileLoop periodically settles unresolved execution records.
func (s *Server) runReconcileLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			settled, err := s.engine.Reconcile(ctx)
			if err != nil {
				s.logger.Printf("reconciliation: %v", err)
				continue
			}
			s.mu.Lock()
			s.lastReconcileRun = time.Now()
			s.reconcileRuns++
			s.recordsSettled += settled
			s.mu.Unlock()
			if settled > 0 {
				s.logger.Printf("reconciliation settled %d records", settled)
			}
		}
	}
}

// startHTTPServer serves health, metrics, and status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("http server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("http server error: %v", err)
	}
}

// StatusResponse is the JSON body of /status.
type StatusResponse struct {
	Status           string    `json:"status"`
	Uptime           string    `json:"uptime"`
	LastReconcileRun time.Time `json:"last_reconcile_run,omitempty"`
	ReconcileRuns    int       `json:"reconcile_runs"`
	RecordsSettled   int       `json:"records_settled"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:           "running",
		Uptime:           time.Since(s.started).String(),
		LastReconcileRun: s.lastReconcileRun,
		ReconcileRuns:    s.reconcileRuns,
		RecordsSettled:   s.recordsSettled,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
