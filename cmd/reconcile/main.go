// Package main runs a single reconciliation pass and exits. Useful after a
// crash, before a deploy, or from cron as a safety net behind the server's
// built-in loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"solsniper/internal/ledger"
	"solsniper/internal/solana"
	"solsniper/internal/storage"
	chstore "solsniper/internal/storage/clickhouse"
	"solsniper/internal/storage/memory"
	"solsniper/internal/storage/migrations"
	pgstore "solsniper/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional)")
	expiryWindow := flag.Duration("expiry-window", 0, "How long before an unobserved signature is treated as expired (0 = default)")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall run timeout")

	flag.Parse()

	logger := log.New(os.Stdout, "[reconcile] ", log.LstdFlags)

	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("postgres migrations: %v", err)
	}

	records := pgstore.NewExecutionRecordStore(pool)
	users := pgstore.NewUserStore(pool)
	positions := pgstore.NewPositionStore(pool)

	rpc := solana.NewHTTPClient(*rpcEndpoint)

	var events storage.TradeEventStore = memory.NewTradeEventStore()
	if *clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()
		events = chstore.NewTradeEventStore(conn)
	} else {
		logger.Println("no --clickhouse-dsn: trade events from settled records will not reach analytics")
	}

	led := ledger.New(records, positions, events, logger)
	reconciler := ledger.NewReconciler(led, records, users, rpc, logger, *expiryWindow)

	settled, err := reconciler.Run(ctx)
	if err != nil {
		logger.Fatalf("reconciliation: %v", err)
	}

	fmt.Printf("settled %d records\n", settled)
}
