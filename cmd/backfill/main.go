package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/careledger/ndis-ledger/internal/amqp"
	"github.com/careledger/ndis-ledger/internal/app"
	"github.com/careledger/ndis-ledger/internal/config"
	"github.com/careledger/ndis-ledger/internal/database"
	log "github.com/sirupsen/logrus"
)

func main() {
	tenantId := flag.Int("tenant-id", 0, "Optional: backfill only one tenant. If 0, backfills all tenants.")
	configPath := flag.String("config", "./config/application.yaml", "Path to the application config file")
	concurrency := flag.Int("concurrency", 0, "Optional: shifts processed in parallel per tenant. Defaults to backfill.concurrency.")
	flag.Parse()

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		logrusLevel, err := log.ParseLevel(level)
		if err != nil {
			log.Fatal(err)
		}
		log.SetLevel(logrusLevel)
	}
	// the report goes to stdout
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *concurrency > 0 {
		cfg.Backfill.Concurrency = *concurrency
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := database.Migrate(cfg.Database); err != nil {
		fmt.Fprintf(os.Stderr, "failed to apply migrations: %v\n", err)
		os.Exit(1)
	}

	deps := app.BuildDependencies(db, cfg)
	if cfg.Amqp.Enabled {
		broker, err := amqp.NewClient(cfg.Amqp.Url, cfg.Amqp.Exchange, cfg.Amqp.Queue)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to AMQP: %v\n", err)
			os.Exit(1)
		}
		defer broker.Close()
		amqp.Forward(deps.EventBus, broker)
	}

	var only *int
	if *tenantId != 0 {
		only = tenantId
	}
	report, runErr := deps.BackfillService.RunBackfill(ctx, only)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode report: %v\n", err)
	}

	fmt.Fprintf(os.Stderr, "Backfill: %d tenant(s), %d processed, %d skipped, %d error(s), %d tenant(s) failed\n",
		len(report.TenantIds), len(report.Processed), len(report.Skipped), len(report.Errors), len(report.TenantErrors))
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "backfill failed: %v\n", runErr)
		os.Exit(1)
	}
}
