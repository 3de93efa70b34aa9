package main

import (
	"context"
	"errors"
	"os"

	"caixinha/internal/cli"
	applog "caixinha/internal/log"
	"caixinha/internal/services"
	"caixinha/internal/sheets"
	"caixinha/internal/sheets/google"
	"caixinha/internal/sheets/memory"
	"caixinha/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	logger.Info("Starting caixinha-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient == nil {
		logger.Error("The worker needs AMQP_URL to consume ledger events")
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	var mirror sheets.LedgerMirror
	if cfg.MirrorEnabled() {
		client, err := google.New(ctx, cli.SheetsConfig(cfg))
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		if err := client.EnsureHeader(ctx); err != nil {
			logger.Error("Failed to prepare mirror sheet", "error", err, "sheet", cfg.GoogleSheetName)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		mirror = memory.New()
		logger.Info("Google Sheets disabled - mirroring in memory only")
	}

	// The worker only reads; it never publishes.
	ledger := services.NewLedger(repo)
	mw := worker.NewMirrorWorker(ledger, mirror, cfg.MirrorConcurrency)

	err := amqpClient.ConsumeLedgerEvents(ctx, mw.HandleLedgerEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
