package main

import (
	_ "time/tzdata"

	"taschengeld/internal/amqp"
	"taschengeld/internal/cli"
	"taschengeld/internal/config"
	"taschengeld/internal/log"
	gsheet "taschengeld/internal/sheets/google"
	"taschengeld/internal/storage"
	"taschengeld/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).ValidateWorker)
	logger.Info("Starting taschengeld-worker")

	loc, err := cfg.Location()
	if err != nil {
		cli.Fatal(logger, "Failed to load time zone", err)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize SQLite repository", err, "path", cfg.SQLiteDBPath)
	}
	defer repo.Close()

	sheetsClient, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		Location:        loc,
	})
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
	}
	if err := sheetsClient.EnsureHeader(ctx); err != nil {
		// Not fatal: the rows are still correct without a header.
		logger.Warn("Failed to write sheet header", log.FieldError, err)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	var consumer worker.Consumer
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize AMQP client", err)
		}
		defer amqpClient.Close()
		consumer = amqpClient
	} else {
		logger.Info("No AMQP_URL set, relying on the periodic sweep", "interval", cfg.SyncInterval)
	}

	w := worker.NewSyncWorker(repo, sheetsClient, worker.Config{
		BatchSize: cfg.SyncBatchSize,
		Interval:  cfg.SyncInterval,
		Location:  loc,
	}, logger)

	if err := w.Run(ctx, consumer); err != nil {
		cli.Fatal(logger, "Worker stopped with error", err)
	}
	logger.Info("Worker shutdown complete")
}
